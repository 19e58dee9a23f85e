package logic

import "time"

// Millis is a free-running millisecond counter. It wraps after ~49.7 days.
type Millis uint32

// Since returns the time elapsed from then to now. Unsigned subtraction
// keeps the result correct across a single wrap of the counter.
func Since(now, then Millis) Millis {
	return now - then
}

// Clock returns the current counter value.
type Clock func() Millis

// NewClock returns a Clock counting milliseconds from origin using the
// monotonic reading of time.Now.
func NewClock(origin time.Time) Clock {
	return func() Millis {
		return Millis(uint64(time.Since(origin).Milliseconds()))
	}
}

// MillisOf converts a duration to counter units, saturating at the counter range.
func MillisOf(d time.Duration) Millis {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	if ms > int64(^Millis(0)) {
		return ^Millis(0)
	}
	return Millis(ms)
}
