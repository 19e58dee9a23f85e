package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a StatePublisher that records every attempt.
type recorder struct {
	sent []bool
	err  error
}

func (r *recorder) PublishState(on bool) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, on)
	return nil
}

// booted returns a reconciler that has already made its startup publish at t=0.
func booted(t *testing.T, initial bool) (*Reconciler, *recorder) {
	t.Helper()
	r := NewReconciler(DefaultTimings(), initial, 0)
	pub := &recorder{}
	out := r.Step(0, pub)
	require.Equal(t, ResultPublished, out.Result)
	require.Equal(t, ReasonStartup, out.Reason)
	pub.sent = nil
	return r, pub
}

func TestStartupPublishesOnce(t *testing.T) {
	r := NewReconciler(DefaultTimings(), false, 0)
	pub := &recorder{}

	out := r.Step(0, pub)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, ReasonStartup, out.Reason)
	assert.Equal(t, []bool{false}, pub.sent)

	for now := Millis(100); now < 10_000; now += 100 {
		out = r.Step(now, pub)
		assert.Equal(t, ResultIdle, out.Result)
	}
	assert.Len(t, pub.sent, 1)
}

func TestStartupPublishRetriedAfterFailure(t *testing.T) {
	r := NewReconciler(DefaultTimings(), true, 0)
	pub := &recorder{err: errors.New("not connected")}

	out := r.Step(0, pub)
	assert.Equal(t, ResultFailed, out.Result)
	assert.Equal(t, ReasonStartup, out.Reason)
	assert.EqualError(t, out.Err, "not connected")
	assert.False(t, r.View().Record.Valid)

	pub.err = nil
	out = r.Step(1_000, pub)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, []bool{true}, pub.sent)
	assert.Equal(t, Millis(1_000), r.View().Record.At)
}

func TestChangePublishedNextStep(t *testing.T) {
	r, pub := booted(t, false)

	changed := r.Apply(SetOn, 500)
	assert.True(t, changed)
	assert.True(t, r.Lamp())

	out := r.Step(600, pub)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, ReasonChanged, out.Reason)
	assert.Equal(t, []bool{true}, pub.sent)

	v := r.View()
	assert.True(t, v.Record.State)
	assert.Equal(t, Millis(600), v.Record.At)
}

func TestRepeatedSetOnIsIdempotent(t *testing.T) {
	r, pub := booted(t, false)

	r.Apply(SetOn, 100)
	r.Step(200, pub)
	require.Len(t, pub.sent, 1)

	for i := Millis(0); i < 5; i++ {
		assert.False(t, r.Apply(SetOn, 300+i*100))
		assert.Equal(t, ResultIdle, r.Step(350+i*100, pub).Result)
	}
	assert.Len(t, pub.sent, 1)
	assert.Equal(t, 6, r.View().Counts.CommandsOn)
}

func TestToggleTwiceBetweenStepsPublishesNothing(t *testing.T) {
	r, pub := booted(t, false)

	r.Toggle()
	r.Toggle()

	assert.Equal(t, ResultIdle, r.Step(1_000, pub).Result)
	assert.Empty(t, pub.sent)
	assert.Equal(t, 2, r.View().Counts.Toggles)
}

func TestStatusRequestForcesPublish(t *testing.T) {
	r, pub := booted(t, true)

	assert.False(t, r.Apply(StatusRequest, 100))
	assert.True(t, r.View().Forced)

	out := r.Step(200, pub)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, ReasonRequested, out.Reason)
	assert.Equal(t, []bool{true}, pub.sent)
	assert.False(t, r.View().Forced)

	assert.Equal(t, ResultIdle, r.Step(300, pub).Result)
}

func TestStatusRequestSurvivesFailure(t *testing.T) {
	r, pub := booted(t, true)
	r.Apply(StatusRequest, 100)

	pub.err = errors.New("publish rejected")
	assert.Equal(t, ResultFailed, r.Step(200, pub).Result)
	assert.True(t, r.View().Forced)

	pub.err = nil
	assert.Equal(t, ResultPublished, r.Step(300, pub).Result)
}

func TestHeartbeat(t *testing.T) {
	r, pub := booted(t, false)
	hb := DefaultTimings().Heartbeat

	assert.Equal(t, ResultIdle, r.Step(hb, pub).Result, "elapsed must exceed the interval")

	out := r.Step(hb+1, pub)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, ReasonHeartbeat, out.Reason)
	assert.Equal(t, []bool{false}, pub.sent)

	// Next heartbeat is measured from the last publish.
	assert.Equal(t, ResultIdle, r.Step(2*hb, pub).Result)
	assert.Equal(t, ResultPublished, r.Step(2*hb+2, pub).Result)
}

func TestHeartbeatDisabled(t *testing.T) {
	timings := DefaultTimings()
	timings.Heartbeat = 0
	r := NewReconciler(timings, false, 0)
	pub := &recorder{}
	r.Step(0, pub)

	for now := Millis(1); now < 100; now++ {
		assert.Equal(t, ResultIdle, r.Step(now*3_600_000, pub).Result)
	}
	assert.Len(t, pub.sent, 1)
}

func TestHeartbeatAcrossWrap(t *testing.T) {
	start := Millis(0xFFFF0000)
	r := NewReconciler(DefaultTimings(), false, start)
	pub := &recorder{}
	require.Equal(t, ResultPublished, r.Step(start, pub).Result)

	// 0x10000 ms after start, well under an hour, even though the raw counter is smaller.
	assert.Equal(t, ResultIdle, r.Step(0, pub).Result)

	later := start + DefaultTimings().Heartbeat + 1 // wraps
	assert.Less(t, uint32(later), uint32(start))
	assert.Equal(t, ResultPublished, r.Step(later, pub).Result)
}

func TestThrottleSuppressesPublish(t *testing.T) {
	r, pub := booted(t, false)

	r.Apply(ThrottleRaised, 1_000)
	r.Apply(SetOn, 1_500)

	for now := Millis(2_000); now <= 61_000; now += 1_000 {
		out := r.Step(now, pub)
		assert.Equal(t, ResultSuppressed, out.Result, "at %d", now)
		assert.Equal(t, ReasonChanged, out.Reason)
	}
	assert.Empty(t, pub.sent)

	v := r.View()
	assert.True(t, v.Throttle.Active)
	assert.Equal(t, Millis(61_000), v.Throttle.ObservedAt)

	out := r.Step(61_001, pub)
	assert.True(t, out.ThrottleCleared)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, []bool{true}, pub.sent)
	assert.False(t, r.View().Throttle.Active)
}

func TestThrottleWithoutPendingChangeStaysIdle(t *testing.T) {
	r, pub := booted(t, false)
	r.Apply(ThrottleRaised, 100)

	out := r.Step(200, pub)
	assert.Equal(t, ResultIdle, out.Result)
	assert.Equal(t, 0, r.View().Counts.Suppressed)

	out = r.Step(60_101, pub)
	assert.True(t, out.ThrottleCleared)
	assert.Equal(t, ResultIdle, out.Result)
}

func TestThrottleRestartedByNewNotice(t *testing.T) {
	r, pub := booted(t, false)

	r.Apply(ThrottleRaised, 1_000)
	r.Apply(SetOn, 1_000)
	assert.Equal(t, ResultSuppressed, r.Step(30_000, pub).Result)

	// A second notice mid-cooldown extends the backoff.
	r.Apply(ThrottleRaised, 40_000)
	assert.Equal(t, ResultSuppressed, r.Step(61_001, pub).Result)
	assert.Equal(t, ResultSuppressed, r.Step(100_000, pub).Result)
	assert.Empty(t, pub.sent)

	out := r.Step(100_001, pub)
	assert.Equal(t, ResultPublished, out.Result)
	assert.Equal(t, []bool{true}, pub.sent)
	assert.Equal(t, 2, r.View().Counts.ThrottleNotes)
}

func TestThrottleCooldownAcrossWrap(t *testing.T) {
	r, pub := booted(t, false)

	raised := Millis(0xFFFFF000)
	r.Apply(ThrottleRaised, raised)
	r.Apply(SetOff, raised)
	r.Apply(StatusRequest, raised)

	assert.Equal(t, ResultSuppressed, r.Step(raised+30_000, pub).Result)
	assert.Equal(t, ResultPublished, r.Step(raised+60_001, pub).Result)
}

func TestFailedPublishLeavesStatePending(t *testing.T) {
	r, pub := booted(t, false)
	r.Toggle()

	pub.err = errors.New("publish timeout")
	for now := Millis(100); now <= 500; now += 100 {
		out := r.Step(now, pub)
		assert.Equal(t, ResultFailed, out.Result)
		assert.Equal(t, ReasonChanged, out.Reason)
	}
	v := r.View()
	assert.False(t, v.Record.State)
	assert.Equal(t, Millis(0), v.Record.At)
	assert.Equal(t, 5, v.Counts.Failed)
	assert.True(t, r.Pending(600))

	pub.err = nil
	assert.Equal(t, ResultPublished, r.Step(600, pub).Result)
	assert.False(t, r.Pending(700))
}

func TestApplyUnrecognized(t *testing.T) {
	r, _ := booted(t, true)
	assert.False(t, r.Apply(Unrecognized, 10))
	assert.True(t, r.Lamp())
	assert.Equal(t, 1, r.View().Counts.Unrecognized)
}

// Every interleaving of toggles and commands converges once the throttle
// lifts and the transport works.
func TestReconciliationConverges(t *testing.T) {
	ops := []func(r *Reconciler, now Millis){
		func(r *Reconciler, _ Millis) { r.Toggle() },
		func(r *Reconciler, now Millis) { r.Apply(SetOn, now) },
		func(r *Reconciler, now Millis) { r.Apply(SetOff, now) },
		func(r *Reconciler, now Millis) { r.Apply(StatusRequest, now) },
		func(r *Reconciler, now Millis) { r.Apply(ThrottleRaised, now) },
	}

	for seed := 0; seed < 200; seed++ {
		r, pub := booted(t, seed%2 == 0)
		now := Millis(0)
		x := uint32(seed*2654435761 + 1)
		for i := 0; i < 40; i++ {
			x = x*1664525 + 1013904223
			now += Millis(x%5_000) + 1
			ops[int(x>>16)%len(ops)](r, now)
			if x%3 == 0 {
				pub.err = errors.New("flaky")
			} else {
				pub.err = nil
			}
			r.Step(now, pub)
		}

		pub.err = nil
		now += DefaultTimings().ThrottleCooldown + 1
		r.Step(now, pub)

		v := r.View()
		require.True(t, v.Record.Valid, "seed %d", seed)
		assert.Equal(t, v.Lamp, v.Record.State, "seed %d", seed)
		assert.False(t, r.Pending(now), "seed %d", seed)
	}
}
