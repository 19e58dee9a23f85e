package logic

import "sync/atomic"

// Debouncer filters mechanical switch edges. An edge is accepted only if
// more than the window has elapsed since the previously accepted edge.
// Not safe for concurrent use; it belongs to the single edge source.
type Debouncer struct {
	window Millis
	last   Millis
}

// NewDebouncer creates a Debouncer. The guard starts at counter zero.
func NewDebouncer(window Millis) *Debouncer {
	return &Debouncer{window: window}
}

// Accept reports whether an edge at now is a real transition.
// Rejected edges leave the guard untouched.
func (d *Debouncer) Accept(now Millis) bool {
	if Since(now, d.last) <= d.window {
		return false
	}
	d.last = now
	return true
}

// ToggleQueue hands accepted edges from the edge goroutine to the main loop
// without locks. Push never blocks.
type ToggleQueue struct {
	pending atomic.Uint32
	wake    chan struct{}
}

// NewToggleQueue creates an empty queue.
func NewToggleQueue() *ToggleQueue {
	return &ToggleQueue{wake: make(chan struct{}, 1)}
}

// Push records one accepted edge and wakes the consumer.
func (q *ToggleQueue) Push() {
	q.pending.Add(1)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Take returns the number of edges recorded since the last Take.
func (q *ToggleQueue) Take() int {
	return int(q.pending.Swap(0))
}

// Wake is signalled after every Push.
func (q *ToggleQueue) Wake() <-chan struct{} {
	return q.wake
}

// EdgeHandler returns a function suitable for an edge event callback.
// It reads the clock, applies the debouncer and queues accepted edges.
func EdgeHandler(clock Clock, d *Debouncer, q *ToggleQueue) func() {
	return func() {
		if d.Accept(clock()) {
			q.Push()
		}
	}
}
