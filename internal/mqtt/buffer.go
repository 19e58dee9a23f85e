package mqtt

import (
	"log"
	"sync"

	"github.com/sweeney/lampd/internal/logic"
)

// Inbox is a fixed-capacity FIFO of inbound messages. The broker callback
// pushes, the session driver drains. When full the oldest message is dropped.
type Inbox struct {
	mu       sync.Mutex
	buf      []logic.Message
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since the inbox last emptied
	dropped  int
	wake     chan struct{}
}

// NewInbox creates an Inbox holding at most capacity messages.
func NewInbox(capacity int) *Inbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Inbox{
		buf:      make([]logic.Message, capacity),
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Push appends a message and wakes the consumer. It never blocks.
func (r *Inbox) Push(msg logic.Message) {
	r.mu.Lock()
	if r.count == r.capacity {
		if !r.overflow {
			log.Printf("mqtt: inbox full (%d messages), dropping oldest", r.capacity)
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		r.dropped++
	} else {
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		r.count++
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Drain removes and returns up to limit of the oldest messages (all if limit <= 0).
func (r *Inbox) Drain(limit int) []logic.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	n := r.count
	if limit > 0 && n > limit {
		n = limit
	}

	result := make([]logic.Message, n)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < n; i++ {
		idx := (start + i) % r.capacity
		result[i] = r.buf[idx]
		r.buf[idx] = logic.Message{}
	}

	r.count -= n
	if r.count == 0 {
		r.overflow = false
	}
	return result
}

// Len returns the number of queued messages.
func (r *Inbox) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped returns the number of messages lost to overflow since startup.
func (r *Inbox) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Wake is signalled after every Push.
func (r *Inbox) Wake() <-chan struct{} {
	return r.wake
}
