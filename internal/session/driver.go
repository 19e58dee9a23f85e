// Package session runs the lamp control loop: it applies local toggles,
// drives the scheduler and feeds inbound commands to the reconciler.
package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/lampd/internal/gpio"
	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/mqtt"
	"github.com/sweeney/lampd/internal/status"
)

// DefaultDrainLimit is how many inbound messages one cycle processes.
const DefaultDrainLimit = 16

// Shutdown is the cancellation cause that names why the daemon stopped.
// It is carried to the SHUTDOWN event as its reason.
type Shutdown struct {
	Reason string
}

func (s Shutdown) Error() string {
	return "shutdown: " + s.Reason
}

// Options wires a Driver to its collaborators.
type Options struct {
	Reconciler *logic.Reconciler
	Toggles    *logic.ToggleQueue
	Inbox      *mqtt.Inbox
	Client     mqtt.Client
	Lamp       gpio.Lamp
	Tracker    *status.Tracker // optional

	Feeds        logic.Feeds
	PayloadLimit int
	DrainLimit   int

	// Clock is the wraparound counter used by all elapsed-time decisions.
	Clock logic.Clock
	// Now is wall-clock time for status and lifecycle events.
	Now func() time.Time
	// Tick paces the regular cycle.
	Tick <-chan time.Time
}

// Driver owns the reconciler on a single goroutine.
type Driver struct {
	rec     *logic.Reconciler
	toggles *logic.ToggleQueue
	inbox   *mqtt.Inbox
	client  mqtt.Client
	lamp    gpio.Lamp
	tracker *status.Tracker

	feeds      logic.Feeds
	limit      int
	drainLimit int

	clock logic.Clock
	now   func() time.Time
	tick  <-chan time.Time

	connected  bool
	suppressed bool
}

// New creates a Driver. Zero DrainLimit means DefaultDrainLimit.
func New(o Options) *Driver {
	d := &Driver{
		rec:        o.Reconciler,
		toggles:    o.Toggles,
		inbox:      o.Inbox,
		client:     o.Client,
		lamp:       o.Lamp,
		tracker:    o.Tracker,
		feeds:      o.Feeds,
		limit:      o.PayloadLimit,
		drainLimit: o.DrainLimit,
		clock:      o.Clock,
		now:        o.Now,
		tick:       o.Tick,
		connected:  true,
	}
	if d.drainLimit <= 0 {
		d.drainLimit = DefaultDrainLimit
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Run cycles until ctx is done, then publishes a SHUTDOWN event and returns nil.
// A cycle runs on every tick and as soon as a toggle or message arrives.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.shutdown(ctx)
			return nil
		case <-d.tick:
		case <-d.toggles.Wake():
		case <-d.inbox.Wake():
		}

		d.Cycle()
		// Messages beyond the drain limit get another cycle right away.
		for d.inbox.Len() > 0 && ctx.Err() == nil {
			d.Cycle()
		}
	}
}

// Cycle performs one pass of the control loop.
func (d *Driver) Cycle() {
	if n := d.toggles.Take(); n > 0 {
		for i := 0; i < n; i++ {
			d.rec.Toggle()
		}
		log.Printf("switch: %d toggle(s), lamp %s", n, status.LampString(d.rec.Lamp()))
		d.drive()
	}

	d.sampleConnectivity()

	out := d.rec.Step(d.clock(), d.client)
	d.report(out)

	for _, msg := range d.inbox.Drain(d.drainLimit) {
		d.handle(msg)
	}

	if d.tracker != nil {
		d.tracker.Update(d.rec.View(), d.rec.Pending(d.clock()), d.inbox.Dropped())
	}
}

func (d *Driver) handle(msg logic.Message) {
	cmd := logic.Interpret(msg, d.feeds, d.limit)
	if d.tracker != nil {
		d.tracker.RecordCommand(cmd, msg.Topic, d.now())
	}

	switch cmd {
	case logic.Unrecognized:
		log.Printf("unrecognized command on %s: %q", msg.Topic, msg.Payload)
	case logic.ThrottleRaised:
		log.Printf("throttle: %q", msg.Payload)
	default:
		log.Printf("command: %s", cmd)
	}

	if d.rec.Apply(cmd, d.clock()) {
		d.drive()
	}
}

func (d *Driver) drive() {
	if err := d.lamp.Set(d.rec.Lamp()); err != nil {
		log.Printf("gpio: set lamp: %v", err)
	}
}

func (d *Driver) sampleConnectivity() {
	up := d.client.IsConnected()
	if up != d.connected {
		if up {
			log.Printf("mqtt: connection restored")
		} else {
			log.Printf("mqtt: connection unavailable, publishes deferred")
		}
		d.connected = up
	}
	if d.tracker != nil {
		d.tracker.SetMQTTConnected(up)
	}
}

func (d *Driver) report(out logic.Outcome) {
	if out.ThrottleCleared {
		log.Printf("throttle: cooldown elapsed")
		d.suppressed = false
	}

	switch out.Result {
	case logic.ResultPublished:
		log.Printf("published %s (%s)", logic.StateString(out.State), out.Reason)
	case logic.ResultFailed:
		log.Printf("publish error (%s): %v", out.Reason, out.Err)
	case logic.ResultSuppressed:
		// Once per window; the step repeats every cycle.
		if !d.suppressed {
			log.Printf("throttle: holding %s publish", out.Reason)
			d.suppressed = true
		}
	}

	if d.tracker != nil {
		d.tracker.RecordOutcome(out, d.now())
	}
}

func (d *Driver) shutdown(ctx context.Context) {
	reason := "UNKNOWN"
	var sd Shutdown
	if errors.As(context.Cause(ctx), &sd) {
		reason = sd.Reason
	}
	log.Printf("shutting down (%s)", reason)

	event := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if d.tracker != nil {
		d.tracker.SetMQTTConnected(d.client.IsConnected())
		event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := d.client.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
