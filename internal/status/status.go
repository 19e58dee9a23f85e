// Package status provides a thread-safe status tracker for the lamp daemon.
// It is read by the HTTP handlers and the lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lampd/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	DebounceMs   int64
	HeartbeatMs  int64
	CooldownMs   int64
	Broker       string
	HTTPAddr     string
	Hostname     string
	CommandTopic string
	StateTopic   string
}

// Outcome is the wall-clock record of a scheduler step that did something.
type Outcome struct {
	Result string
	Reason string
	Error  string
	At     time.Time
}

// Command is the wall-clock record of the last interpreted command.
type Command struct {
	Kind  string
	Topic string
	At    time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Ready          bool
	Lamp           bool
	Published      logic.PublishRecord
	Pending        bool
	Forced         bool
	Throttled      bool
	ThrottleRaised time.Time
	LastPublish    time.Time
	LastOutcome    *Outcome
	LastCommand    *Command
	Counts         logic.Counts
	SwitchKnown    bool
	SwitchHigh     bool
	InboxDropped   int
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// InSync reports whether the remote side was told the current lamp state.
func (s Snapshot) InSync() bool {
	return s.Published.Valid && s.Published.State == s.Lamp
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the reconciler state. Called by the session driver every cycle.
func (t *Tracker) Update(view logic.View, pending bool, inboxDropped int) {
	t.mu.Lock()
	t.snap.Ready = true
	t.snap.Lamp = view.Lamp
	t.snap.Published = view.Record
	t.snap.Pending = pending
	t.snap.Forced = view.Forced
	t.snap.Throttled = view.Throttle.Active
	t.snap.Counts = view.Counts
	t.snap.InboxDropped = inboxDropped
	t.mu.Unlock()
}

// RecordOutcome stores a non-idle scheduler step.
func (t *Tracker) RecordOutcome(out logic.Outcome, at time.Time) {
	if out.Result == logic.ResultIdle {
		return
	}
	o := &Outcome{
		Result: string(out.Result),
		Reason: string(out.Reason),
		At:     at,
	}
	if out.Err != nil {
		o.Error = out.Err.Error()
	}

	t.mu.Lock()
	t.snap.LastOutcome = o
	if out.Result == logic.ResultPublished {
		t.snap.LastPublish = at
	}
	t.mu.Unlock()
}

// RecordCommand stores the last interpreted command.
func (t *Tracker) RecordCommand(cmd logic.Command, topic string, at time.Time) {
	t.mu.Lock()
	t.snap.LastCommand = &Command{Kind: cmd.String(), Topic: topic, At: at}
	if cmd == logic.ThrottleRaised {
		t.snap.ThrottleRaised = at
	}
	t.mu.Unlock()
}

// SetSwitchLevel records the raw switch input level.
func (t *Tracker) SetSwitchLevel(high bool) {
	t.mu.Lock()
	t.snap.SwitchKnown = true
	t.snap.SwitchHigh = high
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
