// Package mqtt connects the lamp to the broker with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/lampd/internal/logic"
)

var (
	// ErrNotConnected is returned when no broker connection is open.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrPublishTimeout is returned when the broker does not acknowledge in time.
	ErrPublishTimeout = errors.New("mqtt: publish timeout")
)

// Availability payloads on the system topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics names the feeds the device uses.
type Topics struct {
	Command  string // subscribed: lamp commands
	State    string // published: lampon/lampoff reports
	Throttle string // subscribed: rate-limit notices
	System   string // published: lifecycle events and availability (empty disables)
}

// Feeds returns the subscription side of the topics for the interpreter.
func (t Topics) Feeds() logic.Feeds {
	return logic.Feeds{Command: t.Command, Throttle: t.Throttle}
}

// Client is the transport used by the session driver.
type Client interface {
	// PublishState sends lampon/lampoff to the state feed.
	// Returns error if publishing fails (should not crash the process).
	PublishState(on bool) error

	// PublishSystem sends a lifecycle event to the system topic.
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the broker connection is open.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// FormatStatePayload returns the literal state report.
func FormatStatePayload(on bool) []byte {
	return []byte(logic.StateString(on))
}

// SystemPayload represents the MQTT message payload for system events
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ClientID returns prefix plus a short random suffix so a rebooted device
// never collides with its own stale session.
func ClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
