// Package logic contains the pure reconciliation core for the lamp.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable as a Millis counter value.
package logic

// Payload tokens exchanged with the remote feed.
const (
	TokenOn     = "lampon"
	TokenOff    = "lampoff"
	TokenStatus = "lampstatus"
)

// DefaultPayloadLimit is the size of the inbound payload buffer.
// Longer payloads are truncated before matching.
const DefaultPayloadLimit = 50

// Command is the semantic meaning of an inbound message.
type Command int

const (
	Unrecognized Command = iota
	SetOn
	SetOff
	StatusRequest
	ThrottleRaised
)

func (c Command) String() string {
	switch c {
	case SetOn:
		return "SET_ON"
	case SetOff:
		return "SET_OFF"
	case StatusRequest:
		return "STATUS_REQUEST"
	case ThrottleRaised:
		return "THROTTLE_RAISED"
	default:
		return "UNRECOGNIZED"
	}
}

// Message is a raw inbound message as delivered by the transport.
type Message struct {
	Topic   string
	Payload []byte
}

// Feeds names the topics the interpreter understands.
type Feeds struct {
	Command  string // lamp-command feed
	Throttle string // rate-limit notices
}

// Timings holds the tunable intervals of the reconciliation core.
type Timings struct {
	Debounce         Millis
	Heartbeat        Millis
	ThrottleCooldown Millis
}

// DefaultTimings returns the stock intervals: 200ms debounce, one hour
// heartbeat and a 60s throttle cooldown.
func DefaultTimings() Timings {
	return Timings{
		Debounce:         200,
		Heartbeat:        3_600_000,
		ThrottleCooldown: 60_000,
	}
}

// PublishRecord tracks what the remote side was last told.
type PublishRecord struct {
	State bool
	At    Millis
	// Valid is false until the first successful publish.
	Valid bool
}

// ThrottleWindow is the remote-imposed rate limit signal.
type ThrottleWindow struct {
	Active     bool
	RaisedAt   Millis
	ObservedAt Millis // last time a due publish was held back
}

// Counts tracks activity since startup.
type Counts struct {
	Toggles        int
	CommandsOn     int
	CommandsOff    int
	StatusRequests int
	ThrottleNotes  int
	Unrecognized   int
	Published      int
	Failed         int
	Suppressed     int
}

// StateString renders a lamp state the way the remote feed does.
func StateString(on bool) string {
	if on {
		return TokenOn
	}
	return TokenOff
}
