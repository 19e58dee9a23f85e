package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Lamp          string       `json:"lamp"`
	Published     string       `json:"published"`
	InSync        bool         `json:"in_sync"`
	Pending       bool         `json:"pending"`
	Ready         bool         `json:"ready"`
	Switch        string       `json:"switch"`
	Throttle      ThrottleJSON `json:"throttle"`
	LastPublish   string       `json:"last_publish,omitempty"`
	LastOutcome   *OutcomeJSON `json:"last_outcome,omitempty"`
	LastCommand   *CommandJSON `json:"last_command,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ThrottleJSON reports the rate-limit window.
type ThrottleJSON struct {
	Active   bool   `json:"active"`
	RaisedAt string `json:"raised_at,omitempty"`
}

// OutcomeJSON is the JSON representation of the last scheduler outcome.
type OutcomeJSON struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
	At     string `json:"at"`
}

// CommandJSON is the JSON representation of the last inbound command.
type CommandJSON struct {
	Kind  string `json:"kind"`
	Topic string `json:"topic"`
	At    string `json:"at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected    bool   `json:"connected"`
	Broker       string `json:"broker"`
	InboxDropped int    `json:"inbox_dropped"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Toggles        int `json:"toggles"`
	CommandsOn     int `json:"commands_on"`
	CommandsOff    int `json:"commands_off"`
	StatusRequests int `json:"status_requests"`
	ThrottleNotes  int `json:"throttle_notices"`
	Unrecognized   int `json:"unrecognized"`
	Published      int `json:"published"`
	Failed         int `json:"failed"`
	Suppressed     int `json:"suppressed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	DebounceMs   int64  `json:"debounce_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	CooldownMs   int64  `json:"throttle_cooldown_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	Hostname     string `json:"hostname"`
	CommandTopic string `json:"command_topic"`
	StateTopic   string `json:"state_topic"`
}

// LampString renders a lamp state for display.
func LampString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	lamp := "UNKNOWN"
	if snap.Ready {
		lamp = LampString(snap.Lamp)
	}
	published := "UNKNOWN"
	if snap.Published.Valid {
		published = LampString(snap.Published.State)
	}
	sw := "UNKNOWN"
	if snap.SwitchKnown {
		sw = "LOW"
		if snap.SwitchHigh {
			sw = "HIGH"
		}
	}

	inner := StatusInner{
		Lamp:      lamp,
		Published: published,
		InSync:    snap.InSync(),
		Pending:   snap.Pending,
		Ready:     snap.Ready,
		Switch:    sw,
		Throttle: ThrottleJSON{
			Active: snap.Throttled,
		},
		LastPublish:   formatTime(snap.LastPublish),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected:    snap.MQTTConnected,
			Broker:       snap.Config.Broker,
			InboxDropped: snap.InboxDropped,
		},
		Counts: CountsJSON{
			Toggles:        snap.Counts.Toggles,
			CommandsOn:     snap.Counts.CommandsOn,
			CommandsOff:    snap.Counts.CommandsOff,
			StatusRequests: snap.Counts.StatusRequests,
			ThrottleNotes:  snap.Counts.ThrottleNotes,
			Unrecognized:   snap.Counts.Unrecognized,
			Published:      snap.Counts.Published,
			Failed:         snap.Counts.Failed,
			Suppressed:     snap.Counts.Suppressed,
		},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			DebounceMs:   snap.Config.DebounceMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			CooldownMs:   snap.Config.CooldownMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			Hostname:     snap.Config.Hostname,
			CommandTopic: snap.Config.CommandTopic,
			StateTopic:   snap.Config.StateTopic,
		},
	}
	if snap.Throttled {
		inner.Throttle.RaisedAt = formatTime(snap.ThrottleRaised)
	}
	if o := snap.LastOutcome; o != nil {
		inner.LastOutcome = &OutcomeJSON{Result: o.Result, Reason: o.Reason, Error: o.Error, At: formatTime(o.At)}
	}
	if c := snap.LastCommand; c != nil {
		inner.LastCommand = &CommandJSON{Kind: c.Kind, Topic: c.Topic, At: formatTime(c.At)}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
