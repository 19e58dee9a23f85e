package logic

import (
	"bytes"
	"strings"
)

// Interpret classifies an inbound message. Any message on the throttle feed
// is a ThrottleRaised notice. Command feed payloads are cut to limit bytes
// (and at a NUL) and then matched by substring, ON before OFF before STATUS.
func Interpret(msg Message, feeds Feeds, limit int) Command {
	switch msg.Topic {
	case feeds.Throttle:
		if feeds.Throttle != "" {
			return ThrottleRaised
		}
	case feeds.Command:
		if feeds.Command != "" {
			return matchToken(clip(msg.Payload, limit))
		}
	}
	return Unrecognized
}

func matchToken(payload string) Command {
	switch {
	case strings.Contains(payload, TokenOn):
		return SetOn
	case strings.Contains(payload, TokenOff):
		return SetOff
	case strings.Contains(payload, TokenStatus):
		return StatusRequest
	}
	return Unrecognized
}

func clip(payload []byte, limit int) string {
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}
	if limit > 0 && len(payload) > limit {
		payload = payload[:limit]
	}
	return string(payload)
}
