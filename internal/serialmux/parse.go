package serialmux

import "strings"

const (
	EventTypeAck     = "ack"
	EventTypeError   = "error"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a line from the pointer device and returns a
// simple event type token.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case strings.EqualFold(p, "ok"):
		return EventTypeAck
	case strings.HasPrefix(strings.ToLower(p), "err"):
		return EventTypeError
	case strings.HasPrefix(p, "{") && strings.Contains(p, `"status"`):
		return EventTypeStatus
	}
	return EventTypeUnknown
}
