package observability

import "time"

// Routing key for socket lifecycle events on the events exchange.
const WSEventsRoutingKey = "ws_events.chat"

type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// WSIdentity describes who owns a socket connection.
type WSIdentity struct {
	UserID   int    `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// WSEvent is the payload of a ws_events envelope.
type WSEvent struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// NewWSEnvelope builds a ws_events envelope for a connection that opened at connectedAt.
func NewWSEnvelope(event, connID string, connectedAt time.Time, reason string, identity WSIdentity) EventEnvelope {
	var duration int64
	if !connectedAt.IsZero() && event != "ws_connect" {
		duration = time.Since(connectedAt).Milliseconds()
	}
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": WSEvent{
				Event:      event,
				ConnID:     connID,
				DurationMS: duration,
				Reason:     reason,
			},
			"identity": identity,
		},
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
