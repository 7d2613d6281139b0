package telemetry

import (
	"context"
	"time"

	"community-chat/internal/logging"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes audit_log envelopes for REST mutations.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *int64       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes a plain audit line.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *int64) {
	e.EmitAction(ctx, level, text, "", "", requestID, userID)
}

// EmitAction publishes an audit line tagged with the action and its target,
// e.g. "group.delete" on "group:12".
func (e *AuditEmitter) EmitAction(ctx context.Context, level, text, action, target, requestID string, userID *int64) {
	if e == nil || e.publisher == nil {
		return
	}

	log := logging.Ctx(ctx)
	event := log.Debug().Str("level_tag", level).Str("request_id", requestID).Str("text", text)
	if action != "" {
		event = event.Str("action", action).Str("target", target)
	}
	if userID != nil {
		event = event.Int64("user_id", *userID)
	}
	event.Msg("audit emit")

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:  level,
			Text:   text,
			Action: action,
			Target: target,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn().Err(err).Str("routing_key", e.routingKey).Msg("audit publish failed")
	}
}
