package rabbitmq

import (
	"context"

	"community-chat/internal/logging"
	"community-chat/internal/telemetry"
)

// Publisher publishes audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher returns a broker on a topic exchange, or a noop publisher when
// AMQP is disabled or unreachable.
func NewPublisher(amqpURL, exchange string) Publisher {
	log := logging.With("rabbitmq")
	if amqpURL == "" {
		log.Info().Str("reason", "empty amqp url").Msg("rabbitmq disabled, using noop")
		return noopPublisher{reason: "empty amqp url"}
	}

	broker, err := Dial(amqpURL, exchange, "topic")
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		return noopPublisher{reason: err.Error()}
	}
	return broker
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	e := logging.Ctx(ctx).Debug().Str("routing_key", routingKey)
	if envelope, ok := event.(telemetry.AuditEnvelope); ok {
		e = e.Str("event_type", envelope.EventType).Str("request_id", envelope.RequestID)
	}
	e.Msg("rabbitmq noop publish")
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *Broker:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
