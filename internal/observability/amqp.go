package observability

import (
	"context"

	"community-chat/internal/logging"
)

// Publisher sends JSON documents to the events exchange.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, message any, headers map[string]string) error
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event publisher; nil disables events.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends an envelope through the default publisher, if any.
func PublishEvent(ctx context.Context, routingKey string, message any, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.PublishJSON(ctx, routingKey, message, headers)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("routing_key", routingKey).Msg("publish event failed")
	}
	return err
}
