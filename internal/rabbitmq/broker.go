package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"community-chat/internal/logging"
	"community-chat/internal/observability"
)

// Broker is one connection and channel bound to a declared exchange.
type Broker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects and declares a durable exchange of the given kind
// ("topic" or "fanout").
func Dial(url, exchange, kind string) (*Broker, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log := logging.With("rabbitmq")
	log.Info().Str("exchange", exchange).Str("kind", kind).Msg("rabbitmq connected")
	return &Broker{conn: conn, ch: ch, exchange: exchange}, nil
}

// Channel exposes the channel for consumers.
func (b *Broker) Channel() *amqp.Channel { return b.ch }

func (b *Broker) Exchange() string { return b.exchange }

// PublishJSON marshals message and publishes it persistently with headers.
func (b *Broker) PublishJSON(ctx context.Context, routingKey string, message any, headers map[string]string) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	table := amqp.Table{}
	for key, value := range headers {
		table[key] = value
	}

	err = b.ch.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      table,
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError()
		logging.Ctx(ctx).Warn().Err(err).Str("exchange", b.exchange).Str("routing_key", routingKey).Msg("rabbitmq publish failed")
	}
	return err
}

// Publish sends an audit event without headers.
func (b *Broker) Publish(ctx context.Context, routingKey string, event any) error {
	return b.PublishJSON(ctx, routingKey, event, nil)
}

func (b *Broker) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
