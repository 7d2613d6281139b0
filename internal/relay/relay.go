// Package relay forwards stored chat messages between service instances over
// a RabbitMQ fanout exchange, so each instance can reach its own connections.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"community-chat/internal/logging"
	"community-chat/internal/models"
	"community-chat/internal/observability"
	"community-chat/internal/rabbitmq"
)

const headerOrigin = "x-instance-id"

// Deliverer runs local fan-out for a message stored elsewhere.
type Deliverer interface {
	DeliverRemote(ctx context.Context, msg models.ChatMessage) int
}

type envelope struct {
	Origin  string             `json:"origin"`
	Message models.ChatMessage `json:"message"`
}

// RetryDelay is the pause between reconnect attempts after the relay
// channel closes.
const RetryDelay = 2 * time.Second

// link is one live connection to the relay exchange.
type link interface {
	PublishJSON(ctx context.Context, routingKey string, message any, headers map[string]string) error
	Subscribe() (<-chan amqp.Delivery, error)
	Close() error
}

type brokerLink struct {
	*rabbitmq.Broker
}

// Subscribe binds an exclusive auto-delete queue to the exchange.
func (l brokerLink) Subscribe() (<-chan amqp.Delivery, error) {
	ch := l.Channel()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare relay queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", l.Exchange(), false, nil); err != nil {
		return nil, fmt.Errorf("bind relay queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume relay queue: %w", err)
	}
	return deliveries, nil
}

// Relay publishes to and consumes from the relay exchange.
type Relay struct {
	mu         sync.RWMutex
	link       link
	connect    func() (link, error)
	retryDelay time.Duration
	instanceID string
	log        zerolog.Logger
}

// Dial connects and declares the fanout exchange.
func Dial(url, exchange, instanceID string) (*Relay, error) {
	connect := func() (link, error) {
		broker, err := rabbitmq.Dial(url, exchange, "fanout")
		if err != nil {
			return nil, fmt.Errorf("relay: %w", err)
		}
		return brokerLink{broker}, nil
	}
	l, err := connect()
	if err != nil {
		return nil, err
	}
	return newRelay(l, connect, RetryDelay, instanceID), nil
}

func newRelay(l link, connect func() (link, error), retryDelay time.Duration, instanceID string) *Relay {
	return &Relay{
		link:       l,
		connect:    connect,
		retryDelay: retryDelay,
		instanceID: instanceID,
		log:        logging.With("relay").With().Str("instance_id", instanceID).Logger(),
	}
}

func (r *Relay) current() link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.link
}

// Broadcast publishes msg to every peer instance.
func (r *Relay) Broadcast(ctx context.Context, msg models.ChatMessage) error {
	headers := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, headers)
	headers[headerOrigin] = r.instanceID

	if err := r.current().PublishJSON(ctx, "", envelope{Origin: r.instanceID, Message: msg}, headers); err != nil {
		return err
	}
	observability.IncRelay("published")
	return nil
}

// Consume hands foreign messages to d until ctx is done. When the channel
// closes it reconnects every retryDelay, so the relay recovers from broker
// restarts.
func (r *Relay) Consume(ctx context.Context, d Deliverer) error {
	for {
		err := r.consume(ctx, d, r.current())
		if ctx.Err() != nil {
			return nil
		}
		observability.IncRelay("disconnected")
		r.log.Warn().Err(err).Msg("relay consumer lost, reconnecting")
		if !r.reconnect(ctx) {
			return nil
		}
	}
}

func (r *Relay) consume(ctx context.Context, d Deliverer, l link) error {
	deliveries, err := l.Subscribe()
	if err != nil {
		return err
	}

	r.log.Info().Msg("relay consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("relay channel closed")
			}
			r.handle(ctx, d, delivery)
		}
	}
}

// reconnect replaces the link, retrying until it succeeds or ctx is done.
func (r *Relay) reconnect(ctx context.Context) bool {
	timer := time.NewTimer(r.retryDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}

		l, err := r.connect()
		if err != nil {
			r.log.Warn().Err(err).Msg("relay reconnect failed")
			timer.Reset(r.retryDelay)
			continue
		}

		r.mu.Lock()
		old := r.link
		r.link = l
		r.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}
		return true
	}
}

func (r *Relay) handle(ctx context.Context, d Deliverer, delivery amqp.Delivery) {
	carrier := propagation.MapCarrier{}
	for k, v := range delivery.Headers {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	msg, foreign, err := decode(delivery.Body, r.instanceID)
	if err != nil {
		observability.IncRelay("invalid")
		r.log.Warn().Err(err).Msg("drop relay message")
		return
	}
	if !foreign {
		observability.IncRelay("skipped")
		return
	}
	reached := d.DeliverRemote(ctx, msg)
	observability.IncRelay("consumed")
	r.log.Debug().Int("message_id", msg.ID).Int("delivered", reached).Msg("relayed message delivered")
}

// decode parses a relay body and reports whether it came from another instance.
func decode(body []byte, self string) (models.ChatMessage, bool, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.ChatMessage{}, false, err
	}
	if env.Origin == "" {
		return models.ChatMessage{}, false, errors.New("relay message has no origin")
	}
	if env.Message.ID == 0 {
		return models.ChatMessage{}, false, errors.New("relay message has no id")
	}
	return env.Message, env.Origin != self, nil
}

func (r *Relay) Close() error {
	return r.current().Close()
}
