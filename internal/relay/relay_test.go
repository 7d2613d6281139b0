package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-chat/internal/logging"
	"community-chat/internal/models"
)

type recordingDeliverer struct {
	mu  sync.Mutex
	got []models.ChatMessage
}

func (d *recordingDeliverer) DeliverRemote(_ context.Context, msg models.ChatMessage) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, msg)
	return 1
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.got)
}

type fakeLink struct {
	deliveries chan amqp.Delivery
	published  int
	closed     bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{deliveries: make(chan amqp.Delivery, 4)}
}

func (l *fakeLink) PublishJSON(context.Context, string, any, map[string]string) error {
	l.published++
	return nil
}

func (l *fakeLink) Subscribe() (<-chan amqp.Delivery, error) { return l.deliveries, nil }

func (l *fakeLink) Close() error {
	l.closed = true
	return nil
}

func body(t *testing.T, origin string, msg models.ChatMessage) []byte {
	t.Helper()
	data, err := json.Marshal(envelope{Origin: origin, Message: msg})
	require.NoError(t, err)
	return data
}

func TestDecode(t *testing.T) {
	group := 10
	msg := models.ChatMessage{ID: 4, Type: models.MessageTypeText, Content: "hi", SenderID: 1, GroupID: &group}

	got, foreign, err := decode(body(t, "peer", msg), "self")
	require.NoError(t, err)
	assert.True(t, foreign)
	assert.Equal(t, 4, got.ID)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, 10, *got.GroupID)

	_, foreign, err = decode(body(t, "self", msg), "self")
	require.NoError(t, err)
	assert.False(t, foreign)

	_, _, err = decode([]byte("{"), "self")
	assert.Error(t, err)

	_, _, err = decode(body(t, "", msg), "self")
	assert.Error(t, err)
}

func TestHandleSkipsOwnMessages(t *testing.T) {
	r := &Relay{instanceID: "self", log: logging.With("relay")}
	d := &recordingDeliverer{}
	msg := models.ChatMessage{ID: 9, SenderID: 1}

	r.handle(context.Background(), d, amqp.Delivery{Body: body(t, "self", msg)})
	assert.Empty(t, d.got)

	r.handle(context.Background(), d, amqp.Delivery{
		Body:    body(t, "peer", msg),
		Headers: amqp.Table{headerOrigin: "peer"},
	})
	require.Len(t, d.got, 1)
	assert.Equal(t, 9, d.got[0].ID)

	r.handle(context.Background(), d, amqp.Delivery{Body: []byte("not json")})
	assert.Len(t, d.got, 1)
}

func TestConsumeReconnectsAfterChannelClose(t *testing.T) {
	first, second := newFakeLink(), newFakeLink()
	attempts := 0
	connect := func() (link, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("broker down")
		}
		return second, nil
	}
	r := newRelay(first, connect, time.Millisecond, "self")
	d := &recordingDeliverer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Consume(ctx, d) }()

	close(first.deliveries)
	second.deliveries <- amqp.Delivery{Body: body(t, "peer", models.ChatMessage{ID: 11, SenderID: 2})}

	require.Eventually(t, func() bool { return d.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, attempts)
	assert.True(t, first.closed)
	require.NoError(t, r.Broadcast(context.Background(), models.ChatMessage{ID: 12}))
	assert.Equal(t, 1, second.published)
	assert.Equal(t, 0, first.published)
}

func TestConsumeStopsWithContext(t *testing.T) {
	r := newRelay(newFakeLink(), func() (link, error) { return newFakeLink(), nil }, time.Millisecond, "self")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, r.Consume(ctx, &recordingDeliverer{}))
}
