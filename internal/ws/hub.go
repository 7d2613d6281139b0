package ws

import (
	"context"
	"errors"
	"sync"

	"community-chat/internal/logging"
	"community-chat/internal/models"
	"community-chat/internal/observability"
)

var (
	// ErrConnectionGone is returned when pushing to a connection that already closed.
	ErrConnectionGone = errors.New("connection gone")
	// ErrSlowConsumer is returned when a connection's send buffer is full; the
	// connection is closed.
	ErrSlowConsumer = errors.New("send buffer full")
)

// Hub maps connection ids to live clients.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.info.ConnID] = c
}

// remove drops the client and closes its send channel.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// Push queues an outbound frame for connID without blocking.
func (h *Hub) Push(connID string, event string, payload any) error {
	c, ok := h.get(connID)
	if !ok {
		return ErrConnectionGone
	}
	err := c.enqueue(models.OutboundFrame{Event: event, Data: payload})
	if errors.Is(err, ErrSlowConsumer) {
		logging.Warn().Str("conn_id", connID).Int("user_id", c.info.UserID).Msg("dropping slow websocket client")
		h.publishWSError(c.info, err)
		h.remove(connID)
	}
	return err
}

// Len reports the number of live clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client, letting their pumps exit.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), observability.WSEventsRoutingKey,
		observability.NewWSEnvelope("ws_error", info.ConnID, info.ConnectedAt, err.Error(), info.identity()),
		info.headers())
}
