package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"community-chat/internal/logging"
	"community-chat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client owns one websocket connection. Frames are read and handled in
// order on the read goroutine; writes go through send to the write goroutine.
type Client struct {
	info    ConnInfo
	conn    *websocket.Conn
	send    chan models.OutboundFrame
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClient(info ConnInfo, conn *websocket.Conn, buffer int, limiter *rate.Limiter) *Client {
	return &Client{
		info:    info,
		conn:    conn,
		send:    make(chan models.OutboundFrame, buffer),
		limiter: limiter,
	}
}

func (c *Client) enqueue(frame models.OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionGone
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// allow reports whether another inbound frame fits the rate budget.
func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// writePump drains send to the socket and keeps the peer alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				logging.Debug().Err(err).Str("conn_id", c.info.ConnID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// prepareRead applies the read limit and pong-driven deadline.
func (c *Client) prepareRead() error {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return nil
}
