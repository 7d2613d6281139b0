package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"community-chat/internal/chat"
	"community-chat/internal/config"
	"community-chat/internal/logging"
	"community-chat/internal/middleware"
	"community-chat/internal/models"
	"community-chat/internal/observability"
)

// EventService consumes connection lifecycle and inbound frames.
type EventService interface {
	ConnectionOpened(connID string)
	ConnectionClosed(connID string)
	HandleFrame(ctx context.Context, connID string, principal int, frame models.InboundFrame) error
}

// Handler upgrades authenticated requests to chat sockets.
type Handler struct {
	hub      *Hub
	service  EventService
	verifier *middleware.Verifier
	cfg      config.RealtimeConfig
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, service EventService, verifier *middleware.Verifier, cfg config.RealtimeConfig) *Handler {
	return &Handler{hub: hub, service: service, verifier: verifier, cfg: cfg}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, upgrades, and starts the pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("community-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	claims, err := h.verifier.Verify(observability.BearerToken(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := connInfoFor(c, claims, span.SpanContext().TraceID().String())
	client := newClient(info, conn, h.cfg.SendBuffer, rate.NewLimiter(rate.Limit(h.cfg.EventsPerSecond), h.cfg.EventBurst))

	h.hub.add(client)
	h.service.ConnectionOpened(info.ConnID)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, observability.WSEventsRoutingKey,
		observability.NewWSEnvelope("ws_connect", info.ConnID, info.ConnectedAt, "", info.identity()), info.headers())
	logging.Ctx(ctx).Info().Str("conn_id", info.ConnID).Int("user_id", info.UserID).Msg("websocket connected")

	// The request context is cancelled once this handler returns.
	connCtx := logging.ContextWithRequestID(context.WithoutCancel(ctx), info.RequestID)
	go client.writePump()
	go h.readLoop(connCtx, client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	info := client.info
	var closeReason string
	defer func() {
		h.service.ConnectionClosed(info.ConnID)
		h.hub.remove(info.ConnID)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(ctx, observability.WSEventsRoutingKey,
			observability.NewWSEnvelope("ws_disconnect", info.ConnID, info.ConnectedAt, closeReason, info.identity()), info.headers())
		logging.Ctx(ctx).Info().Str("conn_id", info.ConnID).Str("reason", closeReason).Msg("websocket disconnected")
	}()

	if err := client.prepareRead(); err != nil {
		closeReason = err.Error()
		return
	}

	log := logging.With("ws").With().Str("conn_id", info.ConnID).Int("user_id", info.UserID).Logger()
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.hub.publishWSError(info, err)
			}
			return
		}
		var frame models.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			observability.IncSocketFrame("", "invalid")
			log.Debug().Err(err).Msg("malformed socket frame")
			continue
		}

		if !client.allow() {
			observability.IncSocketFrame(frame.Event, "limited")
			log.Warn().Str("event", frame.Event).Msg("socket event rate limited")
			continue
		}

		if err := h.service.HandleFrame(ctx, info.ConnID, info.UserID, frame); err != nil {
			event := log.Warn()
			if errors.Is(err, chat.ErrValidation) || errors.Is(err, chat.ErrInvalidTransition) || errors.Is(err, chat.ErrNotFound) {
				event = log.Debug()
			}
			event.Err(err).Str("event", frame.Event).Msg("socket event dropped")
		}
	}
}
