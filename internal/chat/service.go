package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"community-chat/internal/logging"
	"community-chat/internal/models"
	"community-chat/internal/observability"
	"community-chat/internal/presence"
	"community-chat/internal/repositories"
)

// Broadcaster forwards stored messages to peer instances so their local
// connections can be reached.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg models.ChatMessage) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(context.Context, models.ChatMessage) error { return nil }

// Service handles inbound socket events. Events from one connection are
// processed in arrival order by that connection's read loop, so a sender's
// messages are stored and broadcast in order.
type Service struct {
	directory  presence.Directory
	pusher     Pusher
	messages   repositories.MessageRepository
	router     *Router
	dispatcher *Dispatcher
	joins      *JoinWorkflow
	relay      Broadcaster
	tracer     trace.Tracer
	log        zerolog.Logger
}

func NewService(
	directory presence.Directory,
	pusher Pusher,
	messages repositories.MessageRepository,
	groups repositories.GroupRepository,
	notifications repositories.NotificationRepository,
) *Service {
	dispatcher := NewDispatcher(directory, pusher, groups, notifications)
	return &Service{
		directory:  directory,
		pusher:     pusher,
		messages:   messages,
		router:     NewRouter(directory, pusher),
		dispatcher: dispatcher,
		joins:      NewJoinWorkflow(groups, notifications, dispatcher),
		relay:      noopBroadcaster{},
		tracer:     otel.Tracer("community-chat/chat"),
		log:        logging.With("chat"),
	}
}

// SetRelay installs the cross-instance broadcaster. Nil restores the noop.
func (s *Service) SetRelay(relay Broadcaster) {
	if relay == nil {
		relay = noopBroadcaster{}
	}
	s.relay = relay
}

func (s *Service) ConnectionOpened(connID string) {
	s.directory.Register(connID)
}

func (s *Service) ConnectionClosed(connID string) {
	s.directory.Unregister(connID)
}

// HandleFrame routes one inbound frame from connID, sent by the
// authenticated user principal, to its handler.
func (s *Service) HandleFrame(ctx context.Context, connID string, principal int, frame models.InboundFrame) error {
	ctx, span := s.tracer.Start(ctx, "chat.event",
		trace.WithAttributes(
			attribute.String("chat.event", frame.Event),
			attribute.String("chat.conn_id", connID),
			attribute.Int("chat.user_id", principal),
		))
	defer span.End()

	var err error
	switch frame.Event {
	case models.EventUserConnected:
		err = s.Identify(connID, principal, frame.Data)
	case models.EventJoinRoom:
		err = s.JoinRoom(connID, frame.Data)
	case models.EventLeaveRoom:
		s.LeaveRoom(connID)
	case models.EventSendMessage:
		_, err = s.SendMessage(ctx, connID, principal, frame.Data)
	case models.EventEditMessage:
		_, err = s.EditMessage(ctx, connID, principal, frame.Data)
	case models.EventSendRequest:
		err = s.SendJoinRequest(ctx, principal, frame.Data)
	case models.EventUpdateRequest:
		_, err = s.ResolveJoinRequest(ctx, principal, frame.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrValidation, frame.Event)
	}

	result := resultLabel(err)
	observability.IncSocketFrame(frame.Event, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	return err
}

// Identify binds the connection to its user. Clients may only claim the
// identity they authenticated with.
func (s *Service) Identify(connID string, principal int, raw []byte) error {
	var p IdentifyPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.UserID != principal {
		return fmt.Errorf("%w: connection authenticated as %d cannot identify as %d", ErrForbidden, principal, p.UserID)
	}
	s.directory.SetUser(connID, p.UserID)
	return nil
}

func (s *Service) JoinRoom(connID string, raw []byte) error {
	var p JoinRoomPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	s.directory.SetRoom(connID, &p.RoomID)
	return nil
}

func (s *Service) LeaveRoom(connID string) {
	s.directory.SetRoom(connID, nil)
}

// SendMessage stores the message, fans it out to local connections and peer
// instances, then notifies recipients that missed it. Nothing is pushed when
// the write fails.
func (s *Service) SendMessage(ctx context.Context, connID string, principal int, raw []byte) (models.ChatMessage, error) {
	var p SendMessagePayload
	if err := decode(raw, &p); err != nil {
		return models.ChatMessage{}, err
	}
	if p.SenderID != 0 && p.SenderID != principal {
		return models.ChatMessage{}, fmt.Errorf("%w: cannot send as user %d", ErrForbidden, p.SenderID)
	}
	draft, err := p.draft(principal)
	if err != nil {
		return models.ChatMessage{}, err
	}

	stored, err := s.messages.CreateMessage(ctx, draft)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("%w: store message: %v", ErrPersistence, err)
	}
	observability.IncMessagePersisted(scopeOf(stored), "create")

	delivered := s.router.Deliver(ctx, stored)
	if err := s.relay.Broadcast(ctx, stored); err != nil {
		s.log.Warn().Err(err).Int("message_id", stored.ID).Msg("relay broadcast failed")
	}

	if stored.IsGroup() {
		if _, err := s.dispatcher.NotifyGroup(ctx, stored, delivered); err != nil {
			s.log.Error().Err(err).Int("message_id", stored.ID).Msg("notify group")
		}
	} else {
		s.dispatcher.NotifyDirect(ctx, stored, delivered)
	}

	logging.Ctx(ctx).Debug().
		Str("conn_id", connID).
		Int("message_id", stored.ID).
		Int("delivered", len(delivered)).
		Msg("message sent")
	return stored, nil
}

// EditMessage replaces the content of the sender's own message and echoes
// the stored record to the editing connection only.
func (s *Service) EditMessage(ctx context.Context, connID string, principal int, raw []byte) (models.ChatMessage, error) {
	var p EditMessagePayload
	if err := decode(raw, &p); err != nil {
		return models.ChatMessage{}, err
	}

	existing, err := s.messages.GetMessage(ctx, p.MessageID)
	if err != nil {
		return models.ChatMessage{}, messageError(p.MessageID, err)
	}
	if existing.SenderID != principal {
		return models.ChatMessage{}, fmt.Errorf("%w: message %d belongs to another user", ErrForbidden, p.MessageID)
	}
	if existing.Type != models.MessageTypeText {
		return models.ChatMessage{}, fmt.Errorf("%w: only text messages can be edited", ErrValidation)
	}

	updated, err := s.messages.UpdateMessageContent(ctx, p.MessageID, p.Message)
	if err != nil {
		return models.ChatMessage{}, messageError(p.MessageID, err)
	}
	observability.IncMessagePersisted(scopeOf(updated), "edit")

	if err := s.pusher.Push(connID, models.EventReceiveUpdated, updated); err != nil {
		s.log.Debug().Err(err).Str("conn_id", connID).Msg("edit echo skipped")
	}
	return updated, nil
}

// SendJoinRequest starts the join workflow for the authenticated user.
func (s *Service) SendJoinRequest(ctx context.Context, principal int, raw []byte) error {
	var p JoinRequestPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if p.UserID != 0 && p.UserID != principal {
		return fmt.Errorf("%w: cannot request on behalf of user %d", ErrForbidden, p.UserID)
	}
	return s.joins.Request(ctx, principal, p.GroupID)
}

// ResolveJoinRequest approves or rejects a pending request as principal.
func (s *Service) ResolveJoinRequest(ctx context.Context, principal int, raw []byte) (bool, error) {
	var p ResolveRequestPayload
	if err := decode(raw, &p); err != nil {
		return false, err
	}
	return s.joins.Resolve(ctx, principal, p.NotificationID, p.Status)
}

// DeliverRemote fans out a message stored by a peer instance. Notifications
// were already handled by the origin.
func (s *Service) DeliverRemote(ctx context.Context, msg models.ChatMessage) int {
	return len(s.router.Deliver(ctx, msg))
}

func messageError(messageID int, err error) error {
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}
	return fmt.Errorf("%w: message %d: %v", ErrPersistence, messageID, err)
}

func scopeOf(msg models.ChatMessage) string {
	if msg.IsGroup() {
		return string(models.ScopeGroup)
	}
	return string(models.ScopePrivate)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "noop"
	default:
		return "error"
	}
}
