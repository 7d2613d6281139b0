package chat

import (
	"context"

	"github.com/rs/zerolog"

	"community-chat/internal/logging"
	"community-chat/internal/models"
	"community-chat/internal/observability"
	"community-chat/internal/presence"
)

// Pusher writes one outbound event to a live connection.
type Pusher interface {
	Push(connID string, event string, payload any) error
}

// Router delivers stored messages to the live connections that should see them.
type Router struct {
	directory presence.Directory
	pusher    Pusher
	log       zerolog.Logger
}

func NewRouter(directory presence.Directory, pusher Pusher) *Router {
	return &Router{directory: directory, pusher: pusher, log: logging.With("fanout")}
}

// Qualifies reports whether a connection receives msg: it has the message's
// group open, or it belongs to the sender, or (direct messages) to the receiver.
func Qualifies(entry presence.Entry, msg models.ChatMessage) bool {
	if entry.RoomID != nil && msg.GroupID != nil && *entry.RoomID == *msg.GroupID {
		return true
	}
	if entry.UserID == nil {
		return false
	}
	if *entry.UserID == msg.SenderID {
		return true
	}
	return msg.ReceiverID != nil && *entry.UserID == *msg.ReceiverID
}

// Deliver pushes receive-message once to every qualifying connection and
// returns the entries that were written successfully. Push failures are
// logged and skipped.
func (r *Router) Deliver(ctx context.Context, msg models.ChatMessage) []presence.Entry {
	targets := r.directory.Select(func(e presence.Entry) bool { return Qualifies(e, msg) })

	delivered := make([]presence.Entry, 0, len(targets))
	for _, entry := range targets {
		if err := r.pusher.Push(entry.ConnID, models.EventReceiveMessage, msg); err != nil {
			observability.IncFanoutDelivery("failed")
			r.log.Debug().Err(err).Str("conn_id", entry.ConnID).Int("message_id", msg.ID).Msg("push skipped")
			continue
		}
		observability.IncFanoutDelivery("delivered")
		delivered = append(delivered, entry)
	}

	r.log.Debug().
		Int("message_id", msg.ID).
		Int("targets", len(targets)).
		Int("delivered", len(delivered)).
		Msg("message fanned out")
	return delivered
}

// deliveredUsers collects the user ids bound to the given entries.
func deliveredUsers(entries []presence.Entry) map[int]struct{} {
	users := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.UserID != nil {
			users[*e.UserID] = struct{}{}
		}
	}
	return users
}
