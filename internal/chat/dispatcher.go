package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"community-chat/internal/logging"
	"community-chat/internal/models"
	"community-chat/internal/observability"
	"community-chat/internal/presence"
	"community-chat/internal/repositories"
)

const (
	alertNewMessage = "New message received."
	alertNewRequest = "New Group Join Request"

	messageNotificationBody = "Message"
)

// Dispatcher records notifications for recipients the fan-out missed and
// alerts the ones that are online.
type Dispatcher struct {
	directory     presence.Directory
	pusher        Pusher
	groups        repositories.GroupRepository
	notifications repositories.NotificationRepository
	log           zerolog.Logger
}

func NewDispatcher(directory presence.Directory, pusher Pusher, groups repositories.GroupRepository, notifications repositories.NotificationRepository) *Dispatcher {
	return &Dispatcher{
		directory:     directory,
		pusher:        pusher,
		groups:        groups,
		notifications: notifications,
		log:           logging.With("dispatcher"),
	}
}

// NotifyGroup creates a message notification for every member or admin of
// the message's group that has no connection in delivered, and returns the
// notified user ids. A member who sent the message is treated like any other
// candidate, so one whose own push failed still gets a notification. A
// failure for one candidate does not stop the others.
func (d *Dispatcher) NotifyGroup(ctx context.Context, msg models.ChatMessage, delivered []presence.Entry) ([]int, error) {
	if msg.GroupID == nil {
		return nil, fmt.Errorf("%w: message %d has no group", ErrValidation, msg.ID)
	}
	group, err := d.groups.GetGroup(ctx, *msg.GroupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		return nil, fmt.Errorf("%w: group %d", ErrNotFound, *msg.GroupID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load group %d: %v", ErrPersistence, *msg.GroupID, err)
	}

	skip := deliveredUsers(delivered)

	notified := make([]int, 0)
	for _, userID := range candidates(group) {
		if _, ok := skip[userID]; ok {
			continue
		}
		if d.notifyMessage(ctx, userID, models.ScopeGroup, msg) {
			notified = append(notified, userID)
		}
	}
	return notified, nil
}

// NotifyDirect covers a direct message whose receiver saw no live copy. It
// reports whether a notification was created.
func (d *Dispatcher) NotifyDirect(ctx context.Context, msg models.ChatMessage, delivered []presence.Entry) bool {
	if msg.ReceiverID == nil || *msg.ReceiverID == msg.SenderID {
		return false
	}
	if _, ok := deliveredUsers(delivered)[*msg.ReceiverID]; ok {
		return false
	}
	return d.notifyMessage(ctx, *msg.ReceiverID, models.ScopePrivate, msg)
}

func (d *Dispatcher) notifyMessage(ctx context.Context, userID int, scope models.NotificationScope, msg models.ChatMessage) bool {
	sender := msg.SenderID
	_, err := d.notifications.CreateNotification(ctx, models.UserNotification{
		UserID: userID,
		Type:   models.NotificationMessage,
		Message: &models.MessageDetail{
			Type:     scope,
			Message:  messageNotificationBody,
			SenderID: msg.SenderID,
			GroupID:  msg.GroupID,
		},
		CreatedBy: &sender,
	})
	if err != nil {
		observability.IncNotification("message", "error")
		d.log.Error().Err(err).Int("user_id", userID).Int("message_id", msg.ID).Msg("create message notification")
		return false
	}
	observability.IncNotification("message", "ok")
	d.Alert(userID, alertNewMessage)
	return true
}

// Alert pushes a receive-notification to every live connection of userID and
// returns how many were reached.
func (d *Dispatcher) Alert(userID int, text string) int {
	reached := 0
	for _, entry := range d.directory.ConnectionsForUser(userID) {
		err := d.pusher.Push(entry.ConnID, models.EventReceiveNotified, models.Alert{Type: "info", Message: text})
		if err != nil {
			observability.IncNotification("alert", "error")
			d.log.Debug().Err(err).Str("conn_id", entry.ConnID).Msg("alert skipped")
			continue
		}
		observability.IncNotification("alert", "ok")
		reached++
	}
	return reached
}

// candidates is the sorted union of members and admins.
func candidates(group models.ChatGroup) []int {
	seen := make(map[int]struct{}, len(group.Members)+len(group.Admins))
	out := make([]int, 0, len(group.Members)+len(group.Admins))
	for _, list := range [][]int{group.Members, group.Admins} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
