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
	"community-chat/internal/repositories"
)

// JoinWorkflow moves users through NoRelation -> Pending -> Member (or back
// to NoRelation on rejection). Group membership in storage is the source of
// truth; every state change is a single guarded statement or transaction.
type JoinWorkflow struct {
	groups        repositories.GroupRepository
	notifications repositories.NotificationRepository
	dispatcher    *Dispatcher
	log           zerolog.Logger
}

func NewJoinWorkflow(groups repositories.GroupRepository, notifications repositories.NotificationRepository, dispatcher *Dispatcher) *JoinWorkflow {
	return &JoinWorkflow{
		groups:        groups,
		notifications: notifications,
		dispatcher:    dispatcher,
		log:           logging.With("join_workflow"),
	}
}

// Request records a pending join request and notifies every admin. A user who
// already has any relation to the group gets ErrInvalidTransition and nothing
// is written.
func (w *JoinWorkflow) Request(ctx context.Context, requesterID, groupID int) error {
	group, err := w.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if _, err := Transition(RelationOf(group, requesterID), ActionRequest); err != nil {
		observability.IncJoinTransition(string(ActionRequest), "rejected")
		return err
	}

	inserted, err := w.groups.AddJoinRequest(ctx, groupID, requesterID)
	if err != nil {
		observability.IncJoinTransition(string(ActionRequest), "error")
		return fmt.Errorf("%w: add join request: %v", ErrPersistence, err)
	}
	if !inserted {
		// Lost a race with a concurrent request or approval.
		observability.IncJoinTransition(string(ActionRequest), "rejected")
		return fmt.Errorf("%w: user %d already related to group %d", ErrInvalidTransition, requesterID, groupID)
	}
	observability.IncJoinTransition(string(ActionRequest), "ok")

	admins := append([]int(nil), group.Admins...)
	sort.Ints(admins)
	for _, adminID := range admins {
		_, err := w.notifications.CreateNotification(ctx, models.UserNotification{
			UserID: adminID,
			Type:   models.NotificationRequest,
			Request: &models.RequestDetail{
				Type:     models.ScopeGroup,
				SenderID: requesterID,
				GroupID:  groupID,
				Status:   models.RequestPending,
			},
			CreatedBy: &requesterID,
		})
		if err != nil {
			observability.IncNotification("request", "error")
			w.log.Error().Err(err).Int("admin_id", adminID).Int("group_id", groupID).Msg("create request notification")
			continue
		}
		observability.IncNotification("request", "ok")
		w.dispatcher.Alert(adminID, alertNewRequest)
	}
	return nil
}

// Resolve approves or rejects the request behind notificationID. The relation
// change and the request notifications commit together, so a failure leaves
// the request pending and the decision can be retried. It reports false
// without error when the notification is no longer pending. Only admins of
// the group may resolve.
func (w *JoinWorkflow) Resolve(ctx context.Context, actorID, notificationID int, status models.RequestStatus) (bool, error) {
	action, ok := actionFor(status)
	if !ok {
		return false, fmt.Errorf("%w: status %q", ErrValidation, status)
	}

	n, err := w.notifications.GetNotification(ctx, notificationID)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return false, fmt.Errorf("%w: notification %d", ErrNotFound, notificationID)
	}
	if err != nil {
		return false, fmt.Errorf("%w: load notification: %v", ErrPersistence, err)
	}
	if n.Type != models.NotificationRequest || n.Request == nil || n.Request.Status != models.RequestPending {
		w.log.Debug().Int("notification_id", notificationID).Msg("request already resolved")
		return false, nil
	}

	req := *n.Request
	group, err := w.loadGroup(ctx, req.GroupID)
	if err != nil {
		return false, err
	}
	if !group.HasAdmin(actorID) {
		return false, fmt.Errorf("%w: user %d is not an admin of group %d", ErrForbidden, actorID, group.ID)
	}
	if _, err := Transition(RelationOf(group, req.SenderID), action); err != nil {
		observability.IncJoinTransition(string(action), "rejected")
		return false, err
	}

	var changed bool
	if action == ActionApprove {
		changed, err = w.groups.ApproveJoinRequest(ctx, group.ID, req.SenderID, actorID)
	} else {
		changed, err = w.groups.RejectJoinRequest(ctx, group.ID, req.SenderID, actorID)
	}
	if err != nil {
		observability.IncJoinTransition(string(action), "error")
		return false, fmt.Errorf("%w: %s join request: %v", ErrPersistence, action, err)
	}
	if !changed {
		observability.IncJoinTransition(string(action), "rejected")
		return false, nil
	}
	observability.IncJoinTransition(string(action), "ok")

	verb := "Accepted"
	if action == ActionReject {
		verb = "Rejected"
	}
	w.dispatcher.Alert(req.SenderID, fmt.Sprintf("Request to %s got %s", group.Title, verb))

	w.log.Info().
		Int("group_id", group.ID).
		Int("requester_id", req.SenderID).
		Int("actor_id", actorID).
		Str("status", string(status)).
		Msg("join request resolved")
	return true, nil
}

func (w *JoinWorkflow) loadGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	group, err := w.groups.GetGroup(ctx, groupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		return models.ChatGroup{}, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
	}
	if err != nil {
		return models.ChatGroup{}, fmt.Errorf("%w: load group %d: %v", ErrPersistence, groupID, err)
	}
	return group, nil
}

func actionFor(status models.RequestStatus) (JoinAction, bool) {
	switch status {
	case models.RequestApproved:
		return ActionApprove, true
	case models.RequestRejected:
		return ActionReject, true
	}
	return "", false
}
