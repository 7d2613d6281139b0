package repositories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-chat/internal/models"
)

func TestNotificationRowToModel(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		row := notificationRow{
			ID:       1,
			UserID:   2,
			Type:     string(models.NotificationMessage),
			Scope:    string(models.ScopeGroup),
			Body:     "You have a new message",
			SenderID: 3,
			GroupID:  sql.NullInt64{Int64: 10, Valid: true},
		}

		n := row.toModel()

		require.NotNil(t, n.Message)
		assert.Nil(t, n.Request)
		assert.Equal(t, models.MessageDetail{
			Type:     models.ScopeGroup,
			Message:  "You have a new message",
			SenderID: 3,
			GroupID:  func() *int { v := 10; return &v }(),
		}, *n.Message)
	})

	t.Run("request", func(t *testing.T) {
		row := notificationRow{
			ID:            4,
			UserID:        1,
			Type:          string(models.NotificationRequest),
			Scope:         string(models.ScopeGroup),
			SenderID:      7,
			GroupID:       sql.NullInt64{Int64: 10, Valid: true},
			RequestStatus: sql.NullString{String: string(models.RequestPending), Valid: true},
		}

		n := row.toModel()

		require.NotNil(t, n.Request)
		assert.Nil(t, n.Message)
		assert.Equal(t, models.RequestDetail{
			Type:     models.ScopeGroup,
			SenderID: 7,
			GroupID:  10,
			Status:   models.RequestPending,
		}, *n.Request)
	})
}

func TestCreateNotificationRejectsMismatchedDetail(t *testing.T) {
	repo := &NotificationRepo{}

	_, err := repo.CreateNotification(context.Background(), models.UserNotification{
		UserID:  2,
		Type:    models.NotificationMessage,
		Request: &models.RequestDetail{SenderID: 3, GroupID: 10},
	})

	require.Error(t, err)
}
