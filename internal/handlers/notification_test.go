package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"community-chat/internal/middleware"
	"community-chat/internal/mocks"
	"community-chat/internal/models"
	"community-chat/internal/repositories"
)

func setupNotificationRouter(handler *NotificationHandler, userID int, role string) *gin.Engine {
	r := newTestRouter(userID, role)
	r.GET("/notifications", handler.ListNotifications)
	r.PUT("/notifications/read", handler.MarkRead)
	r.PUT("/notifications/:notification_id", handler.UpdateNotification)
	r.DELETE("/notifications/:notification_id", handler.DeleteNotification)
	return r
}

func TestListNotificationsOwnInbox(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(NewNotificationHandler(repo, nil), 2, middleware.RoleUser)

	repo.On("ListNotifications", mock.Anything, models.NotificationFilter{UserID: 2, IsRead: boolp(false), Type: models.NotificationRequest}).
		Return([]models.UserNotification{{ID: 7, UserID: 2, Type: models.NotificationRequest}}, nil).Once()

	rec := perform(router, http.MethodGet, "/notifications?is_read=false&type=request", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Notifications []models.UserNotification `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, 7, resp.Notifications[0].ID)
	repo.AssertExpectations(t)
}

func TestListNotificationsOtherUser(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	repo.On("ListNotifications", mock.Anything, models.NotificationFilter{UserID: 9}).
		Return([]models.UserNotification{}, nil).Once()

	admin := setupNotificationRouter(NewNotificationHandler(repo, nil), 1, middleware.RoleAdmin)
	assert.Equal(t, http.StatusOK, perform(admin, http.MethodGet, "/notifications?user_id=9", "").Code)

	user := setupNotificationRouter(NewNotificationHandler(repo, nil), 2, middleware.RoleUser)
	assert.Equal(t, http.StatusForbidden, perform(user, http.MethodGet, "/notifications?user_id=9", "").Code)
	assert.Equal(t, http.StatusBadRequest, perform(user, http.MethodGet, "/notifications?type=other", "").Code)

	repo.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(NewNotificationHandler(repo, nil), 2, middleware.RoleUser)

	repo.On("MarkRead", mock.Anything, 2, []int{3, 4}).Return(1, nil).Once()

	rec := perform(router, http.MethodPut, "/notifications/read", `{"ids":[3,4]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp["updated"])
	repo.AssertExpectations(t)

	assert.Equal(t, http.StatusBadRequest, perform(router, http.MethodPut, "/notifications/read", `{"ids":[]}`).Code)
}

func TestUpdateNotification(t *testing.T) {
	audit, publisher := expectAudit()
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(NewNotificationHandler(repo, audit), 1, middleware.RoleSubAdmin)

	repo.On("UpdateNotification", mock.Anything, 7, repositories.NotificationPatch{IsRead: boolp(true), UpdatedBy: intp(1)}).
		Return(models.UserNotification{ID: 7, IsRead: true}, nil).Once()

	rec := perform(router, http.MethodPut, "/notifications/7", `{"is_read":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestUpdateNotificationErrors(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(NewNotificationHandler(repo, nil), 1, middleware.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, perform(router, http.MethodPut, "/notifications/7", `{}`).Code)

	repo.On("UpdateNotification", mock.Anything, 8, mock.Anything).Return(nil, repositories.ErrNotificationNotFound).Once()
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodPut, "/notifications/8", `{"is_read":false}`).Code)
	repo.AssertExpectations(t)
}

func TestDeleteNotification(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(NewNotificationHandler(repo, nil), 1, middleware.RoleAdmin)

	repo.On("DeleteNotification", mock.Anything, 7).Return(models.UserNotification{ID: 7}, nil).Once()
	repo.On("DeleteNotification", mock.Anything, 8).Return(nil, repositories.ErrNotificationNotFound).Once()

	assert.Equal(t, http.StatusNoContent, perform(router, http.MethodDelete, "/notifications/7", "").Code)
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodDelete, "/notifications/8", "").Code)
	repo.AssertExpectations(t)
}
