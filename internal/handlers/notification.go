package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"community-chat/internal/middleware"
	"community-chat/internal/models"
	"community-chat/internal/repositories"
	"community-chat/internal/telemetry"
)

// NotificationHandler serves the durable notification inbox.
type NotificationHandler struct {
	notificationRepo repositories.NotificationRepository
	audit            *telemetry.AuditEmitter
}

func NewNotificationHandler(notificationRepo repositories.NotificationRepository, audit *telemetry.AuditEmitter) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo, audit: audit}
}

// ListNotifications handles GET /notifications. Platform admins may read
// another user's inbox with user_id.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var q struct {
		UserID *int                    `form:"user_id" binding:"omitempty,min=1"`
		IsRead *bool                   `form:"is_read"`
		Type   models.NotificationType `form:"type" binding:"omitempty,oneof=message request"`
		Page   int                     `form:"page" binding:"omitempty,min=1"`
		Limit  int                     `form:"limit" binding:"omitempty,min=1,max=200"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	if q.UserID != nil && *q.UserID != userID {
		if !middleware.IsAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		userID = *q.UserID
	}

	list, err := h.notificationRepo.ListNotifications(c.Request.Context(), models.NotificationFilter{
		UserID: userID,
		IsRead: q.IsRead,
		Type:   q.Type,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead handles PUT /notifications/read for the caller's own notifications.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		IDs []int `json:"ids" binding:"required,min=1,max=500,dive,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.notificationRepo.MarkRead(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// UpdateNotification handles PUT /notifications/:notification_id.
func (h *NotificationHandler) UpdateNotification(c *gin.Context) {
	notificationID, ok := pathID(c, "notification_id", "notification")
	if !ok {
		return
	}

	var req struct {
		IsRead *bool `json:"is_read" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.UserID(c)
	n, err := h.notificationRepo.UpdateNotification(c.Request.Context(), notificationID, repositories.NotificationPatch{
		IsRead:    req.IsRead,
		UpdatedBy: &actorID,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notification"})
		return
	}

	emitAuditAction(c, h.audit, "Notification updated", "notification.update", "notification:"+strconv.Itoa(notificationID))
	c.JSON(http.StatusOK, n)
}

// DeleteNotification handles DELETE /notifications/:notification_id.
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	notificationID, ok := pathID(c, "notification_id", "notification")
	if !ok {
		return
	}

	if _, err := h.notificationRepo.DeleteNotification(c.Request.Context(), notificationID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete notification"})
		return
	}

	emitAuditAction(c, h.audit, "Notification deleted", "notification.delete", "notification:"+strconv.Itoa(notificationID))
	c.Status(http.StatusNoContent)
}
