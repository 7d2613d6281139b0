package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"community-chat/internal/middleware"
	"community-chat/internal/models"
	"community-chat/internal/repositories"
	"community-chat/internal/telemetry"
)

// ChatHandler manages message history and moderation endpoints.
type ChatHandler struct {
	messageRepo repositories.MessageRepository
	groupRepo   repositories.GroupRepository
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(messageRepo repositories.MessageRepository, groupRepo repositories.GroupRepository, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		audit:       audit,
	}
}

type listMessagesQuery struct {
	SenderID   *int   `form:"sender" binding:"omitempty,min=1"`
	ReceiverID *int   `form:"receiver" binding:"omitempty,min=1"`
	GroupID    *int   `form:"group" binding:"omitempty,min=1"`
	PeerID     *int   `form:"peer" binding:"omitempty,min=1"`
	Search     string `form:"search"`
	Reported   bool   `form:"reported"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListMessages handles GET /chats/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	var q listMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	filter := models.MessageFilter{
		SenderID:   q.SenderID,
		ReceiverID: q.ReceiverID,
		GroupID:    q.GroupID,
		Search:     q.Search,
		Reported:   q.Reported,
		Page:       q.Page,
		Limit:      q.Limit,
	}
	if q.PeerID != nil {
		filter.Between = &[2]int{userID, *q.PeerID}
	}

	if !middleware.IsAdmin(c) {
		switch {
		case q.GroupID != nil:
			member, err := h.groupRepo.IsParticipant(c.Request.Context(), *q.GroupID, userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
				return
			}
			if !member {
				c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
				return
			}
		case q.PeerID != nil:
		case isSelf(q.SenderID, userID) || isSelf(q.ReceiverID, userID):
		default:
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
			return
		}
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// DeleteMessage handles DELETE /chats/messages/:message_id. Only the sender or
// a platform admin may delete.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id", "message")
	if !ok {
		return
	}

	msg, ok := h.loadMessage(c, messageID)
	if !ok {
		return
	}
	if msg.SenderID != middleware.UserID(c) && !middleware.IsAdmin(c) {
		emitAudit(c, h.audit, "ERROR", "not allowed to delete message")
		c.JSON(http.StatusForbidden, gin.H{"error": "only sender can delete"})
		return
	}

	if _, err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	emitAuditAction(c, h.audit, "Message deleted", "message.delete", "message:"+strconv.Itoa(messageID))
	c.Status(http.StatusNoContent)
}

// ReportMessage handles POST /chats/messages/:message_id/report.
func (h *ChatHandler) ReportMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id", "message")
	if !ok {
		return
	}

	var req struct {
		Note string `json:"note" binding:"max=1000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, ok := h.loadMessage(c, messageID)
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	visible, err := h.canView(c.Request.Context(), msg, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !visible && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return
	}

	reported, err := h.messageRepo.ReportMessage(c.Request.Context(), messageID, userID, req.Note)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not report message"})
		return
	}

	emitAuditAction(c, h.audit, "Message reported", "message.report", "message:"+strconv.Itoa(messageID))
	c.JSON(http.StatusOK, reported)
}

// ListReports handles GET /chats/reports.
func (h *ChatHandler) ListReports(c *gin.Context) {
	var q struct {
		Page  int `form:"page" binding:"omitempty,min=1"`
		Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), models.MessageFilter{
		Reported: true,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// UpdateReportStatus handles PUT /chats/messages/:message_id/report.
func (h *ChatHandler) UpdateReportStatus(c *gin.Context) {
	messageID, ok := pathID(c, "message_id", "message")
	if !ok {
		return
	}

	var req struct {
		Status models.ReportStatus `json:"status" binding:"required,oneof=pending resolved rejected"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.UpdateReportStatus(c.Request.Context(), messageID, req.Status, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reported message not found"})
			return
		}
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update report"})
		return
	}

	emitAuditAction(c, h.audit, "Report "+string(req.Status), "message.report_status", "message:"+strconv.Itoa(messageID))
	c.JSON(http.StatusOK, msg)
}

func (h *ChatHandler) loadMessage(c *gin.Context, messageID int) (models.ChatMessage, bool) {
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return models.ChatMessage{}, false
	}
	return msg, true
}

// canView reports whether userID took part in the message's conversation.
func (h *ChatHandler) canView(ctx context.Context, msg models.ChatMessage, userID int) (bool, error) {
	if msg.GroupID != nil {
		return h.groupRepo.IsParticipant(ctx, *msg.GroupID, userID)
	}
	return msg.SenderID == userID || isSelf(msg.ReceiverID, userID), nil
}

func isSelf(id *int, userID int) bool {
	return id != nil && *id == userID
}
