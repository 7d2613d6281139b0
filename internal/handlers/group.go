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

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	groupRepo repositories.GroupRepository
	audit     *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		groupRepo: groupRepo,
		audit:     audit,
	}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := middleware.UserID(c)

	var req struct {
		Title       string           `json:"title" binding:"required,max=120"`
		Description string           `json:"description" binding:"max=1000"`
		GroupType   models.GroupType `json:"group_type" binding:"omitempty,oneof=private public"`
		Members     []int            `json:"members" binding:"required,min=1,dive,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), models.GroupDraft{
		Title:       req.Title,
		Description: req.Description,
		GroupType:   req.GroupType,
		Members:     req.Members,
		CreatedBy:   userID,
	})
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	emitAuditAction(c, h.audit, "Group created", "group.create", groupTarget(group.ID))
	c.JSON(http.StatusCreated, group)
}

// ListGroups handles GET /groups. Platform admins see every group.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	var q struct {
		IncludePublic bool   `form:"include_public"`
		Search        string `form:"search"`
		Page          int    `form:"page" binding:"omitempty,min=1"`
		Limit         int    `form:"limit" binding:"omitempty,min=1,max=200"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groups, err := h.groupRepo.ListGroups(c.Request.Context(), models.GroupFilter{
		UserID:        middleware.UserID(c),
		IncludePublic: q.IncludePublic,
		All:           middleware.IsAdmin(c),
		Search:        q.Search,
		Page:          q.Page,
		Limit:         q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup handles GET /groups/:group_id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id", "group")
	if !ok {
		return
	}

	group, ok := h.loadGroup(c, groupID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup handles PUT /groups/:group_id.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id", "group")
	if !ok {
		return
	}

	var req struct {
		Title       *string           `json:"title" binding:"omitempty,min=1,max=120"`
		Description *string           `json:"description" binding:"omitempty,max=1000"`
		GroupType   *models.GroupType `json:"group_type" binding:"omitempty,oneof=private public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, ok := h.loadGroup(c, groupID)
	if !ok {
		return
	}
	if !h.canManage(c, group) {
		emitAudit(c, h.audit, "ERROR", "not allowed to update group")
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	updated, err := h.groupRepo.UpdateGroup(c.Request.Context(), groupID, models.GroupPatch{
		Title:       req.Title,
		Description: req.Description,
		GroupType:   req.GroupType,
		UpdatedBy:   middleware.UserID(c),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not update group"})
		return
	}

	emitAuditAction(c, h.audit, "Group updated", "group.update", groupTarget(groupID))
	c.JSON(http.StatusOK, updated)
}

// LeaveGroup handles DELETE /groups/:group_id/members/me.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id", "group")
	if !ok {
		return
	}

	removed, err := h.groupRepo.RemoveMember(c.Request.Context(), groupID, middleware.UserID(c))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave group"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a group member"})
		return
	}

	emitAuditAction(c, h.audit, "Group left", "group.leave", groupTarget(groupID))
	c.Status(http.StatusNoContent)
}

// DeleteGroup handles DELETE /groups/:group_id. The group's message
// notifications are removed with it.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id", "group")
	if !ok {
		return
	}

	group, ok := h.loadGroup(c, groupID)
	if !ok {
		return
	}
	if !h.canManage(c, group) {
		emitAudit(c, h.audit, "ERROR", "not allowed to delete group")
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	if _, err := h.groupRepo.DeleteGroup(c.Request.Context(), groupID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete group"})
		return
	}

	emitAuditAction(c, h.audit, "Group deleted", "group.delete", groupTarget(groupID))
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) loadGroup(c *gin.Context, groupID int) (models.ChatGroup, bool) {
	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "group not found"})
		return models.ChatGroup{}, false
	}
	return group, true
}

// canManage allows group admins and platform admins.
func (h *GroupHandler) canManage(c *gin.Context, group models.ChatGroup) bool {
	return group.HasAdmin(middleware.UserID(c)) || middleware.IsAdmin(c)
}

func groupTarget(groupID int) string {
	return "group:" + strconv.Itoa(groupID)
}
