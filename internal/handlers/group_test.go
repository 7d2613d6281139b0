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

func setupGroupRouter(handler *GroupHandler, userID int, role string) *gin.Engine {
	r := newTestRouter(userID, role)
	r.POST("/groups", handler.CreateGroup)
	r.GET("/groups", handler.ListGroups)
	r.GET("/groups/:group_id", handler.GetGroup)
	r.PUT("/groups/:group_id", handler.UpdateGroup)
	r.DELETE("/groups/:group_id/members/me", handler.LeaveGroup)
	r.DELETE("/groups/:group_id", handler.DeleteGroup)
	return r
}

func TestCreateGroupSuccess(t *testing.T) {
	audit, publisher := expectAudit()
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, audit), 1, middleware.RoleSubAdmin)

	groupRepo.On("CreateGroup", mock.Anything, models.GroupDraft{
		Title:     "team",
		GroupType: models.GroupPublic,
		Members:   []int{1, 2, 3},
		CreatedBy: 1,
	}).Return(models.ChatGroup{ID: 5, Title: "team", Admins: []int{1}, Members: []int{2, 3}}, nil).Once()

	rec := perform(router, http.MethodPost, "/groups", `{"title":"team","group_type":"public","members":[1,2,3]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var group models.ChatGroup
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&group))
	assert.Equal(t, 5, group.ID)
	assert.Equal(t, []int{1}, group.Admins)
	groupRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCreateGroupInvalidBody(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 1, middleware.RoleAdmin)

	for _, body := range []string{
		`{"title":5}`,
		`{"title":"team"}`,
		`{"title":"team","members":[]}`,
		`{"title":"team","members":[2],"group_type":"secret"}`,
	} {
		rec := perform(router, http.MethodPost, "/groups", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	groupRepo.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything)
}

func TestCreateGroupRepoError(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 1, middleware.RoleAdmin)

	groupRepo.On("CreateGroup", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	rec := perform(router, http.MethodPost, "/groups", `{"title":"team","members":[2]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListGroups(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		query  string
		filter models.GroupFilter
	}{
		{"own groups", middleware.RoleUser, "", models.GroupFilter{UserID: 1}},
		{"with public", middleware.RoleUser, "?include_public=true&search=go&page=2&limit=5",
			models.GroupFilter{UserID: 1, IncludePublic: true, Search: "go", Page: 2, Limit: 5}},
		{"admin sees all", middleware.RoleAdmin, "", models.GroupFilter{UserID: 1, All: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groupRepo := new(mocks.GroupRepositoryMock)
			router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 1, tt.role)
			groupRepo.On("ListGroups", mock.Anything, tt.filter).Return([]models.ChatGroup{{ID: 5}}, nil).Once()

			rec := perform(router, http.MethodGet, "/groups"+tt.query, "")

			require.Equal(t, http.StatusOK, rec.Code)
			groupRepo.AssertExpectations(t)
		})
	}
}

func TestGetGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 1, middleware.RoleUser)

	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5, Title: "team"}, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 6).Return(nil, repositories.ErrGroupNotFound).Once()

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/groups/5", "").Code)
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodGet, "/groups/6", "").Code)
	assert.Equal(t, http.StatusBadRequest, perform(router, http.MethodGet, "/groups/x", "").Code)
	groupRepo.AssertExpectations(t)
}

func TestUpdateGroupByGroupAdmin(t *testing.T) {
	audit, publisher := expectAudit()
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, audit), 1, middleware.RoleUser)

	title := "renamed"
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5, Admins: []int{1}}, nil).Once()
	groupRepo.On("UpdateGroup", mock.Anything, 5, models.GroupPatch{Title: &title, UpdatedBy: 1}).
		Return(models.ChatGroup{ID: 5, Title: title}, nil).Once()

	rec := perform(router, http.MethodPut, "/groups/5", `{"title":"renamed"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestUpdateGroupPermissions(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		status int
	}{
		{"plain member", middleware.RoleUser, http.StatusForbidden},
		{"sub admin", middleware.RoleSubAdmin, http.StatusForbidden},
		{"platform admin", middleware.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groupRepo := new(mocks.GroupRepositoryMock)
			router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 2, tt.role)
			groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5, Admins: []int{1}, Members: []int{2}}, nil).Once()
			groupRepo.On("UpdateGroup", mock.Anything, 5, mock.Anything).Return(models.ChatGroup{ID: 5}, nil).Maybe()

			rec := perform(router, http.MethodPut, "/groups/5", `{"group_type":"public"}`)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestLeaveGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 2, middleware.RoleUser)

	groupRepo.On("RemoveMember", mock.Anything, 5, 2).Return(true, nil).Once()
	groupRepo.On("RemoveMember", mock.Anything, 6, 2).Return(false, nil).Once()

	assert.Equal(t, http.StatusNoContent, perform(router, http.MethodDelete, "/groups/5/members/me", "").Code)
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodDelete, "/groups/6/members/me", "").Code)
	groupRepo.AssertExpectations(t)
}

func TestDeleteGroup(t *testing.T) {
	audit, publisher := expectAudit()
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, audit), 1, middleware.RoleUser)

	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5, Admins: []int{1}}, nil).Once()
	groupRepo.On("DeleteGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5}, nil).Once()

	rec := perform(router, http.MethodDelete, "/groups/5", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestDeleteGroupForbiddenForMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	router := setupGroupRouter(NewGroupHandler(groupRepo, nil), 2, middleware.RoleUser)

	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.ChatGroup{ID: 5, Admins: []int{1}, Members: []int{2}}, nil).Once()

	rec := perform(router, http.MethodDelete, "/groups/5", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertNotCalled(t, "DeleteGroup", mock.Anything, mock.Anything)
}
