package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"community-chat/internal/models"
	"community-chat/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, draft models.MessageDraft) (models.ChatMessage, error) {
	args := m.Called(ctx, draft)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) UpdateMessageContent(ctx context.Context, messageID int, content string) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID, content)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, filter models.MessageFilter) ([]models.ChatMessage, error) {
	args := m.Called(ctx, filter)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) ReportMessage(ctx context.Context, messageID int, reporterID int, note string) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID, reporterID, note)
	return messageArg(args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) UpdateReportStatus(ctx context.Context, messageID int, status models.ReportStatus, actorID int) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID, status, actorID)
	return messageArg(args, 0), args.Error(1)
}

func messageArg(args mock.Arguments, i int) models.ChatMessage {
	var msg models.ChatMessage
	if val := args.Get(i); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, draft models.GroupDraft) (models.ChatGroup, error) {
	args := m.Called(ctx, draft)
	return groupArg(args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	args := m.Called(ctx, groupID)
	return groupArg(args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) ListGroups(ctx context.Context, filter models.GroupFilter) ([]models.ChatGroup, error) {
	args := m.Called(ctx, filter)
	var groups []models.ChatGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.ChatGroup)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID int, patch models.GroupPatch) (models.ChatGroup, error) {
	args := m.Called(ctx, groupID, patch)
	return groupArg(args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	args := m.Called(ctx, groupID)
	return groupArg(args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) IsParticipant(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) AddJoinRequest(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) ApproveJoinRequest(ctx context.Context, groupID int, userID int, actorID int) (bool, error) {
	args := m.Called(ctx, groupID, userID, actorID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) RejectJoinRequest(ctx context.Context, groupID int, userID int, actorID int) (bool, error) {
	args := m.Called(ctx, groupID, userID, actorID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func groupArg(args mock.Arguments, i int) models.ChatGroup {
	var group models.ChatGroup
	if val := args.Get(i); val != nil {
		group = val.(models.ChatGroup)
	}
	return group
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateNotification(ctx context.Context, n models.UserNotification) (models.UserNotification, error) {
	args := m.Called(ctx, n)
	return notificationArg(args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) GetNotification(ctx context.Context, notificationID int) (models.UserNotification, error) {
	args := m.Called(ctx, notificationID)
	return notificationArg(args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) ListNotifications(ctx context.Context, filter models.NotificationFilter) ([]models.UserNotification, error) {
	args := m.Called(ctx, filter)
	var list []models.UserNotification
	if val := args.Get(0); val != nil {
		list = val.([]models.UserNotification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) UpdateNotification(ctx context.Context, notificationID int, patch repositories.NotificationPatch) (models.UserNotification, error) {
	args := m.Called(ctx, notificationID, patch)
	return notificationArg(args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, userID int, notificationIDs []int) (int, error) {
	args := m.Called(ctx, userID, notificationIDs)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) DeleteNotification(ctx context.Context, notificationID int) (models.UserNotification, error) {
	args := m.Called(ctx, notificationID)
	return notificationArg(args, 0), args.Error(1)
}

func notificationArg(args mock.Arguments, i int) models.UserNotification {
	var n models.UserNotification
	if val := args.Get(i); val != nil {
		n = val.(models.UserNotification)
	}
	return n
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
