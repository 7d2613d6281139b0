package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"community-chat/internal/models"
)

// PublisherMock stands in for the audit publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// EventPublisherMock stands in for the ws_events publisher.
type EventPublisherMock struct {
	mock.Mock
}

func (m *EventPublisherMock) PublishJSON(ctx context.Context, routingKey string, message any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, message, headers)
	return args.Error(0)
}

// BroadcasterMock stands in for the cross-instance relay.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(ctx context.Context, msg models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
