package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"community-chat/internal/mocks"
	"community-chat/internal/models"
	"community-chat/internal/presence"
)

type pushed struct {
	connID  string
	event   string
	payload any
}

// fakePusher records pushes; connections listed in closed fail like a
// socket that went away mid-flight.
type fakePusher struct {
	mu     sync.Mutex
	pushes []pushed
	closed map[string]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{closed: map[string]bool{}}
}

func (p *fakePusher) Push(connID string, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed[connID] {
		return errors.New("connection closed")
	}
	p.pushes = append(p.pushes, pushed{connID: connID, event: event, payload: payload})
	return nil
}

func (p *fakePusher) to(connID, event string) []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushed
	for _, push := range p.pushes {
		if push.connID == connID && push.event == event {
			out = append(out, push)
		}
	}
	return out
}

func (p *fakePusher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, push := range p.pushes {
		if push.event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	registry      *presence.Registry
	pusher        *fakePusher
	messages      *mocks.MessageRepositoryMock
	groups        *mocks.GroupRepositoryMock
	notifications *mocks.NotificationRepositoryMock
	svc           *Service
}

func newFixture() *fixture {
	f := &fixture{
		registry:      presence.NewRegistry(),
		pusher:        newFakePusher(),
		messages:      &mocks.MessageRepositoryMock{},
		groups:        &mocks.GroupRepositoryMock{},
		notifications: &mocks.NotificationRepositoryMock{},
	}
	f.svc = NewService(f.registry, f.pusher, f.messages, f.groups, f.notifications)
	return f
}

// connect opens an identified connection, optionally inside a room.
func (f *fixture) connect(connID string, userID int, room *int) {
	f.svc.ConnectionOpened(connID)
	f.registry.SetUser(connID, userID)
	if room != nil {
		f.registry.SetRoom(connID, room)
	}
}

func (f *fixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.messages.AssertExpectations(t)
	f.groups.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func intp(v int) *int { return &v }

func groupMessage(id, sender, group int) models.ChatMessage {
	return models.ChatMessage{ID: id, Type: models.MessageTypeText, Content: "hi", SenderID: sender, GroupID: intp(group)}
}

func alertText(p pushed) string {
	if a, ok := p.payload.(models.Alert); ok {
		return a.Message
	}
	return ""
}
