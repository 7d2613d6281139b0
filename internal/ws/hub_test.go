package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-chat/internal/config"
	"community-chat/internal/middleware"
	"community-chat/internal/models"
)

func TestHubPushUnknownConnection(t *testing.T) {
	hub := NewHub()

	err := hub.Push("missing", models.EventReceiveMessage, nil)

	assert.ErrorIs(t, err, ErrConnectionGone)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub()
	client := newClient(ConnInfo{ConnID: "c1", UserID: 1}, nil, 1, nil)
	hub.add(client)

	require.NoError(t, hub.Push("c1", models.EventReceiveMessage, "first"))
	err := hub.Push("c1", models.EventReceiveMessage, "second")

	assert.ErrorIs(t, err, ErrSlowConsumer)
	assert.Equal(t, 0, hub.Len())
	assert.ErrorIs(t, client.enqueue(models.OutboundFrame{}), ErrConnectionGone)

	frame, ok := <-client.send
	require.True(t, ok)
	assert.Equal(t, "first", frame.Data)
	_, ok = <-client.send
	assert.False(t, ok)
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub()
	hub.add(newClient(ConnInfo{ConnID: "a"}, nil, 1, nil))
	hub.add(newClient(ConnInfo{ConnID: "b"}, nil, 1, nil))

	hub.CloseAll()

	assert.Equal(t, 0, hub.Len())
	assert.ErrorIs(t, hub.Push("a", models.EventReceiveMessage, nil), ErrConnectionGone)
}

type echoService struct {
	hub    *Hub
	opened chan string
	closed chan string
	frames chan models.InboundFrame
}

func newEchoService(hub *Hub) *echoService {
	return &echoService{
		hub:    hub,
		opened: make(chan string, 4),
		closed: make(chan string, 4),
		frames: make(chan models.InboundFrame, 4),
	}
}

func (s *echoService) ConnectionOpened(connID string) { s.opened <- connID }
func (s *echoService) ConnectionClosed(connID string) { s.closed <- connID }

func (s *echoService) HandleFrame(_ context.Context, connID string, principal int, frame models.InboundFrame) error {
	s.frames <- frame
	return s.hub.Push(connID, models.EventReceiveMessage, map[string]any{"echo": frame.Event, "user": principal})
}

const testSecret = "ws-secret"

func startServer(t *testing.T) (*httptest.Server, *echoService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	service := newEchoService(hub)
	handler := NewHandler(hub, service, middleware.NewVerifier(testSecret, ""), config.RealtimeConfig{
		EventsPerSecond: 100,
		EventBurst:      10,
		SendBuffer:      8,
	})
	router := gin.New()
	router.GET("/ws", handler.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, service
}

func token(t *testing.T, userID int) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func TestHandlerRoundTrip(t *testing.T) {
	server, service := startServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server)+"?token="+token(t, 7), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var connID string
	select {
	case connID = <-service.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not opened")
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"event": models.EventJoinRoom, "data": map[string]any{"roomID": 3}}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, models.EventReceiveMessage, out.Event)
	assert.Equal(t, models.EventJoinRoom, out.Data["echo"])
	assert.Equal(t, float64(7), out.Data["user"])

	frame := <-service.frames
	var data map[string]int
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, 3, data["roomID"])

	require.NoError(t, conn.Close())
	select {
	case closed := <-service.closed:
		assert.Equal(t, connID, closed)
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

func TestHandlerRejectsInvalidToken(t *testing.T) {
	server, service := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server)+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, service.opened)
}
