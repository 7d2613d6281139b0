package ws

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"community-chat/internal/logging"
	"community-chat/internal/middleware"
	"community-chat/internal/observability"
)

const deviceIDHeader = "X-Device-Id"

// newConnID returns a 32-char hex id.
func newConnID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// connInfoFor describes a handshake that passed token verification. The
// request id comes from the request logger, which runs before /ws.
func connInfoFor(c *gin.Context, claims *middleware.Claims, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      claims.UserID,
		Role:        claims.Role,
		DeviceID:    c.GetHeader(deviceIDHeader),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   logging.RequestIDFromContext(c.Request.Context()),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}
