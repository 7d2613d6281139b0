package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"community-chat/internal/middleware"
	"community-chat/internal/mocks"
	"community-chat/internal/telemetry"
)

func intp(v int) *int { return &v }

func boolp(v bool) *bool { return &v }

func newTestRouter(userID int, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, userID, role)
		c.Next()
	})
	return r
}

func perform(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// expectAudit returns an emitter whose publisher expects one audit envelope.
func expectAudit() (*telemetry.AuditEmitter, *mocks.PublisherMock) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope")).Return(nil).Once()
	return telemetry.NewAuditEmitter(publisher, "audit.chat", "community-chat", "test"), publisher
}
