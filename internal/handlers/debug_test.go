package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter int

func (c fixedCounter) Len() int { return int(c) }

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterDebugRoutes(router, nil, fixedCounter(0), fixedCounter(0), false)

	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodGet, "/debug/presence", "").Code)
}

func TestDebugRoutes(t *testing.T) {
	audit, publisher := expectAudit()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterDebugRoutes(router, audit, fixedCounter(3), fixedCounter(2), true)

	rec := perform(router, http.MethodGet, "/debug/presence", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sockets":3,"registered":2}`, rec.Body.String())

	rec = perform(router, http.MethodGet, "/debug/audit-test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}
