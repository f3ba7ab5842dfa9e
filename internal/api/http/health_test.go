package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(t *testing.T, checks map[string]Pinger) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	NewHealthHandler("tandm-worker", "test", checks).RegisterRoutes(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthCheck_AllUp(t *testing.T) {
	w, body := serveHealth(t, map[string]Pinger{
		"store": pingFunc(func(context.Context) error { return nil }),
		"blob":  nil,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "tandm-worker", body.Service)
	assert.Equal(t, "up", body.Checks["store"])
	assert.Equal(t, "disabled", body.Checks["blob"])
}

func TestHealthCheck_DownDependencyDegrades(t *testing.T) {
	w, body := serveHealth(t, map[string]Pinger{
		"store": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "down", body.Checks["store"])
}

func TestHealthCheck_NoChecks(t *testing.T) {
	w, body := serveHealth(t, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body.Status)
	assert.Empty(t, body.Checks)
}
