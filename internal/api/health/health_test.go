package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func okPinger() Pinger {
	return pingerFunc(func(ctx context.Context) error { return nil })
}

func TestCheckerHealthy(t *testing.T) {
	c := NewChecker(okPinger(), func() bool { return true }, "test")

	w := httptest.NewRecorder()
	c.Handler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"store"`)
	assert.Contains(t, w.Body.String(), `"sandbox"`)
}

func TestCheckerDegradedWithoutSandboxProvider(t *testing.T) {
	c := NewChecker(okPinger(), func() bool { return false }, "test")

	w := httptest.NewRecorder()
	c.Handler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// Degraded still serves traffic: clones fall back to static snapshots.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), "static snapshots")
}

func TestCheckerUnhealthyStore(t *testing.T) {
	c := NewChecker(pingerFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}), func() bool { return true }, "test")

	w := httptest.NewRecorder()
	c.Handler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestCheckerNilDependencies(t *testing.T) {
	c := NewChecker(nil, nil, "test")

	resp := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, StatusDegraded, resp.Components["sandbox"].Status)
}
