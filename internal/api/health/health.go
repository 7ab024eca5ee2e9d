// Package health reports the clone service's operational state: job store
// connectivity and whether the sandbox provider is configured.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Status represents the health of a component or of the whole service.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is operational but limited.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus is the health of a single component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check payload.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger verifies job store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// checkTimeout bounds one health check round.
const checkTimeout = 5 * time.Second

// Checker aggregates the service's component states. A missing sandbox
// provider degrades the service rather than breaking it: clones still
// complete, with static snapshot previews instead of live sandboxes.
type Checker struct {
	store   Pinger
	sandbox func() bool
	version string
	started time.Time
}

// NewChecker creates a health checker. sandboxConfigured reports whether a
// sandbox provider is available; nil means none is wired.
func NewChecker(store Pinger, sandboxConfigured func() bool, version string) *Checker {
	return &Checker{
		store:   store,
		sandbox: sandboxConfigured,
		version: version,
		started: time.Now(),
	}
}

// Check runs all component checks and aggregates the result. An unhealthy
// store makes the service unhealthy; an unconfigured sandbox only degrades
// it.
func (c *Checker) Check(ctx context.Context) *Response {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	components := map[string]ComponentStatus{
		"store":   c.checkStore(ctx),
		"sandbox": c.checkSandbox(),
	}

	overall := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			overall = StatusUnhealthy
			break
		}
		if comp.Status == StatusDegraded {
			overall = StatusDegraded
		}
	}

	return &Response{
		Status:     overall,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
	}
}

func (c *Checker) checkStore(ctx context.Context) ComponentStatus {
	if c.store == nil {
		return ComponentStatus{
			Status:  StatusUnhealthy,
			Message: "job store not configured",
		}
	}

	if err := c.store.Ping(ctx); err != nil {
		return ComponentStatus{
			Status:  StatusUnhealthy,
			Message: "job store ping failed: " + err.Error(),
		}
	}

	return ComponentStatus{Status: StatusHealthy, Message: "connected"}
}

func (c *Checker) checkSandbox() ComponentStatus {
	if c.sandbox == nil || !c.sandbox() {
		return ComponentStatus{
			Status:  StatusDegraded,
			Message: "sandbox provider not configured, clones fall back to static snapshots",
		}
	}

	return ComponentStatus{Status: StatusHealthy, Message: "configured"}
}

// Handler returns an HTTP handler for health checks. Degraded still answers
// 200 since the service can complete clone runs.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if response.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(response)
	}
}
