package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// RateLimiterStats is the part of the rate limiter the health check reads.
type RateLimiterStats interface {
	Size() int
}

// AuditLogStats is the part of the audit log the health check reads.
type AuditLogStats interface {
	Len() int
	Capacity() int
}

// HealthChecker verifies component health.
type HealthChecker struct {
	rateLimiter RateLimiterStats
	toolLimiter RateLimiterStats
	auditLog    AuditLogStats
	version     string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// aren't available.
func NewHealthChecker(rateLimiter, toolLimiter RateLimiterStats, auditLog AuditLogStats, version string) *HealthChecker {
	return &HealthChecker{
		rateLimiter: rateLimiter,
		toolLimiter: toolLimiter,
		auditLog:    auditLog,
		version:     version,
	}
}

// Check performs health checks on all components.
// Size and Len take the component locks; a hung check means a stuck lock.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	checks["rate_limiter"] = limiterCheck(h.rateLimiter)
	checks["tool_rate_limiter"] = limiterCheck(h.toolLimiter)

	if h.auditLog != nil {
		checks["audit"] = fmt.Sprintf("ok: %d/%d", h.auditLog.Len(), h.auditLog.Capacity())
	} else {
		checks["audit"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}
}

func limiterCheck(l RateLimiterStats) string {
	if l == nil {
		return "not configured"
	}
	return fmt.Sprintf("ok: %d keys", l.Size())
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the fallback /health handler when no checker is configured.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}` + "\n"))
	})
}
