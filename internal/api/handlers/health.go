package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

// NewHealthHandler creates a health handler over named dependency checks.
// Optional dependencies that are not configured are simply left out.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthCheck returns the health status of the API and its dependencies
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	code := http.StatusOK
	deps := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = gin.H{"status": "unavailable", "error": err.Error()}
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = gin.H{"status": "ok"}
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": deps,
	})
}
