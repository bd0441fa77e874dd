package handlers

import (
	"context"
	"time"

	xhttp "github.com/nimasrn/ar-collections/pkg/http"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func RegisterHealthRoutes(e *xhttp.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	c, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	status := xhttp.StatusOK
	result := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(c); err != nil {
			result[name] = err.Error()
			status = xhttp.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	xhttp.WriteJSON(ctx, status, map[string]any{
		"status": xhttp.StatusText(status),
		"checks": result,
	})
}
