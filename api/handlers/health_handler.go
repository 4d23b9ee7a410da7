package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter evaluates service dependencies
type HealthReporter interface {
	UpdateStatus(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus
}

// HealthHandler serves the HTTP health check
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler creates a new HealthHandler. A nil reporter always reports ok.
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{
		reporter: reporter,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.reporter == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	status := h.reporter.UpdateStatus(c.Request.Context())
	if status != healthpb.HealthCheckResponse_SERVING {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": status.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
