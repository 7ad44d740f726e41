package handlers

import (
	"context"
	"net/http"
	"time"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/maintenance"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	jobs               *maintenance.Jobs
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(jobs *maintenance.Jobs) *HealthHandler {
	return &HealthHandler{
		jobs:               jobs,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string                     `json:"status"`
	Timestamp string                     `json:"timestamp"`
	Index     maintenance.IndexHealth    `json:"index"`
	Database  maintenance.DatabaseHealth `json:"database"`
}

// ServeHTTP probes each dependency independently. The endpoint returns 200
// with per-dependency detail as long as the probe itself ran; a degraded
// dependency shows up in the body, not as a 5xx.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	report := h.jobs.HealthCheck(checkCtx)

	status := "healthy"
	if report.Index.Error != "" || report.Database.Error != "" {
		status = "degraded"
		logger.WarnContext(ctx, "health check found degraded dependencies",
			"index_error", report.Index.Error,
			"database_error", report.Database.Error,
		)
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Index:     report.Index,
		Database:  report.Database,
	})
}
