package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/maintenance"
)

// MaintenanceHandler exposes the operational maintenance jobs over HTTP.
// When a token is configured every endpoint requires it as a Bearer token;
// with no token configured the endpoints are open, which is acceptable only
// for private deployments.
type MaintenanceHandler struct {
	jobs          *maintenance.Jobs
	token         string
	reembedWindow time.Duration
	retention     time.Duration
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(jobs *maintenance.Jobs, token string, reembedWindow, retention time.Duration) *MaintenanceHandler {
	return &MaintenanceHandler{
		jobs:          jobs,
		token:         token,
		reembedWindow: reembedWindow,
		retention:     retention,
	}
}

// CleanupResponse reports the outcome of a cleanup dry run or purge.
type CleanupResponse struct {
	DryRun  bool                      `json:"dryRun"`
	Cutoff  time.Time                 `json:"cutoff"`
	Stats   *maintenance.CleanupStats `json:"stats,omitempty"`
	Deleted int                       `json:"deleted"`
}

// authorized verifies the maintenance token, writing a 401 on mismatch.
func (h *MaintenanceHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.token == "" {
		return true
	}
	presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) != 1 {
		writeError(w, http.StatusUnauthorized, "Invalid maintenance token")
		return false
	}
	return true
}

// Ping verifies the maintenance token without running anything.
func (h *MaintenanceHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Reembed re-embeds notes updated within the window. The window defaults to
// the configured value and can be overridden with ?days=N.
func (h *MaintenanceHandler) Reembed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.authorized(w, r) {
		return
	}

	window := h.reembedWindow
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			writeError(w, http.StatusBadRequest, "Invalid days parameter")
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	report, err := h.jobs.ReembedRecentlyUpdated(ctx, window)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to re-embed notes")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CleanupDryRun reports what a trial purge would delete.
func (h *MaintenanceHandler) CleanupDryRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.authorized(w, r) {
		return
	}

	stats, cutoff, err := h.jobs.CleanupDryRun(ctx, h.retention)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to inspect trial notes")
		return
	}
	writeJSON(w, http.StatusOK, CleanupResponse{
		DryRun:  true,
		Cutoff:  cutoff,
		Stats:   stats,
		Deleted: 0,
	})
}

// CleanupExecute purges stale trial vectors.
func (h *MaintenanceHandler) CleanupExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !h.authorized(w, r) {
		return
	}

	deleted, cutoff, err := h.jobs.CleanupExecute(ctx, h.retention)
	if err != nil {
		logger.ErrorContext(ctx, "trial cleanup failed", "deleted_before_failure", deleted, "error", err)
		handleServiceError(w, ctx, err, "Failed to purge trial notes")
		return
	}
	writeJSON(w, http.StatusOK, CleanupResponse{
		DryRun:  false,
		Cutoff:  cutoff,
		Deleted: deleted,
	})
}
