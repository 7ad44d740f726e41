package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/service"
)

// TrialHandler handles the trial-mode vector sync endpoints.
type TrialHandler struct {
	trial *service.TrialService
}

// NewTrialHandler creates a new TrialHandler.
func NewTrialHandler(trial *service.TrialService) *TrialHandler {
	return &TrialHandler{trial: trial}
}

// TrialSyncRequest represents the payload for syncing one trial note.
type TrialSyncRequest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// TrialClearRequest represents the payload for bulk-clearing trial notes.
type TrialClearRequest struct {
	IDs []string `json:"ids"`
}

// TrialClearResponse reports how many trial vectors were deleted.
type TrialClearResponse struct {
	Deleted int `json:"deleted"`
}

// Sync embeds and upserts a single client-held note into the trial partition.
func (h *TrialHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req TrialSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.trial.UpsertOne(ctx, service.TrialNote{
		ID:        req.ID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to sync trial note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a single trial note vector.
func (h *TrialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.trial.DeleteOne(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete trial note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear bulk-deletes trial note vectors by ID.
func (h *TrialHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req TrialClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	deleted, err := h.trial.ClearMany(ctx, req.IDs)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to clear trial notes")
		return
	}
	writeJSON(w, http.StatusOK, TrialClearResponse{Deleted: deleted})
}
