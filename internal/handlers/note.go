package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"notably-ai/internal/auth"
	"notably-ai/internal/contextutil"
	"notably-ai/internal/service"
	"notably-ai/internal/storage"
)

// NoteHandler handles HTTP requests for note CRUD and search.
type NoteHandler struct {
	notes *service.NoteService
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// NotePayload represents the HTTP request payload for creating or updating a note.
type NotePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NoteResponse represents a note in HTTP responses.
type NoteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Edited    bool      `json:"edited"`
}

// SearchResponse represents one page of search results.
type SearchResponse struct {
	Notes       []NoteResponse `json:"notes"`
	Total       int            `json:"total"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
}

func toNoteResponse(note *storage.NoteRecord) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
		Edited:    note.Edited(),
	}
}

func toNoteResponses(notes []*storage.NoteRecord) []NoteResponse {
	out := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, toNoteResponse(note))
	}
	return out
}

// requireOwner returns the authenticated owner ID or writes a 401.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
	}
	return ownerID, ok
}

// List returns all notes of the authenticated owner, newest first.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	notes, err := h.notes.List(ctx, ownerID)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list notes")
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponses(notes))
}

// Create creates a note for the authenticated owner.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var payload NotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.notes.Create(ctx, ownerID, payload.Title, payload.Content)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// Update modifies a note owned by the authenticated owner.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var payload NotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := h.notes.Update(ctx, ownerID, chi.URLParam(r, "id"), payload.Title, payload.Content)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update note")
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// Delete removes a note owned by the authenticated owner.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search filters, sorts and paginates the owner's notes.
func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	params := service.SearchParams{
		Query:  query.Get("q"),
		SortBy: query.Get("sortBy"),
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		params.Page = page
	}
	if pageSize, err := strconv.Atoi(query.Get("pageSize")); err == nil {
		params.PageSize = pageSize
	}

	result, err := h.notes.Search(ctx, ownerID, params)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to search notes")
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Notes:       toNoteResponses(result.Notes),
		Total:       result.Total,
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
	})
}
