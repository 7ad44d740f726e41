package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"notably-ai/internal/auth"
	"notably-ai/internal/chat"
	"notably-ai/internal/contextutil"
	"notably-ai/internal/service"
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	engine *chat.Engine
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// ChatRequest represents the HTTP request payload for chat.
// TrialNotes is only consulted for anonymous requests; nil means the field
// was absent, an empty array means the trial user has no notes.
type ChatRequest struct {
	Messages   []chat.Turn      `json:"messages"`
	TrialNotes []chat.TrialNote `json:"trialNotes"`
}

// ServeHTTP streams the chat reply as Server-Sent Events.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ownerID, _ := auth.OwnerFromContext(ctx)
	engineReq := chat.Request{
		OwnerID:    ownerID,
		Turns:      req.Messages,
		TrialNotes: req.TrialNotes,
	}

	// Headers are written lazily on the first chunk so validation and
	// retrieval failures can still produce a proper JSON error status.
	started := false
	err := h.engine.StreamAnswer(ctx, engineReq, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			started = true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err != nil {
		if !started {
			var validationErr *service.ValidationError
			if errors.As(err, &validationErr) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
				return
			}
			handleServiceError(w, ctx, err, "Failed to process chat request")
			return
		}
		// The stream is already underway; the best that can be done is an
		// in-band error frame.
		logger.ErrorContext(ctx, "error streaming chat", "error", err)
		_, _ = fmt.Fprintf(w, "data: {\"error\":%q}\n\n", err.Error())
		flusher.Flush()
		return
	}

	if !started {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
	}
	_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}
