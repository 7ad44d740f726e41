package chat

import (
	"context"
	"fmt"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/service"
)

// Request is a chat request in the domain layer. An empty OwnerID means the
// session is anonymous and TrialNotes must be set (it may be an empty slice).
type Request struct {
	OwnerID    string
	Turns      []Turn
	TrialNotes []TrialNote
}

// Engine coordinates a chat request end to end: it truncates the transcript,
// embeds it, assembles grounding context, builds the system prompt, sanitizes
// history and drives the generative model, re-exposing its output through the
// callback. It performs no writes.
type Engine struct {
	embedder  Embedder
	assembler *Assembler
	model     ChatModel
	persona   Persona
}

// NewEngine creates a chat engine.
func NewEngine(embedder Embedder, assembler *Assembler, model ChatModel, persona Persona) *Engine {
	return &Engine{
		embedder:  embedder,
		assembler: assembler,
		model:     model,
		persona:   persona,
	}
}

// StreamAnswer validates the request, runs the retrieval pipeline and streams
// the model's reply through the callback. Errors returned before the first
// callback invocation mean no output was produced; an error after that
// terminates an already-started stream.
func (e *Engine) StreamAnswer(ctx context.Context, req Request, callback func(chunk string) error) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(req.Turns) == 0 {
		return &service.ValidationError{Field: "messages", Message: "cannot be empty"}
	}
	if req.OwnerID == "" && req.TrialNotes == nil {
		return &service.ValidationError{Field: "trialNotes", Message: "required for trial mode"}
	}

	truncated := TruncateTranscript(req.Turns)

	// One embedding call per request, over the joined trailing turns.
	embedding, err := e.embedder.EmbedText(ctx, EmbeddingText(truncated))
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed conversation", "error", err)
		return fmt.Errorf("failed to embed conversation: %w", err)
	}

	var grounding *Context
	if req.OwnerID != "" {
		grounding, err = e.assembler.ForOwner(ctx, req.OwnerID, embedding)
	} else {
		grounding, err = e.assembler.ForTrial(ctx, req.TrialNotes, embedding)
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to assemble chat context", "error", err)
		return err
	}

	systemPrompt := BuildSystemPrompt(grounding.Overview, grounding.Relevant, e.persona)

	messages := ToModelMessages(truncated)
	history := SanitizeHistory(messages)
	final := messages[len(messages)-1]

	// The system context rides on the final user turn rather than a separate
	// system role; the model treats it the same and the history contract
	// stays strictly alternating.
	messageWithContext := systemPrompt + "\n\n" + final.Content

	logger.InfoContext(ctx, "streaming chat reply",
		"trial_mode", req.OwnerID == "",
		"history_turns", len(history),
		"total_notes", grounding.Overview.TotalCount,
		"relevant_notes", len(grounding.Relevant),
	)

	return e.model.StreamChatWithHistory(ctx, history, messageWithContext, callback)
}
