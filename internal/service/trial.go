package service

import (
	"context"
	"time"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/noteindex"
)

// TrialNote is a client-held note mirrored into the shared trial partition.
type TrialNote struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
}

// TrialService mirrors anonymous sessions' notes into the shared trial
// partition of the vector index. The client owns the note lifecycle; the
// server side is only the semantic-search mirror, synced best-effort by the
// client and purged by age server-side.
type TrialService struct {
	index    noteindex.Index
	embedder Embedder
}

// NewTrialService creates a new TrialService.
func NewTrialService(index noteindex.Index, embedder Embedder) *TrialService {
	return &TrialService{
		index:    index,
		embedder: embedder,
	}
}

// UpsertOne embeds a trial note and upserts it under the trial partition.
// Unlike the authenticated write path this is the primary (only) server-side
// write for trial notes, so errors propagate to the caller.
func (s *TrialService) UpsertOne(ctx context.Context, note TrialNote) error {
	if note.ID == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if note.Title == "" {
		return &ValidationError{Field: "title", Message: "cannot be empty"}
	}

	embedding, err := s.embedder.EmbedText(ctx, embeddingInput(note.Title, note.Content))
	if err != nil {
		return WrapError(err, "failed to embed trial note")
	}

	createdAt := note.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err = s.index.UpsertNote(ctx, note.ID, embedding, noteindex.NoteMeta{
		Owner:     noteindex.Trial(),
		Title:     note.Title,
		CreatedAt: createdAt,
	})
	if err != nil {
		return WrapError(err, "failed to sync trial note")
	}
	return nil
}

// DeleteOne removes a trial note vector.
func (s *TrialService) DeleteOne(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if err := s.index.DeleteOne(ctx, id); err != nil {
		return WrapError(err, "failed to delete trial note vector")
	}
	return nil
}

// ClearMany bulk-deletes trial note vectors, used when a trial user signs in
// and their local notes are promoted. Returns the number of IDs deleted.
func (s *TrialService) ClearMany(ctx context.Context, ids []string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := s.index.DeleteMany(ctx, ids)
	if err != nil {
		return deleted, WrapError(err, "failed to clear trial notes")
	}
	logger.InfoContext(ctx, "cleared trial notes", "deleted", deleted)
	return deleted, nil
}
