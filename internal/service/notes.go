package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks notably-ai/internal/service Embedder

import (
	"context"
	"errors"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/mdtext"
	"notably-ai/internal/noteindex"
	"notably-ai/internal/storage"
)

// Embedder turns text into a fixed-length vector.
// This interface is defined from the service layer's perspective (consumer-first).
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// NoteService provides note CRUD with best-effort semantic indexing.
// The relational store is the source of truth; the vector index is a
// degradable secondary index. Index write failures are logged and never
// propagated or rolled back.
type NoteService struct {
	store    storage.NoteStore
	index    noteindex.Index
	embedder Embedder
}

// NewNoteService creates a new NoteService.
func NewNoteService(store storage.NoteStore, index noteindex.Index, embedder Embedder) *NoteService {
	return &NoteService{
		store:    store,
		index:    index,
		embedder: embedder,
	}
}

// embeddingInput builds the text embedded for a note: title, blank line,
// content with markdown syntax stripped.
func embeddingInput(title, content string) string {
	return title + "\n\n" + mdtext.Plain(content)
}

// Create persists a new note and mirrors it into the vector index.
func (s *NoteService) Create(ctx context.Context, ownerID, title, content string) (*storage.NoteRecord, error) {
	if ownerID == "" {
		return nil, &ValidationError{Field: "ownerId", Message: "cannot be empty"}
	}
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "cannot be empty"}
	}

	note := &storage.NoteRecord{
		OwnerID: ownerID,
		Title:   title,
		Content: content,
	}
	if err := s.store.Create(ctx, note); err != nil {
		return nil, WrapError(err, "failed to create note")
	}

	s.syncIndex(ctx, note)
	return note, nil
}

// Update modifies an existing note owned by ownerID and re-indexes it.
func (s *NoteService) Update(ctx context.Context, ownerID, id, title, content string) (*storage.NoteRecord, error) {
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "cannot be empty"}
	}

	note, err := s.ownedNote(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	note.Title = title
	note.Content = content
	if err := s.store.Update(ctx, note); err != nil {
		return nil, WrapError(err, "failed to update note")
	}

	s.syncIndex(ctx, note)
	return note, nil
}

// Delete removes a note owned by ownerID from the store and, best-effort,
// from the vector index.
func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if _, err := s.ownedNote(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return WrapError(err, "failed to delete note")
	}

	if err := s.index.DeleteOne(ctx, id); err != nil {
		logger.WarnContext(ctx, "failed to delete note vector, index is now stale", "note_id", id, "error", err)
	}
	return nil
}

// List returns all notes of an owner, newest first.
func (s *NoteService) List(ctx context.Context, ownerID string) ([]*storage.NoteRecord, error) {
	notes, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, WrapError(err, "failed to list notes")
	}
	return notes, nil
}

// ownedNote fetches a note and verifies ownership.
func (s *NoteService) ownedNote(ctx context.Context, ownerID, id string) (*storage.NoteRecord, error) {
	note, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to fetch note")
	}
	if note.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}
	return note, nil
}

// syncIndex embeds the note and upserts its vector. Failures are logged and
// swallowed: the note row is authoritative and the index self-heals via the
// re-embed maintenance job.
func (s *NoteService) syncIndex(ctx context.Context, note *storage.NoteRecord) {
	logger := contextutil.LoggerFromContext(ctx)

	embedding, err := s.embedder.EmbedText(ctx, embeddingInput(note.Title, note.Content))
	if err != nil {
		logger.WarnContext(ctx, "failed to embed note, index is now stale", "note_id", note.ID, "error", err)
		return
	}

	meta := noteindex.NoteMeta{
		Owner:     noteindex.OwnerID(note.OwnerID),
		Title:     note.Title,
		CreatedAt: note.CreatedAt,
	}
	if err := s.index.UpsertNote(ctx, note.ID, embedding, meta); err != nil {
		logger.WarnContext(ctx, "failed to upsert note vector, index is now stale", "note_id", note.ID, "error", err)
	}
}
