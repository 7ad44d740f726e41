package noteindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks notably-ai/internal/noteindex Index

import (
	"context"
	"fmt"
	"time"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/vectorstore"
)

const (
	// DefaultDeleteBatchSize is the largest ID batch the index accepts per delete call.
	DefaultDeleteBatchSize = 100

	// trialListLimit bounds the metadata-only listing of the trial partition.
	trialListLimit = 10000

	metaOwnerID   = "owner_id"
	metaTitle     = "title"
	metaCreatedAt = "created_at"
)

// NoteMeta is the payload stored alongside each note vector.
// OwnerID is written on every upsert so partition filters stay consistent
// with the authoritative record.
type NoteMeta struct {
	Owner     Owner
	Title     string
	CreatedAt time.Time
}

// TrialEntry is a metadata-only view of a trial partition entry.
// CreatedAt is zero when the stored payload carries no creation date.
type TrialEntry struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Stats describes the state of the note index.
type Stats struct {
	PointsCount int
	Dimension   int
}

// Index is the note-domain view of the vector index. It owns the translation
// from Owner partitions to the underlying metadata filter mechanism.
type Index interface {
	// UpsertNote inserts or replaces the vector for a note, keyed by note ID.
	UpsertNote(ctx context.Context, id string, vec []float32, meta NoteMeta) error
	// Query returns up to topK note IDs ranked by similarity, restricted to the owner's partition.
	Query(ctx context.Context, owner Owner, vec []float32, topK int) ([]string, error)
	// DeleteOne removes a single note vector.
	DeleteOne(ctx context.Context, id string) error
	// DeleteMany removes note vectors in batches, returning the number of IDs submitted.
	DeleteMany(ctx context.Context, ids []string) (int, error)
	// ListTrial returns a metadata-only listing of the trial partition.
	ListTrial(ctx context.Context) ([]TrialEntry, error)
	// Stats returns record count and dimension of the index.
	Stats(ctx context.Context) (*Stats, error)
}

// NoteIndex implements Index on top of a generic VectorStore.
type NoteIndex struct {
	store           vectorstore.VectorStore
	collection      string
	dimension       int
	deleteBatchSize int
}

// Option configures a NoteIndex.
type Option func(*NoteIndex)

// WithDeleteBatchSize overrides the per-call delete batch limit.
func WithDeleteBatchSize(size int) Option {
	return func(i *NoteIndex) {
		if size > 0 {
			i.deleteBatchSize = size
		}
	}
}

// New creates a NoteIndex over the given store and collection.
// dimension must match the embedding model's output size.
func New(store vectorstore.VectorStore, collection string, dimension int, opts ...Option) *NoteIndex {
	idx := &NoteIndex{
		store:           store,
		collection:      collection,
		dimension:       dimension,
		deleteBatchSize: DefaultDeleteBatchSize,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// UpsertNote inserts or replaces the vector for a note, keyed by note ID.
func (i *NoteIndex) UpsertNote(ctx context.Context, id string, vec []float32, meta NoteMeta) error {
	if id == "" {
		return fmt.Errorf("note id is required")
	}
	if len(vec) != i.dimension {
		return fmt.Errorf("vector has dimension %d, index expects %d", len(vec), i.dimension)
	}

	payload := map[string]any{
		metaOwnerID: meta.Owner.filterValue(),
		metaTitle:   meta.Title,
	}
	if !meta.CreatedAt.IsZero() {
		payload[metaCreatedAt] = meta.CreatedAt.UTC().Format(time.RFC3339)
	}

	return i.store.Upsert(ctx, i.collection, []vectorstore.Point{{
		ID:   id,
		Vec:  vec,
		Meta: payload,
	}})
}

// Query returns up to topK note IDs ranked by similarity, restricted to the
// owner's partition. Results never cross partition boundaries.
func (i *NoteIndex) Query(ctx context.Context, owner Owner, vec []float32, topK int) ([]string, error) {
	results, err := i.store.Search(ctx, i.collection, vec, topK, map[string]any{
		metaOwnerID: owner.filterValue(),
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, result := range results {
		if result.PointID != "" {
			ids = append(ids, result.PointID)
		}
	}
	return ids, nil
}

// DeleteOne removes a single note vector.
func (i *NoteIndex) DeleteOne(ctx context.Context, id string) error {
	return i.store.Delete(ctx, i.collection, []string{id})
}

// DeleteMany removes note vectors in batches no larger than the configured
// batch size, returning the number of IDs submitted for deletion.
func (i *NoteIndex) DeleteMany(ctx context.Context, ids []string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	deleted := 0
	for start := 0; start < len(ids); start += i.deleteBatchSize {
		end := start + i.deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		if err := i.store.Delete(ctx, i.collection, batch); err != nil {
			return deleted, fmt.Errorf("failed to delete batch at offset %d: %w", start, err)
		}
		deleted += len(batch)
		logger.DebugContext(ctx, "deleted batch", "progress", deleted, "total", len(ids))
	}
	return deleted, nil
}

// ListTrial returns a metadata-only listing of the trial partition.
// The underlying engine requires a query vector even for pure metadata
// filtering, so a zero vector is used; that workaround stays confined here.
func (i *NoteIndex) ListTrial(ctx context.Context) ([]TrialEntry, error) {
	zeroVec := make([]float32, i.dimension)
	results, err := i.store.Search(ctx, i.collection, zeroVec, trialListLimit, map[string]any{
		metaOwnerID: trialPartitionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trial partition: %w", err)
	}

	entries := make([]TrialEntry, 0, len(results))
	for _, result := range results {
		entry := TrialEntry{ID: result.PointID}
		if title, ok := result.Meta[metaTitle].(string); ok {
			entry.Title = title
		}
		if raw, ok := result.Meta[metaCreatedAt].(string); ok {
			if createdAt, err := time.Parse(time.RFC3339, raw); err == nil {
				entry.CreatedAt = createdAt
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats returns record count and dimension of the index.
func (i *NoteIndex) Stats(ctx context.Context) (*Stats, error) {
	stats, err := i.store.Stats(ctx, i.collection)
	if err != nil {
		return nil, err
	}
	return &Stats{
		PointsCount: stats.PointsCount,
		Dimension:   stats.VectorSize,
	}, nil
}
