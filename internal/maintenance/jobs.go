package maintenance

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/mdtext"
	"notably-ai/internal/noteindex"
	"notably-ai/internal/service"
	"notably-ai/internal/storage"
)

// Jobs bundles the operational maintenance routines: re-embedding recently
// updated notes, purging stale trial vectors and reporting dependency health.
// All jobs are idempotent and safe to re-run.
type Jobs struct {
	store       storage.NoteStore
	index       noteindex.Index
	embedder    service.Embedder
	concurrency int
}

// NewJobs creates the maintenance job runner. concurrency bounds the number
// of parallel embedding calls during re-embedding.
func NewJobs(store storage.NoteStore, index noteindex.Index, embedder service.Embedder, concurrency int) *Jobs {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Jobs{
		store:       store,
		index:       index,
		embedder:    embedder,
		concurrency: concurrency,
	}
}

// ReembedReport summarizes one re-embedding run.
type ReembedReport struct {
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// ReembedRecentlyUpdated re-embeds every note updated within the window and
// rewrites its vector with full metadata. Each note is processed in
// isolation; one failure never aborts the run. Re-running is harmless since
// upserts replace both vector and payload.
func (j *Jobs) ReembedRecentlyUpdated(ctx context.Context, window time.Duration) (*ReembedReport, error) {
	logger := contextutil.LoggerFromContext(ctx)

	since := time.Now().UTC().Add(-window)
	notes, err := j.store.ListUpdatedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recently updated notes: %w", err)
	}

	report := &ReembedReport{Scanned: len(notes)}
	if len(notes) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(j.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		updated atomic.Int64
		failed  atomic.Int64
		skipped atomic.Int64
	)

	for _, note := range notes {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			if note.OwnerID == "" {
				skipped.Add(1)
				return
			}
			if err := j.reembedOne(ctx, note); err != nil {
				failed.Add(1)
				logger.WarnContext(ctx, "failed to re-embed note", "note_id", note.ID, "error", err)
				return
			}
			updated.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			logger.WarnContext(ctx, "failed to submit re-embed task", "note_id", note.ID, "error", submitErr)
		}
	}
	wg.Wait()

	report.Updated = int(updated.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())

	logger.InfoContext(ctx, "re-embed run finished",
		"scanned", report.Scanned,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// reembedOne embeds the same title and plain-text content the write path
// embeds, then rewrites the vector with complete metadata.
func (j *Jobs) reembedOne(ctx context.Context, note *storage.NoteRecord) error {
	text := note.Title + "\n\n" + mdtext.Plain(note.Content)
	embedding, err := j.embedder.EmbedText(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed note: %w", err)
	}

	return j.index.UpsertNote(ctx, note.ID, embedding, noteindex.NoteMeta{
		Owner:     noteindex.OwnerID(note.OwnerID),
		Title:     note.Title,
		CreatedAt: note.CreatedAt,
	})
}

// CleanupStats describes the trial partition relative to a retention cutoff.
type CleanupStats struct {
	TotalTrialNotes int `json:"totalTrialNotes"`
	OldNotes        int `json:"oldNotes"`
	RecentNotes     int `json:"recentNotes"`
	WouldDelete     int `json:"wouldDelete"`
}

// CleanupDryRun reports what a purge with the given retention would delete
// without deleting anything. Entries without a creation date are counted as
// recent, so malformed payloads are never purged.
func (j *Jobs) CleanupDryRun(ctx context.Context, retention time.Duration) (*CleanupStats, time.Time, error) {
	cutoff := time.Now().UTC().Add(-retention)

	entries, err := j.index.ListTrial(ctx)
	if err != nil {
		return nil, cutoff, fmt.Errorf("failed to list trial notes: %w", err)
	}

	stats := &CleanupStats{TotalTrialNotes: len(entries)}
	for _, entry := range entries {
		if isOld(entry, cutoff) {
			stats.OldNotes++
		} else {
			stats.RecentNotes++
		}
	}
	stats.WouldDelete = stats.OldNotes
	return stats, cutoff, nil
}

// CleanupExecute purges trial vectors older than the retention window,
// returning the number of IDs deleted and the cutoff applied.
func (j *Jobs) CleanupExecute(ctx context.Context, retention time.Duration) (int, time.Time, error) {
	logger := contextutil.LoggerFromContext(ctx)

	cutoff := time.Now().UTC().Add(-retention)

	entries, err := j.index.ListTrial(ctx)
	if err != nil {
		return 0, cutoff, fmt.Errorf("failed to list trial notes: %w", err)
	}

	var oldIDs []string
	for _, entry := range entries {
		if isOld(entry, cutoff) {
			oldIDs = append(oldIDs, entry.ID)
		}
	}
	if len(oldIDs) == 0 {
		return 0, cutoff, nil
	}

	deleted, err := j.index.DeleteMany(ctx, oldIDs)
	if err != nil {
		return deleted, cutoff, fmt.Errorf("failed to delete stale trial notes: %w", err)
	}

	logger.InfoContext(ctx, "purged stale trial notes",
		"deleted", deleted,
		"total", len(entries),
		"cutoff", cutoff,
	)
	return deleted, cutoff, nil
}

func isOld(entry noteindex.TrialEntry, cutoff time.Time) bool {
	return !entry.CreatedAt.IsZero() && entry.CreatedAt.Before(cutoff)
}

// IndexHealth is the vector index portion of a health report.
type IndexHealth struct {
	Status      string `json:"status"`
	PointsCount int    `json:"pointsCount,omitempty"`
	Dimension   int    `json:"dimension,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DatabaseHealth is the relational store portion of a health report.
type DatabaseHealth struct {
	Status    string `json:"status"`
	NoteCount int    `json:"noteCount,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthReport captures per-dependency health. Each dependency is probed
// independently, so one outage never masks the state of the other.
type HealthReport struct {
	Index    IndexHealth    `json:"index"`
	Database DatabaseHealth `json:"database"`
}

// HealthCheck probes the vector index and the relational store. It always
// returns a report; failures surface per dependency, never as a whole.
func (j *Jobs) HealthCheck(ctx context.Context) *HealthReport {
	report := &HealthReport{}

	if stats, err := j.index.Stats(ctx); err != nil {
		report.Index = IndexHealth{Status: "unhealthy", Error: err.Error()}
	} else {
		report.Index = IndexHealth{
			Status:      "healthy",
			PointsCount: stats.PointsCount,
			Dimension:   stats.Dimension,
		}
	}

	if count, err := j.store.Count(ctx); err != nil {
		report.Database = DatabaseHealth{Status: "unhealthy", Error: err.Error()}
	} else {
		report.Database = DatabaseHealth{Status: "healthy", NoteCount: count}
	}

	return report
}
