package maintenance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"notably-ai/internal/maintenance"
	"notably-ai/internal/noteindex"
	indexmocks "notably-ai/internal/noteindex/mocks"
	servicemocks "notably-ai/internal/service/mocks"
	"notably-ai/internal/storage"
	storagemocks "notably-ai/internal/storage/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type jobsFixture struct {
	store    *storagemocks.MockNoteStore
	index    *indexmocks.MockIndex
	embedder *servicemocks.MockEmbedder
	jobs     *maintenance.Jobs
}

func newJobsFixture(t *testing.T, concurrency int) *jobsFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &jobsFixture{
		store:    storagemocks.NewMockNoteStore(ctrl),
		index:    indexmocks.NewMockIndex(ctrl),
		embedder: servicemocks.NewMockEmbedder(ctrl),
	}
	f.jobs = maintenance.NewJobs(f.store, f.index, f.embedder, concurrency)
	return f
}

func TestReembedRecentlyUpdated(t *testing.T) {
	f := newJobsFixture(t, 2)

	notes := []*storage.NoteRecord{
		{ID: "n1", OwnerID: "alice", Title: "t1", Content: "c1"},
		{ID: "n2", OwnerID: "bob", Title: "t2", Content: "c2"},
	}
	f.store.EXPECT().ListUpdatedSince(gomock.Any(), gomock.Any()).Return(notes, nil)

	// The job embeds the same title + content text the write path embeds.
	f.embedder.EXPECT().EmbedText(gomock.Any(), "t1\n\nc1").Return([]float32{0.1}, nil)
	f.embedder.EXPECT().EmbedText(gomock.Any(), "t2\n\nc2").Return([]float32{0.2}, nil)

	var mu sync.Mutex
	upserted := map[string]noteindex.NoteMeta{}
	f.index.EXPECT().
		UpsertNote(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, id string, vec []float32, meta noteindex.NoteMeta) error {
			mu.Lock()
			defer mu.Unlock()
			upserted[id] = meta
			return nil
		}).
		Times(2)

	report, err := f.jobs.ReembedRecentlyUpdated(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("ReembedRecentlyUpdated() error = %v", err)
	}

	if report.Scanned != 2 || report.Updated != 2 || report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("ReembedRecentlyUpdated() report = %+v", report)
	}
	if meta, ok := upserted["n1"]; !ok || meta.Owner != noteindex.OwnerID("alice") {
		t.Errorf("n1 re-embedded with wrong owner metadata: %+v", upserted["n1"])
	}
}

func TestReembedRecentlyUpdated_FailureIsolation(t *testing.T) {
	f := newJobsFixture(t, 1)

	notes := []*storage.NoteRecord{
		{ID: "n1", OwnerID: "alice", Title: "t1", Content: "c1"},
		{ID: "n2", OwnerID: "alice", Title: "t2", Content: "c2"},
		{ID: "n3", OwnerID: "", Title: "orphan", Content: "no owner"},
	}
	f.store.EXPECT().ListUpdatedSince(gomock.Any(), gomock.Any()).Return(notes, nil)

	f.embedder.EXPECT().EmbedText(gomock.Any(), "t1\n\nc1").Return(nil, errors.New("embeddings down"))
	f.embedder.EXPECT().EmbedText(gomock.Any(), "t2\n\nc2").Return([]float32{0.2}, nil)
	f.index.EXPECT().UpsertNote(gomock.Any(), "n2", gomock.Any(), gomock.Any()).Return(nil)

	report, err := f.jobs.ReembedRecentlyUpdated(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ReembedRecentlyUpdated() error = %v", err)
	}

	if report.Scanned != 3 || report.Updated != 1 || report.Failed != 1 || report.Skipped != 1 {
		t.Errorf("ReembedRecentlyUpdated() report = %+v, want 1 updated, 1 failed, 1 skipped", report)
	}
}

func TestReembedRecentlyUpdated_EmptyWindow(t *testing.T) {
	f := newJobsFixture(t, 2)

	f.store.EXPECT().ListUpdatedSince(gomock.Any(), gomock.Any()).Return(nil, nil)

	report, err := f.jobs.ReembedRecentlyUpdated(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ReembedRecentlyUpdated() error = %v", err)
	}
	if report.Scanned != 0 {
		t.Errorf("ReembedRecentlyUpdated() report = %+v, want empty", report)
	}
}

func trialEntries(now time.Time) []noteindex.TrialEntry {
	return []noteindex.TrialEntry{
		{ID: "old1", Title: "a", CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: "old2", Title: "b", CreatedAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "recent", Title: "c", CreatedAt: now.Add(-time.Hour)},
		{ID: "undated", Title: "d"},
	}
}

func TestCleanupDryRun(t *testing.T) {
	f := newJobsFixture(t, 1)
	now := time.Now().UTC()

	f.index.EXPECT().ListTrial(gomock.Any()).Return(trialEntries(now), nil)
	// No delete call: the dry run must not mutate anything.

	stats, cutoff, err := f.jobs.CleanupDryRun(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupDryRun() error = %v", err)
	}

	if stats.TotalTrialNotes != 4 {
		t.Errorf("TotalTrialNotes = %d, want 4", stats.TotalTrialNotes)
	}
	if stats.OldNotes != 2 || stats.WouldDelete != 2 {
		t.Errorf("OldNotes = %d, WouldDelete = %d, want 2 each", stats.OldNotes, stats.WouldDelete)
	}
	// Entries without a creation date count as recent and are never purged.
	if stats.RecentNotes != 2 {
		t.Errorf("RecentNotes = %d, want 2 (recent + undated)", stats.RecentNotes)
	}
	if cutoff.After(now) {
		t.Errorf("cutoff %v must not be in the future", cutoff)
	}
}

func TestCleanupExecute(t *testing.T) {
	f := newJobsFixture(t, 1)
	now := time.Now().UTC()

	f.index.EXPECT().ListTrial(gomock.Any()).Return(trialEntries(now), nil)
	f.index.EXPECT().DeleteMany(gomock.Any(), []string{"old1", "old2"}).Return(2, nil)

	deleted, _, err := f.jobs.CleanupExecute(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExecute() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("CleanupExecute() deleted = %d, want 2", deleted)
	}
}

func TestCleanupExecute_NothingToDelete(t *testing.T) {
	f := newJobsFixture(t, 1)
	now := time.Now().UTC()

	f.index.EXPECT().ListTrial(gomock.Any()).Return([]noteindex.TrialEntry{
		{ID: "recent", CreatedAt: now},
	}, nil)

	deleted, _, err := f.jobs.CleanupExecute(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExecute() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("CleanupExecute() deleted = %d, want 0", deleted)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		indexStats  *noteindex.Stats
		indexErr    error
		noteCount   int
		dbErr       error
		wantIndexOK bool
		wantDBOK    bool
	}{
		{
			name:        "all healthy",
			indexStats:  &noteindex.Stats{PointsCount: 10, Dimension: 768},
			noteCount:   5,
			wantIndexOK: true,
			wantDBOK:    true,
		},
		{
			name:        "index down, database isolated",
			indexErr:    errors.New("qdrant unreachable"),
			noteCount:   5,
			wantIndexOK: false,
			wantDBOK:    true,
		},
		{
			name:        "database down, index isolated",
			indexStats:  &noteindex.Stats{PointsCount: 10, Dimension: 768},
			dbErr:       errors.New("disk failure"),
			wantIndexOK: true,
			wantDBOK:    false,
		},
		{
			name:        "everything down",
			indexErr:    errors.New("qdrant unreachable"),
			dbErr:       errors.New("disk failure"),
			wantIndexOK: false,
			wantDBOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobsFixture(t, 1)

			f.index.EXPECT().Stats(gomock.Any()).Return(tt.indexStats, tt.indexErr)
			f.store.EXPECT().Count(gomock.Any()).Return(tt.noteCount, tt.dbErr)

			report := f.jobs.HealthCheck(context.Background())
			if report == nil {
				t.Fatal("HealthCheck() returned nil")
			}

			if ok := report.Index.Error == ""; ok != tt.wantIndexOK {
				t.Errorf("index health = %+v, want ok=%v", report.Index, tt.wantIndexOK)
			}
			if ok := report.Database.Error == ""; ok != tt.wantDBOK {
				t.Errorf("database health = %+v, want ok=%v", report.Database, tt.wantDBOK)
			}
			if tt.wantIndexOK && report.Index.PointsCount != tt.indexStats.PointsCount {
				t.Errorf("index points = %d, want %d", report.Index.PointsCount, tt.indexStats.PointsCount)
			}
			if tt.wantDBOK && report.Database.NoteCount != tt.noteCount {
				t.Errorf("database count = %d, want %d", report.Database.NoteCount, tt.noteCount)
			}
		})
	}
}
