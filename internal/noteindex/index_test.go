package noteindex_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"notably-ai/internal/noteindex"
	"notably-ai/internal/vectorstore"
	"notably-ai/internal/vectorstore/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const testCollection = "notes"

func TestNoteIndex_UpsertNote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 3)

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var gotPoints []vectorstore.Point
	store.EXPECT().
		Upsert(gomock.Any(), testCollection, gomock.Any()).
		DoAndReturn(func(ctx context.Context, collection string, points []vectorstore.Point) error {
			gotPoints = points
			return nil
		})

	err := index.UpsertNote(context.Background(), "n1", []float32{1, 2, 3}, noteindex.NoteMeta{
		Owner:     noteindex.OwnerID("alice"),
		Title:     "Groceries",
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("UpsertNote() error = %v", err)
	}

	if len(gotPoints) != 1 || gotPoints[0].ID != "n1" {
		t.Fatalf("UpsertNote() points = %v", gotPoints)
	}
	meta := gotPoints[0].Meta
	if meta["owner_id"] != "alice" {
		t.Errorf("owner_id = %v, want alice", meta["owner_id"])
	}
	if meta["title"] != "Groceries" {
		t.Errorf("title = %v, want Groceries", meta["title"])
	}
	if meta["created_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("created_at = %v, want RFC3339", meta["created_at"])
	}
}

func TestNoteIndex_UpsertNote_TrialPartition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 2)

	store.EXPECT().
		Upsert(gomock.Any(), testCollection, gomock.Any()).
		DoAndReturn(func(ctx context.Context, collection string, points []vectorstore.Point) error {
			if points[0].Meta["owner_id"] != "trial-user" {
				t.Errorf("trial owner_id = %v, want trial-user", points[0].Meta["owner_id"])
			}
			return nil
		})

	err := index.UpsertNote(context.Background(), "t1", []float32{1, 2}, noteindex.NoteMeta{
		Owner: noteindex.Trial(),
		Title: "scratch",
	})
	if err != nil {
		t.Fatalf("UpsertNote() error = %v", err)
	}
}

func TestNoteIndex_UpsertNote_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 3)

	if err := index.UpsertNote(context.Background(), "", []float32{1, 2, 3}, noteindex.NoteMeta{}); err == nil {
		t.Error("UpsertNote() with empty id expected error")
	}
	if err := index.UpsertNote(context.Background(), "n1", []float32{1, 2}, noteindex.NoteMeta{}); err == nil {
		t.Error("UpsertNote() with wrong dimension expected error")
	}
}

func TestNoteIndex_Query(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 2)

	vec := []float32{0.1, 0.2}
	store.EXPECT().
		Search(gomock.Any(), testCollection, vec, 5, map[string]any{"owner_id": "alice"}).
		Return([]vectorstore.SearchResult{
			{PointID: "n1", Score: 0.9},
			{PointID: "", Score: 0.5},
			{PointID: "n2", Score: 0.4},
		}, nil)

	ids, err := index.Query(context.Background(), noteindex.OwnerID("alice"), vec, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "n1" || ids[1] != "n2" {
		t.Errorf("Query() ids = %v, want [n1 n2]", ids)
	}
}

func TestNoteIndex_DeleteMany_Batching(t *testing.T) {
	makeIDs := func(n int) []string {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		return ids
	}

	tests := []struct {
		name        string
		batchSize   int
		total       int
		wantBatches []int
	}{
		{name: "under one batch", batchSize: 100, total: 7, wantBatches: []int{7}},
		{name: "exact multiple", batchSize: 2, total: 4, wantBatches: []int{2, 2}},
		{name: "uneven tail", batchSize: 2, total: 5, wantBatches: []int{2, 2, 1}},
		{name: "empty input", batchSize: 2, total: 0, wantBatches: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockVectorStore(ctrl)
			index := noteindex.New(store, testCollection, 2, noteindex.WithDeleteBatchSize(tt.batchSize))

			var gotBatches []int
			store.EXPECT().
				Delete(gomock.Any(), testCollection, gomock.Any()).
				DoAndReturn(func(ctx context.Context, collection string, ids []string) error {
					if len(ids) > tt.batchSize {
						t.Errorf("batch of %d exceeds limit %d", len(ids), tt.batchSize)
					}
					gotBatches = append(gotBatches, len(ids))
					return nil
				}).
				Times(len(tt.wantBatches))

			deleted, err := index.DeleteMany(context.Background(), makeIDs(tt.total))
			if err != nil {
				t.Fatalf("DeleteMany() error = %v", err)
			}
			if deleted != tt.total {
				t.Errorf("DeleteMany() deleted = %d, want %d", deleted, tt.total)
			}
			if len(gotBatches) != len(tt.wantBatches) {
				t.Fatalf("DeleteMany() batches = %v, want %v", gotBatches, tt.wantBatches)
			}
			for i, want := range tt.wantBatches {
				if gotBatches[i] != want {
					t.Errorf("DeleteMany() batch[%d] = %d, want %d", i, gotBatches[i], want)
				}
			}
		})
	}
}

func TestNoteIndex_DeleteMany_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 2, noteindex.WithDeleteBatchSize(2))

	gomock.InOrder(
		store.EXPECT().Delete(gomock.Any(), testCollection, []string{"a", "b"}).Return(nil),
		store.EXPECT().Delete(gomock.Any(), testCollection, []string{"c", "d"}).Return(errors.New("backend down")),
	)

	deleted, err := index.DeleteMany(context.Background(), []string{"a", "b", "c", "d"})
	if err == nil {
		t.Fatal("DeleteMany() expected error")
	}
	if deleted != 2 {
		t.Errorf("DeleteMany() deleted = %d, want 2 before failure", deleted)
	}
}

func TestNoteIndex_ListTrial(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 3)

	store.EXPECT().
		Search(gomock.Any(), testCollection, []float32{0, 0, 0}, 10000, map[string]any{"owner_id": "trial-user"}).
		Return([]vectorstore.SearchResult{
			{PointID: "t1", Meta: map[string]any{"title": "old", "created_at": "2026-01-01T00:00:00Z"}},
			{PointID: "t2", Meta: map[string]any{"title": "no date"}},
			{PointID: "t3", Meta: map[string]any{"created_at": "not-a-date"}},
		}, nil)

	entries, err := index.ListTrial(context.Background())
	if err != nil {
		t.Fatalf("ListTrial() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ListTrial() entries = %d, want 3", len(entries))
	}
	if entries[0].Title != "old" || entries[0].CreatedAt.IsZero() {
		t.Errorf("ListTrial() entry[0] = %+v, want parsed date", entries[0])
	}
	if !entries[1].CreatedAt.IsZero() {
		t.Errorf("ListTrial() missing created_at must yield zero time, got %v", entries[1].CreatedAt)
	}
	if !entries[2].CreatedAt.IsZero() {
		t.Errorf("ListTrial() malformed created_at must yield zero time, got %v", entries[2].CreatedAt)
	}
}

func TestNoteIndex_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockVectorStore(ctrl)
	index := noteindex.New(store, testCollection, 4)

	store.EXPECT().Stats(gomock.Any(), testCollection).
		Return(&vectorstore.Stats{PointsCount: 42, VectorSize: 4, Status: "green"}, nil)

	stats, err := index.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.PointsCount != 42 || stats.Dimension != 4 {
		t.Errorf("Stats() = %+v", stats)
	}
}
