package chat

import (
	"context"
	"fmt"
	"sync"

	"notably-ai/internal/contextutil"
	"notably-ai/internal/noteindex"
	"notably-ai/internal/storage"
)

const (
	// ownerTopK is how many candidates the index returns for authenticated
	// users; stale IDs are dropped during resolution so the usable set is
	// usually smaller.
	ownerTopK = 20
	// trialTopK bounds retrieval for trial sessions, whose inline note sets
	// are small.
	trialTopK = 3
	// trialFallbackCount is how many inline notes ground the prompt when
	// vector search returns nothing usable.
	trialFallbackCount = 3
)

// Assembler builds the grounding context for a chat request. It isolates the
// two data-source branches so the orchestrator only decides whether it has an
// authenticated owner.
type Assembler struct {
	notes storage.NoteStore
	index noteindex.Index
}

// NewAssembler creates an Assembler.
func NewAssembler(notes storage.NoteStore, index noteindex.Index) *Assembler {
	return &Assembler{
		notes: notes,
		index: index,
	}
}

// ForOwner assembles context for an authenticated user: the full note overview
// and the semantically relevant notes resolved against the authoritative
// store. The two lookups are independent and run concurrently.
func (a *Assembler) ForOwner(ctx context.Context, ownerID string, embedding []float32) (*Context, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var (
		wg          sync.WaitGroup
		overview    Overview
		overviewErr error
		relevant    []RelevantNote
		relevantErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		overview, overviewErr = a.ownerOverview(ctx, ownerID)
	}()
	go func() {
		defer wg.Done()
		relevant, relevantErr = a.ownerRelevantNotes(ctx, ownerID, embedding)
	}()
	wg.Wait()

	if overviewErr != nil {
		return nil, fmt.Errorf("failed to fetch note overview: %w", overviewErr)
	}
	if relevantErr != nil {
		return nil, fmt.Errorf("failed to fetch relevant notes: %w", relevantErr)
	}

	logger.DebugContext(ctx, "assembled owner context", "total_notes", overview.TotalCount, "relevant", len(relevant))
	return &Context{Overview: overview, Relevant: relevant}, nil
}

func (a *Assembler) ownerOverview(ctx context.Context, ownerID string) (Overview, error) {
	totalCount, err := a.notes.CountByOwner(ctx, ownerID)
	if err != nil {
		return Overview{}, err
	}
	titles, err := a.notes.TitlesByOwner(ctx, ownerID)
	if err != nil {
		return Overview{}, err
	}
	return Overview{TotalCount: totalCount, Titles: titles}, nil
}

func (a *Assembler) ownerRelevantNotes(ctx context.Context, ownerID string, embedding []float32) ([]RelevantNote, error) {
	logger := contextutil.LoggerFromContext(ctx)

	ids, err := a.index.Query(ctx, noteindex.OwnerID(ownerID), embedding, ownerTopK)
	if err != nil {
		return nil, err
	}

	// The index may lag behind the store; IDs it returns that no longer have
	// a backing record are dropped without error.
	records, err := a.notes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(records) < len(ids) {
		logger.DebugContext(ctx, "dropped stale index matches", "matched", len(ids), "resolved", len(records))
	}

	relevant := make([]RelevantNote, 0, len(records))
	for _, record := range records {
		relevant = append(relevant, RelevantNote{
			ID:      record.ID,
			Title:   record.Title,
			Content: record.Content,
		})
	}
	return relevant, nil
}

// ForTrial assembles context for an anonymous session from its inline notes.
// The overview comes straight from the inline list; relevant notes come from
// querying the shared trial partition and intersecting with the inline IDs.
// When the intersection is empty the first few inline notes are used instead,
// so the model always has some grounding even if vector sync lagged or failed.
func (a *Assembler) ForTrial(ctx context.Context, inline []TrialNote, embedding []float32) (*Context, error) {
	logger := contextutil.LoggerFromContext(ctx)

	titles := make([]storage.TitleEntry, len(inline))
	for i, note := range inline {
		titles[i] = storage.TitleEntry{Title: note.Title, CreatedAt: note.CreatedAt}
	}
	overview := Overview{TotalCount: len(inline), Titles: titles}

	ids, err := a.index.Query(ctx, noteindex.Trial(), embedding, trialTopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial partition: %w", err)
	}

	matched := make(map[string]bool, len(ids))
	for _, id := range ids {
		matched[id] = true
	}

	var relevant []RelevantNote
	for _, note := range inline {
		if matched[note.ID] {
			relevant = append(relevant, RelevantNote{ID: note.ID, Title: note.Title, Content: note.Content})
		}
	}

	if len(relevant) == 0 {
		fallback := inline
		if len(fallback) > trialFallbackCount {
			fallback = fallback[:trialFallbackCount]
		}
		for _, note := range fallback {
			relevant = append(relevant, RelevantNote{ID: note.ID, Title: note.Title, Content: note.Content})
		}
		if len(relevant) > 0 {
			logger.DebugContext(ctx, "trial vector search empty, using inline fallback", "fallback", len(relevant))
		}
	}

	return &Context{Overview: overview, Relevant: relevant}, nil
}
