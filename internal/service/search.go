package service

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"notably-ai/internal/storage"
)

// Sort orders accepted by Search.
const (
	SortUpdatedDesc = "updated-desc"
	SortUpdatedAsc  = "updated-asc"
	SortTitleAsc    = "title-asc"
	SortTitleDesc   = "title-desc"
)

const defaultPageSize = 12

// SearchParams narrows and orders an owner's notes.
type SearchParams struct {
	Query    string
	SortBy   string
	Page     int
	PageSize int
}

// SearchResult is one page of matching notes with exact totals.
type SearchResult struct {
	Notes       []*storage.NoteRecord
	Total       int
	CurrentPage int
	TotalPages  int
}

// Search filters an owner's notes by a case- and diacritic-insensitive
// substring match over title and content, sorts and paginates them.
// Lexical search complements the vector-based retrieval used by chat;
// diacritic folding keeps it usable for languages like Vietnamese.
func (s *NoteService) Search(ctx context.Context, ownerID string, params SearchParams) (*SearchResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.SortBy == "" {
		params.SortBy = SortUpdatedDesc
	}

	notes, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, WrapError(err, "failed to list notes")
	}

	filtered := notes
	if query := strings.TrimSpace(params.Query); query != "" {
		filtered = make([]*storage.NoteRecord, 0, len(notes))
		for _, note := range notes {
			if containsFold(note.Title, query) || containsFold(note.Content, query) {
				filtered = append(filtered, note)
			}
		}
	}

	sortNotes(filtered, params.SortBy)

	total := len(filtered)
	totalPages := (total + params.PageSize - 1) / params.PageSize
	start := (params.Page - 1) * params.PageSize
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	return &SearchResult{
		Notes:       filtered[start:end],
		Total:       total,
		CurrentPage: params.Page,
		TotalPages:  totalPages,
	}, nil
}

func sortNotes(notes []*storage.NoteRecord, sortBy string) {
	switch sortBy {
	case SortUpdatedAsc:
		sort.SliceStable(notes, func(i, j int) bool {
			return notes[i].UpdatedAt.Before(notes[j].UpdatedAt)
		})
	case SortTitleAsc:
		sort.SliceStable(notes, func(i, j int) bool {
			return strings.ToLower(notes[i].Title) < strings.ToLower(notes[j].Title)
		})
	case SortTitleDesc:
		sort.SliceStable(notes, func(i, j int) bool {
			return strings.ToLower(notes[i].Title) > strings.ToLower(notes[j].Title)
		})
	default: // SortUpdatedDesc
		sort.SliceStable(notes, func(i, j int) bool {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		})
	}
}

// foldTransformer strips combining marks after NFD decomposition, so "Việt"
// and "Viet" compare equal.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// containsFold reports whether s contains substr ignoring case and diacritics.
func containsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}

func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
