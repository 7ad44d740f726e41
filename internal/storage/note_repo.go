package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_store.go -package=mocks notably-ai/internal/storage NoteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// NoteStore defines the interface for note storage operations.
type NoteStore interface {
	// Create inserts a new note, generating its ID and timestamps.
	Create(ctx context.Context, note *NoteRecord) error
	// GetByID gets a note by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*NoteRecord, error)
	// GetByIDs gets notes by their IDs. Unknown IDs are silently omitted.
	GetByIDs(ctx context.Context, ids []string) ([]*NoteRecord, error)
	// ListByOwner lists all notes of an owner, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*NoteRecord, error)
	// TitlesByOwner lists titles and creation dates of all notes of an owner, newest first.
	TitlesByOwner(ctx context.Context, ownerID string) ([]TitleEntry, error)
	// CountByOwner counts the notes of an owner.
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	// Update persists title and content changes, bumping updated_at.
	Update(ctx context.Context, note *NoteRecord) error
	// Delete removes a note by ID. Returns ErrNotFound if not found.
	Delete(ctx context.Context, id string) error
	// ListUpdatedSince lists notes with updated_at at or after the given time.
	ListUpdatedSince(ctx context.Context, since time.Time) ([]*NoteRecord, error)
	// Count counts all notes.
	Count(ctx context.Context) (int, error)
}

// NoteRepo provides methods for note operations.
// It implements the NoteStore interface.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

const noteColumns = "id, owner_id, title, content, created_at, updated_at"

// Create inserts a new note. A missing ID is generated; timestamps are set to now.
func (r *NoteRepo) Create(ctx context.Context, note *NoteRecord) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID, note.OwnerID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// GetByID gets a note by ID. Returns ErrNotFound if not found.
func (r *NoteRepo) GetByID(ctx context.Context, id string) (*NoteRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

// GetByIDs gets notes by their IDs. IDs not present in the table are silently
// omitted from the result; the vector index may reference stale entries.
func (r *NoteRepo) GetByIDs(ctx context.Context, ids []string) ([]*NoteRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes by ids: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectNotes(rows)
}

// ListByOwner lists all notes of an owner, newest first.
func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]*NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectNotes(rows)
}

// TitlesByOwner lists titles and creation dates of all notes of an owner, newest first.
func (r *NoteRepo) TitlesByOwner(ctx context.Context, ownerID string) ([]TitleEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, created_at FROM notes WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list note titles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var titles []TitleEntry
	for rows.Next() {
		var entry TitleEntry
		if err := rows.Scan(&entry.Title, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan title row: %w", err)
		}
		titles = append(titles, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate title rows: %w", err)
	}
	return titles, nil
}

// CountByOwner counts the notes of an owner.
func (r *NoteRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// Update persists title and content changes, bumping updated_at.
// Returns ErrNotFound if the note does not exist.
func (r *NoteRepo) Update(ctx context.Context, note *NoteRecord) error {
	note.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		note.Title, note.Content, note.UpdatedAt, note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a note by ID. Returns ErrNotFound if not found.
func (r *NoteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUpdatedSince lists notes with updated_at at or after the given time.
func (r *NoteRepo) ListUpdatedSince(ctx context.Context, since time.Time) ([]*NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE updated_at >= ? ORDER BY updated_at DESC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list recently updated notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectNotes(rows)
}

// Count counts all notes.
func (r *NoteRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*NoteRecord, error) {
	var note NoteRecord
	err := row.Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func collectNotes(rows *sql.Rows) ([]*NoteRecord, error) {
	var notes []*NoteRecord
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate note rows: %w", err)
	}
	return notes, nil
}
