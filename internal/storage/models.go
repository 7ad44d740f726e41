package storage

import "time"

// NoteRecord represents a note row in the database.
// The ID doubles as the point ID in the vector index, so it is the join key
// between relational storage and semantic search.
type NoteRecord struct {
	ID        string // UUID
	OwnerID   string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edited reports whether the note has been modified after creation.
func (n *NoteRecord) Edited() bool {
	return n.UpdatedAt.After(n.CreatedAt)
}

// TitleEntry is the lightweight projection used for the chat overview.
type TitleEntry struct {
	Title     string
	CreatedAt time.Time
}
