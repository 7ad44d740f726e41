package chat

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_clients.go -package=mocks notably-ai/internal/chat Embedder,ChatModel

import (
	"context"
	"time"

	"notably-ai/internal/llm"
	"notably-ai/internal/storage"
)

// Chat roles as they appear in inbound transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is a single entry of a chat transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrialNote is a client-held note supplied inline by anonymous sessions.
type TrialNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Overview is the unfiltered summary of all of a user's notes, used for
// counting-style questions.
type Overview struct {
	TotalCount int
	Titles     []storage.TitleEntry
}

// RelevantNote is a semantically matched note used for content grounding.
type RelevantNote struct {
	ID      string
	Title   string
	Content string
}

// Context is the assembled grounding material for one chat request.
type Context struct {
	Overview Overview
	Relevant []RelevantNote
}

// Embedder turns text into a fixed-length vector.
// This interface is defined from the chat layer's perspective (consumer-first).
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChatModel streams a generated reply for a conversation.
type ChatModel interface {
	StreamChatWithHistory(ctx context.Context, history []llm.Message, message string, callback func(chunk string) error) error
}
