package chat

import (
	"strings"

	"notably-ai/internal/llm"
)

// historyLimit caps how many trailing turns feed context building.
// Older turns are dropped, not summarized.
const historyLimit = 6

// TruncateTranscript returns the trailing turns of a transcript, at most
// historyLimit of them, preserving order.
func TruncateTranscript(turns []Turn) []Turn {
	if len(turns) <= historyLimit {
		return turns
	}
	return turns[len(turns)-historyLimit:]
}

// EmbeddingText joins the truncated turns' content with newlines; this is the
// single text embedded per chat request.
func EmbeddingText(turns []Turn) string {
	contents := make([]string, len(turns))
	for i, turn := range turns {
		contents[i] = turn.Content
	}
	return strings.Join(contents, "\n")
}

// ToModelMessages converts transcript turns to the model's role vocabulary.
// Assistant turns keep their role; everything else (including system turns
// injected by the UI) is sent as a user message.
func ToModelMessages(turns []Turn) []llm.Message {
	messages := make([]llm.Message, len(turns))
	for i, turn := range turns {
		role := RoleUser
		if turn.Role == RoleAssistant {
			role = RoleAssistant
		}
		messages[i] = llm.Message{Role: role, Content: turn.Content}
	}
	return messages
}

// SanitizeHistory normalizes a converted transcript into the strict history
// shape chat APIs require: the final turn is excluded (it is sent separately
// as the new message) and the remainder must start with a user message.
// Transcripts opening with an assistant greeting are trimmed to the first
// user turn; a history with no user turn at all becomes empty.
func SanitizeHistory(messages []llm.Message) []llm.Message {
	if len(messages) == 0 {
		return nil
	}
	history := messages[:len(messages)-1]

	if len(history) > 0 && history[0].Role != RoleUser {
		firstUser := -1
		for i, msg := range history {
			if msg.Role == RoleUser {
				firstUser = i
				break
			}
		}
		if firstUser == -1 {
			return []llm.Message{}
		}
		history = history[firstUser:]
	}

	return history
}
