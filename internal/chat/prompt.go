package chat

import (
	"fmt"
	"strings"
)

// Persona selects the tone of the system prompt. This is a product decision,
// not a technical constraint, so it is configurable.
type Persona string

const (
	// PersonaNeutral is a plain, factual assistant voice.
	PersonaNeutral Persona = "neutral"
	// PersonaFriend is a warm, encouraging voice.
	PersonaFriend Persona = "friend"
)

const neutralOpening = "You are an assistant that helps the user understand and work with their notes."

const friendOpening = "You are a supportive AI friend who helps the user understand their notes and make progress."

// BuildSystemPrompt renders the grounding context into a single system-context
// string. The output is deterministic given its inputs: the overview section
// carries the exact total count and every title in repository order, and the
// relevant-notes section carries title/content pairs separated by blank lines.
func BuildSystemPrompt(overview Overview, relevant []RelevantNote, persona Persona) string {
	opening := neutralOpening
	if persona == PersonaFriend {
		opening = friendOpening
	}

	titles := make([]string, len(overview.Titles))
	for i, entry := range overview.Titles {
		titles[i] = entry.Title
	}

	noteBlocks := make([]string, len(relevant))
	for i, note := range relevant {
		noteBlocks[i] = fmt.Sprintf("Title: %s\n\nContent:\n%s", note.Title, note.Content)
	}

	var b strings.Builder
	b.WriteString(opening)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "OVERVIEW: The user has %d notes in total.\n", overview.TotalCount)
	fmt.Fprintf(&b, "All note titles: %s\n\n", strings.Join(titles, ", "))
	b.WriteString("RELEVANT NOTES (semantically matched to this query):\n")
	b.WriteString(strings.Join(noteBlocks, "\n\n"))
	b.WriteString("\n\nGuidelines:\n")
	b.WriteString("- Use the overview when the user asks how many notes they have or what notes exist\n")
	b.WriteString("- Use the relevant notes when the user asks about note content\n")
	if persona == PersonaFriend {
		b.WriteString("- Be warm, encouraging, and helpful\n")
		b.WriteString("- Suggest next steps when relevant\n")
	} else {
		b.WriteString("- Answer clearly and concisely using the notes as context\n")
	}
	b.WriteString("- Always respond in the same language as the user's question")

	return b.String()
}
