// Package mdtext extracts plain text from markdown so embedding input is not
// polluted by formatting syntax.
package mdtext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var parser = goldmark.New()

// Plain parses markdown and returns its text content with block boundaries
// collapsed to single newlines. Plain markdown-free input passes through
// unchanged apart from whitespace normalization.
func Plain(md string) string {
	if md == "" {
		return ""
	}

	content := []byte(md)
	doc := parser.Parser().Parse(text.NewReader(content))

	var builder strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Separate block-level nodes so paragraphs don't run together.
			// Nested blocks (list items and their text blocks) would otherwise
			// both emit a separator, so only add one after actual content.
			if node.Type() == ast.TypeBlock && builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
				builder.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			builder.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				builder.WriteByte('\n')
			}
		case *ast.String:
			builder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(builder.String())
}
