// Package prompt assembles retrieval context, web context, and windowed
// conversation history into one bounded prompt. Build is a pure function:
// identical inputs always render byte-identical output.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopquery/backend/internal/model/conversation"
	"github.com/shopquery/backend/internal/model/product"
)

// SystemInstructions is the fixed preamble for every assembled prompt.
const SystemInstructions = `You are an expert assistant with access to a product database and web search results.

IMPORTANT INSTRUCTIONS:
- Always review the conversation history before responding
- When the user asks follow-up questions like "which one" or "from those you mentioned", refer back to your previous responses
- If you mentioned specific products earlier, reference them directly
- Use information from the product database, web search, AND previous conversation
- Be consistent with what you said before`

// DefaultSizeLimit bounds the rendered prompt when the caller passes no
// explicit limit.
const DefaultSizeLimit = 12000

// Prompt is the assembled, ordered model input. History holds the prior
// turns that survived truncation, oldest first; UserText is always last.
type Prompt struct {
	System       string
	ProductBlock string
	WebBlock     string
	History      []conversation.Turn
	UserText     string
}

// Build merges retrieval output, the web snippet, and prior turns into a
// Prompt within sizeLimit. Items render in the order received; relevance
// ranking is the retriever's job. When the rendered prompt exceeds the
// limit, the oldest history turns are dropped first; the system block,
// both context blocks, and the new user turn are never dropped.
func Build(userText string, items []product.RetrievedItem, webSnippet string, history []conversation.Turn, sizeLimit int) Prompt {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}

	p := Prompt{
		System:       SystemInstructions,
		ProductBlock: renderItems(items),
		WebBlock:     strings.TrimSpace(webSnippet),
		History:      append([]conversation.Turn(nil), history...),
		UserText:     userText,
	}

	for p.Size() > sizeLimit && len(p.History) > 0 {
		p.History = p.History[1:]
	}
	return p
}

// SystemContext combines the fixed instructions with both context blocks,
// the form chat-style backends send as their system message.
func (p Prompt) SystemContext() string {
	var b strings.Builder
	b.WriteString(p.System)
	b.WriteString("\n\nProduct Information:\n")
	b.WriteString(p.ProductBlock)
	b.WriteString("\n\nWeb Search Results:\n")
	b.WriteString(p.WebBlock)
	return b.String()
}

// Render serializes the prompt into the flat text form sent to backends
// that take a single string.
func (p Prompt) Render() string {
	var b strings.Builder
	b.WriteString(p.SystemContext())
	b.WriteString("\n\n")
	for _, turn := range p.History {
		switch turn.Role {
		case conversation.RoleUser:
			b.WriteString("User: ")
		case conversation.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString("User Question: ")
	b.WriteString(p.UserText)
	b.WriteString("\nAnswer:")
	return b.String()
}

// Size is the rendered prompt length in runes, the unit the size ceiling
// is configured in.
func (p Prompt) Size() int {
	return utf8.RuneCountInString(p.Render())
}

// renderItems formats retrieval hits one per line, preserving order.
func renderItems(items []product.RetrievedItem) string {
	if len(items) == 0 {
		return "(no product matches)"
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", item.Name, item.Category, item.Chunk))
	}
	return strings.Join(lines, "\n")
}
