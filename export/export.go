// Package export renders persisted planning sessions as Markdown documents.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gtplanner/planstream/sessions"
)

// headings holds the localized section titles used in rendered documents.
type headings struct {
	title        string
	overview     string
	result       string
	conversation string
	metadata     string
	emptyResult  string
}

var headingsByLanguage = map[string]headings{
	"en": {
		title:        "Planning Session",
		overview:     "Overview",
		result:       "Planning Result",
		conversation: "Conversation",
		metadata:     "Session Metadata",
		emptyResult:  "No planning result was recorded for this session.",
	},
	"zh": {
		title:        "规划会话",
		overview:     "概览",
		result:       "规划结果",
		conversation: "对话记录",
		metadata:     "会话元数据",
		emptyResult:  "该会话未记录规划结果。",
	},
}

// Exporter renders sessions from a store. The zero value is not usable; use
// New.
type Exporter struct {
	store    sessions.Store
	language string
}

// New creates an Exporter rendering in the given language. Unknown languages
// fall back to English headings.
func New(store sessions.Store, language string) *Exporter {
	return &Exporter{store: store, language: language}
}

func (e *Exporter) headings() headings {
	if h, ok := headingsByLanguage[e.language]; ok {
		return h
	}
	return headingsByLanguage["en"]
}

// ExportMarkdown renders the full Markdown document for a session, optionally
// including the dialogue transcript.
func (e *Exporter) ExportMarkdown(ctx context.Context, sessionID string, includeConversation bool) (string, error) {
	rec, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	h := e.headings()
	var b strings.Builder

	fmt.Fprintf(&b, "# %s: %s\n\n", h.title, rec.SessionID)

	fmt.Fprintf(&b, "## %s\n\n", h.overview)
	fmt.Fprintf(&b, "- **Session**: `%s`\n", rec.SessionID)
	if rec.Language != "" {
		fmt.Fprintf(&b, "- **Language**: %s\n", rec.Language)
	}
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Created**: %s\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Updated**: %s\n", rec.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", h.result)
	if len(rec.Result) == 0 {
		b.WriteString(h.emptyResult)
		b.WriteString("\n\n")
	} else {
		writeSortedMap(&b, rec.Result)
		b.WriteString("\n")
	}

	if len(rec.Metadata) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", h.metadata)
		writeSortedMap(&b, rec.Metadata)
		b.WriteString("\n")
	}

	if includeConversation && len(rec.Turns) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", h.conversation)
		for _, turn := range rec.Turns {
			fmt.Fprintf(&b, "**%s**: %s\n\n", turn.Role, turn.Text)
		}
	}

	return b.String(), nil
}

// Preview renders the document and truncates it to at most maxLength runes,
// appending an ellipsis when truncated.
func (e *Exporter) Preview(ctx context.Context, sessionID string, maxLength int) (string, error) {
	content, err := e.ExportMarkdown(ctx, sessionID, true)
	if err != nil {
		return "", err
	}
	if maxLength <= 0 {
		return content, nil
	}
	runes := []rune(content)
	if len(runes) <= maxLength {
		return content, nil
	}
	return string(runes[:maxLength]) + "...", nil
}

// writeSortedMap renders a map as a deterministic Markdown bullet list.
// Nested values are rendered as fenced JSON to keep the document readable.
func writeSortedMap(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			fmt.Fprintf(b, "- **%s**: %s\n", k, v)
		case nil:
			fmt.Fprintf(b, "- **%s**: (none)\n", k)
		case float64, int, int64, bool:
			fmt.Fprintf(b, "- **%s**: %v\n", k, v)
		default:
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				fmt.Fprintf(b, "- **%s**: %v\n", k, v)
				continue
			}
			fmt.Fprintf(b, "- **%s**:\n\n```json\n%s\n```\n", k, data)
		}
	}
}
