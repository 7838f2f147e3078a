package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtplanner/planstream/planner"
	"github.com/gtplanner/planstream/sessions"
	"github.com/gtplanner/planstream/sessions/memstore"
)

func seedStore(t *testing.T) sessions.Store {
	t.Helper()
	store, err := memstore.New(0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Put(context.Background(), sessions.Record{
		SessionID: "s1",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 5, 5, 0, time.UTC),
		Language:  "en",
		Turns: []planner.Turn{
			{Role: "user", Text: "plan a blog platform"},
			{Role: "assistant", Text: "sure"},
		},
		Metadata: map[string]any{"client": "web"},
		Result: map[string]any{
			"summary": "three milestones",
			"steps":   []any{"requirements", "design", "build"},
		},
	}))
	return store
}

func TestExportMarkdown(t *testing.T) {
	store := seedStore(t)
	e := New(store, "en")

	content, err := e.ExportMarkdown(context.Background(), "s1", true)
	require.NoError(t, err)

	assert.Contains(t, content, "# Planning Session: s1")
	assert.Contains(t, content, "## Planning Result")
	assert.Contains(t, content, "three milestones")
	assert.Contains(t, content, "**user**: plan a blog platform")
	assert.Contains(t, content, "2026-01-02 03:04:05 UTC")
}

func TestExportWithoutConversation(t *testing.T) {
	store := seedStore(t)
	e := New(store, "en")

	content, err := e.ExportMarkdown(context.Background(), "s1", false)
	require.NoError(t, err)

	assert.NotContains(t, content, "## Conversation")
	assert.NotContains(t, content, "plan a blog platform")
}

func TestExportLocalizedHeadings(t *testing.T) {
	store := seedStore(t)

	content, err := New(store, "zh").ExportMarkdown(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.Contains(t, content, "## 规划结果")
	assert.Contains(t, content, "## 对话记录")

	// Unknown language falls back to English headings.
	content, err = New(store, "fr").ExportMarkdown(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.Contains(t, content, "## Planning Result")
}

func TestExportMissingSession(t *testing.T) {
	store := seedStore(t)

	_, err := New(store, "en").ExportMarkdown(context.Background(), "nope", true)
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestPreviewTruncates(t *testing.T) {
	store := seedStore(t)
	e := New(store, "en")

	full, err := e.Preview(context.Background(), "s1", 0)
	require.NoError(t, err)

	preview, err := e.Preview(context.Background(), "s1", 24)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Equal(t, string([]rune(full)[:24]), strings.TrimSuffix(preview, "..."))
}
