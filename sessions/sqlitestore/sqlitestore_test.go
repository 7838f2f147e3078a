package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtplanner/planstream/planner"
	"github.com/gtplanner/planstream/sessions"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := sessions.Record{
		SessionID: "s1",
		CreatedAt: now,
		UpdatedAt: now,
		Language:  "zh",
		Turns: []planner.Turn{
			{Role: "user", Text: "hi"},
			{Role: "assistant", Text: "hello"},
		},
		Metadata: map[string]any{"client": "web"},
		Result:   map[string]any{"summary": "done", "sessionId": "s1"},
	}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "zh", got.Language)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "assistant", got.Turns[1].Role)
	assert.Equal(t, "web", got.Metadata["client"])
	assert.Equal(t, "done", got.Result["summary"])
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sessions.Record{SessionID: "s1", Language: "en"}))
	require.NoError(t, s.Put(ctx, sessions.Record{SessionID: "s1", Language: "zh"}))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "zh", got.Language)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, sessions.Record{SessionID: "s1"}))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, sessions.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "s1"), sessions.ErrNotFound)
}
