package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gtplanner/planstream/planner"
)

// ErrNotFound is returned by Store.Get and Store.Delete when no record exists
// for the requested session id.
var ErrNotFound = errors.New("session not found")

// Record is the persisted outcome of one completed planning session.
type Record struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Language  string         `json:"language,omitempty"`
	Turns     []planner.Turn `json:"turns,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
}

// Store persists session records. Put overwrites any existing record with the
// same session id.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, sessionID string) (*Record, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
