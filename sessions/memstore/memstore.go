// Package memstore provides an in-memory implementation of sessions.Store
// bounded by an LRU cache. It is suitable for tests and single-process
// deployments where session history may be evicted under memory pressure.
package memstore

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gtplanner/planstream/sessions"
)

// DefaultMaxSessions bounds the cache when no explicit size is given.
const DefaultMaxSessions = 1024

// Store implements sessions.Store backed by an LRU cache.
type Store struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, sessions.Record]
}

var _ sessions.Store = (*Store)(nil)

// New creates a memory store holding at most maxSessions records. A
// non-positive maxSessions falls back to DefaultMaxSessions.
func New(maxSessions int) (*Store, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	cache, err := lru.New[string, sessions.Record](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

func (s *Store) Put(ctx context.Context, rec sessions.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(rec.SessionID, rec)
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*sessions.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.mu.RLock()
	rec, ok := s.cache.Get(sessionID)
	s.mu.RUnlock()
	if !ok {
		return nil, sessions.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cache.Remove(sessionID) {
		return sessions.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	return nil
}
