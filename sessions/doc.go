// Package sessions defines the persistence abstraction for completed planning
// sessions. The streaming transport writes a Record after a stream reaches
// natural completion; the export surface reads Records back to render
// Markdown.
//
// Implementations
//
//	memstore    : in-memory LRU-bounded store for tests / single-process use
//	sqlitestore : SQLite-backed store for durable single-node deployments
//	redisstore  : Redis-backed store with TTL for horizontal scale
//
// Stores are write-whole / read-whole: a Record is always persisted and
// retrieved as a unit, so backends do not need partial-update semantics.
package sessions
