// Package storage persists behavioral events and the action audit log.
//
// Two interchangeable backends implement Store: an in-process volatile map
// (MemoryStore) and an embedded SQLite database (SQLiteStore). The backend is
// chosen once at startup from configuration; callers depend only on the
// interfaces here.
package storage

import (
	"context"
	"time"
)

// Store is the contract shared by all backends. Mutating calls are safe under
// concurrency for the same or different users; reads never observe a
// partially written record.
type Store interface {
	// AddEvent appends an event to the user's partition. A missing EventID is
	// assigned a fresh UUID. A duplicate (user_id, event_id) is dropped
	// silently: idempotent ingestion is a no-op, not an error.
	AddEvent(ctx context.Context, userID string, ev Event) error

	// Events returns the user's history ordered by timestamp ascending.
	// A non-nil since restricts the result to events at or after it.
	Events(ctx context.Context, userID string, since *time.Time) ([]Event, error)

	// AddAction appends a decision record to the user's audit log.
	AddAction(ctx context.Context, userID string, rec ActionRecord) error

	// Actions returns the user's audit log in insertion order.
	Actions(ctx context.Context, userID string) ([]ActionRecord, error)

	// AllActions returns audit records across every known user, for
	// cross-user weight training.
	AllActions(ctx context.Context) ([]ActionRecord, error)

	Close() error
}

// Pruner is an optional capability: backends that support retention pruning
// implement it. Prune deletes records older than the retention window and is
// idempotent.
type Pruner interface {
	Prune(ctx context.Context) (PruneStats, error)
}
