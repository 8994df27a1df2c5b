package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps events and actions in per-user slices guarded by a single
// coarse lock. State is lost on restart; intended for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string][]Event
	eventIDs  map[string]map[string]struct{}
	actions   map[string][]ActionRecord
	userOrder []string // insertion order of users, for deterministic AllActions

	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates an empty volatile store with the given retention
// window. A retention of 0 falls back to 30 days.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &MemoryStore{
		events:    make(map[string][]Event),
		eventIDs:  make(map[string]map[string]struct{}),
		actions:   make(map[string][]ActionRecord),
		retention: retention,
		now:       time.Now,
	}
}

func (m *MemoryStore) AddEvent(_ context.Context, userID string, ev Event) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	ev.UserID = userID

	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.eventIDs[userID]
	if !ok {
		ids = make(map[string]struct{})
		m.eventIDs[userID] = ids
	}
	if _, dup := ids[ev.EventID]; dup {
		return nil
	}
	ids[ev.EventID] = struct{}{}
	m.events[userID] = append(m.events[userID], ev)
	return nil
}

func (m *MemoryStore) Events(_ context.Context, userID string, since *time.Time) ([]Event, error) {
	m.mu.RLock()
	stored := m.events[userID]
	out := make([]Event, 0, len(stored))
	for _, ev := range stored {
		if since != nil && ev.Timestamp.Before(*since) {
			continue
		}
		out = append(out, ev)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryStore) AddAction(_ context.Context, userID string, rec ActionRecord) error {
	rec.UserID = userID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[userID]; !ok {
		m.userOrder = append(m.userOrder, userID)
	}
	m.actions[userID] = append(m.actions[userID], rec)
	return nil
}

func (m *MemoryStore) Actions(_ context.Context, userID string) ([]ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ActionRecord, len(m.actions[userID]))
	copy(out, m.actions[userID])
	return out, nil
}

func (m *MemoryStore) AllActions(_ context.Context) ([]ActionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ActionRecord
	for _, userID := range m.userOrder {
		out = append(out, m.actions[userID]...)
	}
	return out, nil
}

// Prune drops events older than the retention window. Audit records are kept:
// the volatile backend holds no long-lived history worth trimming.
func (m *MemoryStore) Prune(_ context.Context) (PruneStats, error) {
	cutoff := m.now().UTC().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	var stats PruneStats
	for userID, events := range m.events {
		kept := events[:0]
		for _, ev := range events {
			if ev.Timestamp.Before(cutoff) {
				stats.Events++
				delete(m.eventIDs[userID], ev.EventID)
				continue
			}
			kept = append(kept, ev)
		}
		m.events[userID] = kept
	}
	return stats, nil
}

func (m *MemoryStore) Close() error { return nil }
