package score

import (
	"context"
	"sort"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory Store implementation (for testing/dev)
// =============================================================================

type MemoryStore struct {
	mu          sync.RWMutex
	events      map[UserID][]Event
	idempotency map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:      make(map[UserID][]Event),
		idempotency: make(map[string]bool),
	}
}

func (m *MemoryStore) AppendEvent(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return ErrDuplicateIdempotencyKey
	}

	evs := m.events[e.UserID]
	i := sort.Search(len(evs), func(i int) bool {
		return evs[i].OccurredAt.After(e.OccurredAt)
	})
	evs = append(evs, Event{})
	copy(evs[i+1:], evs[i:])
	evs[i] = e
	m.events[e.UserID] = evs

	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
	return nil
}

func (m *MemoryStore) EventsByUser(_ context.Context, userID UserID) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Event, len(m.events[userID]))
	copy(result, m.events[userID])
	return result, nil
}

func (m *MemoryStore) EventExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}
