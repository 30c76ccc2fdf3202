package lending

import "sync"

// =============================================================================
// PER-BOOK SERIALIZATION
// =============================================================================

// bookLocks hands out one mutex per book. Every mutation of a book's
// inventory, borrows, or queue runs under that book's mutex, which is what
// makes tryReserveCopy an atomic check-and-decrement and keeps queue
// renumbering inside the same boundary as the cancellation that caused it.
//
// Locks are never removed; the map grows with the catalog, which is fine
// for the sizes this engine serves.
type bookLocks struct {
	mu    sync.Mutex
	locks map[BookID]*sync.Mutex
}

func newBookLocks() *bookLocks {
	return &bookLocks{locks: make(map[BookID]*sync.Mutex)}
}

// get returns the mutex for a book, creating it on first use.
func (bl *bookLocks) get(id BookID) *sync.Mutex {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	m, ok := bl.locks[id]
	if !ok {
		m = &sync.Mutex{}
		bl.locks[id] = m
	}
	return m
}
