// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shelfline/lending-engine/lending"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	inventory    map[lending.BookID]lending.BookInventory
	borrows      map[lending.BorrowID]lending.Borrow
	reservations map[lending.ReservationID]lending.Reservation
}

func NewMemory() *Memory {
	return &Memory{
		inventory:    make(map[lending.BookID]lending.BookInventory),
		borrows:      make(map[lending.BorrowID]lending.Borrow),
		reservations: make(map[lending.ReservationID]lending.Reservation),
	}
}

// -----------------------------------------------------------------------------
// Inventory
// -----------------------------------------------------------------------------

func (m *Memory) GetInventory(_ context.Context, bookID lending.BookID) (*lending.BookInventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.inventory[bookID]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (m *Memory) SaveInventory(_ context.Context, inv lending.BookInventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory[inv.BookID] = inv
	return nil
}

func (m *Memory) ListInventory(_ context.Context) ([]lending.BookInventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]lending.BookInventory, 0, len(m.inventory))
	for _, inv := range m.inventory {
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BookID < result[j].BookID })
	return result, nil
}

// -----------------------------------------------------------------------------
// Borrows
// -----------------------------------------------------------------------------

func (m *Memory) SaveBorrow(_ context.Context, b lending.Borrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrows[b.ID] = b
	return nil
}

func (m *Memory) UpdateBorrow(_ context.Context, b lending.Borrow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrows[b.ID] = b
	return nil
}

func (m *Memory) GetBorrow(_ context.Context, id lending.BorrowID) (*lending.Borrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.borrows[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ActiveBorrowsByUser(_ context.Context, userID lending.UserID) ([]lending.Borrow, error) {
	return m.filterBorrows(func(b lending.Borrow) bool {
		return b.UserID == userID && b.Status == lending.BorrowActive
	}), nil
}

func (m *Memory) ActiveBorrowsByBook(_ context.Context, bookID lending.BookID) ([]lending.Borrow, error) {
	return m.filterBorrows(func(b lending.Borrow) bool {
		return b.BookID == bookID && b.Status == lending.BorrowActive
	}), nil
}

func (m *Memory) ActiveBorrowByUserAndBook(_ context.Context, userID lending.UserID, bookID lending.BookID) (*lending.Borrow, error) {
	matches := m.filterBorrows(func(b lending.Borrow) bool {
		return b.UserID == userID && b.BookID == bookID && b.Status == lending.BorrowActive
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (m *Memory) BorrowsByUser(_ context.Context, userID lending.UserID) ([]lending.Borrow, error) {
	result := m.filterBorrows(func(b lending.Borrow) bool { return b.UserID == userID })
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) UncollectedHolds(_ context.Context) ([]lending.Borrow, error) {
	return m.filterBorrows(func(b lending.Borrow) bool { return b.IsUncollectedHold() }), nil
}

func (m *Memory) BorrowsDueBetween(_ context.Context, from, to lending.Date) ([]lending.Borrow, error) {
	return m.filterBorrows(func(b lending.Borrow) bool {
		return b.Status == lending.BorrowActive &&
			b.DueDate.AfterOrEqual(from) && b.DueDate.BeforeOrEqual(to)
	}), nil
}

func (m *Memory) filterBorrows(keep func(lending.Borrow) bool) []lending.Borrow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []lending.Borrow
	for _, b := range m.borrows {
		if keep(b) {
			result = append(result, b)
		}
	}
	// Deterministic order for callers that iterate.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// -----------------------------------------------------------------------------
// Reservations
// -----------------------------------------------------------------------------

func (m *Memory) SaveReservation(_ context.Context, r lending.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
	return nil
}

func (m *Memory) UpdateReservation(_ context.Context, r lending.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
	return nil
}

func (m *Memory) GetReservation(_ context.Context, id lending.ReservationID) (*lending.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) OpenReservationsByBook(_ context.Context, bookID lending.BookID) ([]lending.Reservation, error) {
	result := m.filterReservations(func(r lending.Reservation) bool {
		return r.BookID == bookID && r.IsOpen()
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (m *Memory) OpenReservationByUserAndBook(_ context.Context, userID lending.UserID, bookID lending.BookID) (*lending.Reservation, error) {
	matches := m.filterReservations(func(r lending.Reservation) bool {
		return r.UserID == userID && r.BookID == bookID && r.IsOpen()
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

func (m *Memory) ReservationsByUser(_ context.Context, userID lending.UserID) ([]lending.Reservation, error) {
	result := m.filterReservations(func(r lending.Reservation) bool { return r.UserID == userID })
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) filterReservations(keep func(lending.Reservation) bool) []lending.Reservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []lending.Reservation
	for _, r := range m.reservations {
		if keep(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
