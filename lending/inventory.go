/*
inventory.go - Atomic copy accounting per book

PURPOSE:
  The InventoryLedger is the single source of truth for "is a copy free
  right now". It owns the invariant 0 <= availableCopies <= totalCopies
  and is the only code that decrements or increments the counts.

CRITICAL INVARIANTS:
  1. tryReserveCopy is a single atomic check-and-decrement. A naive
     read-then-write lets availableCopies go negative when N borrowers
     race for the last copy.
  2. releaseCopy never pushes availableCopies past totalCopies. A release
     beyond the cap is a data-integrity error: logged and rejected, never
     silently clamped.
  3. Shrinking totalCopies cannot revoke copies that are out on loan.

CONCURRENCY:
  All operations on one book serialize on that book's mutex (locks.go).
  Exported methods take the lock themselves; the *Locked variants assume
  the caller (the Service, composing multi-step flows) already holds it.

SEE ALSO:
  - locks.go: The per-book mutex table
  - service.go: Composite flows that hold the lock across steps
*/
package lending

import (
	"context"
	"fmt"
	"log"
)

// InventoryLedger performs atomic copy accounting against an InventoryStore.
type InventoryLedger struct {
	store InventoryStore
	locks *bookLocks
}

// NewInventoryLedger creates a standalone ledger with its own lock table.
// When used inside a Service the ledger shares the Service's lock table
// instead, so all mutations of a book serialize together.
func NewInventoryLedger(store InventoryStore) *InventoryLedger {
	return &InventoryLedger{store: store, locks: newBookLocks()}
}

// RegisterBook creates or resets the inventory row for a book with all
// copies available.
func (l *InventoryLedger) RegisterBook(ctx context.Context, bookID BookID, totalCopies uint) error {
	mu := l.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	return l.store.SaveInventory(ctx, BookInventory{
		BookID:          bookID,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	})
}

// Inventory returns the current counts for a book.
func (l *InventoryLedger) Inventory(ctx context.Context, bookID BookID) (*BookInventory, error) {
	inv, err := l.store.GetInventory(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	return inv, nil
}

// TryReserveCopy atomically claims a copy if one is free. Returns whether
// a copy was claimed.
func (l *InventoryLedger) TryReserveCopy(ctx context.Context, bookID BookID) (bool, error) {
	mu := l.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	return l.tryReserveCopyLocked(ctx, bookID)
}

// ReleaseCopy returns a claimed copy to the pool.
func (l *InventoryLedger) ReleaseCopy(ctx context.Context, bookID BookID) error {
	mu := l.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	return l.releaseCopyLocked(ctx, bookID)
}

// ChangeTotalCopies adjusts the total copy count. Increases add the same
// number of available copies. Decreases fail with
// ErrInsufficientAvailableCopies when fewer free copies exist than the
// shrink requires: copies in active borrows cannot be revoked.
func (l *InventoryLedger) ChangeTotalCopies(ctx context.Context, bookID BookID, delta int) error {
	mu := l.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	return l.changeTotalCopiesLocked(ctx, bookID, delta)
}

// =============================================================================
// LOCKED VARIANTS - Caller holds the book mutex
// =============================================================================

func (l *InventoryLedger) changeTotalCopiesLocked(ctx context.Context, bookID BookID, delta int) error {
	inv, err := l.Inventory(ctx, bookID)
	if err != nil {
		return err
	}

	if delta >= 0 {
		inv.TotalCopies += uint(delta)
		inv.AvailableCopies += uint(delta)
		return l.store.SaveInventory(ctx, *inv)
	}

	shrink := uint(-delta)
	if inv.AvailableCopies < shrink || inv.TotalCopies < shrink {
		return fmt.Errorf("cannot remove %d copies of %s (%d available): %w",
			shrink, bookID, inv.AvailableCopies, ErrInsufficientAvailableCopies)
	}
	inv.TotalCopies -= shrink
	inv.AvailableCopies -= shrink
	return l.store.SaveInventory(ctx, *inv)
}

func (l *InventoryLedger) tryReserveCopyLocked(ctx context.Context, bookID BookID) (bool, error) {
	inv, err := l.Inventory(ctx, bookID)
	if err != nil {
		return false, err
	}
	if inv.AvailableCopies == 0 {
		return false, nil
	}
	inv.AvailableCopies--
	if err := l.store.SaveInventory(ctx, *inv); err != nil {
		return false, err
	}
	return true, nil
}

func (l *InventoryLedger) releaseCopyLocked(ctx context.Context, bookID BookID) error {
	inv, err := l.Inventory(ctx, bookID)
	if err != nil {
		return err
	}
	if inv.AvailableCopies >= inv.TotalCopies {
		ierr := &IntegrityError{
			BookID:    bookID,
			Op:        "release",
			Available: inv.AvailableCopies,
			Total:     inv.TotalCopies,
		}
		log.Printf("[Inventory] ALERT: %v", ierr)
		return ierr
	}
	inv.AvailableCopies++
	return l.store.SaveInventory(ctx, *inv)
}
