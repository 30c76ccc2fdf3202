/*
store.go - Persistence interfaces for the lending engine

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; the engine's
  serialization (per-book locks) sits above these interfaces, so store
  implementations only need plain reads and writes.

KEY INTERFACES:
  InventoryStore:   Copy counts per book
  BorrowStore:      Loan records
  ReservationStore: Queue entries
  Store:            All of the above (what Service consumes)

LIFECYCLE CONTRACT:
  Borrow and Reservation records are never deleted. Cancellation and
  return are status updates; full history stays queryable for the score
  ledger and audit.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - lending/store: In-memory store for testing

SEE ALSO:
  - service.go: Orchestration above these interfaces
  - store/sqlite/sqlite.go: Concrete implementation
*/
package lending

import "context"

// =============================================================================
// INVENTORY STORE
// =============================================================================

// InventoryStore persists per-book copy counts.
type InventoryStore interface {
	// GetInventory returns the inventory row, or nil if the book is unknown.
	GetInventory(ctx context.Context, bookID BookID) (*BookInventory, error)

	// SaveInventory upserts the inventory row.
	SaveInventory(ctx context.Context, inv BookInventory) error

	// ListInventory returns all inventory rows.
	ListInventory(ctx context.Context) ([]BookInventory, error)
}

// =============================================================================
// BORROW STORE
// =============================================================================

// BorrowStore persists loan records. Records are inserted once and
// updated through status transitions only.
type BorrowStore interface {
	SaveBorrow(ctx context.Context, b Borrow) error
	UpdateBorrow(ctx context.Context, b Borrow) error

	// GetBorrow returns the borrow, or nil if unknown.
	GetBorrow(ctx context.Context, id BorrowID) (*Borrow, error)

	// ActiveBorrowsByUser returns the user's ACTIVE borrows across all books.
	ActiveBorrowsByUser(ctx context.Context, userID UserID) ([]Borrow, error)

	// ActiveBorrowsByBook returns all ACTIVE borrows of one book.
	ActiveBorrowsByBook(ctx context.Context, bookID BookID) ([]Borrow, error)

	// ActiveBorrowByUserAndBook returns the user's ACTIVE borrow of the
	// book, or nil. Used for the duplicate-borrow check.
	ActiveBorrowByUserAndBook(ctx context.Context, userID UserID, bookID BookID) (*Borrow, error)

	// BorrowsByUser returns all of the user's borrows, newest first.
	BorrowsByUser(ctx context.Context, userID UserID) ([]Borrow, error)

	// UncollectedHolds returns ACTIVE borrows created by reservation
	// promotion whose copy has not been picked up. Fed to the lazy
	// grace-window sweep.
	UncollectedHolds(ctx context.Context) ([]Borrow, error)

	// BorrowsDueBetween returns ACTIVE borrows with a due date in
	// [from, to]. Fed to the due-soon notification scan.
	BorrowsDueBetween(ctx context.Context, from, to Date) ([]Borrow, error)
}

// =============================================================================
// RESERVATION STORE
// =============================================================================

// ReservationStore persists queue entries.
type ReservationStore interface {
	SaveReservation(ctx context.Context, r Reservation) error
	UpdateReservation(ctx context.Context, r Reservation) error

	// GetReservation returns the reservation, or nil if unknown.
	GetReservation(ctx context.Context, id ReservationID) (*Reservation, error)

	// OpenReservationsByBook returns pending and confirmed reservations for
	// the book ordered by ascending position.
	OpenReservationsByBook(ctx context.Context, bookID BookID) ([]Reservation, error)

	// OpenReservationByUserAndBook returns the user's open reservation for
	// the book, or nil. Used for the duplicate-reservation check.
	OpenReservationByUserAndBook(ctx context.Context, userID UserID, bookID BookID) (*Reservation, error)

	// ReservationsByUser returns all of the user's reservations, newest first.
	ReservationsByUser(ctx context.Context, userID UserID) ([]Reservation, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface the Service consumes.
type Store interface {
	InventoryStore
	BorrowStore
	ReservationStore
}
