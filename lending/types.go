/*
Package lending provides the core lending and reservation engine.

PURPOSE:
  This package contains the domain types and algorithms that track how
  many copies of a book exist and are available, admit or reject borrow
  and reservation requests, keep a fair reservation queue, and forecast
  future availability. It is the single owner of the copy-count
  invariants; nothing outside this package mutates inventory, borrows,
  or reservations.

KEY CONCEPTS IN THIS FILE (types.go):
  - BookInventory: per-book total and available copy counts
  - Borrow: a loan record with an ACTIVE -> RETURNED lifecycle
  - Reservation: a place in line for a book with a dense 1..N position
  - Typed identifiers: UserID, BookID, BorrowID, ReservationID

DESIGN PRINCIPLES:
  1. Invariants first: 0 <= availableCopies <= totalCopies, always
  2. Derived state: OVERDUE is computed from dates, never stored
  3. History preserved: cancellation and return are status transitions,
     records are never physically deleted
  4. Type safety: strong ID types prevent mixing user and book ids

SEE ALSO:
  - inventory.go: Atomic copy accounting
  - borrow.go: Borrow lifecycle operations
  - queue.go: Reservation queue ordering and promotion
  - forecast.go: Sweep-line availability forecasting
*/
package lending

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type BookID string
type BorrowID string
type ReservationID string

// =============================================================================
// BOOK INVENTORY - Copy accounting for a single title
// =============================================================================

// BookInventory tracks copy counts for one book. The catalog service owns
// title metadata; the engine owns only the counts.
//
// INVARIANT: 0 <= AvailableCopies <= TotalCopies at all times.
type BookInventory struct {
	BookID          BookID
	TotalCopies     uint
	AvailableCopies uint
}

// =============================================================================
// BORROW - A loan of one copy to one user
// =============================================================================

type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"

	// BorrowOverdue is a derived display status, never persisted. A borrow
	// is overdue when today is past the due date and it has not been
	// returned. See Borrow.EffectiveStatus.
	BorrowOverdue BorrowStatus = "overdue"
)

type Borrow struct {
	ID        BorrowID
	UserID    UserID
	BookID    BookID
	StartDate Date
	DueDate   Date

	// Set on return. Immutable afterwards.
	ReturnedDate *Date
	Status       BorrowStatus

	// Set when the borrow was created by promoting a reservation. The copy
	// is held until PickupDeadline; CollectedAt records the actual pickup.
	ReservationID  ReservationID
	PickupDeadline *Date
	CollectedAt    *Date

	CreatedAt time.Time
}

// EffectiveStatus returns the status to display as of the given day.
// OVERDUE is derived here rather than stored, so it can never go stale.
func (b *Borrow) EffectiveStatus(today Date) BorrowStatus {
	if b.Status == BorrowActive && today.After(b.DueDate) {
		return BorrowOverdue
	}
	return b.Status
}

// IsUncollectedHold reports whether this borrow came from a reservation
// promotion and the copy has not been picked up yet.
func (b *Borrow) IsUncollectedHold() bool {
	return b.Status == BorrowActive &&
		b.ReservationID != "" &&
		b.PickupDeadline != nil &&
		b.CollectedAt == nil
}

// =============================================================================
// RESERVATION - A place in line for a book
// =============================================================================

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationFulfilled ReservationStatus = "fulfilled"
)

type Reservation struct {
	ID     ReservationID
	UserID UserID
	BookID BookID

	// CreatedAt is a full timestamp: it breaks ties between reservations
	// in the same priority class.
	CreatedAt time.Time

	PickupWindowStart Date
	DurationDays      int

	Status ReservationStatus

	// Position is the dense 1-based rank among open (pending/confirmed)
	// reservations for the same book. Zero once the reservation leaves
	// the queue (cancelled or fulfilled).
	Position uint

	// PriorityClass is captured from the user's tier at enqueue time.
	// Higher values are served first.
	PriorityClass int

	// Set when the reservation is fulfilled: the copy is held for the user
	// until this day, after which the hold expires and the next position
	// is promoted.
	HoldExpiresAt *Date

	UpdatedAt time.Time
}

// IsOpen reports whether the reservation still occupies a queue position.
func (r *Reservation) IsOpen() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}
