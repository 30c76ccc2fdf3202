/*
errors.go - Centralized error types for the lending engine

PURPOSE:
  All domain errors in one place for consistency and discoverability.
  Callers (API layer, schedulers) match on the sentinels with errors.Is
  and render them deterministically; errors are returned as typed
  results, never panicked across the engine boundary.

ERROR CATEGORIES:
  1. Eligibility errors - borrow limit, bans, duplicates
  2. Capacity errors - no copy free, inventory shrink conflicts
  3. State errors - bad lifecycle transitions, missing records
  4. Integrity errors - broken invariants; these indicate a bug and are
     logged/alerted, never shown to end users as their fault

USAGE:
    if errors.Is(err, lending.ErrNoCopyAvailable) {
        // route the request to the reservation queue instead
    }

SEE ALSO:
  - inventory.go: IntegrityError on over-release
  - borrow.go: BorrowLimitError, BannedError
*/
package lending

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotEligible is returned when the user may not borrow or reserve:
	// over the tier borrow limit, banned, or over the renewal cap.
	ErrNotEligible = errors.New("user not eligible")

	// ErrDuplicateActiveBorrow is returned when the user already holds an
	// active borrow for the same book. This check doubles as the
	// double-submission guard; no idempotency keys are needed for borrows.
	ErrDuplicateActiveBorrow = errors.New("duplicate active borrow for book")

	// ErrDuplicateReservation is returned when the user already has an open
	// reservation for the same book.
	ErrDuplicateReservation = errors.New("duplicate reservation for book")

	// ErrNoCopyAvailable is returned when no copy is free right now.
	// The caller should offer the reservation queue.
	ErrNoCopyAvailable = errors.New("no copy available")

	// ErrInsufficientAvailableCopies is returned when shrinking total
	// copies below the number currently out on loan.
	ErrInsufficientAvailableCopies = errors.New("insufficient available copies")

	// ErrNotFound is returned when a borrow, reservation, or book id does
	// not resolve to a record.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidStateTransition is returned for operations against a record
	// in the wrong lifecycle state (e.g. returning an already-returned
	// borrow, cancelling a fulfilled reservation).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrIntegrityViolation signals a broken invariant, such as a release
	// that would push availableCopies past totalCopies. It indicates a bug
	// elsewhere and should trigger an alert, not a user-facing message.
	ErrIntegrityViolation = errors.New("inventory integrity violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BorrowLimitError reports that the user is at or above the tier's limit
// of concurrent active borrows.
type BorrowLimitError struct {
	UserID UserID
	Limit  int
	Active int
}

func (e *BorrowLimitError) Error() string {
	return fmt.Sprintf("borrow limit reached for %s: %d active of %d allowed", e.UserID, e.Active, e.Limit)
}

func (e *BorrowLimitError) Unwrap() error { return ErrNotEligible }

// BannedError reports that the identity service flags the user as banned.
type BannedError struct {
	UserID UserID
}

func (e *BannedError) Error() string {
	return fmt.Sprintf("user %s is banned from borrowing", e.UserID)
}

func (e *BannedError) Unwrap() error { return ErrNotEligible }

// RenewalLimitError reports that a renewal would push the due date past
// the tier's maximum duration measured from the original start date.
type RenewalLimitError struct {
	BorrowID BorrowID
	MaxDays  int
}

func (e *RenewalLimitError) Error() string {
	return fmt.Sprintf("renewal of %s exceeds the %d day maximum from start date", e.BorrowID, e.MaxDays)
}

func (e *RenewalLimitError) Unwrap() error { return ErrNotEligible }

// IntegrityError provides details about an inventory invariant violation.
type IntegrityError struct {
	BookID    BookID
	Op        string
	Available uint
	Total     uint
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s during %s: available=%d total=%d",
		e.BookID, e.Op, e.Available, e.Total)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's fault and safe
// to surface as a 4xx-style result.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrDuplicateActiveBorrow) ||
		errors.Is(err, ErrDuplicateReservation) ||
		errors.Is(err, ErrNoCopyAvailable) ||
		errors.Is(err, ErrInsufficientAvailableCopies) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrityViolation returns true for broken-invariant errors that
// should page someone rather than reach an end user.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}
