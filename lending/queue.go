/*
queue.go - Reservation queue

PURPOSE:
  Orders pending requests for a book when no copy is free (or a user
  prefers to queue), supports cancellation with dense renumbering, and
  promotes the head of the line when a copy frees up.

ORDERING:
  Position is a dense 1-based rank among open reservations for the book,
  ordered by (tier priority class descending, createdAt ascending).
  A higher-priority tier inserts ahead of lower-priority older
  reservations; ties go to the earlier createdAt. Cancellation decrements
  every higher position by one, so positions always form a contiguous
  1..N with no gaps.

PROMOTION:
  When a copy frees up the head reservation is fulfilled: the copy is
  claimed and held for a grace window, and a borrow record is created
  bypassing the availability check (the claim already happened). If the
  user never collects, the lazy expiry sweep releases the copy, cancels
  the reservation with the no-show penalty, and promotes the next one.

CONCURRENCY:
  Every mutation here runs under the book's mutex, the same one the
  Inventory Ledger and Borrow Lifecycle use. Renumbering happens inside
  the cancellation's critical section; concurrent cancels cannot produce
  duplicate or skipped positions.
*/
package lending

import (
	"context"
	"fmt"

	"github.com/shelfline/lending-engine/score"
)

// Reserve places the user in line for a book. No inventory check runs
// and no copy is claimed: a reservation is a place in line, not a hold.
// The pickup date is pushed forward to the tier's minimum advance notice
// when needed, mirroring how borrow durations are clamped, not rejected.
func (s *Service) Reserve(ctx context.Context, userID UserID, bookID BookID, pickupStart Date, durationDays int) (*Reservation, error) {
	if s.Identity != nil {
		banned, err := s.Identity.IsBanned(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ban check: %w", err)
		}
		if banned {
			return nil, &BannedError{UserID: userID}
		}
	}

	if _, err := s.inv.Inventory(ctx, bookID); err != nil {
		return nil, err
	}

	tier, err := s.TierFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.clock()
	earliest := today.AddDays(tier.PickupAdvanceDays)
	if pickupStart.Before(earliest) {
		pickupStart = earliest
	}
	if durationDays < 1 {
		durationDays = 1
	}
	if durationDays > tier.MaxBorrowDurationDays {
		durationDays = tier.MaxBorrowDurationDays
	}

	mu := s.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.Store.OpenReservationByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s, book %s: %w", userID, bookID, ErrDuplicateReservation)
	}

	open, err := s.Store.OpenReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	// Insert after every reservation with equal-or-higher priority and
	// before every lower-priority one. Scanning in position order keeps
	// createdAt ties resolved: equal priorities are already oldest-first.
	insertAt := len(open)
	for i, r := range open {
		if r.PriorityClass < tier.ReservationPriorityClass {
			insertAt = i
			break
		}
	}

	now := s.now()
	reservation := Reservation{
		ID:                ReservationID(newID()),
		UserID:            userID,
		BookID:            bookID,
		CreatedAt:         now,
		PickupWindowStart: pickupStart,
		DurationDays:      durationDays,
		Status:            ReservationPending,
		Position:          uint(insertAt + 1),
		PriorityClass:     tier.ReservationPriorityClass,
		UpdatedAt:         now,
	}

	// Shift everything at or after the insertion point down one place.
	for i := insertAt; i < len(open); i++ {
		open[i].Position++
		open[i].UpdatedAt = now
		if err := s.Store.UpdateReservation(ctx, open[i]); err != nil {
			return nil, err
		}
	}

	if err := s.Store.SaveReservation(ctx, reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// CancelReservation removes a reservation from the queue, renumbers the
// positions behind it, and applies the cancellation penalty. Cancelling
// twice returns ErrInvalidStateTransition the second time and never
// renumbers twice.
func (s *Service) CancelReservation(ctx context.Context, reservationID ReservationID) error {
	reservation, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	mu := s.locks.get(reservation.BookID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock: a concurrent cancel or promotion may have
	// closed this reservation, and a double cancel must never renumber
	// or penalize twice.
	reservation, err = s.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if !reservation.IsOpen() {
		return fmt.Errorf("cancel reservation %s in status %s: %w",
			reservationID, reservation.Status, ErrInvalidStateTransition)
	}

	if err := s.closeReservationLocked(ctx, reservation, ReservationCancelled); err != nil {
		return err
	}

	penalty := score.NewPoints(s.Config.Rules.CancelPenalty).Neg()
	return s.appendScore(ctx, reservation.UserID, penalty, score.ReasonReservationCancelled,
		string(reservationID), "cancel-"+string(reservationID))
}

// UserReservations returns all of the user's reservations, newest first.
func (s *Service) UserReservations(ctx context.Context, userID UserID) ([]Reservation, error) {
	return s.Store.ReservationsByUser(ctx, userID)
}

// BookQueue returns the open queue for a book in position order.
func (s *Service) BookQueue(ctx context.Context, bookID BookID) ([]Reservation, error) {
	return s.Store.OpenReservationsByBook(ctx, bookID)
}

// =============================================================================
// PROMOTION - A copy freed up
// =============================================================================

// promoteNextLocked hands a freed copy to the head of the queue, if any.
// Caller holds the book mutex. When the queue is empty the freed copy
// stays available and CopyBecameAvailable is emitted instead.
func (s *Service) promoteNextLocked(ctx context.Context, bookID BookID, today Date) error {
	open, err := s.Store.OpenReservationsByBook(ctx, bookID)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		inv, err := s.inv.Inventory(ctx, bookID)
		if err != nil {
			return err
		}
		if inv.AvailableCopies > 0 {
			s.publish(ctx, Event{Type: EventCopyBecameAvailable, BookID: bookID})
		}
		return nil
	}

	head := open[0]

	claimed, err := s.inv.tryReserveCopyLocked(ctx, bookID)
	if err != nil {
		return err
	}
	if !claimed {
		// Raced away between release and promotion within another flow;
		// the next freed copy will pick the queue up again.
		return nil
	}

	holdUntil := today.AddDays(s.Config.GraceDays)
	now := s.now()

	head.Status = ReservationFulfilled
	head.HoldExpiresAt = &holdUntil
	head.Position = 0
	head.UpdatedAt = now
	if err := s.Store.UpdateReservation(ctx, head); err != nil {
		return err
	}

	// Close the gap the head left behind.
	for i := 1; i < len(open); i++ {
		open[i].Position--
		open[i].UpdatedAt = now
		if err := s.Store.UpdateReservation(ctx, open[i]); err != nil {
			return err
		}
	}

	// The copy is already claimed, so the borrow is created directly
	// instead of going back through the availability check.
	days := head.DurationDays
	if tier, terr := s.TierFor(ctx, head.UserID); terr == nil {
		days = clampDays(days, tier.MaxBorrowDurationDays)
	}
	borrow := Borrow{
		ID:             BorrowID(newID()),
		UserID:         head.UserID,
		BookID:         bookID,
		StartDate:      today,
		DueDate:        today.AddDays(days),
		Status:         BorrowActive,
		ReservationID:  head.ID,
		PickupDeadline: &holdUntil,
		CreatedAt:      now,
	}
	if err := s.Store.SaveBorrow(ctx, borrow); err != nil {
		return err
	}

	s.publish(ctx, Event{
		Type:          EventReservationFulfilled,
		BookID:        bookID,
		UserID:        head.UserID,
		BorrowID:      borrow.ID,
		ReservationID: head.ID,
		Date:          holdUntil,
	})
	return nil
}

// =============================================================================
// GRACE-WINDOW EXPIRY - Lazy sweep
// =============================================================================

// ExpireHolds closes promotion-created borrows whose pickup deadline has
// passed without collection: the copy goes back to the pool, the
// reservation is cancelled with the no-show penalty, and the next
// position is promoted. Evaluated lazily by a scheduled sweep rather
// than through blocking waits. Returns how many holds expired.
func (s *Service) ExpireHolds(ctx context.Context) (int, error) {
	holds, err := s.Store.UncollectedHolds(ctx)
	if err != nil {
		return 0, err
	}

	today := s.clock()
	expired := 0
	for _, hold := range holds {
		if hold.PickupDeadline == nil || !today.After(*hold.PickupDeadline) {
			continue
		}
		if err := s.expireHold(ctx, hold, today); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expireHold(ctx context.Context, hold Borrow, today Date) error {
	mu := s.locks.get(hold.BookID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock; the user may have collected meanwhile.
	current, err := s.Store.GetBorrow(ctx, hold.ID)
	if err != nil {
		return err
	}
	if current == nil || !current.IsUncollectedHold() {
		return nil
	}

	current.Status = BorrowReturned
	current.ReturnedDate = &today
	if err := s.Store.UpdateBorrow(ctx, *current); err != nil {
		return err
	}
	if err := s.inv.releaseCopyLocked(ctx, current.BookID); err != nil {
		return err
	}

	reservation, err := s.Store.GetReservation(ctx, current.ReservationID)
	if err != nil {
		return err
	}
	if reservation != nil && reservation.Status == ReservationFulfilled {
		reservation.Status = ReservationCancelled
		reservation.UpdatedAt = s.now()
		if err := s.Store.UpdateReservation(ctx, *reservation); err != nil {
			return err
		}
		penalty := score.NewPoints(s.Config.Rules.NoShowPenalty).Neg()
		if err := s.appendScore(ctx, current.UserID, penalty, score.ReasonReservationNoShow,
			string(reservation.ID), "noshow-"+string(reservation.ID)); err != nil {
			return err
		}
	}

	return s.promoteNextLocked(ctx, current.BookID, today)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) getReservation(ctx context.Context, id ReservationID) (*Reservation, error) {
	r, err := s.Store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// closeReservationLocked takes a reservation out of the queue and closes
// the position gap. Caller holds the book mutex.
func (s *Service) closeReservationLocked(ctx context.Context, r *Reservation, status ReservationStatus) error {
	open, err := s.Store.OpenReservationsByBook(ctx, r.BookID)
	if err != nil {
		return err
	}

	now := s.now()
	closedPos := r.Position
	r.Status = status
	r.Position = 0
	r.UpdatedAt = now
	if err := s.Store.UpdateReservation(ctx, *r); err != nil {
		return err
	}

	for _, other := range open {
		if other.ID == r.ID || other.Position <= closedPos {
			continue
		}
		other.Position--
		other.UpdatedAt = now
		if err := s.Store.UpdateReservation(ctx, other); err != nil {
			return err
		}
	}
	return nil
}
