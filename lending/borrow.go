/*
borrow.go - Borrow lifecycle

PURPOSE:
  Creates, renews, and closes loan records against the Inventory Ledger,
  consulting the Tier Policy for duration and limit rules.

STATE MACHINE:
  ACTIVE -> RETURNED            (terminal, on return)
  ACTIVE -> OVERDUE -> RETURNED (overdue is derived, never stored)

SCORING:
  Borrowing and renewing never touch the score; score events are
  return-time only (+on-time / -late, plus the early-return bonus) and
  queue-time (cancellation, no-show).
*/
package lending

import (
	"context"
	"fmt"

	"github.com/shelfline/lending-engine/score"
)

// Borrow admits a loan request. Fails with ErrNotEligible when the user
// is banned or at their tier's borrow limit, ErrDuplicateActiveBorrow
// when they already hold this title, and ErrNoCopyAvailable when no copy
// is free (the caller should offer the reservation queue). The requested
// duration is clamped to the tier's maximum, not rejected.
func (s *Service) Borrow(ctx context.Context, userID UserID, bookID BookID, requestedDays int) (*Borrow, error) {
	if s.Identity != nil {
		banned, err := s.Identity.IsBanned(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ban check: %w", err)
		}
		if banned {
			return nil, &BannedError{UserID: userID}
		}
	}

	tier, err := s.TierFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("tier lookup: %w", err)
	}

	mu := s.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.Store.ActiveBorrowByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s, book %s: %w", userID, bookID, ErrDuplicateActiveBorrow)
	}

	active, err := s.Store.ActiveBorrowsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) >= tier.BorrowLimit {
		return nil, &BorrowLimitError{UserID: userID, Limit: tier.BorrowLimit, Active: len(active)}
	}

	claimed, err := s.inv.tryReserveCopyLocked(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNoCopyAvailable)
	}

	today := s.clock()
	borrow := Borrow{
		ID:        BorrowID(newID()),
		UserID:    userID,
		BookID:    bookID,
		StartDate: today,
		DueDate:   today.AddDays(clampDays(requestedDays, tier.MaxBorrowDurationDays)),
		Status:    BorrowActive,
		CreatedAt: s.now(),
	}
	if err := s.Store.SaveBorrow(ctx, borrow); err != nil {
		// Undo the claim so the copy is not stranded.
		if rerr := s.inv.releaseCopyLocked(ctx, bookID); rerr != nil {
			return nil, fmt.Errorf("save borrow failed (%v) and release failed: %w", err, rerr)
		}
		return nil, err
	}

	return &borrow, nil
}

// Renew extends an active borrow's due date. The new due date may not
// exceed the tier's maximum duration counted from the original start
// date, which keeps renewal bounded.
func (s *Service) Renew(ctx context.Context, borrowID BorrowID, extraDays int) (*Borrow, error) {
	if extraDays <= 0 {
		return nil, fmt.Errorf("renew %s by %d days: %w", borrowID, extraDays, ErrInvalidStateTransition)
	}

	borrow, err := s.getBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.get(borrow.BookID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock so the state check and the extension see
	// the serialized record, not a pre-lock snapshot.
	borrow, err = s.getBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if borrow.Status != BorrowActive {
		return nil, fmt.Errorf("renew %s in status %s: %w", borrowID, borrow.Status, ErrInvalidStateTransition)
	}

	tier, err := s.TierFor(ctx, borrow.UserID)
	if err != nil {
		return nil, err
	}

	newDue := borrow.DueDate.AddDays(extraDays)
	if DaysBetween(borrow.StartDate, newDue) > tier.MaxBorrowDurationDays {
		return nil, &RenewalLimitError{BorrowID: borrowID, MaxDays: tier.MaxBorrowDurationDays}
	}

	borrow.DueDate = newDue
	if err := s.Store.UpdateBorrow(ctx, *borrow); err != nil {
		return nil, err
	}
	return borrow, nil
}

// Return closes an active borrow: releases the copy, records the score
// event (on-time bonus or late penalty, plus the early-return bonus),
// and hands the freed copy to the reservation queue.
func (s *Service) Return(ctx context.Context, borrowID BorrowID) (*Borrow, error) {
	borrow, err := s.getBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.get(borrow.BookID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock: a concurrent return may have closed the
	// borrow between the snapshot and the lock.
	borrow, err = s.getBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if borrow.Status != BorrowActive {
		return nil, fmt.Errorf("return %s in status %s: %w", borrowID, borrow.Status, ErrInvalidStateTransition)
	}

	today := s.clock()
	borrow.ReturnedDate = &today
	borrow.Status = BorrowReturned
	if err := s.Store.UpdateBorrow(ctx, *borrow); err != nil {
		return nil, err
	}

	if err := s.inv.releaseCopyLocked(ctx, borrow.BookID); err != nil {
		return nil, err
	}

	daysLate := DaysBetween(borrow.DueDate, today)
	delta, reason := s.Config.Rules.ReturnDelta(daysLate)
	if err := s.appendScore(ctx, borrow.UserID, delta, reason, string(borrowID), "return-"+string(borrowID)); err != nil {
		return nil, err
	}
	if daysLate < 0 && s.Config.Rules.EarlyReturnBonus != 0 {
		bonus := score.NewPoints(s.Config.Rules.EarlyReturnBonus)
		if err := s.appendScore(ctx, borrow.UserID, bonus, score.ReasonEarlyReturnBonus, string(borrowID), "early-"+string(borrowID)); err != nil {
			return nil, err
		}
	}

	if err := s.promoteNextLocked(ctx, borrow.BookID, today); err != nil {
		return nil, err
	}

	return borrow, nil
}

// Collect marks a promotion-created borrow as picked up before its grace
// deadline. Borrows created directly (a copy was free) need no pickup.
func (s *Service) Collect(ctx context.Context, borrowID BorrowID) (*Borrow, error) {
	borrow, err := s.getBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.get(borrow.BookID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock: the expiry sweep closes holds under the
	// same mutex and must not race a pickup.
	borrow, err = s.getBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if !borrow.IsUncollectedHold() {
		return nil, fmt.Errorf("collect %s: %w", borrowID, ErrInvalidStateTransition)
	}

	today := s.clock()
	if today.After(*borrow.PickupDeadline) {
		// Too late; the expiry sweep owns this record now.
		return nil, fmt.Errorf("collect %s after pickup deadline %s: %w",
			borrowID, borrow.PickupDeadline, ErrInvalidStateTransition)
	}

	borrow.CollectedAt = &today
	if err := s.Store.UpdateBorrow(ctx, *borrow); err != nil {
		return nil, err
	}
	return borrow, nil
}

// UserBorrows returns all of the user's borrows, newest first.
func (s *Service) UserBorrows(ctx context.Context, userID UserID) ([]Borrow, error) {
	return s.Store.BorrowsByUser(ctx, userID)
}

func (s *Service) getBorrow(ctx context.Context, id BorrowID) (*Borrow, error) {
	borrow, err := s.Store.GetBorrow(ctx, id)
	if err != nil {
		return nil, err
	}
	if borrow == nil {
		return nil, fmt.Errorf("borrow %s: %w", id, ErrNotFound)
	}
	return borrow, nil
}

func clampDays(requested, max int) int {
	if requested < 1 {
		return 1
	}
	if requested > max {
		return max
	}
	return requested
}
