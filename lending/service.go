/*
service.go - Engine facade and orchestration

PURPOSE:
  Service wires the engine together: the Inventory Ledger, the
  Reservation Queue, the Borrow Lifecycle, the Availability Forecaster,
  and the score ledger that feeds the Tier Policy. Every public
  operation of the engine lives on Service, and every mutation of one
  book's state runs under that book's mutex.

REQUEST FLOW:
  borrow/reserve request -> tier policy (eligibility) -> inventory
  ledger (capacity) -> borrow lifecycle or reservation queue (state
  mutation) -> score ledger (event recorded) -> forecaster (recomputed
  on demand, not incrementally maintained)

EXTERNAL COLLABORATORS:
  - IdentityService supplies ban status; callers arrive authenticated
  - Notifier consumes emitted events; the engine sends nothing itself

SEE ALSO:
  - borrow.go: Borrow / Renew / Return / Collect
  - queue.go: Reserve / Cancel / promotion / grace expiry
  - forecast.go: Calendar and next-available computations
*/
package lending

import (
	"context"
	"time"

	"github.com/shelfline/lending-engine/score"
)

// =============================================================================
// CONFIG - Engine policy knobs
// =============================================================================

// Config bundles the policy configuration the engine runs under. All of
// it is product policy loaded from JSON (factory package); these are the
// shipped defaults, not authoritative constants.
type Config struct {
	Tiers score.TierSchedule
	Rules score.Rules

	// GraceDays is how long a fulfilled reservation holds its copy before
	// the hold expires and the next position is promoted.
	GraceDays int

	// DueSoonDays is the look-ahead horizon for due-soon notifications.
	DueSoonDays int
}

func DefaultConfig() Config {
	return Config{
		Tiers:       score.DefaultSchedule(),
		Rules:       score.DefaultRules(),
		GraceDays:   3,
		DueSoonDays: 3,
	}
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// IdentityService supplies ban status for an already-authenticated user.
type IdentityService interface {
	IsBanned(ctx context.Context, userID UserID) (bool, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store    Store
	Scores   score.Ledger
	Config   Config
	Identity IdentityService // optional; nil means nobody is banned
	Notifier Notifier

	inv   *InventoryLedger
	locks *bookLocks
	clock func() Date
	now   func() time.Time
}

func NewService(store Store, scores score.Ledger, cfg Config) *Service {
	locks := newBookLocks()
	return &Service{
		Store:    store,
		Scores:   scores,
		Config:   cfg,
		Notifier: LogNotifier{},
		inv:      &InventoryLedger{store: store, locks: locks},
		locks:    locks,
		clock:    Today,
		now:      time.Now,
	}
}

// Inventory exposes the engine's inventory ledger. It shares the
// Service's lock table, so direct use stays serialized with borrow and
// queue flows.
func (s *Service) Inventory() *InventoryLedger { return s.inv }

// ChangeTotalCopies adjusts a book's copy count through the engine.
// Added copies are offered to the waiting queue immediately, one
// promotion per copy, under the same book lock as the count change;
// leftover copies (or an empty queue) announce availability instead.
// Shrinks delegate straight to the ledger.
func (s *Service) ChangeTotalCopies(ctx context.Context, bookID BookID, delta int) error {
	mu := s.locks.get(bookID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.inv.changeTotalCopiesLocked(ctx, bookID, delta); err != nil {
		return err
	}

	today := s.clock()
	for i := 0; i < delta; i++ {
		open, err := s.Store.OpenReservationsByBook(ctx, bookID)
		if err != nil {
			return err
		}
		if err := s.promoteNextLocked(ctx, bookID, today); err != nil {
			return err
		}
		if len(open) == 0 {
			// Nothing left to promote; the availability event has fired.
			break
		}
	}
	return nil
}

// SetClock overrides the engine's notion of "today". For tests.
func (s *Service) SetClock(today func() Date) { s.clock = today }

// =============================================================================
// TIER LOOKUP
// =============================================================================

// TierFor derives the user's tier from their current score. Never cached:
// the score ledger is read on every call.
func (s *Service) TierFor(ctx context.Context, userID UserID) (score.Tier, error) {
	current, err := s.Scores.CurrentScore(ctx, score.UserID(userID))
	if err != nil {
		return score.Tier{}, err
	}
	return s.Config.Tiers.TierFor(current), nil
}

// ScoreSummary returns the user's score with tier and progress, for
// display surfaces.
func (s *Service) ScoreSummary(ctx context.Context, userID UserID) (score.Points, score.Progress, error) {
	current, err := s.Scores.CurrentScore(ctx, score.UserID(userID))
	if err != nil {
		return score.Points{}, score.Progress{}, err
	}
	return current, s.Config.Tiers.ProgressFor(current), nil
}

// AdjustScore applies a manual score adjustment (librarian action).
// Unlike engine-generated events, a duplicate idempotency key here is
// surfaced to the caller instead of swallowed, so the admin surface can
// report the replay.
func (s *Service) AdjustScore(ctx context.Context, userID UserID, delta score.Points, reason, idempotencyKey string) (*score.Event, error) {
	r := score.ReasonManualAdjustment
	if reason != "" {
		r = score.Reason(reason)
	}
	event := score.Event{
		ID:             score.EventID(newID()),
		UserID:         score.UserID(userID),
		Delta:          delta,
		Reason:         r,
		IdempotencyKey: idempotencyKey,
		OccurredAt:     s.now(),
		CreatedAt:      s.now(),
	}
	if err := s.Scores.Append(ctx, event); err != nil {
		return nil, err
	}
	return &event, nil
}

// appendScore records a score event, tolerating replays: a duplicate
// idempotency key means the event already landed.
func (s *Service) appendScore(ctx context.Context, userID UserID, delta score.Points, reason score.Reason, refID, key string) error {
	err := s.Scores.Append(ctx, score.Event{
		ID:             score.EventID(newID()),
		UserID:         score.UserID(userID),
		Delta:          delta,
		Reason:         reason,
		ReferenceID:    refID,
		IdempotencyKey: key,
		OccurredAt:     s.now(),
		CreatedAt:      s.now(),
	})
	if err == score.ErrDuplicateIdempotencyKey {
		return nil
	}
	return err
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.Notifier == nil {
		return
	}
	e.OccurredAt = s.now()
	s.Notifier.Publish(ctx, e)
}
