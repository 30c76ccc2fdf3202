/*
ledger.go - Append-only score event log

PURPOSE:
  The Ledger is the immutable source of truth for every score change.
  The current score is always computed by replaying events; there is no
  separate score field that can get out of sync.

WHY APPEND-ONLY?
  - Audit trail: any score can be explained from its event history
  - Correctness: a mutable running total invites lost-update races when
    two returns land at once for the same user
  - Replay: score history views come for free

CORRECTIONS:
  A wrong event is never edited. Append a compensating event with the
  opposite delta; both remain in the log.

CONCURRENCY:
  Appends for different users are independent. The store only has to
  keep per-user append order; no cross-user locking exists here.
*/
package score

import (
	"context"
	"errors"
)

// ErrDuplicateIdempotencyKey is returned when an event with the same
// idempotency key already exists. Expected behavior for retries.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// =============================================================================
// STORE - Persistence interface (append-only)
// =============================================================================

// Store persists score events. No Update, no Delete.
type Store interface {
	// AppendEvent persists one event. Fails if the idempotency key exists.
	AppendEvent(ctx context.Context, e Event) error

	// EventsByUser returns the user's events in occurrence order.
	EventsByUser(ctx context.Context, userID UserID) ([]Event, error)

	// EventExists checks whether an idempotency key was already used.
	EventExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the read/write surface the lending engine uses.
type Ledger interface {
	Append(ctx context.Context, e Event) error
	Events(ctx context.Context, userID UserID) ([]Event, error)

	// CurrentScore is the sum of all event deltas for the user.
	CurrentScore(ctx context.Context, userID UserID) (Points, error)
}

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, e Event) error {
	if e.IdempotencyKey != "" {
		exists, err := l.Store.EventExists(ctx, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendEvent(ctx, e)
}

func (l *DefaultLedger) Events(ctx context.Context, userID UserID) ([]Event, error) {
	return l.Store.EventsByUser(ctx, userID)
}

func (l *DefaultLedger) CurrentScore(ctx context.Context, userID UserID) (Points, error) {
	events, err := l.Store.EventsByUser(ctx, userID)
	if err != nil {
		return Points{}, err
	}

	total := NewPoints(0)
	for _, e := range events {
		total = total.Add(e.Delta)
	}
	return total, nil
}
