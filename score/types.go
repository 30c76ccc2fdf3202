/*
Package score provides the reputation score ledger and tier policy.

PURPOSE:
  Tracks each user's reputation as an append-only log of score events and
  derives everything else from it: the current score is the sum of event
  deltas, and the tier is a pure function of the current score. Neither
  is ever stored as a mutable field, so neither can drift.

KEY CONCEPTS:
  - Points: A score quantity (decimal, to keep arithmetic exact)
  - Event: An immutable ledger entry recording one score change
  - Ledger: Append-only event log with per-user replay
  - Tier / TierSchedule: Score brackets and the benefits they grant
  - Rules: The configurable deltas (on-time bonus, late penalty, ...)

DESIGN PRINCIPLES:
  1. Append-only: events are never modified or deleted; corrections are
     new events with opposite sign
  2. Derived tier: recomputed from the score on every read
  3. Policy as configuration: thresholds and deltas load from JSON, they
     are not business logic baked into code

SEE ALSO:
  - ledger.go: Event persistence and score replay
  - tier.go: The score -> tier step function
  - rules.go: Configurable score deltas
*/
package score

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POINTS - Score quantity
// =============================================================================

type Points struct {
	Value decimal.Decimal
}

func NewPoints(v int64) Points {
	return Points{Value: decimal.NewFromInt(v)}
}

func NewPointsFromFloat(v float64) Points {
	return Points{Value: decimal.NewFromFloat(v)}
}

func (p Points) Add(q Points) Points       { return Points{Value: p.Value.Add(q.Value)} }
func (p Points) Sub(q Points) Points       { return Points{Value: p.Value.Sub(q.Value)} }
func (p Points) Neg() Points               { return Points{Value: p.Value.Neg()} }
func (p Points) MulInt(n int64) Points     { return Points{Value: p.Value.Mul(decimal.NewFromInt(n))} }
func (p Points) IsNegative() bool          { return p.Value.IsNegative() }
func (p Points) IsZero() bool              { return p.Value.IsZero() }
func (p Points) GreaterThan(q Points) bool { return p.Value.GreaterThan(q.Value) }
func (p Points) LessThan(q Points) bool    { return p.Value.LessThan(q.Value) }
func (p Points) AtLeast(q Points) bool     { return p.Value.GreaterThanOrEqual(q.Value) }
func (p Points) Float64() float64          { f, _ := p.Value.Float64(); return f }
func (p Points) String() string            { return p.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EventID string

// =============================================================================
// EVENT - One immutable score change
// =============================================================================

type Reason string

const (
	ReasonOnTimeReturn         Reason = "on_time_return"
	ReasonLateReturn           Reason = "late_return"
	ReasonEarlyReturnBonus     Reason = "early_return_bonus"
	ReasonReservationCancelled Reason = "reservation_cancelled"
	ReasonReservationNoShow    Reason = "reservation_no_show"
	ReasonManualAdjustment     Reason = "manual_adjustment"
)

type Event struct {
	ID     EventID
	UserID UserID
	Delta  Points
	Reason Reason

	// ReferenceID links back to the borrow or reservation that caused
	// the event.
	ReferenceID string

	// IdempotencyKey makes retried appends safe: the same key is rejected
	// on a second append.
	IdempotencyKey string

	OccurredAt time.Time
	CreatedAt  time.Time
}
