/*
tier.go - Score to tier step function

PURPOSE:
  Maps a score onto a named tier and the borrowing benefits that tier
  grants. The mapping is a pure, monotonic step function: find the
  highest tier whose threshold is <= score. The tier is recomputed every
  time it is read and never cached on a user record; a stored tier field
  is exactly the stale-tier bug class this design removes.

CONFIGURATION:
  Thresholds and benefits are policy, not code. The factory package
  parses them from JSON; DefaultSchedule is only the shipped default.
*/
package score

import (
	"errors"
	"fmt"
	"sort"
)

// =============================================================================
// TIER - One reputation bracket and its benefits
// =============================================================================

type Tier struct {
	Name      string
	Threshold int64

	// Benefits
	BorrowLimit              int
	MaxBorrowDurationDays    int
	ReservationPriorityClass int

	// PickupAdvanceDays is the minimum notice a reservation pickup needs,
	// in days from today. Higher tiers need less; negative means the tier
	// may pick up immediately.
	PickupAdvanceDays int
}

// =============================================================================
// TIER SCHEDULE - Ordered brackets
// =============================================================================

// TierSchedule is an ordered list of tiers, ascending by threshold.
// The first threshold must be <= 0 so every score lands in some tier.
type TierSchedule struct {
	Tiers []Tier
}

// DefaultSchedule returns the shipped Bronze/Silver/Gold/Platinum brackets.
func DefaultSchedule() TierSchedule {
	return TierSchedule{Tiers: []Tier{
		{Name: "Bronze", Threshold: 0, BorrowLimit: 5, MaxBorrowDurationDays: 14, ReservationPriorityClass: 0, PickupAdvanceDays: 2},
		{Name: "Silver", Threshold: 500, BorrowLimit: 7, MaxBorrowDurationDays: 21, ReservationPriorityClass: 1, PickupAdvanceDays: 1},
		{Name: "Gold", Threshold: 1000, BorrowLimit: 10, MaxBorrowDurationDays: 28, ReservationPriorityClass: 2, PickupAdvanceDays: 0},
		{Name: "Platinum", Threshold: 2000, BorrowLimit: 15, MaxBorrowDurationDays: 35, ReservationPriorityClass: 3, PickupAdvanceDays: -2},
	}}
}

// Validate checks the schedule is usable: non-empty, thresholds strictly
// ascending, first threshold covering zero, sane benefit values.
func (s TierSchedule) Validate() error {
	if len(s.Tiers) == 0 {
		return errors.New("tier schedule is empty")
	}
	if !sort.SliceIsSorted(s.Tiers, func(i, j int) bool {
		return s.Tiers[i].Threshold < s.Tiers[j].Threshold
	}) {
		return errors.New("tier thresholds must be ascending")
	}
	if s.Tiers[0].Threshold > 0 {
		return fmt.Errorf("first tier threshold must be <= 0, got %d", s.Tiers[0].Threshold)
	}
	for i, t := range s.Tiers {
		if i > 0 && t.Threshold == s.Tiers[i-1].Threshold {
			return fmt.Errorf("duplicate tier threshold %d", t.Threshold)
		}
		if t.BorrowLimit <= 0 || t.MaxBorrowDurationDays <= 0 {
			return fmt.Errorf("tier %q must have positive borrow limit and duration", t.Name)
		}
	}
	return nil
}

// TierFor returns the highest tier whose threshold is <= score.
// Scores below the first threshold map to the first tier.
func (s TierSchedule) TierFor(score Points) Tier {
	current := s.Tiers[0]
	for _, t := range s.Tiers {
		if score.AtLeast(NewPoints(t.Threshold)) {
			current = t
		}
	}
	return current
}

// =============================================================================
// PROGRESS - How far to the next tier
// =============================================================================

type Progress struct {
	Tier Tier

	// NextTier is nil at the top tier.
	NextTier *Tier

	// Percent in [0, 100]. 100 at the top tier.
	Percent float64

	// PointsToNext is zero at the top tier.
	PointsToNext int64
}

// ProgressFor computes progress from the current tier toward the next.
func (s TierSchedule) ProgressFor(score Points) Progress {
	current := s.TierFor(score)

	var next *Tier
	for i, t := range s.Tiers {
		if t.Threshold == current.Threshold && i+1 < len(s.Tiers) {
			n := s.Tiers[i+1]
			next = &n
			break
		}
	}

	if next == nil {
		return Progress{Tier: current, Percent: 100, PointsToNext: 0}
	}

	span := next.Threshold - current.Threshold
	into := score.Sub(NewPoints(current.Threshold)).Float64()
	percent := into / float64(span) * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	toNext := NewPoints(next.Threshold).Sub(score)
	points := int64(toNext.Float64())
	if points < 0 {
		points = 0
	}

	return Progress{Tier: current, NextTier: next, Percent: percent, PointsToNext: points}
}
