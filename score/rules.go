package score

// =============================================================================
// RULES - Configurable score deltas
// =============================================================================

// The exact deltas are policy constants owned by product, not the engine;
// they load from JSON via the factory package. DefaultRules carries the
// shipped values.

// LatePenaltyMode selects how late returns are penalized.
type LatePenaltyMode string

const (
	// LatePerDay multiplies the penalty by the number of days late.
	LatePerDay LatePenaltyMode = "per_day"

	// LateFlat applies one fixed penalty regardless of how late.
	LateFlat LatePenaltyMode = "flat"
)

type Rules struct {
	OnTimeReturn      int64
	LatePenaltyMode   LatePenaltyMode
	LatePenaltyPerDay int64
	LateFlatPenalty   int64
	EarlyReturnBonus  int64
	CancelPenalty     int64
	NoShowPenalty     int64
}

func DefaultRules() Rules {
	return Rules{
		OnTimeReturn:      150,
		LatePenaltyMode:   LatePerDay,
		LatePenaltyPerDay: 50,
		LateFlatPenalty:   50,
		EarlyReturnBonus:  50,
		CancelPenalty:     25,
		NoShowPenalty:     100,
	}
}

// ReturnDelta computes the score change for a return that is daysLate
// days past due (zero or negative means on time).
func (r Rules) ReturnDelta(daysLate int) (Points, Reason) {
	if daysLate <= 0 {
		return NewPoints(r.OnTimeReturn), ReasonOnTimeReturn
	}
	if r.LatePenaltyMode == LateFlat {
		return NewPoints(r.LateFlatPenalty).Neg(), ReasonLateReturn
	}
	return NewPoints(r.LatePenaltyPerDay).MulInt(int64(daysLate)).Neg(), ReasonLateReturn
}
