/*
Package factory provides JSON to Go engine-config conversion.

PURPOSE:
  Converts JSON policy definitions into lending.Config values: tier
  schedules, score rules, and sweep windows. This enables policy
  configuration without code changes - library staff can tune thresholds
  and penalties in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify policies
  - Easy integration with admin UI
  - Version control for policy definitions
  - Database storage of policy configs

JSON SCHEMA:
  {
    "grace_days": 3,
    "due_soon_days": 3,
    "tiers": [
      {
        "name": "Bronze",
        "threshold": 0,
        "borrow_limit": 5,
        "max_borrow_duration_days": 14,
        "reservation_priority_class": 0,
        "pickup_advance_days": 2
      }
    ],
    "score_rules": {
      "on_time_return": 150,
      "late_penalty_mode": "per_day",
      "late_penalty_per_day": 50,
      "early_return_bonus": 50,
      "cancel_penalty": 25,
      "no_show_penalty": 100
    }
  }

KEY FEATURES:
  - Validates tier schedules before handing them to the engine
  - Omitted sections fall back to the shipped defaults
  - Round-trips: ToJSON(FromJSON(x)) preserves the config

USAGE:
  factory := NewConfigFactory()
  cfg, err := factory.ParseConfig(jsonString)
  svc := lending.NewService(store, scores, cfg, ...)

SEE ALSO:
  - score/tier.go: TierSchedule and validation
  - score/rules.go: Score delta rules
  - lending/service.go: Config consumer
*/
package factory

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of the engine configuration.
type ConfigJSON struct {
	GraceDays   *int            `json:"grace_days,omitempty"`
	DueSoonDays *int            `json:"due_soon_days,omitempty"`
	Tiers       []TierJSON      `json:"tiers,omitempty"`
	ScoreRules  *ScoreRulesJSON `json:"score_rules,omitempty"`
}

// TierJSON represents one reputation bracket.
type TierJSON struct {
	Name                     string `json:"name"`
	Threshold                int64  `json:"threshold"`
	BorrowLimit              int    `json:"borrow_limit"`
	MaxBorrowDurationDays    int    `json:"max_borrow_duration_days"`
	ReservationPriorityClass int    `json:"reservation_priority_class"`
	PickupAdvanceDays        int    `json:"pickup_advance_days"`
}

// ScoreRulesJSON represents the score delta rules.
type ScoreRulesJSON struct {
	OnTimeReturn      int64  `json:"on_time_return"`
	LatePenaltyMode   string `json:"late_penalty_mode,omitempty"` // per_day, flat
	LatePenaltyPerDay int64  `json:"late_penalty_per_day,omitempty"`
	LateFlatPenalty   int64  `json:"late_flat_penalty,omitempty"`
	EarlyReturnBonus  int64  `json:"early_return_bonus"`
	CancelPenalty     int64  `json:"cancel_penalty"`
	NoShowPenalty     int64  `json:"no_show_penalty"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON configs to lending.Config.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseConfig parses a JSON string into a validated lending.Config.
func (f *ConfigFactory) ParseConfig(jsonStr string) (lending.Config, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return lending.Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to lending.Config. Omitted sections keep
// the shipped defaults; a present-but-invalid tier schedule is an error,
// never silently replaced.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (lending.Config, error) {
	cfg := lending.DefaultConfig()

	if cj.GraceDays != nil {
		if *cj.GraceDays < 0 {
			return lending.Config{}, fmt.Errorf("grace_days must be >= 0, got %d", *cj.GraceDays)
		}
		cfg.GraceDays = *cj.GraceDays
	}
	if cj.DueSoonDays != nil {
		if *cj.DueSoonDays < 0 {
			return lending.Config{}, fmt.Errorf("due_soon_days must be >= 0, got %d", *cj.DueSoonDays)
		}
		cfg.DueSoonDays = *cj.DueSoonDays
	}

	if len(cj.Tiers) > 0 {
		schedule := score.TierSchedule{}
		for _, tj := range cj.Tiers {
			schedule.Tiers = append(schedule.Tiers, score.Tier{
				Name:                     tj.Name,
				Threshold:                tj.Threshold,
				BorrowLimit:              tj.BorrowLimit,
				MaxBorrowDurationDays:    tj.MaxBorrowDurationDays,
				ReservationPriorityClass: tj.ReservationPriorityClass,
				PickupAdvanceDays:        tj.PickupAdvanceDays,
			})
		}
		if err := schedule.Validate(); err != nil {
			return lending.Config{}, fmt.Errorf("invalid tier schedule: %w", err)
		}
		cfg.Tiers = schedule
	}

	if cj.ScoreRules != nil {
		rules, err := parseScoreRules(*cj.ScoreRules)
		if err != nil {
			return lending.Config{}, err
		}
		cfg.Rules = rules
	}

	return cfg, nil
}

// ToJSON converts a lending.Config back to its JSON representation.
func (f *ConfigFactory) ToJSON(cfg lending.Config) ConfigJSON {
	cj := ConfigJSON{
		GraceDays:   &cfg.GraceDays,
		DueSoonDays: &cfg.DueSoonDays,
		ScoreRules: &ScoreRulesJSON{
			OnTimeReturn:      cfg.Rules.OnTimeReturn,
			LatePenaltyMode:   string(cfg.Rules.LatePenaltyMode),
			LatePenaltyPerDay: cfg.Rules.LatePenaltyPerDay,
			LateFlatPenalty:   cfg.Rules.LateFlatPenalty,
			EarlyReturnBonus:  cfg.Rules.EarlyReturnBonus,
			CancelPenalty:     cfg.Rules.CancelPenalty,
			NoShowPenalty:     cfg.Rules.NoShowPenalty,
		},
	}
	for _, t := range cfg.Tiers.Tiers {
		cj.Tiers = append(cj.Tiers, TierJSON{
			Name:                     t.Name,
			Threshold:                t.Threshold,
			BorrowLimit:              t.BorrowLimit,
			MaxBorrowDurationDays:    t.MaxBorrowDurationDays,
			ReservationPriorityClass: t.ReservationPriorityClass,
			PickupAdvanceDays:        t.PickupAdvanceDays,
		})
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseScoreRules(rj ScoreRulesJSON) (score.Rules, error) {
	rules := score.Rules{
		OnTimeReturn:      rj.OnTimeReturn,
		LatePenaltyMode:   parseLatePenaltyMode(rj.LatePenaltyMode),
		LatePenaltyPerDay: rj.LatePenaltyPerDay,
		LateFlatPenalty:   rj.LateFlatPenalty,
		EarlyReturnBonus:  rj.EarlyReturnBonus,
		CancelPenalty:     rj.CancelPenalty,
		NoShowPenalty:     rj.NoShowPenalty,
	}
	for name, v := range map[string]int64{
		"on_time_return":       rules.OnTimeReturn,
		"late_penalty_per_day": rules.LatePenaltyPerDay,
		"late_flat_penalty":    rules.LateFlatPenalty,
		"early_return_bonus":   rules.EarlyReturnBonus,
		"cancel_penalty":       rules.CancelPenalty,
		"no_show_penalty":      rules.NoShowPenalty,
	} {
		if v < 0 {
			return score.Rules{}, fmt.Errorf("%s must be >= 0, got %d", name, v)
		}
	}
	return rules, nil
}

func parseLatePenaltyMode(s string) score.LatePenaltyMode {
	switch s {
	case "flat":
		return score.LateFlat
	default:
		return score.LatePerDay
	}
}

// =============================================================================
// PRESET CONFIGS
// =============================================================================

// DefaultConfigJSON returns the shipped configuration as JSON, the same
// values DefaultConfig produces in Go. Useful as a starting point for a
// deployment-specific config file.
func DefaultConfigJSON() string {
	f := NewConfigFactory()
	out, _ := json.MarshalIndent(f.ToJSON(lending.DefaultConfig()), "", "  ")
	return string(out)
}
