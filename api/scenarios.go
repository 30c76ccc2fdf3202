/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates users, books,
	borrows, and reservations that demonstrate specific features.

AVAILABLE SCENARIOS:

	small-branch:     A few books and users, copies mostly free
	contested-title:  One copy, a priority-ordered queue behind it
	tier-journeys:    Users at different reputation tiers with history

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create users and register books
 3. Seed score events so tier effects are visible
 4. Create borrows and queue reservations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "contested-title"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context and response helpers
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "small-branch",
		Name:        "Small Branch",
		Description: "A handful of books and users, most copies free",
	},
	{
		ID:          "contested-title",
		Name:        "Contested Title",
		Description: "One copy out on loan with a priority-ordered queue behind it",
	},
	{
		ID:          "tier-journeys",
		Name:        "Tier Journeys",
		Description: "Users at Bronze through Platinum with the score history to match",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "small-branch":
		err = h.loadSmallBranchScenario(ctx)
	case "contested-title":
		err = h.loadContestedTitleScenario(ctx)
	case "tier-journeys":
		err = h.loadTierJourneysScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallBranchScenario(ctx context.Context) error {
	users := []sqlite.User{
		{ID: "alice", Name: "Alice Moreno", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob Tanaka", Email: "bob@example.com"},
		{ID: "carol", Name: "Carol Osei", Email: "carol@example.com"},
	}
	for _, u := range users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	books := map[lending.BookID]uint{
		"dune":             3,
		"left-hand":        2,
		"name-of-the-wind": 1,
	}
	for id, copies := range books {
		if err := h.Service.Inventory().RegisterBook(ctx, id, copies); err != nil {
			return err
		}
	}

	if _, err := h.Service.Borrow(ctx, "alice", "dune", 14); err != nil {
		return err
	}
	_, err := h.Service.Borrow(ctx, "bob", "left-hand", 7)
	return err
}

func (h *Handler) loadContestedTitleScenario(ctx context.Context) error {
	users := []sqlite.User{
		{ID: "holder", Name: "Current Holder"},
		{ID: "bronze-waiter", Name: "Bronze Waiter"},
		{ID: "gold-waiter", Name: "Gold Waiter"},
		{ID: "silver-waiter", Name: "Silver Waiter"},
	}
	for _, u := range users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	// Give the named waiters the scores their names promise.
	if err := h.seedScore(ctx, "gold-waiter", 1200); err != nil {
		return err
	}
	if err := h.seedScore(ctx, "silver-waiter", 600); err != nil {
		return err
	}

	if err := h.Service.Inventory().RegisterBook(ctx, "project-hail-mary", 1); err != nil {
		return err
	}
	if _, err := h.Service.Borrow(ctx, "holder", "project-hail-mary", 14); err != nil {
		return err
	}

	// Enqueue in an order the priority classes will reshuffle: the gold
	// waiter joins last yet ends up at the head of the queue.
	pickup := lending.Today().AddDays(3)
	for _, userID := range []lending.UserID{"bronze-waiter", "silver-waiter", "gold-waiter"} {
		if _, err := h.Service.Reserve(ctx, userID, "project-hail-mary", pickup, 14); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadTierJourneysScenario(ctx context.Context) error {
	journeys := map[string]int64{
		"newcomer":  0,
		"regular":   650,
		"bookworm":  1400,
		"librarian": 2600,
	}
	for id, points := range journeys {
		if err := h.Store.SaveUser(ctx, sqlite.User{ID: lending.UserID(id), Name: id}); err != nil {
			return err
		}
		if err := h.seedScore(ctx, lending.UserID(id), points); err != nil {
			return err
		}
	}

	return h.Service.Inventory().RegisterBook(ctx, "the-hobbit", 5)
}

// seedScore appends one synthetic score event lifting the user to the
// target score.
func (h *Handler) seedScore(ctx context.Context, userID lending.UserID, points int64) error {
	if points == 0 {
		return nil
	}
	now := time.Now().UTC()
	return h.Scores.Append(ctx, score.Event{
		ID:             score.EventID(fmt.Sprintf("seed-%s", userID)),
		UserID:         score.UserID(userID),
		Delta:          score.NewPoints(points),
		Reason:         score.ReasonManualAdjustment,
		IdempotencyKey: fmt.Sprintf("seed-%s", userID),
		OccurredAt:     now,
		CreatedAt:      now,
	})
}
