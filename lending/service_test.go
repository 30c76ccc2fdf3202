package lending_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfline/lending-engine/lending"
	memstore "github.com/shelfline/lending-engine/lending/store"
	"github.com/shelfline/lending-engine/score"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) *lending.Service {
	t.Helper()
	svc := lending.NewService(memstore.NewMemory(), score.NewLedger(score.NewMemoryStore()), lending.DefaultConfig())
	svc.Notifier = lending.NopNotifier{}
	return svc
}

// day maps a small integer onto a concrete calendar day so tests can
// talk about "day 1" and "day 11". Values past the end of the month
// roll over normally.
func day(n int) lending.Date { return lending.NewDate(2026, time.March, n) }

func setClock(svc *lending.Service, d lending.Date) {
	svc.SetClock(func() lending.Date { return d })
}

func registerBook(t *testing.T, svc *lending.Service, id lending.BookID, copies uint) {
	t.Helper()
	require.NoError(t, svc.Inventory().RegisterBook(context.Background(), id, copies))
}

func seedScore(t *testing.T, svc *lending.Service, userID lending.UserID, pts int64) {
	t.Helper()
	_, err := svc.AdjustScore(context.Background(), userID, score.NewPoints(pts), "", "seed-"+string(userID))
	require.NoError(t, err)
}

func currentScore(t *testing.T, svc *lending.Service, userID lending.UserID) float64 {
	t.Helper()
	pts, _, err := svc.ScoreSummary(context.Background(), userID)
	require.NoError(t, err)
	return pts.Float64()
}

func availableCopies(t *testing.T, svc *lending.Service, bookID lending.BookID) uint {
	t.Helper()
	inv, err := svc.Inventory().Inventory(context.Background(), bookID)
	require.NoError(t, err)
	return inv.AvailableCopies
}

// bannedList is an IdentityService stub backed by a set.
type bannedList map[lending.UserID]bool

func (b bannedList) IsBanned(_ context.Context, id lending.UserID) (bool, error) {
	return b[id], nil
}

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []lending.Event
}

func (r *eventRecorder) Publish(_ context.Context, e lending.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(typ lending.EventType) []lending.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lending.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// TIER LOOKUP
// =============================================================================

func TestTierForTracksScoreWithoutCaching(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// GIVEN a user with no score history
	tier, err := svc.TierFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Bronze", tier.Name)

	// WHEN their score crosses the Silver threshold
	seedScore(t, svc, "alice", 600)

	// THEN the very next lookup reflects it
	tier, err = svc.TierFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Silver", tier.Name)
}

func TestScoreSummaryReportsProgress(t *testing.T) {
	svc := newTestService(t)

	// GIVEN a score halfway between Silver and Gold
	seedScore(t, svc, "alice", 750)

	// WHEN the summary is computed
	pts, progress, err := svc.ScoreSummary(context.Background(), "alice")
	require.NoError(t, err)

	// THEN score, tier and progress all line up
	assert.Equal(t, float64(750), pts.Float64())
	assert.Equal(t, "Silver", progress.Tier.Name)
	require.NotNil(t, progress.NextTier)
	assert.Equal(t, "Gold", progress.NextTier.Name)
	assert.InDelta(t, 50.0, progress.Percent, 0.001)
	assert.Equal(t, int64(250), progress.PointsToNext)
}

// =============================================================================
// MANUAL ADJUSTMENTS
// =============================================================================

func TestAdjustScoreSurfacesDuplicateKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// GIVEN an adjustment already applied under a key
	_, err := svc.AdjustScore(ctx, "alice", score.NewPoints(100), "data migration", "adj-1")
	require.NoError(t, err)

	// WHEN the same key is replayed
	_, err = svc.AdjustScore(ctx, "alice", score.NewPoints(100), "data migration", "adj-1")

	// THEN the caller sees the duplicate instead of a silent drop
	assert.ErrorIs(t, err, score.ErrDuplicateIdempotencyKey)
	assert.Equal(t, float64(100), currentScore(t, svc, "alice"))
}
