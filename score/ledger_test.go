package score_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfline/lending-engine/score"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger() *score.DefaultLedger {
	return score.NewLedger(score.NewMemoryStore())
}

func event(user string, delta int64, key string, at time.Time) score.Event {
	return score.Event{
		ID:             score.EventID("evt-" + key),
		UserID:         score.UserID(user),
		Delta:          score.NewPoints(delta),
		Reason:         score.ReasonManualAdjustment,
		IdempotencyKey: key,
		OccurredAt:     at,
		CreatedAt:      at,
	}
}

// =============================================================================
// APPEND AND REPLAY
// =============================================================================

func TestCurrentScoreIsSumOfEvents(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	// GIVEN a mixed history of credits and penalties
	require.NoError(t, ledger.Append(ctx, event("alice", 150, "k1", base)))
	require.NoError(t, ledger.Append(ctx, event("alice", 50, "k2", base.Add(time.Hour))))
	require.NoError(t, ledger.Append(ctx, event("alice", -25, "k3", base.Add(2*time.Hour))))

	// THEN the score is derived by replay, never stored
	pts, err := ledger.CurrentScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(175), pts.Float64())
}

func TestCurrentScoreUnknownUserIsZero(t *testing.T) {
	pts, err := newTestLedger().CurrentScore(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, pts.IsZero())
}

func TestScoresMayGoNegative(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, event("alice", -100, "k1", time.Now())))

	pts, err := ledger.CurrentScore(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, pts.IsNegative())
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestAppendRejectsDuplicateIdempotencyKey(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	// GIVEN an event already applied
	require.NoError(t, ledger.Append(ctx, event("alice", 150, "return-b1", time.Now())))

	// WHEN the same key is appended again, even with a different delta
	err := ledger.Append(ctx, event("alice", 9999, "return-b1", time.Now()))

	// THEN the replay is rejected and the score unchanged
	assert.ErrorIs(t, err, score.ErrDuplicateIdempotencyKey)
	pts, err := ledger.CurrentScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(150), pts.Float64())
}

// =============================================================================
// HISTORY
// =============================================================================

func TestEventsReturnedInOccurrenceOrder(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	// GIVEN events appended out of chronological order
	require.NoError(t, ledger.Append(ctx, event("alice", 10, "k-later", base.Add(time.Hour))))
	require.NoError(t, ledger.Append(ctx, event("alice", 20, "k-earlier", base)))

	events, err := ledger.Events(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "k-earlier", events[0].IdempotencyKey)
	assert.Equal(t, "k-later", events[1].IdempotencyKey)
}

func TestEventsAreScopedPerUser(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, event("alice", 10, "ka", time.Now())))
	require.NoError(t, ledger.Append(ctx, event("bob", 20, "kb", time.Now())))

	events, err := ledger.Events(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, score.UserID("alice"), events[0].UserID)
}
