package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

func newSchedulerService(t *testing.T) *lending.Service {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := lending.NewService(store, score.NewLedger(store), lending.DefaultConfig())
	svc.Notifier = lending.NopNotifier{}
	return svc
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := NewSweepScheduler(newSchedulerService(t))

	scheduler.Start()
	scheduler.Stop()
}

func TestSchedulerDisabledDoesNotStart(t *testing.T) {
	scheduler := NewSweepScheduler(newSchedulerService(t))
	scheduler.Enabled = false

	// Start then Stop must both be no-ops without a running ticker.
	scheduler.Start()
	scheduler.Stop()
}

func TestSchedulerRunNowExpiresOverdueHolds(t *testing.T) {
	svc := newSchedulerService(t)
	ctx := context.Background()
	require.NoError(t, svc.Inventory().RegisterBook(ctx, "dune", 1))

	start := lending.Today().AddDays(-10)
	svc.SetClock(func() lending.Date { return start })

	// GIVEN an uncollected hold whose grace window ended days ago
	borrow, err := svc.Borrow(ctx, "alice", "dune", 5)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, "bob", "dune", start, 7)
	require.NoError(t, err)
	_, err = svc.Return(ctx, borrow.ID)
	require.NoError(t, err)

	svc.SetClock(lending.Today)
	scheduler := NewSweepScheduler(svc)

	// WHEN the sweep runs on demand
	scheduler.RunNow()

	// THEN the hold is gone and the copy is back in the pool
	inv, err := svc.Inventory().Inventory(ctx, "dune")
	require.NoError(t, err)
	assert.Equal(t, uint(1), inv.AvailableCopies)
}
