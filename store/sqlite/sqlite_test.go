package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(y int, m time.Month, d int) lending.Date {
	return lending.NewDate(y, m, d)
}

func datePtr(d lending.Date) *lending.Date { return &d }

// =============================================================================
// INVENTORY
// =============================================================================

func TestInventoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveInventory(ctx, lending.BookInventory{
		BookID: "dune", TotalCopies: 3, AvailableCopies: 2,
	}))

	inv, err := store.GetInventory(ctx, "dune")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, uint(3), inv.TotalCopies)
	assert.Equal(t, uint(2), inv.AvailableCopies)

	// Upsert overwrites the counters in place.
	require.NoError(t, store.SaveInventory(ctx, lending.BookInventory{
		BookID: "dune", TotalCopies: 3, AvailableCopies: 0,
	}))
	inv, err = store.GetInventory(ctx, "dune")
	require.NoError(t, err)
	assert.Equal(t, uint(0), inv.AvailableCopies)
}

func TestGetInventoryUnknownBookIsNil(t *testing.T) {
	store := newTestStore(t)

	inv, err := store.GetInventory(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, inv)
}

func TestListInventory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveInventory(ctx, lending.BookInventory{BookID: "a", TotalCopies: 1, AvailableCopies: 1}))
	require.NoError(t, store.SaveInventory(ctx, lending.BookInventory{BookID: "b", TotalCopies: 2, AvailableCopies: 2}))

	all, err := store.ListInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// BORROWS
// =============================================================================

func sampleBorrow(id, user string) lending.Borrow {
	return lending.Borrow{
		ID:        lending.BorrowID(id),
		UserID:    lending.UserID(user),
		BookID:    "dune",
		StartDate: date(2026, time.March, 1),
		DueDate:   date(2026, time.March, 15),
		Status:    lending.BorrowActive,
		CreatedAt: time.Now().UTC(),
	}
}

func TestBorrowRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := sampleBorrow("b1", "alice")
	require.NoError(t, store.SaveBorrow(ctx, b))

	got, err := store.GetBorrow(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lending.UserID("alice"), got.UserID)
	assert.True(t, got.StartDate.Equal(b.StartDate))
	assert.True(t, got.DueDate.Equal(b.DueDate))
	assert.Equal(t, lending.BorrowActive, got.Status)
	assert.Nil(t, got.ReturnedDate)

	got, err = store.GetBorrow(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActiveBorrowQueriesExcludeReturned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	active := sampleBorrow("b1", "alice")
	require.NoError(t, store.SaveBorrow(ctx, active))

	returned := sampleBorrow("b2", "alice")
	returned.BookID = "hyperion"
	returned.Status = lending.BorrowReturned
	returned.ReturnedDate = datePtr(date(2026, time.March, 10))
	require.NoError(t, store.SaveBorrow(ctx, returned))

	byUser, err := store.ActiveBorrowsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, lending.BorrowID("b1"), byUser[0].ID)

	byBook, err := store.ActiveBorrowsByBook(ctx, "dune")
	require.NoError(t, err)
	assert.Len(t, byBook, 1)

	pair, err := store.ActiveBorrowByUserAndBook(ctx, "alice", "hyperion")
	require.NoError(t, err)
	assert.Nil(t, pair)

	all, err := store.BorrowsByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateBorrowPersistsReturn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := sampleBorrow("b1", "alice")
	require.NoError(t, store.SaveBorrow(ctx, b))

	b.Status = lending.BorrowReturned
	b.ReturnedDate = datePtr(date(2026, time.March, 12))
	require.NoError(t, store.UpdateBorrow(ctx, b))

	got, err := store.GetBorrow(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, lending.BorrowReturned, got.Status)
	require.NotNil(t, got.ReturnedDate)
	assert.True(t, got.ReturnedDate.Equal(date(2026, time.March, 12)))
}

func TestUncollectedHoldsAndDueWindows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hold := sampleBorrow("b1", "bob")
	hold.ReservationID = "r1"
	hold.PickupDeadline = datePtr(date(2026, time.March, 4))
	require.NoError(t, store.SaveBorrow(ctx, hold))

	collected := sampleBorrow("b2", "carol")
	collected.BookID = "hyperion"
	collected.ReservationID = "r2"
	collected.PickupDeadline = datePtr(date(2026, time.March, 4))
	collected.CollectedAt = datePtr(date(2026, time.March, 2))
	require.NoError(t, store.SaveBorrow(ctx, collected))

	holds, err := store.UncollectedHolds(ctx)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, lending.BorrowID("b1"), holds[0].ID)

	due, err := store.BorrowsDueBetween(ctx, date(2026, time.March, 14), date(2026, time.March, 16))
	require.NoError(t, err)
	assert.Len(t, due, 2)

	due, err = store.BorrowsDueBetween(ctx, date(2026, time.March, 16), date(2026, time.March, 20))
	require.NoError(t, err)
	assert.Empty(t, due)
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func sampleReservation(id, user string, position uint) lending.Reservation {
	return lending.Reservation{
		ID:                lending.ReservationID(id),
		UserID:            lending.UserID(user),
		BookID:            "dune",
		CreatedAt:         time.Now().UTC(),
		PickupWindowStart: date(2026, time.March, 5),
		DurationDays:      7,
		Status:            lending.ReservationPending,
		Position:          position,
		PriorityClass:     1,
		UpdatedAt:         time.Now().UTC(),
	}
}

func TestReservationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := sampleReservation("r1", "alice", 1)
	require.NoError(t, store.SaveReservation(ctx, r))

	got, err := store.GetReservation(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lending.ReservationPending, got.Status)
	assert.Equal(t, uint(1), got.Position)
	assert.Equal(t, 1, got.PriorityClass)
	assert.Equal(t, 7, got.DurationDays)
	assert.True(t, got.PickupWindowStart.Equal(r.PickupWindowStart))
	assert.Nil(t, got.HoldExpiresAt)
}

func TestOpenReservationsOrderedByPosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Saved out of position order, plus one closed entry.
	require.NoError(t, store.SaveReservation(ctx, sampleReservation("r2", "bob", 2)))
	require.NoError(t, store.SaveReservation(ctx, sampleReservation("r1", "alice", 1)))
	cancelled := sampleReservation("r3", "carol", 0)
	cancelled.Status = lending.ReservationCancelled
	require.NoError(t, store.SaveReservation(ctx, cancelled))

	open, err := store.OpenReservationsByBook(ctx, "dune")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, lending.ReservationID("r1"), open[0].ID)
	assert.Equal(t, lending.ReservationID("r2"), open[1].ID)

	byPair, err := store.OpenReservationByUserAndBook(ctx, "carol", "dune")
	require.NoError(t, err)
	assert.Nil(t, byPair)

	all, err := store.ReservationsByUser(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateReservationPersistsFulfillment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := sampleReservation("r1", "alice", 1)
	require.NoError(t, store.SaveReservation(ctx, r))

	r.Status = lending.ReservationFulfilled
	r.Position = 0
	r.HoldExpiresAt = datePtr(date(2026, time.March, 8))
	require.NoError(t, store.UpdateReservation(ctx, r))

	got, err := store.GetReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, lending.ReservationFulfilled, got.Status)
	assert.Equal(t, uint(0), got.Position)
	require.NotNil(t, got.HoldExpiresAt)
	assert.True(t, got.HoldExpiresAt.Equal(date(2026, time.March, 8)))
}

// =============================================================================
// SCORE EVENTS
// =============================================================================

func TestAppendEventEnforcesIdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	e := score.Event{
		ID:             "e1",
		UserID:         "alice",
		Delta:          score.NewPoints(150),
		Reason:         score.ReasonOnTimeReturn,
		ReferenceID:    "b1",
		IdempotencyKey: "return-b1",
		OccurredAt:     now,
		CreatedAt:      now,
	}
	require.NoError(t, store.AppendEvent(ctx, e))

	// Same key under a different event ID is still a replay.
	e.ID = "e2"
	err := store.AppendEvent(ctx, e)
	assert.ErrorIs(t, err, score.ErrDuplicateIdempotencyKey)

	exists, err := store.EventExists(ctx, "return-b1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEventsByUserOrderedAndDecoded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEvent(ctx, score.Event{
		ID: "e2", UserID: "alice", Delta: score.NewPoints(-50),
		Reason: score.ReasonLateReturn, IdempotencyKey: "k2",
		OccurredAt: base.Add(time.Hour), CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, store.AppendEvent(ctx, score.Event{
		ID: "e1", UserID: "alice", Delta: score.NewPoints(150),
		Reason: score.ReasonOnTimeReturn, IdempotencyKey: "k1",
		OccurredAt: base, CreatedAt: base,
	}))

	events, err := store.EventsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, score.EventID("e1"), events[0].ID)
	assert.Equal(t, float64(150), events[0].Delta.Float64())
	assert.Equal(t, float64(-50), events[1].Delta.Float64())
}

func TestLedgerOverSqliteStore(t *testing.T) {
	store := newTestStore(t)
	ledger := score.NewLedger(store)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, ledger.Append(ctx, score.Event{
		ID: "e1", UserID: "alice", Delta: score.NewPoints(150),
		Reason: score.ReasonOnTimeReturn, IdempotencyKey: "k1",
		OccurredAt: now, CreatedAt: now,
	}))
	require.NoError(t, ledger.Append(ctx, score.Event{
		ID: "e2", UserID: "alice", Delta: score.NewPoints(-25),
		Reason: score.ReasonReservationCancelled, IdempotencyKey: "k2",
		OccurredAt: now.Add(time.Second), CreatedAt: now.Add(time.Second),
	}))

	pts, err := ledger.CurrentScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(125), pts.Float64())
}

// =============================================================================
// USERS AND BANS
// =============================================================================

func TestUserUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, sqlite.User{ID: "alice", Name: "Alice", Email: "alice@example.com"}))
	require.NoError(t, store.SaveUser(ctx, sqlite.User{ID: "alice", Name: "Alice B", Email: "alice@example.com"}))

	u, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice B", u.Name)

	u, err = store.GetUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, lending.UserID("alice"), users[0].ID)
}

func TestBanWindows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, sqlite.User{ID: "mallory", Name: "Mallory"}))

	// GIVEN a ban running through tomorrow
	tomorrow := lending.Today().AddDays(1)
	require.NoError(t, store.BanUser(ctx, "mallory", &tomorrow))
	banned, err := store.IsBanned(ctx, "mallory")
	require.NoError(t, err)
	assert.True(t, banned)

	// WHEN the window has passed
	lastWeek := lending.Today().AddDays(-7)
	require.NoError(t, store.BanUser(ctx, "mallory", &lastWeek))
	banned, err = store.IsBanned(ctx, "mallory")
	require.NoError(t, err)
	assert.False(t, banned)

	// AND a nil window lifts the ban entirely
	require.NoError(t, store.BanUser(ctx, "mallory", nil))
	banned, err = store.IsBanned(ctx, "mallory")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBanUnknownUser(t *testing.T) {
	store := newTestStore(t)

	err := store.BanUser(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, lending.ErrNotFound)
}

func TestIsBannedUnknownUser(t *testing.T) {
	store := newTestStore(t)

	banned, err := store.IsBanned(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, banned)
}

// =============================================================================
// RESET
// =============================================================================

func TestResetClearsAllTables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveInventory(ctx, lending.BookInventory{BookID: "dune", TotalCopies: 1, AvailableCopies: 1}))
	require.NoError(t, store.SaveBorrow(ctx, sampleBorrow("b1", "alice")))
	require.NoError(t, store.SaveUser(ctx, sqlite.User{ID: "alice", Name: "Alice"}))

	require.NoError(t, store.Reset(ctx))

	inv, err := store.GetInventory(ctx, "dune")
	require.NoError(t, err)
	assert.Nil(t, inv)
	b, err := store.GetBorrow(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, b)
	u, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}

// =============================================================================
// FULL ENGINE OVER SQLITE
// =============================================================================

func TestServiceRunsOverSqlite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := lending.NewService(store, score.NewLedger(store), lending.DefaultConfig())
	svc.Notifier = lending.NopNotifier{}
	svc.Identity = store

	require.NoError(t, svc.Inventory().RegisterBook(ctx, "dune", 1))

	borrow, err := svc.Borrow(ctx, "alice", "dune", 7)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, "bob", "dune", lending.Today(), 7)
	require.NoError(t, err)

	_, err = svc.Return(ctx, borrow.ID)
	require.NoError(t, err)

	// The return scored Alice and promoted Bob, all through one store.
	pts, err := score.NewLedger(store).CurrentScore(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, pts.Float64() >= 150)

	bobBorrows, err := svc.UserBorrows(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobBorrows, 1)
	assert.True(t, bobBorrows[0].IsUncollectedHold())
}