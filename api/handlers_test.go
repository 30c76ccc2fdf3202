/*
handlers_test.go - HTTP-level tests for the engine API

Covers the borrow/reserve/return flow end to end over the router, plus
the error-to-status mapping for the common failure modes.
*/
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
	"github.com/shelfline/lending-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	scores := score.NewLedger(store)
	svc := lending.NewService(store, scores, lending.DefaultConfig())
	svc.Identity = store
	svc.Notifier = lending.NopNotifier{}

	server := httptest.NewServer(NewRouter(NewHandler(svc, store, scores)))
	t.Cleanup(server.Close)
	return server, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func createUser(t *testing.T, base, id string) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, base+"/api/users", map[string]string{
		"id": id, "name": id,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func registerBook(t *testing.T, base, id string, copies uint) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, base+"/api/books", map[string]any{
		"book_id": id, "total_copies": copies,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// BORROW FLOW
// =============================================================================

func TestBorrowFlowOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	createUser(t, base, "alice")
	registerBook(t, base, "dune", 2)

	// WHEN alice borrows over the API
	resp := doJSON(t, http.MethodPost, base+"/api/borrows", map[string]any{
		"user_id": "alice", "book_id": "dune", "days": 14,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var borrow BorrowDTO
	decode(t, resp, &borrow)
	assert.Equal(t, "alice", borrow.UserID)
	assert.Equal(t, "active", borrow.Status)
	assert.NotEmpty(t, borrow.DueDate)

	// THEN the inventory reflects the claim
	resp = doJSON(t, http.MethodGet, base+"/api/books/dune", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inv InventoryDTO
	decode(t, resp, &inv)
	assert.Equal(t, uint(1), inv.AvailableCopies)

	// AND the return frees it and scores alice
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/borrows/%s/return", base, borrow.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/api/users/alice/score", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary ScoreSummaryDTO
	decode(t, resp, &summary)
	assert.GreaterOrEqual(t, summary.Score, float64(150))
	assert.Equal(t, "Bronze", summary.Tier)
}

func TestReservationFlowOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	createUser(t, base, "alice")
	createUser(t, base, "bob")
	registerBook(t, base, "dune", 1)

	resp := doJSON(t, http.MethodPost, base+"/api/borrows", map[string]any{
		"user_id": "alice", "book_id": "dune", "days": 14,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// WHEN bob reserves the contested title
	resp = doJSON(t, http.MethodPost, base+"/api/reservations", map[string]any{
		"user_id": "bob", "book_id": "dune", "days": 7,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var reservation ReservationDTO
	decode(t, resp, &reservation)
	assert.Equal(t, uint(1), reservation.Position)
	assert.Equal(t, "pending", reservation.Status)

	// THEN the queue and forecast agree
	resp = doJSON(t, http.MethodGet, base+"/api/books/dune/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var queue []ReservationDTO
	decode(t, resp, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, "bob", queue[0].UserID)

	resp = doJSON(t, http.MethodGet, base+"/api/books/dune/forecast", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var forecast ForecastDTO
	decode(t, resp, &forecast)
	assert.Equal(t, 1, forecast.QueueLength)
	assert.Equal(t, uint(0), forecast.AvailableCopies)

	// AND cancelling empties the queue again
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/reservations/%s", base, reservation.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCalendarOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	registerBook(t, base, "dune", 1)

	resp := doJSON(t, http.MethodGet, base+"/api/books/dune/calendar", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var days []CalendarDayDTO
	decode(t, resp, &days)
	// Default window is today through +30 inclusive.
	assert.Len(t, days, 31)
	assert.Equal(t, "available", days[0].Status)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestNotFoundMapsTo404(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/books/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/borrows", map[string]any{
		"user_id": "alice", "book_id": "ghost", "days": 7,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConflictMapsTo409(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	registerBook(t, base, "dune", 1)

	resp := doJSON(t, http.MethodPost, base+"/api/borrows", map[string]any{
		"user_id": "alice", "book_id": "dune", "days": 7,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Second user, no copy: the engine's capacity refusal is a conflict.
	resp = doJSON(t, http.MethodPost, base+"/api/borrows", map[string]any{
		"user_id": "bob", "book_id": "dune", "days": 7,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, resp, &errResp)
	assert.NotEmpty(t, errResp.Error)
}

func TestBannedUserMapsTo422(t *testing.T) {
	server, store := newTestServer(t)
	base := server.URL
	createUser(t, base, "mallory")
	registerBook(t, base, "dune", 1)

	until := lending.Today().AddDays(30)
	resp := doJSON(t, http.MethodPost, base+"/api/users/mallory/ban", map[string]string{
		"until": until.String(),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	banned, err := store.IsBanned(context.Background(), "mallory")
	require.NoError(t, err)
	assert.True(t, banned)

	resp = doJSON(t, http.MethodPost, base+"/api/borrows", map[string]any{
		"user_id": "mallory", "book_id": "dune", "days": 7,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdjustScoreReplayMapsTo409(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	createUser(t, base, "alice")

	body := map[string]any{"delta": 100, "reason": "migration", "idempotency_key": "adj-1"}
	resp := doJSON(t, http.MethodPost, base+"/api/users/alice/score/adjust", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/api/users/alice/score/adjust", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestTriggerSweepReportsCounts(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var counts map[string]int
	decode(t, resp, &counts)
	assert.Contains(t, counts, "holds_expired")
	assert.Contains(t, counts, "due_soon_emitted")
}

func TestListUsersEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	createUser(t, base, "alice")
	createUser(t, base, "bob")

	resp := doJSON(t, http.MethodGet, base+"/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []UserDTO
	decode(t, resp, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].ID)
}

func TestTiersEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/tiers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tiers []TierDTO
	decode(t, resp, &tiers)
	require.Len(t, tiers, 4)
	assert.Equal(t, "Bronze", tiers[0].Name)
	assert.Equal(t, "Platinum", tiers[3].Name)
}
