/*
scenarios_test.go - Tests for the demo scenario loaders

Each scenario must load cleanly into an empty database and leave the
engine in a consistent, queryable state.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, base, id string) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, base+"/api/scenarios/load", map[string]string{
		"scenario_id": id,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListScenarios(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/scenarios", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []ScenarioDTO
	decode(t, resp, &list)
	require.Len(t, list, 3)
	assert.Equal(t, "small-branch", list[0].ID)
}

func TestLoadUnknownScenario(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/scenarios/load", map[string]string{
		"scenario_id": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSmallBranchScenarioLoads(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	loadScenario(t, base, "small-branch")

	// Three titles registered, with some copies out on loan.
	resp := doJSON(t, http.MethodGet, base+"/api/books", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var books []InventoryDTO
	decode(t, resp, &books)
	assert.Len(t, books, 3)

	resp = doJSON(t, http.MethodGet, base+"/api/users/alice/borrows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var borrows []BorrowDTO
	decode(t, resp, &borrows)
	assert.NotEmpty(t, borrows)
}

func TestContestedTitleScenarioBuildsPriorityQueue(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	loadScenario(t, base, "contested-title")

	resp := doJSON(t, http.MethodGet, base+"/api/books/project-hail-mary/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var queue []ReservationDTO
	decode(t, resp, &queue)
	require.Len(t, queue, 3)

	// Higher priority classes sit ahead regardless of join order.
	for i := 1; i < len(queue); i++ {
		assert.GreaterOrEqual(t, queue[i-1].PriorityClass, queue[i].PriorityClass)
		assert.Equal(t, uint(i+1), queue[i].Position)
	}
}

func TestTierJourneysScenarioSeedsScores(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL
	loadScenario(t, base, "tier-journeys")

	cases := map[string]string{
		"newcomer":  "Bronze",
		"regular":   "Silver",
		"bookworm":  "Gold",
		"librarian": "Platinum",
	}
	for user, tier := range cases {
		resp := doJSON(t, http.MethodGet, base+"/api/users/"+user+"/score", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var summary ScoreSummaryDTO
		decode(t, resp, &summary)
		assert.Equal(t, tier, summary.Tier, "user %s", user)
	}
}

func TestScenariosAreRepeatable(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL

	// A scenario load resets whatever came before it.
	loadScenario(t, base, "contested-title")
	loadScenario(t, base, "small-branch")

	resp := doJSON(t, http.MethodGet, base+"/api/books", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var books []InventoryDTO
	decode(t, resp, &books)
	assert.Len(t, books, 3)
}
