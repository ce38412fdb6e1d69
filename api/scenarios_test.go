package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodGet, "/api/scenarios", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))
}

func TestLoadScenario_SmallTeam(t *testing.T) {
	// GIVEN: nothing loaded yet
	f := newAPI(t)
	rec := f.do(http.MethodGet, "/api/scenarios/current", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	// WHEN
	rec = f.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "small-team"})

	// THEN: the seeded users replaced the fixture
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodGet, "/api/profiles", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]ProfileDTO](t, rec), 5)

	rec = f.do(http.MethodGet, "/api/profile", "u1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "fixture users are gone")

	// AND: March 2-9 are logged, one request waits for review
	rec = f.do(http.MethodGet, "/api/time-entries?from=2026-03-01&to=2026-03-31", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TimeEntryDTO](t, rec), 6)

	rec = f.do(http.MethodGet, "/api/vacation-requests/review", "mgr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ReviewItemDTO](t, rec), 1)

	rec = f.do(http.MethodGet, "/api/scenarios/current", "", nil)
	assert.Equal(t, "small-team", decode[ScenarioDTO](t, rec).ID)
}

func TestLoadScenario_SickSeason(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "sick-season"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/admin/sick-stats", "admin", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[SickStatsDTO](t, rec)
	assert.Equal(t, 5, stats.PopulationSize)
	assert.Equal(t, 2, stats.CurrentlySick)
	assert.Equal(t, 3, stats.AffectedEmployees)
}

func TestLoadScenario_OverAllocation(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "over-allocation"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/dashboard/vacation?year=2026&user_id=emp-3", "mgr-1", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[VacationBalanceDTO](t, rec)
	assert.Equal(t, 15, b.Approved)
	assert.Equal(t, 10, b.Pending)
	assert.Equal(t, -5, b.Remaining)
}

func TestLoadScenario_Unknown(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
