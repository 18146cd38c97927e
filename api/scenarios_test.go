package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, srv http.Handler, id string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestListScenarios(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 4)
	assert.Equal(t, "single-employee", list[0].ID)
}

func TestLoadScenario_EveryScenarioLoads(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			_, srv := newTestServer(t)
			loadScenario(t, srv, s.ID)

			rec := do(t, srv, http.MethodPost, "/api/contributions", ComputeRequest{Regime: "employer", Period: "2025-03"})
			assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		})
	}
}

func TestLoadScenario_AnnualSettlementDecember(t *testing.T) {
	// GIVEN: Two identical earners with a December bonus, one settling annually
	_, srv := newTestServer(t)
	loadScenario(t, srv, "annual-settlement")

	// WHEN: Computing December old_age
	rec := do(t, srv, http.MethodPost, "/api/contributions", ComputeRequest{
		Regime: "employer", Levy: "old_age", Period: "2025-12",
	})

	// THEN: The anticipated one pays the year minus what was withheld,
	// the annual one pays the whole year
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[RunDTO](t, rec)
	require.Len(t, run.Lines, 2)
	assert.Equal(t, "emp-001", run.Lines[0].IndividualID)
	assert.True(t, run.Lines[0].Amount.Equal(decimal.NewFromInt(-425)), "got %s", run.Lines[0].Amount)
	assert.Equal(t, "emp-002", run.Lines[1].IndividualID)
	assert.True(t, run.Lines[1].Amount.Equal(decimal.NewFromInt(-1800)), "got %s", run.Lines[1].Amount)

	// AND: Over the year both pay the same
	rec = do(t, srv, http.MethodPost, "/api/contributions", ComputeRequest{
		Regime: "employer", Levy: "old_age", Period: "2025",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	year := decode[RunDTO](t, rec)
	assert.True(t, year.Lines[0].Amount.Equal(year.Lines[1].Amount))
}

func TestLoadScenario_LegislationChange(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "legislation-change")

	// 2024: (3000 - 1650) at 9%
	rec := do(t, srv, http.MethodPost, "/api/contributions", ComputeRequest{Regime: "employer", Levy: "old_age", Period: "2024-06"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[RunDTO](t, rec).Total.Equal(decimal.RequireFromString("-121.5")))

	// 2025: (3000 - 1750) at 10%
	rec = do(t, srv, http.MethodPost, "/api/contributions", ComputeRequest{Regime: "employer", Levy: "old_age", Period: "2025-06"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[RunDTO](t, rec).Total.Equal(decimal.NewFromInt(-125)))
}

func TestLoadScenario_ResetKeepsRuns(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "single-employee")
	rec := do(t, srv, http.MethodPost, "/api/contributions", ComputeRequest{Regime: "employer", Period: "2025-03"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[RunDTO](t, rec).ID

	loadScenario(t, srv, "mixed-population")

	rec = do(t, srv, http.MethodGet, "/api/contributions/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/individuals", nil)
	assert.Len(t, decode[[]IndividualDTO](t, rec), 4)
}

func TestLoadScenario_Unknown(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/scenarios/load", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCurrentScenario(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	loadScenario(t, srv, "annual-settlement")

	rec = do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Annual Settlement", decode[ScenarioDTO](t, rec).Name)
}
