/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario imports legislation, creates
	individuals and writes a year of monthly contribution bases.

AVAILABLE SCENARIOS:

	single-employee:     One non-executive, 3000 a month under a 3500 ceiling
	mixed-population:    Every kind of category, including exempt civil servants
	annual-settlement:   Anticipated vs annual settlement with a December bonus
	legislation-change:  Two snapshots, the ceiling rises in January 2025

HOW SCENARIOS WORK:
 1. Reset the population, inputs and legislation (runs are kept)
 2. Import the scenario legislation through the factory
 3. Create individuals
 4. Write monthly bases

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "annual-settlement"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
  - factory/legislation.go: Legislation document schema
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/cotsoc"
	"github.com/warp/contribution-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-employee",
		Name:        "Single Employee",
		Description: "One private non-executive earning 3000 a month under a 3500 ceiling",
		Year:        2025,
	},
	{
		ID:          "mixed-population",
		Name:        "Mixed Population",
		Description: "Executives, non-executives, contract and tenured civil servants",
		Year:        2025,
	},
	{
		ID:          "annual-settlement",
		Name:        "Annual Settlement",
		Description: "Same wages, one anticipated and one annual individual, December bonus",
		Year:        2025,
	},
	{
		ID:          "legislation-change",
		Name:        "Legislation Change",
		Description: "Ceiling and rates change on January 1st 2025",
		Year:        2025,
	},
}

// scenarioLegislation has two snapshots. Tenured civil servants have no
// old_age schedule: they compute to zero and show in the missing report.
const scenarioLegislation = `
snapshots:
  - valid_from: "2024-01-01"
    monthly_ceiling: 3300
    employer:
      prive_non_cadre:
        old_age:
          - {threshold: 0, rate: 0}
          - {threshold: 0.5, rate: 0.09}
          - {threshold: 1, rate: 0.18}
      prive_cadre:
        old_age:
          - {threshold: 0, rate: 0.05}
    employee:
      prive_non_cadre:
        health:
          - {threshold: 0, rate: 0.01}
      prive_cadre:
        health:
          - {threshold: 0, rate: 0.01}
  - valid_from: "2025-01-01"
    monthly_ceiling: 3500
    employer:
      prive_non_cadre:
        old_age:
          - {threshold: 0, rate: 0}
          - {threshold: 0.5, rate: 0.10}
          - {threshold: 1, rate: 0.20}
      prive_cadre:
        old_age:
          - {threshold: 0, rate: 0.05}
        executive_pension:
          - {threshold: 0, rate: 0}
          - {threshold: 1, rate: 0.0127}
      public_non_titulaire:
        old_age:
          - {threshold: 0, rate: 0.042}
          - {threshold: 1, rate: 0}
    employee:
      prive_non_cadre:
        health:
          - {threshold: 0, rate: 0.01}
      prive_cadre:
        health:
          - {threshold: 0, rate: 0.01}
      public_non_titulaire:
        health:
          - {threshold: 0, rate: 0.01}
      public_titulaire_etat:
        health:
          - {threshold: 0, rate: 0.01}
`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "single-employee":
		load = h.loadSingleEmployeeScenario
	case "mixed-population":
		load = h.loadMixedPopulationScenario
	case "annual-settlement":
		load = h.loadAnnualSettlementScenario
	case "legislation-change":
		load = h.loadLegislationChangeScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, "Failed to reset database", err)
		return
	}
	h.setScenario("")

	if err := h.importScenarioLegislation(ctx); err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	if err := load(ctx); err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	h.setScenario(req.ScenarioID)

	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSingleEmployeeScenario(ctx context.Context) error {
	if err := h.createIndividual(ctx, "emp-001", "Alice Martin", cotsoc.CategoryPrivateNonExecutive, cotsoc.SettlementAnticipated); err != nil {
		return err
	}
	return h.writeYearOfWages(ctx, "emp-001", 2025, "3000", nil)
}

func (h *Handler) loadMixedPopulationScenario(ctx context.Context) error {
	people := []struct {
		id       string
		name     string
		category cotsoc.Category
		wage     string
	}{
		{"emp-001", "Alice Martin", cotsoc.CategoryPrivateNonExecutive, "3000"},
		{"emp-002", "Bruno Petit", cotsoc.CategoryPrivateExecutive, "5200"},
		{"emp-003", "Chloé Durand", cotsoc.CategoryPublicContractual, "2400"},
		{"emp-004", "David Leroy", cotsoc.CategoryCivilServiceState, "2900"},
	}
	for _, p := range people {
		if err := h.createIndividual(ctx, p.id, p.name, p.category, cotsoc.SettlementAnticipated); err != nil {
			return err
		}
		if err := h.writeYearOfWages(ctx, p.id, 2025, p.wage, nil); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadAnnualSettlementScenario(ctx context.Context) error {
	bonus := map[time.Month]string{time.December: "6000"}

	if err := h.createIndividual(ctx, "emp-001", "Alice Martin", cotsoc.CategoryPrivateNonExecutive, cotsoc.SettlementAnticipated); err != nil {
		return err
	}
	if err := h.writeYearOfWages(ctx, "emp-001", 2025, "3000", bonus); err != nil {
		return err
	}
	if err := h.createIndividual(ctx, "emp-002", "Élise Bernard", cotsoc.CategoryPrivateNonExecutive, cotsoc.SettlementAnnual); err != nil {
		return err
	}
	return h.writeYearOfWages(ctx, "emp-002", 2025, "3000", bonus)
}

func (h *Handler) loadLegislationChangeScenario(ctx context.Context) error {
	if err := h.createIndividual(ctx, "emp-001", "Alice Martin", cotsoc.CategoryPrivateNonExecutive, cotsoc.SettlementAnticipated); err != nil {
		return err
	}
	for _, year := range []int{2024, 2025} {
		if err := h.writeYearOfWages(ctx, "emp-001", year, "3000", nil); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) importScenarioLegislation(ctx context.Context) error {
	docs, err := h.LegislationFactory.Split("yaml", []byte(scenarioLegislation))
	if err != nil {
		return err
	}
	for _, doc := range docs {
		doc.CreatedAt = h.now()
		if err := h.Store.SaveLegislation(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createIndividual(ctx context.Context, id, name string, category cotsoc.Category, mode cotsoc.SettlementMode) error {
	return h.Store.SaveIndividual(ctx, generic.Individual{
		ID:   generic.EntityID(id),
		Name: name,
		Constants: map[string]decimal.Decimal{
			cotsoc.VarCategory:       decimal.NewFromInt(int64(category)),
			cotsoc.VarSettlementMode: decimal.NewFromInt(int64(mode)),
		},
	})
}

// writeYearOfWages writes the same base every month of the year, except the
// months listed in overrides.
func (h *Handler) writeYearOfWages(ctx context.Context, id string, year int, monthly string, overrides map[time.Month]string) error {
	records := make([]generic.InputRecord, 0, 12)
	for _, month := range generic.Year(year).Months() {
		amount := monthly
		if o, ok := overrides[month.Start.Month()]; ok {
			amount = o
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("wage %s for %s: %w", amount, month, err)
		}
		records = append(records, generic.InputRecord{
			EntityID: generic.EntityID(id),
			Variable: cotsoc.VarBase,
			Month:    month,
			Value:    value,
		})
	}
	return h.Store.PutInputs(ctx, records)
}
