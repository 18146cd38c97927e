/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the computation model (vectors indexed by position) from the external
  API contract (amounts keyed by individual).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Decimal amounts are serialized as JSON strings ("-125.00") by
  shopspring/decimal, so no precision is lost in transit.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/legislation.go: Legislation document schema
*/
package api

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INDIVIDUALS
// =============================================================================

// IndividualDTO represents an individual in API responses.
type IndividualDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Category       string `json:"category"`
	SettlementMode string `json:"settlement_mode"`
}

// CreateIndividualRequest creates or replaces an individual.
type CreateIndividualRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	SettlementMode string `json:"settlement_mode"` // "anticipated" (default) or "annual"
}

// =============================================================================
// INPUTS
// =============================================================================

// WageDTO is one monthly contribution base.
type WageDTO struct {
	IndividualID string          `json:"individual_id"`
	Month        string          `json:"month"` // "2025-03"
	Amount       decimal.Decimal `json:"amount"`
}

// PutWagesRequest writes monthly bases. Existing months are replaced.
type PutWagesRequest struct {
	Wages []WageDTO `json:"wages"`
}

// PutWagesResponse reports how many months were written.
type PutWagesResponse struct {
	Written int `json:"written"`
}

// =============================================================================
// LEGISLATION
// =============================================================================

// LegislationDTO summarizes one stored legislation snapshot.
type LegislationDTO struct {
	ValidFrom      string            `json:"valid_from"`
	Format         string            `json:"format"`
	MonthlyCeiling string            `json:"monthly_ceiling,omitempty"`
	CreatedAt      string            `json:"created_at,omitempty"`
	Missing        []MissingEntryDTO `json:"missing,omitempty"`
}

// MissingEntryDTO lists the categories without a schedule for a levy.
type MissingEntryDTO struct {
	Regime     string   `json:"regime"`
	Levy       string   `json:"levy"`
	Categories []string `json:"categories"`
}

// VariableDTO is a variable the engine can compute or read.
type VariableDTO struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Kind  string `json:"kind"`
}

// LevyDTO is a levy known to the stored legislation.
type LevyDTO struct {
	Regime   string `json:"regime"`
	Name     string `json:"name"`
	Variable string `json:"variable"`
}

// =============================================================================
// CONTRIBUTIONS
// =============================================================================

// ComputeRequest asks for one levy (or a regime total when Levy is empty)
// over a period.
type ComputeRequest struct {
	Regime string `json:"regime"`
	Levy   string `json:"levy,omitempty"`
	Period string `json:"period"` // "2025-03", "2025" or "month:2025-01:11"
}

// RunDTO is a stored computation.
type RunDTO struct {
	ID        string          `json:"id"`
	Variable  string          `json:"variable"`
	Period    string          `json:"period"`
	CreatedAt string          `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
	Lines     []RunLineDTO    `json:"lines"`
}

// RunLineDTO is the amount for one individual.
type RunLineDTO struct {
	IndividualID string          `json:"individual_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
