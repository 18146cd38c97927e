/*
store.go - Persistence interface for populations, legislation and runs

PURPOSE:
  Defines the interface between the computation engine and the database.
  The engine itself is pure; the Store holds what it is fed (individuals
  and their monthly inputs, legislation documents) and what it produced
  (contribution runs).

KEY RECORDS:
  Individual:          Identity plus constant inputs (category, settlement mode)
  InputRecord:         One monthly input value for one individual
  LegislationDocument: Raw legislation source valid from a date
  Run:                 A computed variable for a period, one line per individual

APPEND-ONLY RUNS:
  Runs are never updated or deleted. Recomputing creates a new run with a
  new ID, so every figure ever returned can be traced back.

INPUT OVERRIDES:
  Inputs are keyed by (entity, variable, month). Writing the same key again
  replaces the value: inputs are corrections to source data, not ledger
  entries.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - population.go: Builds a Simulation from a Store
*/
package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORDS
// =============================================================================

type EntityID string

// Individual is one member of the population.
type Individual struct {
	ID   EntityID
	Name string

	// Constants holds constant inputs by variable name.
	Constants map[string]decimal.Decimal
}

// InputRecord is the value of a monthly input for one individual and month.
type InputRecord struct {
	EntityID EntityID
	Variable string
	Month    Period
	Value    decimal.Decimal
}

// LegislationDocument is a legislation source as submitted.
type LegislationDocument struct {
	ValidFrom TimePoint
	Format    string // "yaml" or "json"
	Body      []byte
	CreatedAt time.Time
}

// Run is the stored output of one computation.
type Run struct {
	ID        string
	Variable  string
	Period    Period
	CreatedAt time.Time
	Lines     []RunLine
}

type RunLine struct {
	EntityID EntityID
	Value    decimal.Decimal
}

// Total sums the run lines.
func (r Run) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.Value)
	}
	return total
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the population, legislation sources and runs.
type Store interface {
	// SaveIndividual creates or replaces an individual.
	SaveIndividual(ctx context.Context, ind Individual) error

	// Individual loads one individual. Returns ErrIndividualNotFound.
	Individual(ctx context.Context, id EntityID) (Individual, error)

	// Individuals returns the population ordered by ID.
	Individuals(ctx context.Context) ([]Individual, error)

	// PutInputs writes monthly inputs; existing keys are replaced.
	PutInputs(ctx context.Context, records []InputRecord) error

	// InputsInRange returns inputs for months starting in [from, to].
	InputsInRange(ctx context.Context, from, to TimePoint) ([]InputRecord, error)

	// SaveLegislation stores a legislation document, replacing any document
	// with the same ValidFrom.
	SaveLegislation(ctx context.Context, doc LegislationDocument) error

	// LegislationDocuments returns all documents ordered by ValidFrom.
	LegislationDocuments(ctx context.Context) ([]LegislationDocument, error)

	// AppendRun persists a run. Append-only.
	AppendRun(ctx context.Context, run Run) error

	// Run loads a run with its lines. Returns ErrRunNotFound.
	Run(ctx context.Context, id string) (Run, error)

	// LatestRun loads the most recently appended run of a variable for a
	// period. Returns ErrRunNotFound.
	LatestRun(ctx context.Context, variable string, period Period) (Run, error)

	// Reset removes individuals, inputs and legislation. Runs survive.
	Reset(ctx context.Context) error
}
