// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	individuals map[generic.EntityID]generic.Individual
	inputs      map[inputKey]generic.InputRecord
	legislation map[string]generic.LegislationDocument
	runs        map[string]generic.Run
	runOrder    []string
}

type inputKey struct {
	EntityID generic.EntityID
	Variable string
	Month    string
}

func NewMemory() *Memory {
	return &Memory{
		individuals: make(map[generic.EntityID]generic.Individual),
		inputs:      make(map[inputKey]generic.InputRecord),
		legislation: make(map[string]generic.LegislationDocument),
		runs:        make(map[string]generic.Run),
	}
}

func (m *Memory) SaveIndividual(_ context.Context, ind generic.Individual) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.individuals[ind.ID] = copyIndividual(ind)
	return nil
}

func (m *Memory) Individual(_ context.Context, id generic.EntityID) (generic.Individual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ind, ok := m.individuals[id]
	if !ok {
		return generic.Individual{}, generic.ErrIndividualNotFound
	}
	return copyIndividual(ind), nil
}

func (m *Memory) Individuals(_ context.Context) ([]generic.Individual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.Individual, 0, len(m.individuals))
	for _, ind := range m.individuals {
		result = append(result, copyIndividual(ind))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PutInputs writes all records or none.
func (m *Memory) PutInputs(_ context.Context, records []generic.InputRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if _, ok := m.individuals[rec.EntityID]; !ok {
			return generic.ErrIndividualNotFound
		}
	}
	for _, rec := range records {
		month := rec.Month.ThisMonth()
		rec.Month = month
		m.inputs[inputKey{EntityID: rec.EntityID, Variable: rec.Variable, Month: month.String()}] = rec
	}
	return nil
}

func (m *Memory) InputsInRange(_ context.Context, from, to generic.TimePoint) ([]generic.InputRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.InputRecord
	for _, rec := range m.inputs {
		if from.BeforeOrEqual(rec.Month.Start) && rec.Month.Start.BeforeOrEqual(to) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Month.Start.Equal(result[j].Month.Start) {
			return result[i].Month.Start.Before(result[j].Month.Start)
		}
		if result[i].EntityID != result[j].EntityID {
			return result[i].EntityID < result[j].EntityID
		}
		return result[i].Variable < result[j].Variable
	})
	return result, nil
}

func (m *Memory) SaveLegislation(_ context.Context, doc generic.LegislationDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.Body = append([]byte(nil), doc.Body...)
	m.legislation[doc.ValidFrom.String()] = doc
	return nil
}

func (m *Memory) LegislationDocuments(_ context.Context) ([]generic.LegislationDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.LegislationDocument, 0, len(m.legislation))
	for _, doc := range m.legislation {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ValidFrom.Before(result[j].ValidFrom) })
	return result, nil
}

// AppendRun adds a run. Append-only: an existing ID is rejected.
func (m *Memory) AppendRun(_ context.Context, run generic.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return generic.ErrDuplicateRun
	}
	run.Lines = append([]generic.RunLine(nil), run.Lines...)
	m.runs[run.ID] = run
	m.runOrder = append(m.runOrder, run.ID)
	return nil
}

func (m *Memory) Run(_ context.Context, id string) (generic.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return generic.Run{}, generic.ErrRunNotFound
	}
	run.Lines = append([]generic.RunLine(nil), run.Lines...)
	return run, nil
}

// LatestRun scans runs from the most recently appended.
func (m *Memory) LatestRun(_ context.Context, variable string, period generic.Period) (generic.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		run := m.runs[m.runOrder[i]]
		if run.Variable == variable && run.Period.String() == period.String() {
			run.Lines = append([]generic.RunLine(nil), run.Lines...)
			return run, nil
		}
	}
	return generic.Run{}, generic.ErrRunNotFound
}

// Reset clears everything but the runs.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.individuals = make(map[generic.EntityID]generic.Individual)
	m.inputs = make(map[inputKey]generic.InputRecord)
	m.legislation = make(map[string]generic.LegislationDocument)
	return nil
}

func copyIndividual(ind generic.Individual) generic.Individual {
	constants := make(map[string]decimal.Decimal, len(ind.Constants))
	for k, v := range ind.Constants {
		constants[k] = v
	}
	ind.Constants = constants
	return ind
}
