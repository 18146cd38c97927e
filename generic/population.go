package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// POPULATION - Builds a Simulation from stored records
// =============================================================================

// Population is a loaded simulation together with the individual order its
// vectors follow.
type Population struct {
	IDs        []EntityID
	Simulation *Simulation
}

// LoadPopulation replays stored inputs into a fresh simulation.
//
// Inputs are loaded from January of the year of period.Start up to the end
// of the period, since a December computation reads the whole year.
func LoadPopulation(ctx context.Context, store Store, registry *Registry, period Period) (*Population, error) {
	individuals, err := store.Individuals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load individuals: %w", err)
	}

	index := make(map[EntityID]int, len(individuals))
	ids := make([]EntityID, len(individuals))
	for i, ind := range individuals {
		index[ind.ID] = i
		ids[i] = ind.ID
	}

	sim := NewSimulation(registry, len(individuals))

	// Constants: one vector per variable, zero for individuals that lack it.
	constants := make(map[string]Vector)
	for i, ind := range individuals {
		for name, value := range ind.Constants {
			if _, ok := constants[name]; !ok {
				constants[name] = Zeros(len(individuals))
			}
			constants[name][i] = value
		}
	}
	for name, values := range constants {
		if err := sim.SetConstant(name, values); err != nil {
			return nil, err
		}
	}

	from := StartOfYear(period.Start.Year())
	records, err := store.InputsInRange(ctx, from, period.End())
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}

	monthly := make(map[string]map[string]Vector)
	months := make(map[string]Period)
	for _, rec := range records {
		i, ok := index[rec.EntityID]
		if !ok {
			continue
		}
		key := rec.Month.String()
		if monthly[rec.Variable] == nil {
			monthly[rec.Variable] = make(map[string]Vector)
		}
		if _, ok := monthly[rec.Variable][key]; !ok {
			monthly[rec.Variable][key] = Zeros(len(individuals))
		}
		monthly[rec.Variable][key][i] = rec.Value
		months[key] = rec.Month
	}
	for name, byMonth := range monthly {
		for key, values := range byMonth {
			if err := sim.SetInput(name, months[key], values); err != nil {
				return nil, err
			}
		}
	}

	return &Population{IDs: ids, Simulation: sim}, nil
}

// Lines pairs a computed vector with the population's IDs.
func (p *Population) Lines(values Vector) []RunLine {
	lines := make([]RunLine, len(p.IDs))
	for i, id := range p.IDs {
		lines[i] = RunLine{EntityID: id, Value: values[i]}
	}
	return lines
}
