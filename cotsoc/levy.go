package cotsoc

import (
	"fmt"

	"github.com/warp/contribution-engine/generic"
)

// =============================================================================
// LEVY - One named contribution on one side
// =============================================================================

// Levy identifies a contribution: its name in the legislation and the
// regime paying it.
type Levy struct {
	Regime Regime
	Name   string
}

// Variable is the simulation variable holding the levy, e.g.
// "old_age_capped_employer".
func (l Levy) Variable() string {
	return l.Name + "_" + string(l.Regime)
}

func (l Levy) String() string { return l.Variable() }

// Resolver is what a levy reads from the surrounding rule engine.
// *generic.Simulation implements it.
type Resolver interface {
	Accumulator
	Calculate(name string, period generic.Period) (generic.Vector, error)
}

// ComputeFor computes the levy on the base and ceiling accumulated over
// the period, under the legislation in force at the period start.
func (l Levy) ComputeFor(r Resolver, law LegislationSource, period generic.Period) (generic.Vector, error) {
	if l.Name == "" {
		return nil, generic.Missing("levy name")
	}
	if _, err := ParseRegime(string(l.Regime)); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, generic.Missing("resolver")
	}
	if law == nil {
		return nil, generic.Missing("legislation")
	}

	snapshot, err := law.At(period.Start)
	if err != nil {
		return nil, err
	}
	table, err := snapshot.Table(l.Regime)
	if err != nil {
		return nil, err
	}

	base, err := r.CalculateAdd(VarBase, period, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarBase, err)
	}
	ceiling, err := r.CalculateAdd(VarCeiling, period, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarCeiling, err)
	}
	codes, err := r.Calculate(VarCategory, period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarCategory, err)
	}
	categories, err := CategoriesFrom(codes)
	if err != nil {
		return nil, err
	}

	return Aggregate(table, l.Name, categories, base, ceiling, DefaultRoundDecimals)
}

// Formula wires the levy into a simulation: the settlement resolver over
// ComputeFor, with the levy's own variable as the December reference.
func (l Levy) Formula(law LegislationSource) generic.Formula {
	return func(s *generic.Simulation, period generic.Period) (generic.Vector, error) {
		codes, err := s.Calculate(VarSettlementMode, period)
		if err != nil {
			return nil, err
		}
		modes, err := ModesFrom(codes)
		if err != nil {
			return nil, err
		}
		compute := func(p generic.Period) (generic.Vector, error) {
			return l.ComputeFor(s, law, p)
		}
		return Resolve(period, modes, compute, &SelfRef{Variable: l.Variable(), Source: s})
	}
}
