package cotsoc

import (
	"fmt"

	"github.com/warp/contribution-engine/generic"
)

// Input and derived variable names.
const (
	// VarBase is the monthly contribution base (gross wage subject to levies).
	VarBase = "contribution_base"
	// VarCeiling is the monthly social-security ceiling. Derived from the
	// legislation unless set as an input.
	VarCeiling = "social_security_ceiling"
	// VarCategory holds Category codes.
	VarCategory = "employment_category"
	// VarSettlementMode holds SettlementMode codes.
	VarSettlementMode = "settlement_mode"
)

// TotalVariable is the sum of every levy of a regime, e.g. "employer_contributions".
func TotalVariable(r Regime) string {
	return string(r) + "_contributions"
}

// Register adds the contribution inputs, one variable per levy, and one
// total per regime.
func Register(reg *generic.Registry, law LegislationSource, levies []Levy) error {
	if reg == nil {
		return generic.Missing("registry")
	}
	if law == nil {
		return generic.Missing("legislation")
	}
	inputs := []generic.Variable{
		{Name: VarBase, Label: "Contribution base", Kind: generic.KindMonthlyInput},
		{Name: VarCeiling, Label: "Social-security ceiling", Kind: generic.KindMonthlyInput, Formula: ceilingFormula(law)},
		{Name: VarCategory, Label: "Employment category", Kind: generic.KindConstantInput},
		{Name: VarSettlementMode, Label: "Settlement mode", Kind: generic.KindConstantInput},
	}
	for _, v := range inputs {
		if err := reg.Register(v); err != nil {
			return err
		}
	}

	byRegime := make(map[Regime][]Levy)
	for _, l := range levies {
		if l.Name == "" {
			return generic.Missing("levy name")
		}
		if _, err := ParseRegime(string(l.Regime)); err != nil {
			return err
		}
		err := reg.Register(generic.Variable{
			Name:    l.Variable(),
			Label:   fmt.Sprintf("%s contribution %s", l.Regime, l.Name),
			Kind:    generic.KindFormula,
			Formula: l.Formula(law),
		})
		if err != nil {
			return err
		}
		byRegime[l.Regime] = append(byRegime[l.Regime], l)
	}

	for _, r := range Regimes() {
		err := reg.Register(generic.Variable{
			Name:    TotalVariable(r),
			Label:   fmt.Sprintf("Total %s contributions", r),
			Kind:    generic.KindFormula,
			Formula: totalFormula(byRegime[r]),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func ceilingFormula(law LegislationSource) generic.Formula {
	return func(s *generic.Simulation, period generic.Period) (generic.Vector, error) {
		snapshot, err := law.At(period.Start)
		if err != nil {
			return nil, err
		}
		return generic.Fill(s.Size(), snapshot.MonthlyCeiling), nil
	}
}

func totalFormula(levies []Levy) generic.Formula {
	return func(s *generic.Simulation, period generic.Period) (generic.Vector, error) {
		total := generic.Zeros(s.Size())
		for _, l := range levies {
			values, err := s.Calculate(l.Variable(), period)
			if err != nil {
				return nil, err
			}
			total = total.Add(values)
		}
		return total, nil
	}
}
