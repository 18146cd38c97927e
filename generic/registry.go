/*
registry.go - Variable registration and lookup

PURPOSE:
  Provides a registry that domain packages fill with their variables:
  inputs (values supplied per month or once for the whole population)
  and formulas (values derived from other variables for a period).

HOW IT WORKS:
  1. Domain packages define Variables
  2. They register them on a Registry at startup
  3. Every Simulation built from the registry resolves names through it

USAGE:
  reg := generic.NewRegistry()
  reg.MustRegister(generic.Variable{Name: "salary", Kind: generic.KindMonthlyInput})
  reg.MustRegister(generic.Variable{Name: "net", Formula: netFormula})

SEE ALSO:
  - simulation.go: Resolves registered variables for a period
  - cotsoc/variables.go: Contribution variables
*/
package generic

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// VARIABLE
// =============================================================================

// VariableKind tells the simulation where a variable's values come from.
type VariableKind string

const (
	// KindMonthlyInput values are set per individual for each month.
	KindMonthlyInput VariableKind = "monthly_input"
	// KindConstantInput values are set once and hold for every period.
	KindConstantInput VariableKind = "constant_input"
	// KindFormula values are computed by the variable's Formula.
	KindFormula VariableKind = "formula"
)

// Formula computes a variable for the whole population over a period.
// It must return a vector of the simulation's population size.
type Formula func(s *Simulation, period Period) (Vector, error)

// Variable describes one named quantity.
type Variable struct {
	Name  string
	Label string
	Kind  VariableKind

	// Formula is required for KindFormula. For KindMonthlyInput it is an
	// optional fallback used for months with no input set.
	Formula Formula
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is the set of variables a simulation can resolve.
type Registry struct {
	mu        sync.RWMutex
	variables map[string]Variable
}

func NewRegistry() *Registry {
	return &Registry{variables: make(map[string]Variable)}
}

// Register adds a variable. Names are unique.
func (r *Registry) Register(v Variable) error {
	if v.Name == "" {
		return Missing("variable name")
	}
	if v.Kind == "" {
		v.Kind = KindFormula
	}
	if v.Kind == KindFormula && v.Formula == nil {
		return &ConfigurationError{Field: v.Name, Reason: "formula variable without formula"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.variables[v.Name]; exists {
		return &ConfigurationError{Field: v.Name, Reason: "variable registered twice"}
	}
	r.variables[v.Name] = v
	return nil
}

// MustRegister registers or panics. Use during startup wiring.
func (r *Registry) MustRegister(v Variable) {
	if err := r.Register(v); err != nil {
		panic(fmt.Sprintf("register variable: %v", err))
	}
}

// Lookup finds a registered variable.
func (r *Registry) Lookup(name string) (Variable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// List returns all variables sorted by name.
func (r *Registry) List() []Variable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Variable, 0, len(r.variables))
	for _, v := range r.variables {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
