/*
simulation.go - Variable resolution for one population

PURPOSE:
  A Simulation answers "what is variable X for period P?" for every
  individual of a population at once. It reads inputs, runs formulas,
  and memoizes results per (variable, period).

RE-ENTRY:
  A formula may ask for its own variable over other periods (December
  contributions need the contributions already withheld from January to
  November). This is never inferred: the caller states how many extra
  cycles it permits through CalculateAdd's maxExtraCycles argument.

    Calculate("x", dec)                      in flight: x@dec
      -> CalculateAdd("x", jan..nov, 1)      x@jan: 1 in flight <= 1, allowed
      -> CalculateAdd("x", jan..nov, 0)      x@jan: 1 in flight >  0, UnboundRecursionError

  Requesting the same (variable, period) that is already in flight is a
  genuine cycle and always fails, whatever the budget.

NOT CONCURRENT:
  A Simulation is used by one goroutine. Build one per request.

SEE ALSO:
  - registry.go: Variable definitions
  - cotsoc/settlement.go: The December re-entry
*/
package generic

import (
	"fmt"
)

type frame struct {
	name   string
	period string
}

// Simulation resolves variables for a population of Size individuals.
type Simulation struct {
	registry *Registry
	size     int

	monthly   map[string]map[string]Vector // name -> month -> values
	constants map[string]Vector
	cache     map[frame]Vector
	stack     []frame
}

// NewSimulation creates an empty simulation over size individuals.
func NewSimulation(registry *Registry, size int) *Simulation {
	return &Simulation{
		registry:  registry,
		size:      size,
		monthly:   make(map[string]map[string]Vector),
		constants: make(map[string]Vector),
		cache:     make(map[frame]Vector),
	}
}

// Size is the population size.
func (s *Simulation) Size() int { return s.size }

// SetInput stores values of a monthly input. A multi-month period spreads
// the same values on every month it covers.
func (s *Simulation) SetInput(name string, period Period, values Vector) error {
	v, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if len(values) != s.size {
		return &ConfigurationError{Field: name, Reason: fmt.Sprintf("got %d values for %d individuals", len(values), s.size)}
	}

	switch v.Kind {
	case KindConstantInput:
		s.constants[name] = values.Clone()
	case KindMonthlyInput:
		if s.monthly[name] == nil {
			s.monthly[name] = make(map[string]Vector)
		}
		for _, m := range period.Months() {
			s.monthly[name][m.String()] = values.Clone()
		}
	default:
		return &ConfigurationError{Field: name, Reason: "formula variables cannot be set"}
	}
	s.invalidate()
	return nil
}

// SetConstant stores values of a constant input.
func (s *Simulation) SetConstant(name string, values Vector) error {
	return s.SetInput(name, Period{}, values)
}

// Calculate returns the variable for exactly this period.
func (s *Simulation) Calculate(name string, period Period) (Vector, error) {
	return s.calculate(name, period, 0)
}

// CalculateAdd sums the variable's monthly values over the period.
//
// maxExtraCycles is the number of frames of the same variable that may
// already be in flight when each month is computed.
func (s *Simulation) CalculateAdd(name string, period Period, maxExtraCycles int) (Vector, error) {
	v, ok := s.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if v.Kind == KindConstantInput {
		return nil, &ConfigurationError{Field: name, Reason: "constant inputs cannot be accumulated"}
	}

	total := Zeros(s.size)
	for _, month := range period.Months() {
		values, err := s.calculate(name, month, maxExtraCycles)
		if err != nil {
			return nil, err
		}
		total = total.Add(values)
	}
	return total, nil
}

func (s *Simulation) calculate(name string, period Period, maxExtraCycles int) (Vector, error) {
	v, ok := s.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}

	switch v.Kind {
	case KindConstantInput:
		values, ok := s.constants[name]
		if !ok {
			return Zeros(s.size), nil
		}
		return values.Clone(), nil

	case KindMonthlyInput:
		if !period.IsMonth() {
			return nil, &ConfigurationError{Field: name, Reason: fmt.Sprintf("monthly input requested for %s, use CalculateAdd", period)}
		}
		if values, ok := s.monthly[name][period.String()]; ok {
			return values.Clone(), nil
		}
		if v.Formula == nil {
			return Zeros(s.size), nil
		}
	}

	key := frame{name: name, period: period.String()}
	if cached, ok := s.cache[key]; ok {
		return cached.Clone(), nil
	}

	inFlight, cycle := 0, false
	for _, f := range s.stack {
		if f.name == name {
			inFlight++
			cycle = cycle || f.period == key.period
		}
	}
	if cycle || inFlight > maxExtraCycles {
		return nil, &UnboundRecursionError{Variable: name, Period: period, MaxExtraCycles: maxExtraCycles, InFlight: inFlight}
	}

	s.stack = append(s.stack, key)
	values, err := v.Formula(s, period)
	s.stack = s.stack[:len(s.stack)-1]
	if err != nil {
		return nil, err
	}
	if len(values) != s.size {
		return nil, &ConfigurationError{Field: name, Reason: fmt.Sprintf("formula returned %d values for %d individuals", len(values), s.size)}
	}

	s.cache[key] = values.Clone()
	return values, nil
}

func (s *Simulation) invalidate() {
	s.cache = make(map[frame]Vector)
}
