package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contribution-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func jan2025() generic.Period { return generic.Month(2025, time.January) }
func dec2025() generic.Period { return generic.Month(2025, time.December) }

// newSalaryRegistry registers a monthly "salary" input and a "double"
// formula over it.
func newSalaryRegistry(t *testing.T) *generic.Registry {
	t.Helper()
	reg := generic.NewRegistry()
	reg.MustRegister(generic.Variable{Name: "salary", Kind: generic.KindMonthlyInput})
	reg.MustRegister(generic.Variable{Name: "status", Kind: generic.KindConstantInput})
	reg.MustRegister(generic.Variable{
		Name: "double",
		Formula: func(s *generic.Simulation, p generic.Period) (generic.Vector, error) {
			salary, err := s.CalculateAdd("salary", p, 0)
			if err != nil {
				return nil, err
			}
			return salary.Add(salary), nil
		},
	})
	return reg
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_RejectsDuplicatesAndMissingFormula(t *testing.T) {
	reg := generic.NewRegistry()
	require.NoError(t, reg.Register(generic.Variable{Name: "x", Kind: generic.KindMonthlyInput}))

	err := reg.Register(generic.Variable{Name: "x", Kind: generic.KindMonthlyInput})
	assert.True(t, generic.IsConfiguration(err), "duplicate name")

	err = reg.Register(generic.Variable{Name: "y", Kind: generic.KindFormula})
	assert.True(t, generic.IsConfiguration(err), "formula without function")

	err = reg.Register(generic.Variable{Kind: generic.KindMonthlyInput})
	assert.True(t, generic.IsConfiguration(err), "empty name")

	assert.Panics(t, func() {
		reg.MustRegister(generic.Variable{Name: "x", Kind: generic.KindMonthlyInput})
	})
}

func TestRegistry_ListSortedAndDefaultKind(t *testing.T) {
	reg := generic.NewRegistry()
	f := func(s *generic.Simulation, p generic.Period) (generic.Vector, error) { return generic.Zeros(s.Size()), nil }
	reg.MustRegister(generic.Variable{Name: "b", Formula: f})
	reg.MustRegister(generic.Variable{Name: "a", Kind: generic.KindMonthlyInput})

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
	assert.Equal(t, generic.KindFormula, list[1].Kind)
}

// =============================================================================
// INPUT AND FORMULA TESTS
// =============================================================================

func TestSimulation_InputsAndFormula(t *testing.T) {
	// GIVEN: Two individuals with a January salary
	sim := generic.NewSimulation(newSalaryRegistry(t), 2)
	require.NoError(t, sim.SetInput("salary", jan2025(), generic.VectorOf(1000, 2500)))

	// WHEN: Computing the formula for January
	double, err := sim.Calculate("double", jan2025())

	// THEN: It reads the input
	require.NoError(t, err)
	assert.True(t, double.Equal(generic.VectorOf(2000, 5000)))

	// AND: Months without input are zero
	feb, err := sim.Calculate("salary", generic.Month(2025, time.February))
	require.NoError(t, err)
	assert.True(t, feb.Equal(generic.Zeros(2)))
}

func TestSimulation_SetInputSpreadsOverMonths(t *testing.T) {
	sim := generic.NewSimulation(newSalaryRegistry(t), 1)
	require.NoError(t, sim.SetInput("salary", generic.Year(2025), generic.VectorOf(100)))

	yearly, err := sim.CalculateAdd("salary", generic.Year(2025), 0)
	require.NoError(t, err)
	assert.True(t, yearly.Equal(generic.VectorOf(1200)))

	// A yearly formula accumulates the months
	double, err := sim.Calculate("double", generic.Year(2025))
	require.NoError(t, err)
	assert.True(t, double.Equal(generic.VectorOf(2400)))
}

func TestSimulation_InputOverridesMonthlyFallback(t *testing.T) {
	reg := generic.NewRegistry()
	reg.MustRegister(generic.Variable{
		Name: "ceiling",
		Kind: generic.KindMonthlyInput,
		Formula: func(s *generic.Simulation, p generic.Period) (generic.Vector, error) {
			return generic.Fill(s.Size(), generic.MustParseDecimal("3925")), nil
		},
	})
	sim := generic.NewSimulation(reg, 2)
	require.NoError(t, sim.SetInput("ceiling", jan2025(), generic.VectorOf(4000, 4000)))

	jan, err := sim.Calculate("ceiling", jan2025())
	require.NoError(t, err)
	assert.True(t, jan.Equal(generic.VectorOf(4000, 4000)))

	feb, err := sim.Calculate("ceiling", generic.Month(2025, time.February))
	require.NoError(t, err)
	assert.True(t, feb.Equal(generic.VectorOf(3925, 3925)))
}

func TestSimulation_ConstantInput(t *testing.T) {
	sim := generic.NewSimulation(newSalaryRegistry(t), 3)
	require.NoError(t, sim.SetConstant("status", generic.VectorOf(0, 1, 7)))

	got, err := sim.Calculate("status", dec2025())
	require.NoError(t, err)
	assert.True(t, got.Equal(generic.VectorOf(0, 1, 7)))

	_, err = sim.CalculateAdd("status", generic.Year(2025), 0)
	assert.True(t, generic.IsConfiguration(err), "constants cannot be accumulated")
}

func TestSimulation_Errors(t *testing.T) {
	sim := generic.NewSimulation(newSalaryRegistry(t), 2)

	_, err := sim.Calculate("unknown", jan2025())
	assert.ErrorIs(t, err, generic.ErrUnknownVariable)

	err = sim.SetInput("salary", jan2025(), generic.VectorOf(1))
	assert.True(t, generic.IsConfiguration(err), "wrong population size")

	err = sim.SetInput("double", jan2025(), generic.VectorOf(1, 2))
	assert.True(t, generic.IsConfiguration(err), "formula variables are not inputs")

	_, err = sim.Calculate("salary", generic.Year(2025))
	assert.True(t, generic.IsConfiguration(err), "monthly input asked for a year")
}

func TestSimulation_FormulaLengthChecked(t *testing.T) {
	reg := generic.NewRegistry()
	reg.MustRegister(generic.Variable{
		Name: "short",
		Formula: func(s *generic.Simulation, p generic.Period) (generic.Vector, error) {
			return generic.Zeros(1), nil
		},
	})
	sim := generic.NewSimulation(reg, 3)

	_, err := sim.Calculate("short", jan2025())
	assert.True(t, generic.IsConfiguration(err))
}

func TestSimulation_Memoizes(t *testing.T) {
	calls := 0
	reg := generic.NewRegistry()
	reg.MustRegister(generic.Variable{Name: "salary", Kind: generic.KindMonthlyInput})
	reg.MustRegister(generic.Variable{
		Name: "counted",
		Formula: func(s *generic.Simulation, p generic.Period) (generic.Vector, error) {
			calls++
			return s.CalculateAdd("salary", p, 0)
		},
	})
	sim := generic.NewSimulation(reg, 1)

	_, err := sim.Calculate("counted", jan2025())
	require.NoError(t, err)
	_, err = sim.Calculate("counted", jan2025())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// New inputs invalidate cached results
	require.NoError(t, sim.SetInput("salary", jan2025(), generic.VectorOf(5)))
	got, err := sim.Calculate("counted", jan2025())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, got.Equal(generic.VectorOf(5)))
}

// =============================================================================
// RE-ENTRY TESTS
// =============================================================================

// newRunningTotalRegistry registers "withheld": January..November it is the
// monthly salary; December it is the year's salary minus what the variable
// itself already produced, with the given extra-cycle budget.
func newRunningTotalRegistry(budget int) *generic.Registry {
	reg := generic.NewRegistry()
	reg.MustRegister(generic.Variable{Name: "salary", Kind: generic.KindMonthlyInput})
	reg.MustRegister(generic.Variable{
		Name: "withheld",
		Formula: func(s *generic.Simulation, p generic.Period) (generic.Vector, error) {
			if p.Start.Month() < time.December {
				return s.CalculateAdd("salary", p.ThisMonth(), 0)
			}
			yearly, err := s.CalculateAdd("salary", p.ThisYear(), 0)
			if err != nil {
				return nil, err
			}
			before, err := s.CalculateAdd("withheld", p.MonthsBefore(11), budget)
			if err != nil {
				return nil, err
			}
			return yearly.Sub(before), nil
		},
	})
	return reg
}

func TestSimulation_ReentryWithinBudget(t *testing.T) {
	// GIVEN: 100 a month, except 700 in December
	sim := generic.NewSimulation(newRunningTotalRegistry(1), 1)
	require.NoError(t, sim.SetInput("salary", generic.Year(2025), generic.VectorOf(100)))
	require.NoError(t, sim.SetInput("salary", dec2025(), generic.VectorOf(700)))

	// WHEN: December re-enters the variable once for January..November
	dec, err := sim.Calculate("withheld", dec2025())

	// THEN: December holds the year minus what was already withheld
	require.NoError(t, err)
	assert.True(t, dec.Equal(generic.VectorOf(700)))
}

func TestSimulation_ReentryBeyondBudget(t *testing.T) {
	// GIVEN: The December formula re-enters with a zero budget
	sim := generic.NewSimulation(newRunningTotalRegistry(0), 1)
	require.NoError(t, sim.SetInput("salary", generic.Year(2025), generic.VectorOf(100)))

	// WHEN: Computing December
	_, err := sim.Calculate("withheld", dec2025())

	// THEN: The re-entry is refused
	var recursion *generic.UnboundRecursionError
	require.True(t, errors.As(err, &recursion))
	assert.Equal(t, "withheld", recursion.Variable)
	assert.Equal(t, 0, recursion.MaxExtraCycles)
	assert.Equal(t, 1, recursion.InFlight)
	assert.ErrorIs(t, err, generic.ErrUnboundRecursion)
}

func TestSimulation_SamePeriodCycleAlwaysFails(t *testing.T) {
	// GIVEN: A variable that asks for itself over the same month
	reg := generic.NewRegistry()
	reg.MustRegister(generic.Variable{
		Name: "loop",
		Formula: func(s *generic.Simulation, p generic.Period) (generic.Vector, error) {
			return s.CalculateAdd("loop", p, 10)
		},
	})
	sim := generic.NewSimulation(reg, 1)

	// WHEN/THEN: Even a large budget does not allow it
	_, err := sim.Calculate("loop", jan2025())
	assert.ErrorIs(t, err, generic.ErrUnboundRecursion)
}

func TestSimulation_StackUnwindsAfterError(t *testing.T) {
	sim := generic.NewSimulation(newRunningTotalRegistry(0), 1)

	_, err := sim.Calculate("withheld", dec2025())
	require.Error(t, err)

	// A later computation starts from an empty stack
	jan, err := sim.Calculate("withheld", jan2025())
	require.NoError(t, err)
	assert.True(t, jan.Equal(generic.Zeros(1)))
}
