/*
settlement.go - Monthly anticipated vs annual settlement

PURPOSE:
  A contribution is owed on the year's income, but most individuals pay it
  month by month. Each individual carries a settlement mode:

  ANTICIPATED (0):
    January..November: the contribution computed on that month alone.
    December: the contribution computed on the whole year, minus what was
    already withheld from January to November. The withheld amount is the
    same variable accumulated over its own previous months, so December
    re-enters the variable once. That single re-entry is passed explicitly
    as maxExtraCycles = 1; the resolver never infers it.

  ANNUAL (1):
    January..November: nothing. December: the contribution on the whole year.

BOTH BRANCHES RUN:
  Resolve computes the anticipated AND the annual branch for the whole
  population on every call, then picks per individual with generic.Select.
  A branch is executed even when no individual selects it.

EXAMPLE (anticipated, constant monthly base):
  Jan..Nov: −100 each    (monthly brackets)
  Dec:      −1250 − (−1100) = −150   (annual brackets minus withheld)
  Year:     −1250         (equals the annual computation)
*/
package cotsoc

import (
	"fmt"
	"time"

	"github.com/warp/contribution-engine/generic"
)

// DecemberExtraCycles is the re-entry budget of the December reconciliation.
const DecemberExtraCycles = 1

// ComputeFunc computes the contribution for a period over the population.
type ComputeFunc func(period generic.Period) (generic.Vector, error)

// Accumulator sums a variable over the months of a period, allowing the
// variable to be in flight up to maxExtraCycles times.
type Accumulator interface {
	CalculateAdd(name string, period generic.Period, maxExtraCycles int) (generic.Vector, error)
}

// SelfRef names the variable being computed and where to accumulate it.
// Only the December branch of the anticipated strategy uses it.
type SelfRef struct {
	Variable string
	Source   Accumulator
}

// Resolve computes both settlement branches and selects one per individual.
// A modes slice of length 1 applies to every individual.
func Resolve(period generic.Period, modes []SettlementMode, compute ComputeFunc, ref *SelfRef) (generic.Vector, error) {
	if compute == nil {
		return nil, generic.Missing("compute function")
	}
	if modes == nil {
		return nil, generic.Missing("settlement mode")
	}

	anticipated, err := Anticipated(period, compute, ref)
	if err != nil {
		return nil, err
	}
	annual, err := Annual(period, len(anticipated), compute)
	if err != nil {
		return nil, err
	}

	discriminator := make([]int, len(modes))
	for i, m := range modes {
		discriminator[i] = int(m)
	}
	return generic.Select(discriminator, anticipated, annual)
}

// Anticipated is the monthly withholding strategy.
func Anticipated(period generic.Period, compute ComputeFunc, ref *SelfRef) (generic.Vector, error) {
	if period.Start.Month() < time.December {
		return compute(period.ThisMonth())
	}

	if ref == nil || ref.Variable == "" || ref.Source == nil {
		return nil, generic.Missing("accumulated variable reference")
	}
	yearly, err := compute(period.ThisYear())
	if err != nil {
		return nil, err
	}
	withheld, err := ref.Source.CalculateAdd(ref.Variable, period.MonthsBefore(11), DecemberExtraCycles)
	if err != nil {
		return nil, fmt.Errorf("withheld %s before %s: %w", ref.Variable, period.ThisMonth(), err)
	}
	if len(withheld) != len(yearly) {
		return nil, &generic.ConfigurationError{
			Field:  ref.Variable,
			Reason: fmt.Sprintf("accumulated %d values, yearly has %d", len(withheld), len(yearly)),
		}
	}
	return yearly.Sub(withheld), nil
}

// Annual is the year-end lump-sum strategy. size is the population size,
// needed for the all-zero months.
func Annual(period generic.Period, size int, compute ComputeFunc) (generic.Vector, error) {
	if period.Start.Month() < time.December {
		return generic.Zeros(size), nil
	}
	return compute(period.ThisYear())
}
