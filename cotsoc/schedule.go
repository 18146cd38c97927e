/*
schedule.go - Progressive bracket schedules

PURPOSE:
  A BracketSchedule turns a base amount into a progressive levy. Thresholds
  are fractions of a per-individual scale (the social-security ceiling), so
  one schedule serves every month and every year: the ceiling of the period
  stretches the brackets.

FORMULA:
  For individual j, with thresholds t_0=0 < t_1 < ... and rates r_i:

    levy_j = Σ_i r_i × round( max(0, min(base_j, t_{i+1}·scale_j) − t_i·scale_j), d )

  The last tier has no upper threshold. The slice of base falling in each
  tier is rounded to d decimals BEFORE it is multiplied by the rate.
  Rounding the product or the total instead gives different aggregates over
  a large population, so this order is part of the contract.

EXAMPLE:
  schedule := MustSchedule(Tier{"0", "0"}, Tier{"0.5", "0.10"}, Tier{"1", "0.20"})
  levy, _ := Evaluate(VectorOf(3000), schedule, VectorOf(3500), 2)
  // levy = [125.00]: (3000 − 1750) × 0.10
*/
package cotsoc

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/generic"
)

// DefaultRoundDecimals is the precision tier slices are rounded to.
const DefaultRoundDecimals int32 = 2

// Bracket is one tier of a schedule.
type Bracket struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// BracketSchedule is an immutable, validated list of brackets.
type BracketSchedule struct {
	brackets []Bracket
}

// Tier is the string form of a bracket, for literals and documents.
type Tier struct {
	Threshold string
	Rate      string
}

// NewBracketSchedule validates and freezes brackets: at least one bracket,
// first threshold 0, thresholds strictly increasing, rates non-negative.
func NewBracketSchedule(brackets []Bracket) (*BracketSchedule, error) {
	if len(brackets) == 0 {
		return nil, &generic.ConfigurationError{Field: "schedule", Reason: "no brackets"}
	}
	if !brackets[0].Threshold.IsZero() {
		return nil, &generic.ConfigurationError{Field: "schedule", Reason: fmt.Sprintf("first threshold is %s, want 0", brackets[0].Threshold)}
	}
	for i, b := range brackets {
		if b.Rate.IsNegative() {
			return nil, &generic.ConfigurationError{Field: "schedule", Reason: fmt.Sprintf("negative rate %s in bracket %d", b.Rate, i)}
		}
		if i > 0 && !b.Threshold.GreaterThan(brackets[i-1].Threshold) {
			return nil, &generic.ConfigurationError{Field: "schedule", Reason: fmt.Sprintf("threshold %s in bracket %d does not increase", b.Threshold, i)}
		}
	}
	frozen := make([]Bracket, len(brackets))
	copy(frozen, brackets)
	return &BracketSchedule{brackets: frozen}, nil
}

// ParseSchedule builds a schedule from string tiers.
func ParseSchedule(tiers ...Tier) (*BracketSchedule, error) {
	brackets := make([]Bracket, len(tiers))
	for i, t := range tiers {
		threshold, err := decimal.NewFromString(t.Threshold)
		if err != nil {
			return nil, &generic.ConfigurationError{Field: "schedule", Reason: fmt.Sprintf("threshold %q: %v", t.Threshold, err)}
		}
		rate, err := decimal.NewFromString(t.Rate)
		if err != nil {
			return nil, &generic.ConfigurationError{Field: "schedule", Reason: fmt.Sprintf("rate %q: %v", t.Rate, err)}
		}
		brackets[i] = Bracket{Threshold: threshold, Rate: rate}
	}
	return NewBracketSchedule(brackets)
}

// MustSchedule is ParseSchedule for literals known to be valid.
func MustSchedule(tiers ...Tier) *BracketSchedule {
	s, err := ParseSchedule(tiers...)
	if err != nil {
		panic(err)
	}
	return s
}

// Brackets returns a copy of the brackets.
func (s *BracketSchedule) Brackets() []Bracket {
	out := make([]Bracket, len(s.brackets))
	copy(out, s.brackets)
	return out
}

// Evaluate applies the schedule to every individual.
//
// A nil schedule means the levy does not apply: the result is all zeros.
// A nil base or scale is a caller defect.
func Evaluate(base generic.Vector, schedule *BracketSchedule, scale generic.Vector, roundDecimals int32) (generic.Vector, error) {
	if base == nil {
		return nil, generic.Missing("base")
	}
	if scale == nil {
		return nil, generic.Missing("scale")
	}
	if len(base) != len(scale) {
		return nil, &generic.ConfigurationError{Field: "scale", Reason: fmt.Sprintf("length %d, base has %d", len(scale), len(base))}
	}
	if schedule == nil {
		return generic.Zeros(len(base)), nil
	}

	levy := generic.Zeros(len(base))
	for j := range base {
		total := decimal.Zero
		for i, b := range schedule.brackets {
			lower := b.Threshold.Mul(scale[j])
			slice := base[j]
			if i+1 < len(schedule.brackets) {
				slice = decimal.Min(slice, schedule.brackets[i+1].Threshold.Mul(scale[j]))
			}
			slice = decimal.Max(decimal.Zero, slice.Sub(lower))
			total = total.Add(b.Rate.Mul(slice.RoundBank(roundDecimals)))
		}
		levy[j] = total
	}
	return levy, nil
}
