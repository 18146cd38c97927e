/*
Package generic provides the domain-agnostic computation engine.

PURPOSE:
  This package contains the types and algorithms every rule in the system
  is built from: calendar periods, per-individual decimal vectors, the
  variable registry and the simulation that resolves variables for a
  period. It knows nothing about contributions, categories or legislation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Vector: one decimal amount per individual of the population
  - Select: the vectorized "pick branch per individual" combinator
  - Indicator: elementwise 0/1 mask

DESIGN PRINCIPLES:
  1. Immutability: vector operations never modify their receivers
  2. Precision: uses decimal.Decimal to avoid floating-point errors
  3. Whole population: outputs always have the population length

USAGE:
  base := generic.VectorOf(3000, 1200)
  ceiling := generic.Fill(2, generic.MustParseDecimal("3500"))
  total := base.Add(ceiling)

SEE ALSO:
  - period.go: Period arithmetic
  - simulation.go: Variable resolution
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VECTOR - One amount per individual
// =============================================================================

// Vector holds one decimal value per individual, in population order.
type Vector []decimal.Decimal

// Zeros returns a vector of n zeros.
func Zeros(n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = decimal.Zero
	}
	return v
}

// Fill returns a vector of n copies of d.
func Fill(n int, d decimal.Decimal) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = d
	}
	return v
}

// VectorOf builds a vector from float literals. Intended for tests and fixtures.
func VectorOf(values ...float64) Vector {
	v := make(Vector, len(values))
	for i, f := range values {
		v[i] = decimal.NewFromFloat(f)
	}
	return v
}

// MustParseDecimal is decimal.RequireFromString: it panics on malformed input.
// For literals only.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (v Vector) Len() int { return len(v) }

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

func (v Vector) Add(o Vector) Vector { return v.zip(o, decimal.Decimal.Add) }
func (v Vector) Sub(o Vector) Vector { return v.zip(o, decimal.Decimal.Sub) }
func (v Vector) Mul(o Vector) Vector { return v.zip(o, decimal.Decimal.Mul) }

func (v Vector) Neg() Vector {
	out := make(Vector, len(v))
	for i, d := range v {
		out[i] = d.Neg()
	}
	return out
}

// Round rounds every element half-to-even.
func (v Vector) Round(places int32) Vector {
	out := make(Vector, len(v))
	for i, d := range v {
		out[i] = d.RoundBank(places)
	}
	return out
}

// Sum totals the vector.
func (v Vector) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, d := range v {
		total = total.Add(d)
	}
	return total
}

// Equal compares element by element with exact decimal equality.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if !v[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Floats converts to float64, for display.
func (v Vector) Floats() []float64 {
	out := make([]float64, len(v))
	for i, d := range v {
		out[i] = d.InexactFloat64()
	}
	return out
}

func (v Vector) zip(o Vector, op func(decimal.Decimal, decimal.Decimal) decimal.Decimal) Vector {
	if len(v) != len(o) {
		panic(fmt.Sprintf("vector length mismatch: %d != %d", len(v), len(o)))
	}
	out := make(Vector, len(v))
	for i := range v {
		out[i] = op(v[i], o[i])
	}
	return out
}

// =============================================================================
// MASKS AND SELECTION
// =============================================================================

// Indicator returns 1 where match(i) holds and 0 elsewhere.
func Indicator(n int, match func(i int) bool) Vector {
	out := make(Vector, n)
	for i := range out {
		if match(i) {
			out[i] = decimal.NewFromInt(1)
		} else {
			out[i] = decimal.Zero
		}
	}
	return out
}

// Select returns branches[k][i] where discriminator[i] == k.
//
// Every branch must already be computed for the whole population: this is a
// combinator over finished vectors, not a conditional. A discriminator of
// length 1 applies to every individual.
func Select(discriminator []int, branches ...Vector) (Vector, error) {
	if len(branches) == 0 {
		return nil, &ConfigurationError{Field: "branches", Reason: "no branch to select from"}
	}
	n := len(branches[0])
	for k, b := range branches {
		if len(b) != n {
			return nil, &ConfigurationError{Field: "branches", Reason: fmt.Sprintf("branch %d has length %d, want %d", k, len(b), n)}
		}
	}
	if len(discriminator) != n && len(discriminator) != 1 {
		return nil, &ConfigurationError{Field: "discriminator", Reason: fmt.Sprintf("length %d, want %d or 1", len(discriminator), n)}
	}

	out := make(Vector, n)
	for i := 0; i < n; i++ {
		k := discriminator[0]
		if len(discriminator) == n {
			k = discriminator[i]
		}
		if k < 0 || k >= len(branches) {
			return nil, &ConfigurationError{Field: "discriminator", Reason: fmt.Sprintf("value %d at %d has no branch", k, i)}
		}
		out[i] = branches[k][i]
	}
	return out, nil
}
