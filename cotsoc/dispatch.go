package cotsoc

import (
	"fmt"

	"github.com/warp/contribution-engine/generic"
)

// Aggregate computes one levy for a mixed population.
//
// For each category, in enumeration order, the base is masked to the
// individuals of that category and evaluated against the category's
// schedule. Categories without a schedule for the levy contribute zero.
// The result is the negated sum: contributions reduce net pay, so every
// value is zero or negative. Output length always equals the population.
func Aggregate(
	table *CategoryTable,
	levyName string,
	categories []Category,
	base generic.Vector,
	scale generic.Vector,
	roundDecimals int32,
) (generic.Vector, error) {
	switch {
	case table == nil:
		return nil, generic.Missing("schedule table")
	case levyName == "":
		return nil, generic.Missing("levy name")
	case categories == nil:
		return nil, generic.Missing("category vector")
	case base == nil:
		return nil, generic.Missing("base")
	case scale == nil:
		return nil, generic.Missing("scale")
	}
	n := len(categories)
	if len(base) != n || len(scale) != n {
		return nil, &generic.ConfigurationError{
			Field:  "population",
			Reason: fmt.Sprintf("categories %d, base %d, scale %d", n, len(base), len(scale)),
		}
	}

	total := generic.Zeros(n)
	for _, c := range AllCategories() {
		schedule, ok := table.Schedule(c, levyName)
		if !ok {
			continue
		}
		mask := generic.Indicator(n, func(i int) bool { return categories[i] == c })
		levy, err := Evaluate(base.Mul(mask), schedule, scale, roundDecimals)
		if err != nil {
			return nil, fmt.Errorf("levy %s for %s: %w", levyName, c, err)
		}
		total = total.Add(levy)
	}
	return total.Neg(), nil
}
