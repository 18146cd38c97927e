package cotsoc_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contribution-engine/cotsoc"
	"github.com/warp/contribution-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// recordingCompute returns -10 per month covered, and records the periods
// it was asked for.
type recordingCompute struct {
	size  int
	calls []string
}

func (r *recordingCompute) compute(p generic.Period) (generic.Vector, error) {
	r.calls = append(r.calls, p.String())
	return generic.Fill(r.size, dec("-10").Mul(decimal.NewFromInt(int64(p.MonthCount())))), nil
}

// fakeAccumulator answers CalculateAdd with a fixed vector and records the
// budget it was given.
type fakeAccumulator struct {
	values generic.Vector
	name   string
	period string
	budget int
}

func (f *fakeAccumulator) CalculateAdd(name string, period generic.Period, maxExtraCycles int) (generic.Vector, error) {
	f.name, f.period, f.budget = name, period.String(), maxExtraCycles
	return f.values.Clone(), nil
}

// =============================================================================
// STRATEGIES
// =============================================================================

func TestAnticipated_MonthBeforeDecember(t *testing.T) {
	rc := &recordingCompute{size: 2}

	got, err := cotsoc.Anticipated(generic.Month(2025, time.March), rc.compute, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03"}, rc.calls, "computed on the month alone")
	assert.True(t, got.Equal(generic.VectorOf(-10, -10)))
}

func TestAnticipated_DecemberReconciles(t *testing.T) {
	// GIVEN: -110 already withheld January..November
	rc := &recordingCompute{size: 1}
	acc := &fakeAccumulator{values: generic.VectorOf(-110)}

	// WHEN: Computing December
	got, err := cotsoc.Anticipated(generic.Month(2025, time.December), rc.compute,
		&cotsoc.SelfRef{Variable: "old_age_employer", Source: acc})

	// THEN: The yearly amount minus what was withheld
	require.NoError(t, err)
	assert.Equal(t, []string{"2025"}, rc.calls)
	assert.True(t, got.Equal(generic.VectorOf(-10)), "got %v", got)

	// AND: The accumulation covered the 11 previous months with one extra cycle
	assert.Equal(t, "old_age_employer", acc.name)
	assert.Equal(t, "month:2025-01:11", acc.period)
	assert.Equal(t, cotsoc.DecemberExtraCycles, acc.budget)
	assert.Equal(t, 1, acc.budget)
}

func TestAnticipated_DecemberWithoutReference(t *testing.T) {
	rc := &recordingCompute{size: 1}

	for _, ref := range []*cotsoc.SelfRef{
		nil,
		{Variable: "", Source: &fakeAccumulator{}},
		{Variable: "x", Source: nil},
	} {
		_, err := cotsoc.Anticipated(generic.Month(2025, time.December), rc.compute, ref)
		assert.True(t, generic.IsConfiguration(err), "ref %+v: %v", ref, err)
	}
}

func TestAnnual_LumpSumInDecember(t *testing.T) {
	rc := &recordingCompute{size: 3}

	for m := time.January; m < time.December; m++ {
		got, err := cotsoc.Annual(generic.Month(2025, m), 3, rc.compute)
		require.NoError(t, err)
		assert.True(t, got.Equal(generic.Zeros(3)), "month %s", m)
	}
	assert.Empty(t, rc.calls, "nothing computed before December")

	got, err := cotsoc.Annual(generic.Month(2025, time.December), 3, rc.compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025"}, rc.calls)
	assert.True(t, got.Equal(generic.VectorOf(-120, -120, -120)))
}

// =============================================================================
// RESOLVER
// =============================================================================

func TestResolve_ComputesBothBranches(t *testing.T) {
	// GIVEN: Every individual is anticipated
	rc := &recordingCompute{size: 2}
	acc := &fakeAccumulator{values: generic.VectorOf(-110, -110)}
	modes := []cotsoc.SettlementMode{cotsoc.SettlementAnticipated, cotsoc.SettlementAnticipated}

	// WHEN: Resolving December
	got, err := cotsoc.Resolve(generic.Month(2025, time.December), modes, rc.compute,
		&cotsoc.SelfRef{Variable: "v", Source: acc})

	// THEN: The annual branch ran too, even though nobody selects it
	require.NoError(t, err)
	assert.Equal(t, []string{"2025", "2025"}, rc.calls)
	assert.True(t, got.Equal(generic.VectorOf(-10, -10)))
}

func TestResolve_SelectsPerIndividual(t *testing.T) {
	rc := &recordingCompute{size: 2}
	modes := []cotsoc.SettlementMode{cotsoc.SettlementAnticipated, cotsoc.SettlementAnnual}

	got, err := cotsoc.Resolve(generic.Month(2025, time.June), modes, rc.compute, nil)

	require.NoError(t, err)
	assert.True(t, got.Equal(generic.VectorOf(-10, 0)))
}

func TestResolve_UniformMode(t *testing.T) {
	rc := &recordingCompute{size: 3}

	got, err := cotsoc.Resolve(generic.Month(2025, time.June), []cotsoc.SettlementMode{cotsoc.SettlementAnnual}, rc.compute, nil)

	require.NoError(t, err)
	assert.True(t, got.Equal(generic.Zeros(3)))
}

func TestResolve_MissingInputs(t *testing.T) {
	rc := &recordingCompute{size: 1}

	_, err := cotsoc.Resolve(generic.Month(2025, time.June), nil, rc.compute, nil)
	assert.True(t, generic.IsConfiguration(err), "modes")

	_, err = cotsoc.Resolve(generic.Month(2025, time.June), []cotsoc.SettlementMode{0}, nil, nil)
	assert.True(t, generic.IsConfiguration(err), "compute")

	_, err = cotsoc.Resolve(generic.Month(2025, time.December), []cotsoc.SettlementMode{0}, rc.compute, nil)
	assert.True(t, generic.IsConfiguration(err), "December reference")
}

func TestResolve_Property_SelectCorrectness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("result[i] is the branch the mode picks", prop.ForAll(
		func(annual []bool, month int) bool {
			n := len(annual)
			modes := make([]cotsoc.SettlementMode, n)
			for i, a := range annual {
				if a {
					modes[i] = cotsoc.SettlementAnnual
				}
			}
			period := generic.Month(2025, time.Month(month))
			rc := &recordingCompute{size: n}
			acc := &fakeAccumulator{values: generic.Fill(n, dec("-110"))}
			ref := &cotsoc.SelfRef{Variable: "v", Source: acc}

			got, err := cotsoc.Resolve(period, modes, rc.compute, ref)
			if err != nil {
				return false
			}
			anticipated, _ := cotsoc.Anticipated(period, (&recordingCompute{size: n}).compute, ref)
			lump, _ := cotsoc.Annual(period, n, (&recordingCompute{size: n}).compute)
			for i := range got {
				want := anticipated[i]
				if modes[i] == cotsoc.SettlementAnnual {
					want = lump[i]
				}
				if !got[i].Equal(want) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
