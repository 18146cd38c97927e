package cotsoc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contribution-engine/cotsoc"
	"github.com/warp/contribution-engine/generic"
)

func snapshotFrom(year int, ceiling string) *cotsoc.Snapshot {
	return &cotsoc.Snapshot{
		ValidFrom:      generic.StartOfYear(year),
		MonthlyCeiling: dec(ceiling),
		Employer:       cotsoc.NewCategoryTable(),
		Employee:       cotsoc.NewCategoryTable(),
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_At(t *testing.T) {
	// Given out of order
	history, err := cotsoc.NewHistory(snapshotFrom(2025, "3925"), snapshotFrom(2024, "3864"))
	require.NoError(t, err)

	tests := []struct {
		date    generic.TimePoint
		ceiling string
	}{
		{generic.NewTimePoint(2024, time.January, 1), "3864"},
		{generic.NewTimePoint(2024, time.December, 31), "3864"},
		{generic.NewTimePoint(2025, time.January, 1), "3925"},
		{generic.NewTimePoint(2030, time.June, 15), "3925"},
	}
	for _, tt := range tests {
		t.Run(tt.date.String(), func(t *testing.T) {
			s, err := history.At(tt.date)
			require.NoError(t, err)
			assert.True(t, s.MonthlyCeiling.Equal(dec(tt.ceiling)))
		})
	}

	_, err = history.At(generic.NewTimePoint(2023, time.December, 31))
	assert.ErrorIs(t, err, generic.ErrNoLegislation)

	snapshots := history.Snapshots()
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2024, snapshots[0].ValidFrom.Year())
}

func TestHistory_Empty(t *testing.T) {
	history, err := cotsoc.NewHistory()
	require.NoError(t, err)

	_, err = history.At(generic.StartOfYear(2025))
	assert.ErrorIs(t, err, generic.ErrNoLegislation)
	assert.Empty(t, history.Levies())
}

func TestHistory_Rejects(t *testing.T) {
	_, err := cotsoc.NewHistory(snapshotFrom(2025, "1"), snapshotFrom(2025, "2"))
	assert.True(t, generic.IsConfiguration(err), "same valid_from")

	_, err = cotsoc.NewHistory(snapshotFrom(2025, "1"), nil)
	assert.True(t, generic.IsConfiguration(err), "nil snapshot")
}

func TestHistory_LeviesAcrossSnapshots(t *testing.T) {
	older := snapshotFrom(2024, "3864")
	require.NoError(t, older.Employer.Set(cotsoc.CategoryPrivateExecutive, "executive_pension", progressive()))
	newer := snapshotFrom(2025, "3925")
	require.NoError(t, newer.Employer.Set(cotsoc.CategoryPrivateNonExecutive, "old_age", progressive()))
	require.NoError(t, newer.Employee.Set(cotsoc.CategoryPrivateNonExecutive, "old_age", progressive()))

	history, err := cotsoc.NewHistory(older, newer)
	require.NoError(t, err)

	var variables []string
	for _, l := range history.Levies() {
		variables = append(variables, l.Variable())
	}
	assert.Equal(t, []string{"executive_pension_employer", "old_age_employee", "old_age_employer"}, variables)
}

// =============================================================================
// CATEGORY TABLE
// =============================================================================

func TestCategoryTable_SetAndSchedule(t *testing.T) {
	table := cotsoc.NewCategoryTable()
	require.NoError(t, table.Set(cotsoc.CategoryPublicContractual, "ircantec", progressive()))

	s, ok := table.Schedule(cotsoc.CategoryPublicContractual, "ircantec")
	assert.True(t, ok)
	assert.NotNil(t, s)

	_, ok = table.Schedule(cotsoc.CategoryPublicContractual, "old_age")
	assert.False(t, ok)
	_, ok = table.Schedule(cotsoc.CategoryPrivateExecutive, "ircantec")
	assert.False(t, ok)
	assert.False(t, table.Has(cotsoc.CategoryPrivateExecutive))

	assert.True(t, generic.IsConfiguration(table.Set(cotsoc.Category(99), "x", progressive())))
	assert.True(t, generic.IsConfiguration(table.Set(cotsoc.CategoryPrivateExecutive, "", progressive())))
	assert.True(t, generic.IsConfiguration(table.Set(cotsoc.CategoryPrivateExecutive, "x", nil)))
}

func TestSnapshot_MissingEntries(t *testing.T) {
	s := snapshotFrom(2025, "3925")
	for _, c := range cotsoc.AllCategories() {
		require.NoError(t, s.Employee.Set(c, "csg", progressive()))
	}
	require.NoError(t, s.Employer.Set(cotsoc.CategoryPrivateNonExecutive, "old_age", progressive()))
	require.NoError(t, s.Employer.Set(cotsoc.CategoryPrivateExecutive, "old_age", progressive()))

	report := s.MissingEntries()

	// Levies covering every category are not reported
	require.Len(t, report, 1)
	assert.Equal(t, cotsoc.RegimeEmployer, report[0].Regime)
	assert.Equal(t, "old_age", report[0].Levy)
	assert.Len(t, report[0].Categories, len(cotsoc.AllCategories())-2)
	assert.Equal(t, cotsoc.CategoryCivilServiceState, report[0].Categories[0])
}

func TestSnapshot_Table(t *testing.T) {
	s := snapshotFrom(2025, "3925")

	_, err := s.Table(cotsoc.RegimeEmployer)
	assert.NoError(t, err)
	_, err = s.Table("state")
	assert.True(t, generic.IsConfiguration(err))

	s.Employee = nil
	_, err = s.Table(cotsoc.RegimeEmployee)
	assert.True(t, generic.IsConfiguration(err))
}

// =============================================================================
// ENUMERATIONS
// =============================================================================

func TestParseCategory(t *testing.T) {
	for _, c := range cotsoc.AllCategories() {
		got, err := cotsoc.ParseCategory(c.Key())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := cotsoc.ParseCategory("freelance")
	assert.True(t, generic.IsConfiguration(err))
}

func TestCategoriesFrom(t *testing.T) {
	got, err := cotsoc.CategoriesFrom(generic.VectorOf(0, 1, 7))
	require.NoError(t, err)
	assert.Equal(t, []cotsoc.Category{cotsoc.CategoryPrivateNonExecutive, cotsoc.CategoryPrivateExecutive, cotsoc.CategoryNotApplicable}, got)

	for _, bad := range []generic.Vector{nil, generic.VectorOf(8), generic.VectorOf(-1), generic.VectorOf(0.5)} {
		_, err := cotsoc.CategoriesFrom(bad)
		assert.True(t, generic.IsConfiguration(err), "%v", bad)
	}
}

func TestSettlementModes(t *testing.T) {
	for s, want := range map[string]cotsoc.SettlementMode{
		"":            cotsoc.SettlementAnticipated,
		"anticipated": cotsoc.SettlementAnticipated,
		"annual":      cotsoc.SettlementAnnual,
	} {
		got, err := cotsoc.ParseSettlementMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := cotsoc.ParseSettlementMode("quarterly")
	assert.True(t, generic.IsConfiguration(err))

	modes, err := cotsoc.ModesFrom(generic.VectorOf(1, 0))
	require.NoError(t, err)
	assert.Equal(t, []cotsoc.SettlementMode{cotsoc.SettlementAnnual, cotsoc.SettlementAnticipated}, modes)
	_, err = cotsoc.ModesFrom(generic.VectorOf(2))
	assert.True(t, generic.IsConfiguration(err))
}

func TestParseRegime(t *testing.T) {
	r, err := cotsoc.ParseRegime("employee")
	require.NoError(t, err)
	assert.Equal(t, cotsoc.RegimeEmployee, r)

	_, err = cotsoc.ParseRegime("")
	assert.True(t, generic.IsConfiguration(err))
	_, err = cotsoc.ParseRegime("state")
	assert.True(t, generic.IsConfiguration(err))
}
