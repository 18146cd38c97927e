package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contribution-engine/generic"
	"github.com/warp/contribution-engine/generic/store"
)

func TestMemory_Individuals(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	constants := map[string]decimal.Decimal{"employment_category": decimal.NewFromInt(1)}
	require.NoError(t, mem.SaveIndividual(ctx, generic.Individual{ID: "emp-2", Name: "B", Constants: constants}))
	require.NoError(t, mem.SaveIndividual(ctx, generic.Individual{ID: "emp-1", Name: "A"}))

	// Stored copies are independent of the caller's map
	constants["employment_category"] = decimal.NewFromInt(5)

	got, err := mem.Individual(ctx, "emp-2")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Constants["employment_category"].String())

	all, err := mem.Individuals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, generic.EntityID("emp-1"), all[0].ID)

	_, err = mem.Individual(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrIndividualNotFound)
}

func TestMemory_PutInputs_ReplacesAndIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveIndividual(ctx, generic.Individual{ID: "emp-1"}))

	march := generic.Month(2025, time.March)
	require.NoError(t, mem.PutInputs(ctx, []generic.InputRecord{
		{EntityID: "emp-1", Variable: "contribution_base", Month: march, Value: decimal.NewFromInt(3000)},
	}))

	// GIVEN: A correction for March and a record for an unknown individual
	err := mem.PutInputs(ctx, []generic.InputRecord{
		{EntityID: "emp-1", Variable: "contribution_base", Month: march, Value: decimal.NewFromInt(3100)},
		{EntityID: "ghost", Variable: "contribution_base", Month: march, Value: decimal.NewFromInt(1)},
	})

	// THEN: Nothing is written
	assert.ErrorIs(t, err, generic.ErrIndividualNotFound)
	records, err := mem.InputsInRange(ctx, generic.StartOfYear(2025), generic.EndOfYear(2025))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3000", records[0].Value.String())

	// WHEN: The correction alone is written
	require.NoError(t, mem.PutInputs(ctx, []generic.InputRecord{
		{EntityID: "emp-1", Variable: "contribution_base", Month: march, Value: decimal.NewFromInt(3100)},
	}))

	// THEN: It replaces the March value
	records, err = mem.InputsInRange(ctx, generic.StartOfYear(2025), generic.EndOfYear(2025))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3100", records[0].Value.String())
}

func TestMemory_InputsInRange(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveIndividual(ctx, generic.Individual{ID: "emp-1"}))

	var records []generic.InputRecord
	for _, m := range []time.Month{time.January, time.June, time.December} {
		records = append(records, generic.InputRecord{
			EntityID: "emp-1", Variable: "contribution_base", Month: generic.Month(2025, m), Value: decimal.NewFromInt(int64(m)),
		})
	}
	require.NoError(t, mem.PutInputs(ctx, records))

	got, err := mem.InputsInRange(ctx, generic.StartOfYear(2025), generic.EndOfMonth(2025, time.June))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-01", got[0].Month.String())
	assert.Equal(t, "2025-06", got[1].Month.String())
}

func TestMemory_Legislation(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	y2025 := generic.StartOfYear(2025)
	y2024 := generic.StartOfYear(2024)
	require.NoError(t, mem.SaveLegislation(ctx, generic.LegislationDocument{ValidFrom: y2025, Format: "yaml", Body: []byte("a")}))
	require.NoError(t, mem.SaveLegislation(ctx, generic.LegislationDocument{ValidFrom: y2024, Format: "yaml", Body: []byte("b")}))
	require.NoError(t, mem.SaveLegislation(ctx, generic.LegislationDocument{ValidFrom: y2025, Format: "json", Body: []byte("c")}))

	docs, err := mem.LegislationDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2024-01-01", docs[0].ValidFrom.String())
	assert.Equal(t, "json", docs[1].Format)
	assert.Equal(t, "c", string(docs[1].Body))
}

func TestMemory_Runs_AppendOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	run := generic.Run{
		ID:       "run-1",
		Variable: "old_age_capped_employer",
		Period:   generic.Month(2025, time.March),
		Lines:    []generic.RunLine{{EntityID: "emp-1", Value: decimal.NewFromInt(-125)}},
	}
	require.NoError(t, mem.AppendRun(ctx, run))
	assert.ErrorIs(t, mem.AppendRun(ctx, run), generic.ErrDuplicateRun)

	got, err := mem.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Variable, got.Variable)
	assert.Equal(t, "-125", got.Total().String())

	_, err = mem.Run(ctx, "run-2")
	assert.ErrorIs(t, err, generic.ErrRunNotFound)
}

func TestMemory_LatestRun(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	march := generic.Month(2025, time.March)

	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, mem.AppendRun(ctx, generic.Run{ID: id, Variable: "employer_contributions", Period: march}))
	}
	require.NoError(t, mem.AppendRun(ctx, generic.Run{ID: "run-3", Variable: "employer_contributions", Period: generic.Month(2025, time.April)}))

	got, err := mem.LatestRun(ctx, "employer_contributions", march)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.ID)

	_, err = mem.LatestRun(ctx, "employee_contributions", march)
	assert.ErrorIs(t, err, generic.ErrRunNotFound)
}

func TestMemory_ResetKeepsRuns(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveIndividual(ctx, generic.Individual{ID: "emp-1"}))
	require.NoError(t, mem.PutInputs(ctx, []generic.InputRecord{
		{EntityID: "emp-1", Variable: "contribution_base", Month: generic.Month(2025, time.March), Value: decimal.NewFromInt(1)},
	}))
	require.NoError(t, mem.SaveLegislation(ctx, generic.LegislationDocument{ValidFrom: generic.StartOfYear(2025), Format: "yaml"}))
	require.NoError(t, mem.AppendRun(ctx, generic.Run{ID: "run-1", Variable: "x", Period: generic.Year(2025)}))

	require.NoError(t, mem.Reset(ctx))

	individuals, _ := mem.Individuals(ctx)
	assert.Empty(t, individuals)
	records, _ := mem.InputsInRange(ctx, generic.StartOfYear(2025), generic.EndOfYear(2025))
	assert.Empty(t, records)
	docs, _ := mem.LegislationDocuments(ctx)
	assert.Empty(t, docs)
	_, err := mem.Run(ctx, "run-1")
	assert.NoError(t, err)
}
