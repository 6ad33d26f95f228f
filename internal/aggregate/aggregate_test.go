package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/ginjaninja78/govfin/internal/directory"
	"github.com/ginjaninja78/govfin/internal/fixedwidth"
	"github.com/ginjaninja78/govfin/internal/profile"
	"github.com/ginjaninja78/govfin/internal/taxonomy"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/internal/xlsxparser"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cityID    = "01201001000000"
	unknownID = "01299999000000"
	countyID  = "01101001000000"
)

func rec(entity, item string, amount int64) types.RawFinanceRecord {
	return types.RawFinanceRecord{
		EntityID: entity,
		ItemCode: item,
		Amount:   decimal.NewFromInt(amount),
		Year:     2017,
		DataYear: 2017,
		Flag:     types.Reported,
	}
}

func fixtures(t *testing.T) (*taxonomy.Mapping, *taxonomy.Taxonomy) {
	t.Helper()
	m := taxonomy.NewMapping(
		taxonomy.NewLineMapping(4, "Police protection", "A01", "A02"),
		taxonomy.NewLineMapping(5, "Fire protection", "A02"),
		taxonomy.NewLineMapping(9, "Interest on debt", "B01"),
	)
	tax, err := taxonomy.New(types.Expenditure, []taxonomy.Category{
		{Name: "Public Safety", Lines: []int{4}},
		{Name: "Other", Lines: []int{5}},
	})
	require.NoError(t, err)
	return m, tax
}

func TestLocalAggregation(t *testing.T) {
	m, tax := fixtures(t)
	records := []types.RawFinanceRecord{
		rec(cityID, "A01", 100),
		rec(cityID, "A02", 50),
		rec(cityID, "B01", 999),
		rec(countyID, "A01", 10),
		rec(countyID, "A01", -10),
		rec(unknownID, "A02", -5),
	}

	totals, stats, err := Local(context.Background(), fixedwidth.NewSliceSource(records), m, tax)
	require.NoError(t, err)

	assert.Equal(t, Stats{Records: 6, Matched: 5, Unselected: 1, Totals: 4, ZeroDropped: 1}, stats)
	require.Len(t, totals, 4)

	assert.Equal(t, cityID, totals[0].EntityID)
	assert.Equal(t, 4, totals[0].Line)
	assert.Equal(t, "Public Safety", totals[0].Category)
	assert.Equal(t, "Police protection", totals[0].Description)
	assert.True(t, decimal.NewFromInt(150).Equal(totals[0].Amount))

	assert.Equal(t, 5, totals[1].Line)
	assert.True(t, decimal.NewFromInt(50).Equal(totals[1].Amount))

	// negative totals survive
	assert.Equal(t, unknownID, totals[2].EntityID)
	assert.True(t, decimal.NewFromInt(-5).Equal(totals[2].Amount))

	for _, total := range totals {
		assert.NotEqual(t, 9, total.Line)
	}
}

func TestLocalConservation(t *testing.T) {
	m, tax := fixtures(t)
	records := []types.RawFinanceRecord{
		rec(cityID, "A01", 100),
		rec(cityID, "A02", 50),
		rec(cityID, "A02", 7),
		rec(cityID, "B01", 999),
		rec(countyID, "A01", 3),
		rec(countyID, "A02", -2),
	}

	totals, _, err := Local(context.Background(), fixedwidth.NewSliceSource(records), m, tax)
	require.NoError(t, err)

	perEntity := make(map[string]decimal.Decimal)
	for _, total := range totals {
		perEntity[total.EntityID] = perEntity[total.EntityID].Add(total.Amount)
	}

	// each raw amount counts once per selected line it feeds
	expected := make(map[string]decimal.Decimal)
	for _, r := range records {
		n := int64(len(m.SelectedLines(r.ItemCode, tax)))
		expected[r.EntityID] = expected[r.EntityID].Add(r.Amount.Mul(decimal.NewFromInt(n)))
	}

	for entity, want := range expected {
		assert.True(t, want.Equal(perEntity[entity]), "entity %s: want %s got %s", entity, want, perEntity[entity])
	}
}

type failingSource struct{ done bool }

func (f *failingSource) Next() bool {
	if f.done {
		return false
	}
	f.done = true
	return true
}

func (f *failingSource) Record() types.RawFinanceRecord { return rec(cityID, "A01", 1) }

func (f *failingSource) Err() error { return errors.New("disk went away") }

func TestLocalSourceError(t *testing.T) {
	m, tax := fixtures(t)
	_, _, err := Local(context.Background(), &failingSource{}, m, tax)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk went away")
}

// countingSource counts how many times the records are read.
type countingSource struct {
	*fixedwidth.SliceSource
	reads int
}

func (c *countingSource) Next() bool {
	c.reads++
	return c.SliceSource.Next()
}

func TestLocalSetSinglePass(t *testing.T) {
	m, exp := fixtures(t)
	rev, err := taxonomy.New(types.Revenue, []taxonomy.Category{
		{Name: "Other", Lines: []int{9}},
	})
	require.NoError(t, err)
	set := taxonomy.Set{Expenditure: exp, Revenue: rev}

	records := []types.RawFinanceRecord{
		rec(cityID, "A01", 100),
		rec(cityID, "A02", 50),
		rec(cityID, "B01", 999),
		rec(countyID, "B01", 4),
		rec(countyID, "B01", -4),
	}
	src := &countingSource{SliceSource: fixedwidth.NewSliceSource(records)}

	totals, stats, err := LocalSet(context.Background(), src, m, set)
	require.NoError(t, err)

	// one Next per record plus the final false
	assert.Equal(t, len(records)+1, src.reads)

	want, wantStats, err := Local(context.Background(), fixedwidth.NewSliceSource(records), m, exp)
	require.NoError(t, err)
	assert.Equal(t, want, totals[types.Expenditure])
	assert.Equal(t, wantStats, stats[types.Expenditure])

	require.Len(t, totals[types.Revenue], 1)
	assert.Equal(t, 9, totals[types.Revenue][0].Line)
	assert.Equal(t, "Interest on debt", totals[types.Revenue][0].Description)
	assert.True(t, decimal.NewFromInt(999).Equal(totals[types.Revenue][0].Amount))
	assert.Equal(t, Stats{Records: 5, Matched: 3, Unselected: 2, Totals: 1, ZeroDropped: 1}, stats[types.Revenue])
}

func TestLocalSetSourceError(t *testing.T) {
	m, exp := fixtures(t)
	_, _, err := LocalSet(context.Background(), &failingSource{}, m, taxonomy.Set{Expenditure: exp, Revenue: exp})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk went away")
}

func TestJoin(t *testing.T) {
	dir := directory.New(2017,
		types.EntityProfile{
			EntityID:       cityID,
			DisplayName:    "Birmingham",
			StateAbbr:      "AL",
			StateName:      "Alabama",
			CountyName:     "JEFFERSON",
			Population:     1000,
			GovernmentType: types.GovCity,
		},
	)

	totals := []LineTotal{
		{EntityID: cityID, Line: 4, Category: "Public Safety", Description: "Police protection", Amount: decimal.NewFromInt(150)},
		{EntityID: unknownID, Line: 4, Category: "Public Safety", Description: "Police protection", Amount: decimal.NewFromInt(-5)},
		{EntityID: unknownID, Line: 5, Category: "Other", Description: "Fire protection", Amount: decimal.NewFromInt(-5)},
	}

	rows, stats := Join(totals, dir, 2017, types.Expenditure)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, stats.Rows)
	assert.Equal(t, 1, stats.MissingEntities)
	require.Len(t, stats.MissingSamples, 1)

	var missing *types.MissingEntityProfileError
	var err error = stats.MissingSamples[0]
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, unknownID, missing.EntityID)

	row := rows[0]
	assert.Equal(t, types.ScopeLocal, row.Scope)
	assert.Equal(t, types.Expenditure, row.ReportType)
	assert.Equal(t, "Birmingham", row.DisplayName)
	assert.Equal(t, "City", row.Level)
	assert.Equal(t, int64(1000), row.Population)
	assert.Equal(t, 2017, row.Year)
}

func TestNational(t *testing.T) {
	_, tax := fixtures(t)
	p := profile.Profile{
		Year:              2017,
		StateLocalColumns: map[int]string{2: types.LevelState, 3: types.LevelLocal},
	}

	table := &xlsxparser.SummaryTable{
		Year: 2017,
		Columns: []xlsxparser.ColumnRef{
			{Group: "United States Total", Index: 2},
			{Group: "United States Total", Index: 3},
			{Group: "Alabama", Index: 1},
			{Group: "Alabama", Index: 2},
			{Group: "Alabama", Index: 3},
			{Group: "Narnia", Index: 2},
		},
		Rows: []xlsxparser.SummaryRow{
			{Line: 4, Description: "   Police protection", Values: decs(900, 800, 30, 20, 10, 1)},
			{Line: 77, Description: "Not selected", Values: decs(1, 1, 1, 1, 1, 1)},
		},
	}

	pop := xlsxparser.StatePopulation{}
	pop.Set("Alabama", 2017, 5000)

	rows, stats := National(table, p, tax, pop, types.Expenditure)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Narnia"}, stats.UnknownStates)
	assert.Empty(t, stats.MissingPopulation)

	state, local := rows[0], rows[1]
	assert.Equal(t, types.LevelState, state.Level)
	assert.Equal(t, types.LevelLocal, local.Level)
	assert.Equal(t, "AL", state.EntityID)
	assert.Equal(t, "Alabama", state.StateName)
	assert.Equal(t, "Police protection", state.Description)
	assert.Equal(t, "Public Safety", state.Category)
	assert.Equal(t, types.ScopeState, state.Scope)
	assert.Equal(t, int64(5000), state.Population)
	assert.True(t, decimal.NewFromInt(20).Equal(state.Amount))
	assert.True(t, decimal.NewFromInt(10).Equal(local.Amount))

	_, stats = National(table, p, tax, xlsxparser.StatePopulation{}, types.Expenditure)
	assert.Equal(t, []string{"Alabama"}, stats.MissingPopulation)
}

func decs(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}
