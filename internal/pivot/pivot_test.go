package pivot

import (
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func row(entity, state, category string, line int, year int, amount int64) types.AggregatedReportRow {
	return types.AggregatedReportRow{
		Scope:          types.ScopeLocal,
		ReportType:     types.Expenditure,
		EntityID:       entity,
		StateAbbr:      state,
		StateName:      "Alabama",
		CountyName:     "JEFFERSON",
		DisplayName:    "Birmingham",
		GovernmentType: types.GovCity,
		Level:          "City",
		Category:       category,
		Line:           line,
		Description:    "Police protection",
		Amount:         decimal.NewFromInt(amount),
		PerCapita:      decimal.NewFromInt(amount * 2),
		PerStudent:     decimal.Zero,
		Population:     500,
		Year:           year,
	}
}

func TestToWide(t *testing.T) {
	rows := []types.AggregatedReportRow{
		row("01201001000000", "AL", "Public Safety", 4, 2016, 100),
		row("01201001000000", "AL", "Public Safety", 4, 2017, 150),
		row("01101001000000", "AL", "Public Safety", 4, 2017, 70),
	}

	wide := ToWide(rows)
	assert.Equal(t, types.ScopeLocal, wide.Scope)
	assert.Equal(t, types.Expenditure, wide.ReportType)
	assert.Equal(t, []int{2016, 2017}, wide.Years)
	require.Len(t, wide.Rows, 2)

	// ordered by entity
	county, city := wide.Rows[0], wide.Rows[1]
	assert.Equal(t, "01101001000000", county.Key.EntityID)

	// missing cell reads as zero
	assert.True(t, county.Value(types.MetricAmount, 2016).IsZero())
	assert.False(t, county.Observed[2016])
	assert.True(t, decimal.NewFromInt(70).Equal(county.Value(types.MetricAmount, 2017)))

	assert.True(t, decimal.NewFromInt(100).Equal(city.Value(types.MetricAmount, 2016)))
	assert.True(t, decimal.NewFromInt(300).Equal(city.Value(types.MetricPerCapita, 2017)))

	assert.Equal(t, []string{
		"id", "ST", "County name", "ID name", "Gov Type", "Category", "Line", "Description",
		"Amount_2016", "Amount_2017",
		"Per Capita_2016", "Per Capita_2017",
		"Per Student_2016", "Per Student_2017",
	}, wide.Header())
}

func TestToWideSumsDuplicates(t *testing.T) {
	rows := []types.AggregatedReportRow{
		row("01201001000000", "AL", "Public Safety", 4, 2017, 100),
		row("01201001000000", "AL", "Public Safety", 4, 2017, 50),
	}

	wide := ToWide(rows)
	require.Len(t, wide.Rows, 1)
	assert.True(t, decimal.NewFromInt(150).Equal(wide.Rows[0].Value(types.MetricAmount, 2017)))
	assert.True(t, decimal.NewFromInt(300).Equal(wide.Rows[0].Value(types.MetricPerCapita, 2017)))
}

func TestRoundTrip(t *testing.T) {
	rows := []types.AggregatedReportRow{
		row("01101001000000", "AL", "Public Safety", 4, 2016, 10),
		row("01101001000000", "AL", "Public Safety", 4, 2017, -3),
		row("01101001000000", "AL", "Transportation", 88, 2017, 0),
		row("01201001000000", "AL", "Public Safety", 4, 2015, 100),
		row("01201001000000", "AL", "Public Safety", 4, 2017, 150),
	}
	rows[4].Population = 510

	got := ToLong(ToWide(rows))
	if diff := cmp.Diff(rows, got, decimalEqual); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDenominatorsStayOutOfColumns(t *testing.T) {
	rows := []types.AggregatedReportRow{
		row("01201001000000", "AL", "Public Safety", 4, 2016, 100),
		row("01201001000000", "AL", "Public Safety", 4, 2017, 150),
	}
	rows[1].Population = 510
	rows[1].Enrollment = 7

	wide := ToWide(rows)
	require.Len(t, wide.Rows, 1)
	assert.Equal(t, map[int]int64{2016: 500, 2017: 510}, wide.Rows[0].Population)
	assert.Equal(t, int64(7), wide.Rows[0].Enrollment[2017])

	for _, col := range wide.Header() {
		assert.NotContains(t, col, "Population")
		assert.NotContains(t, col, "Enrollment")
	}

	long := ToLong(wide)
	require.Len(t, long, 2)
	assert.Equal(t, int64(510), long[1].Population)
	assert.Equal(t, int64(7), long[1].Enrollment)
}

func TestEmpty(t *testing.T) {
	wide := ToWide(nil)
	assert.Empty(t, wide.Rows)
	assert.Empty(t, ToLong(wide))
}

func TestPartition(t *testing.T) {
	rows := []types.AggregatedReportRow{
		row("06201001000000", "CA", "Public Safety", 4, 2017, 1),
		row("01201001000000", "AL", "Public Safety", 4, 2017, 2),
		row("06201002000000", "CA", "Public Safety", 4, 2017, 3),
	}

	parts := Partition(rows)
	assert.Equal(t, []string{"AL", "CA"}, Keys(parts))
	require.Len(t, parts["CA"], 2)
	assert.Equal(t, "06201002000000", parts["CA"][1].EntityID)

	wides := ToWidePartitions(rows)
	require.Len(t, wides, 2)
	assert.Equal(t, "AL", wides[0].Partition)
	assert.Equal(t, "local_expenditure_CA", wides[1].Name())
}
