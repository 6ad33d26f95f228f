package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "govfin.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func localRow(id string, year int, line int, amount int64) types.AggregatedReportRow {
	return types.AggregatedReportRow{
		Scope:          types.ScopeLocal,
		ReportType:     types.Expenditure,
		EntityID:       id,
		StateAbbr:      "AL",
		StateName:      "Alabama",
		CountyName:     "JEFFERSON",
		DisplayName:    "Birmingham",
		GovernmentType: types.GovTypeFromID(id),
		Level:          types.GovTypeFromID(id).Name(),
		Category:       "Public Safety",
		Line:           line,
		Description:    "Police protection",
		Amount:         decimal.NewFromInt(amount),
		PerCapita:      decimal.RequireFromString("150.5"),
		Population:     1000,
		Year:           year,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "govfin.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestReplaceRowsReplacesOnlyItsYear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.ReplaceRows(ctx, types.ScopeLocal, types.Expenditure, 2016, "run-1",
		[]types.AggregatedReportRow{localRow("01201001000000", 2016, 94, 90)}))
	require.NoError(t, s.ReplaceRows(ctx, types.ScopeLocal, types.Expenditure, 2017, "run-1",
		[]types.AggregatedReportRow{
			localRow("01201001000000", 2017, 94, 100),
			localRow("01501001000000", 2017, 94, 7),
		}))

	// re-running 2017 replaces its rows wholesale
	require.NoError(t, s.ReplaceRows(ctx, types.ScopeLocal, types.Expenditure, 2017, "run-2",
		[]types.AggregatedReportRow{localRow("01201001000000", 2017, 94, 150)}))

	rows, err := s.Rows(ctx, RowFilter{Scope: types.ScopeLocal, ReportType: types.Expenditure})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2016, rows[0].Year)
	assert.Equal(t, 2017, rows[1].Year)
	assert.True(t, rows[1].Amount.Equal(decimal.NewFromInt(150)))
	assert.True(t, rows[1].PerCapita.Equal(decimal.RequireFromString("150.5")))
	assert.Equal(t, types.GovCity, rows[1].GovernmentType)
	assert.Equal(t, "City", rows[1].Level)

	years, err := s.Years(ctx, types.ScopeLocal, types.Expenditure)
	require.NoError(t, err)
	assert.Equal(t, []int{2016, 2017}, years)
}

func TestReplaceRowsRejectsForeignRows(t *testing.T) {
	s := openTestStore(t)
	err := s.ReplaceRows(context.Background(), types.ScopeLocal, types.Expenditure, 2016, "run-1",
		[]types.AggregatedReportRow{localRow("01201001000000", 2017, 94, 1)})
	assert.Error(t, err)
}

func TestRowsFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	school := localRow("01501001000000", 2017, 71, 5)
	school.Category = "Education"
	school.Description = "Elementary and secondary education"
	require.NoError(t, s.ReplaceRows(ctx, types.ScopeLocal, types.Expenditure, 2017, "run-1",
		[]types.AggregatedReportRow{localRow("01201001000000", 2017, 94, 100), school}))

	rows, err := s.Rows(ctx, RowFilter{GovTypes: []types.GovType{types.GovCity, types.GovTownship}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "01201001000000", rows[0].EntityID)

	rows, err = s.Rows(ctx, RowFilter{Category: "Education", Years: []int{2017}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.GovSchoolDistrict, rows[0].GovernmentType)

	rows, err = s.Rows(ctx, RowFilter{State: "CA"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p := types.EntityProfile{
		EntityID:       "01201001000000",
		DisplayName:    "Birmingham",
		RawName:        "BIRMINGHAM CITY",
		StateAbbr:      "AL",
		StateName:      "Alabama",
		CountyName:     "JEFFERSON",
		Population:     210000,
		GovernmentType: types.GovCity,
		SurveyYear:     2017,
	}
	require.NoError(t, s.SaveProfiles(ctx, 2017, []types.EntityProfile{p}))

	got, err := s.Profile(ctx, "01201001000000", 2017)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Profile(ctx, "01201001000000", 2012)
	assert.True(t, errors.Is(err, ErrNotFound))
}
