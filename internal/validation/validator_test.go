package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/govfin/internal/taxonomy"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localRow() types.AggregatedReportRow {
	return types.AggregatedReportRow{
		Scope:          types.ScopeLocal,
		ReportType:     types.Expenditure,
		EntityID:       "01201001000000",
		StateAbbr:      "AL",
		StateName:      "Alabama",
		DisplayName:    "Birmingham",
		GovernmentType: types.GovCity,
		Level:          "City",
		Category:       "Public Safety",
		Line:           94,
		Description:    "Police protection",
		Amount:         decimal.NewFromInt(150),
		PerCapita:      decimal.NewFromInt(150),
		Population:     1000,
		Year:           2017,
	}
}

func rules(errs []*ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Rule)
	}
	return out
}

func TestValidateRow(t *testing.T) {
	set := taxonomy.Default()
	v := NewValidator(&set)

	assert.Empty(t, v.ValidateRow(localRow()))

	school := localRow()
	school.EntityID = "01501001000000"
	school.GovernmentType = types.GovSchoolDistrict
	school.Level = "School District"
	school.PerCapita = decimal.Zero
	school.PerStudent = decimal.NewFromInt(12)
	assert.Empty(t, v.ValidateRow(school))

	school.PerCapita = decimal.NewFromInt(1)
	assert.Equal(t, []string{"metric_policy"}, rules(v.ValidateRow(school)))

	wrongCategory := localRow()
	wrongCategory.Category = "Education"
	assert.Equal(t, []string{"category"}, rules(v.ValidateRow(wrongCategory)))

	mismatched := localRow()
	mismatched.GovernmentType = types.GovCounty
	mismatched.Level = "County"
	assert.Equal(t, []string{"government_type"}, rules(v.ValidateRow(mismatched)))

	zero := localRow()
	zero.Amount = decimal.Zero
	errs := v.ValidateRow(zero)
	require.Len(t, errs, 1)
	assert.Equal(t, SeverityWarning, errs[0].Severity)

	empty := localRow()
	empty.EntityID = ""
	assert.Equal(t, []string{"required"}, rules(v.ValidateRow(empty)))
}

func TestValidateNationalRow(t *testing.T) {
	v := NewValidator(nil)
	row := types.AggregatedReportRow{
		Scope:       types.ScopeState,
		ReportType:  types.Revenue,
		EntityID:    "AL",
		StateAbbr:   "AL",
		Level:       types.LevelLocal,
		Category:    "Property Tax",
		Line:        9,
		Description: "Property",
		Year:        2017,
	}
	assert.Empty(t, v.ValidateRow(row))

	row.Level = "City"
	row.PerStudent = decimal.NewFromInt(3)
	assert.ElementsMatch(t, []string{"level", "metric_policy"}, rules(v.ValidateRow(row)))
}

func TestValidateAllOptions(t *testing.T) {
	bad := localRow()
	bad.StateAbbr = "ZZ"
	warn := localRow()
	warn.Description = " "

	result := NewValidator(nil).ValidateAll([]types.AggregatedReportRow{localRow(), bad, warn})
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, 3, result.RowsValidated)

	result = NewValidatorWithOptions(nil, ValidationOptions{TreatWarningsAsErrors: true}).
		ValidateAll([]types.AggregatedReportRow{warn})
	assert.False(t, result.IsValid)
	assert.Equal(t, 0, result.ErrorCount)

	result = NewValidatorWithOptions(nil, ValidationOptions{StopOnFirstError: true}).
		ValidateAll([]types.AggregatedReportRow{bad, bad})
	assert.Equal(t, 1, result.ErrorCount)
}

func TestValidateWide(t *testing.T) {
	rows := []types.AggregatedReportRow{localRow()}
	wide := types.WideReport{
		Years: []int{2017},
		Rows: []types.WideRow{{
			Key:      rows[0].Key(),
			Amount:   map[int]decimal.Decimal{2017: decimal.NewFromInt(150)},
			Observed: map[int]bool{2017: true},
		}},
	}
	assert.Empty(t, ValidateWide(rows, wide))

	wide.Rows[0].Amount[2017] = decimal.NewFromInt(149)
	errs := ValidateWide(rows, wide)
	require.Len(t, errs, 1)
	assert.Equal(t, "wide_total", errs[0].Rule)
	assert.Equal(t, 2017, errs[0].Year)
}

func TestErrorLog(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	errs := []*ValidationError{{
		Severity: SeverityError,
		Field:    "StateAbbr",
		Value:    "ZZ",
		Rule:     "state",
		Message:  "unknown state abbreviation",
		EntityID: "01201001000000",
		Year:     2017,
		Line:     94,
	}}

	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, WriteErrorLog(errs, "local_expenditure_AL", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "local_expenditure_AL")
	assert.Contains(t, string(data), "[ERROR] Entity 01201001000000, Year 2017, Line 94, Field 'StateAbbr'")
}
