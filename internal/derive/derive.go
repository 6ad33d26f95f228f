// Package derive computes the normalized metrics of report rows.
//
// Amounts are published in thousands of dollars, so a per-unit metric is
// amount * 1000 / denominator. A denominator that is zero or negative yields
// zero, never an error.
package derive

import (
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// PerUnit returns amount*1000/denominator, or zero when denominator <= 0.
func PerUnit(amount decimal.Decimal, denominator int64) decimal.Decimal {
	if denominator <= 0 {
		return decimal.Zero
	}
	return amount.Mul(thousand).Div(decimal.NewFromInt(denominator))
}

// WithMetrics fills the per-capita and per-student metrics of a local row
// from the entity profile, following the government-type policy:
//
//	school district    per student only
//	special district   neither
//	everything else    per capita only
//
// Population and enrollment are copied from the profile.
func WithMetrics(row types.AggregatedReportRow, profile types.EntityProfile) types.AggregatedReportRow {
	row.Population = profile.Population
	row.Enrollment = profile.Enrollment
	row.PerCapita = decimal.Zero
	row.PerStudent = decimal.Zero

	gov := profile.GovernmentType
	if gov.UsesPerStudent() {
		row.PerStudent = PerUnit(row.Amount, profile.Enrollment)
	}
	if gov.UsesPerCapita() {
		row.PerCapita = PerUnit(row.Amount, profile.Population)
	}
	return row
}

// National fills the per-capita metric of a nationwide row from its
// state's population. Both the State and Local levels use the state
// population.
func National(row types.AggregatedReportRow, population int64) types.AggregatedReportRow {
	row.Population = population
	row.PerCapita = PerUnit(row.Amount, population)
	row.PerStudent = decimal.Zero
	return row
}

// ApplyLocal runs WithMetrics over rows using each row's own attributes.
func ApplyLocal(rows []types.AggregatedReportRow) {
	for i, row := range rows {
		rows[i] = WithMetrics(row, types.EntityProfile{
			Population:     row.Population,
			Enrollment:     row.Enrollment,
			GovernmentType: row.GovernmentType,
		})
	}
}

// ApplyNational runs National over rows using each row's population.
func ApplyNational(rows []types.AggregatedReportRow) {
	for i, row := range rows {
		rows[i] = National(row, row.Population)
	}
}
