// =============================================================================
// govfin - Pivot
// =============================================================================
//
// Converts between the long form (one row per entity, category, line and
// year) and the wide form (one row per entity, category, description and
// level with a column per metric and year).
//
// WIDE RULES:
//   - rows are keyed by (entity, category, description, level)
//   - every year seen in the input becomes a column of each metric
//   - a missing (key, year) cell reads as zero
//   - duplicate keys within a year are summed
//   - Observed records which (key, year) cells came from input rows, so
//     ToLong(ToWide(rows)) returns the input rows
//
// =============================================================================

package pivot

import (
	"sort"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
)

// ToWide pivots long rows into a wide report. Scope and report type are
// taken from the first row.
func ToWide(rows []types.AggregatedReportRow) types.WideReport {
	report := types.WideReport{}
	if len(rows) == 0 {
		return report
	}
	report.Scope = rows[0].Scope
	report.ReportType = rows[0].ReportType

	index := make(map[types.WideKey]int)
	years := make(map[int]struct{})

	for _, r := range rows {
		years[r.Year] = struct{}{}

		i, ok := index[r.Key()]
		if !ok {
			i = len(report.Rows)
			index[r.Key()] = i
			report.Rows = append(report.Rows, newWideRow(r))
		}
		w := &report.Rows[i]

		if w.Observed[r.Year] {
			w.Amount[r.Year] = w.Amount[r.Year].Add(r.Amount)
			w.PerCapita[r.Year] = w.PerCapita[r.Year].Add(r.PerCapita)
			w.PerStudent[r.Year] = w.PerStudent[r.Year].Add(r.PerStudent)
			continue
		}
		w.Amount[r.Year] = r.Amount
		w.PerCapita[r.Year] = r.PerCapita
		w.PerStudent[r.Year] = r.PerStudent
		w.Population[r.Year] = r.Population
		w.Enrollment[r.Year] = r.Enrollment
		w.Observed[r.Year] = true
	}

	for y := range years {
		report.Years = append(report.Years, y)
	}
	sort.Ints(report.Years)

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return lessRow(report.Rows[i], report.Rows[j])
	})

	return report
}

func newWideRow(r types.AggregatedReportRow) types.WideRow {
	return types.WideRow{
		Key:            r.Key(),
		StateAbbr:      r.StateAbbr,
		StateName:      r.StateName,
		CountyName:     r.CountyName,
		DisplayName:    r.DisplayName,
		GovernmentType: r.GovernmentType,
		Line:           r.Line,
		Amount:         make(map[int]decimal.Decimal),
		PerCapita:      make(map[int]decimal.Decimal),
		PerStudent:     make(map[int]decimal.Decimal),
		Population:     make(map[int]int64),
		Enrollment:     make(map[int]int64),
		Observed:       make(map[int]bool),
	}
}

// lessRow orders rows by state, entity, category, line, description and
// level.
func lessRow(a, b types.WideRow) bool {
	switch {
	case a.StateAbbr != b.StateAbbr:
		return a.StateAbbr < b.StateAbbr
	case a.Key.EntityID != b.Key.EntityID:
		return a.Key.EntityID < b.Key.EntityID
	case a.Key.Category != b.Key.Category:
		return a.Key.Category < b.Key.Category
	case a.Line != b.Line:
		return a.Line < b.Line
	case a.Key.Description != b.Key.Description:
		return a.Key.Description < b.Key.Description
	default:
		return a.Key.Level < b.Key.Level
	}
}

// ToLong expands a wide report back into rows, one per observed
// (key, year) cell, in row then year order.
func ToLong(report types.WideReport) []types.AggregatedReportRow {
	var out []types.AggregatedReportRow
	for _, w := range report.Rows {
		for _, year := range report.Years {
			if !w.Observed[year] {
				continue
			}
			out = append(out, types.AggregatedReportRow{
				Scope:          report.Scope,
				ReportType:     report.ReportType,
				EntityID:       w.Key.EntityID,
				StateAbbr:      w.StateAbbr,
				StateName:      w.StateName,
				CountyName:     w.CountyName,
				DisplayName:    w.DisplayName,
				GovernmentType: w.GovernmentType,
				Level:          w.Key.Level,
				Category:       w.Key.Category,
				Line:           w.Line,
				Description:    w.Key.Description,
				Amount:         w.Value(types.MetricAmount, year),
				PerCapita:      w.Value(types.MetricPerCapita, year),
				PerStudent:     w.Value(types.MetricPerStudent, year),
				Population:     w.Population[year],
				Enrollment:     w.Enrollment[year],
				Year:           year,
			})
		}
	}
	return out
}

// Partition splits rows by state abbreviation, keeping input order within
// each state.
func Partition(rows []types.AggregatedReportRow) map[string][]types.AggregatedReportRow {
	out := make(map[string][]types.AggregatedReportRow)
	for _, r := range rows {
		out[r.StateAbbr] = append(out[r.StateAbbr], r)
	}
	return out
}

// Keys returns the partition keys in sorted order.
func Keys(parts map[string][]types.AggregatedReportRow) []string {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToWidePartitions pivots each state's rows into its own wide report.
func ToWidePartitions(rows []types.AggregatedReportRow) []types.WideReport {
	parts := Partition(rows)
	out := make([]types.WideReport, 0, len(parts))
	for _, st := range Keys(parts) {
		w := ToWide(parts[st])
		w.Partition = st
		out = append(out, w)
	}
	return out
}
