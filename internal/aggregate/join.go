package aggregate

import (
	"sort"
	"strings"

	"github.com/ginjaninja78/govfin/internal/directory"
	"github.com/ginjaninja78/govfin/internal/profile"
	"github.com/ginjaninja78/govfin/internal/taxonomy"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/internal/xlsxparser"
)

// maxMissingSamples bounds the missing-entity errors kept for reporting.
const maxMissingSamples = 10

// JoinStats counts the outcome of joining totals with the directory.
type JoinStats struct {
	Rows int

	// MissingEntities counts distinct entity IDs without a profile.
	MissingEntities int

	// MissingSamples holds the first few missing-entity errors.
	MissingSamples []*types.MissingEntityProfileError
}

// Join attaches directory attributes to line totals and returns local-scope
// report rows. Totals whose entity has no profile are excluded and counted
// once per entity.
func Join(totals []LineTotal, dir *directory.Directory, year int, rt types.ReportType) ([]types.AggregatedReportRow, JoinStats) {
	var stats JoinStats
	missing := make(map[string]bool)
	rows := make([]types.AggregatedReportRow, 0, len(totals))

	for _, total := range totals {
		entity, ok := dir.Get(total.EntityID)
		if !ok {
			if !missing[total.EntityID] {
				missing[total.EntityID] = true
				stats.MissingEntities++
				if len(stats.MissingSamples) < maxMissingSamples {
					stats.MissingSamples = append(stats.MissingSamples,
						&types.MissingEntityProfileError{EntityID: total.EntityID, Year: year})
				}
			}
			continue
		}

		rows = append(rows, types.AggregatedReportRow{
			Scope:          types.ScopeLocal,
			ReportType:     rt,
			EntityID:       entity.EntityID,
			StateAbbr:      entity.StateAbbr,
			StateName:      entity.StateName,
			CountyName:     entity.CountyName,
			DisplayName:    entity.DisplayName,
			GovernmentType: entity.GovernmentType,
			Level:          entity.GovernmentType.Name(),
			Category:       total.Category,
			Line:           total.Line,
			Description:    total.Description,
			Amount:         total.Amount,
			Population:     entity.Population,
			Enrollment:     entity.Enrollment,
			Year:           year,
		})
	}

	stats.Rows = len(rows)
	return rows, stats
}

// =============================================================================
// NATIONWIDE ROWS
// =============================================================================

// NationalStats reports labels of the summary table that could not be
// resolved.
type NationalStats struct {
	Rows int

	// UnknownStates lists level-0 groups that are not a state name.
	UnknownStates []string

	// MissingPopulation lists states without a population estimate for
	// the year.
	MissingPopulation []string
}

// National builds State/Local rows per state from the summary table. Only
// lines the taxonomy assigns a category are kept.
func National(table *xlsxparser.SummaryTable, p profile.Profile, t *taxonomy.Taxonomy, pop xlsxparser.StatePopulation, rt types.ReportType) ([]types.AggregatedReportRow, NationalStats) {
	var stats NationalStats
	unknown := make(map[string]bool)
	noPop := make(map[string]bool)

	var rows []types.AggregatedReportRow
	for _, sl := range table.StateLocal(p) {
		category, ok := t.CategoryFor(sl.Line)
		if !ok {
			continue
		}

		name := strings.TrimSpace(sl.State)
		state, ok := directory.StateByName(name)
		if !ok {
			unknown[name] = true
			continue
		}

		population, ok := pop.For(state.Name, table.Year)
		if !ok {
			noPop[state.Name] = true
		}

		rows = append(rows, types.AggregatedReportRow{
			Scope:       types.ScopeState,
			ReportType:  rt,
			EntityID:    state.Abbr,
			StateAbbr:   state.Abbr,
			StateName:   state.Name,
			DisplayName: state.Name,
			Level:       sl.Level,
			Category:    category,
			Line:        sl.Line,
			Description: strings.TrimLeft(sl.Description, " \t"),
			Amount:      sl.Amount,
			Population:  population,
			Year:        table.Year,
		})
	}

	stats.Rows = len(rows)
	stats.UnknownStates = sortedKeys(unknown)
	stats.MissingPopulation = sortedKeys(noPop)
	return rows, stats
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
