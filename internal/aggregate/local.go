// =============================================================================
// govfin - Line/Category Aggregator
// =============================================================================
//
// Turns item-code level unit records into summary-line totals per entity,
// then attaches entity attributes from the directory.
//
// AGGREGATION RULE:
//   For every record, the amount is added to every selected line whose item
//   code set contains the record's item code. A line is selected when the
//   taxonomy assigns it a category; all other lines are never accumulated.
//   Totals equal to zero are dropped. Negative totals are kept so the sum of
//   line totals always equals the sum of the contributing raw amounts.
//
// =============================================================================

package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/ginjaninja78/govfin/internal/fixedwidth"
	"github.com/ginjaninja78/govfin/internal/taxonomy"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
)

// LineTotal is the summed amount of one entity for one summary line.
type LineTotal struct {
	EntityID    string
	Line        int
	Category    string
	Description string
	Amount      decimal.Decimal
}

// Stats counts what happened during a local aggregation pass.
type Stats struct {
	// Records is the number of records consumed.
	Records int

	// Matched is the number of records that fed at least one selected line.
	Matched int

	// Unselected is the number of records whose item code feeds no
	// selected line.
	Unselected int

	// Totals is the number of (entity, line) totals kept.
	Totals int

	// ZeroDropped is the number of totals dropped for summing to zero.
	ZeroDropped int
}

type totalKey struct {
	entity string
	line   int
}

// cancelCheckInterval is how many records are consumed between context
// checks.
const cancelCheckInterval = 1 << 14

// Local streams records once and sums amounts per (entity, line).
//
// PARAMETERS:
//   - ctx: checked periodically; a cancelled context stops the pass.
//   - src: the unit records of one survey year.
//   - m: item code to line mapping.
//   - t: the taxonomy of the report type being built.
//
// RETURNS:
//   - Totals ordered by entity ID, then line.
//   - Pass statistics.
//   - The source's error or the context error.
func Local(ctx context.Context, src fixedwidth.RecordSource, m *taxonomy.Mapping, t *taxonomy.Taxonomy) ([]LineTotal, Stats, error) {
	acc := newAccumulator(m, t)
	if err := consume(ctx, src, acc); err != nil {
		return nil, acc.stats, err
	}
	totals := acc.totals()
	return totals, acc.stats, nil
}

// LocalSet sums every report type of the set in one read of src. The unit
// file of a year is the largest input, so it is never scanned twice.
func LocalSet(ctx context.Context, src fixedwidth.RecordSource, m *taxonomy.Mapping, set taxonomy.Set) (map[types.ReportType][]LineTotal, map[types.ReportType]Stats, error) {
	accs := make([]*accumulator, len(types.ReportTypes))
	for i, rt := range types.ReportTypes {
		accs[i] = newAccumulator(m, set.For(rt))
	}

	stats := make(map[types.ReportType]Stats, len(accs))
	if err := consume(ctx, src, accs...); err != nil {
		for i, rt := range types.ReportTypes {
			stats[rt] = accs[i].stats
		}
		return nil, stats, err
	}

	totals := make(map[types.ReportType][]LineTotal, len(accs))
	for i, rt := range types.ReportTypes {
		totals[rt] = accs[i].totals()
		stats[rt] = accs[i].stats
	}
	return totals, stats, nil
}

func consume(ctx context.Context, src fixedwidth.RecordSource, accs ...*accumulator) error {
	n := 0
	for src.Next() {
		n++
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec := src.Record()
		for _, acc := range accs {
			acc.add(rec)
		}
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("failed to read unit records: %w", err)
	}
	return nil
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// accumulator sums the records of one taxonomy.
type accumulator struct {
	m     *taxonomy.Mapping
	t     *taxonomy.Taxonomy
	sums  map[totalKey]decimal.Decimal
	stats Stats

	// item code -> selected lines, filled on first sight
	selected map[string][]int
}

func newAccumulator(m *taxonomy.Mapping, t *taxonomy.Taxonomy) *accumulator {
	return &accumulator{
		m:        m,
		t:        t,
		sums:     make(map[totalKey]decimal.Decimal),
		selected: make(map[string][]int),
	}
}

func (a *accumulator) add(rec types.RawFinanceRecord) {
	a.stats.Records++

	lines, ok := a.selected[rec.ItemCode]
	if !ok {
		lines = a.m.SelectedLines(rec.ItemCode, a.t)
		a.selected[rec.ItemCode] = lines
	}
	if len(lines) == 0 {
		a.stats.Unselected++
		return
	}

	a.stats.Matched++
	for _, line := range lines {
		k := totalKey{entity: rec.EntityID, line: line}
		a.sums[k] = a.sums[k].Add(rec.Amount)
	}
}

// totals drops zero sums and orders the rest by entity, then line.
func (a *accumulator) totals() []LineTotal {
	totals := make([]LineTotal, 0, len(a.sums))
	for k, amount := range a.sums {
		if amount.IsZero() {
			a.stats.ZeroDropped++
			continue
		}
		category, _ := a.t.CategoryFor(k.line)
		totals = append(totals, LineTotal{
			EntityID:    k.entity,
			Line:        k.line,
			Category:    category,
			Description: a.m.Description(k.line),
			Amount:      amount,
		})
	}
	a.stats.Totals = len(totals)

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].EntityID != totals[j].EntityID {
			return totals[i].EntityID < totals[j].EntityID
		}
		return totals[i].Line < totals[j].Line
	})
	return totals
}
