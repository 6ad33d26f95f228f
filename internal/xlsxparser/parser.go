// =============================================================================
// govfin - Spreadsheet Readers
// =============================================================================
//
// Reads the Census spreadsheets that feed the pipeline:
//   1. Summary table pair (YYslsstab1a.xlsx / YYslsstab1b.xlsx)
//   2. State population estimates (nst-est*.xlsx)
//   3. City names list (city_names.xlsx), for the protected-name allow-list
//
// SUMMARY TABLE LAYOUT:
//   The survey splits one conceptual table across two workbooks. Each has a
//   two-level header:
//     level 0   state name, one merged cell spanning the state's columns
//     level 1   column number within the state (1..3 or 1..5 by year)
//   The year profile gives the row of each level. The first row under the
//   header repeats the spreadsheet column numbers and is dropped.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ginjaninja78/govfin/internal/profile"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// SUMMARY TABLE STRUCTURES
// =============================================================================

// ColumnRef identifies a data column by its two header levels.
type ColumnRef struct {
	// Group is the level-0 label, normally a state name.
	Group string

	// Index is the level-1 column number, 0 when the cell is not numeric.
	Index int
}

// SummaryRow is one line of the summary table.
type SummaryRow struct {
	// Line is the published line number, 0 for rows without one.
	Line        int
	Description string

	// Values is aligned with SummaryTable.Columns.
	Values []decimal.Decimal
}

// SummaryTable is the column-wise concatenation of both workbooks.
type SummaryTable struct {
	Year    int
	Columns []ColumnRef
	Rows    []SummaryRow
}

// StateLocalAmount is one State or Local amount for a state and line.
type StateLocalAmount struct {
	State       string
	Level       string
	Line        int
	Description string
	Amount      decimal.Decimal
}

// nationalTotalGroup is the level-0 label of the national column group.
const nationalTotalGroup = "United States Total"

// =============================================================================
// SUMMARY TABLE READER
// =============================================================================

// ReadSummaryTable reads the A and B workbooks for a year and joins them
// column-wise.
//
// PARAMETERS:
//   - fileA, fileB: paths to the two halves.
//   - p: the year profile giving header rows and row limits.
//
// RETURNS:
//   - The joined table.
//   - A *types.SchemaMismatchError when either header lacks the Line and
//     Description anchors, or the halves disagree on line numbers.
func ReadSummaryTable(fileA, fileB string, p profile.Profile) (*SummaryTable, error) {
	a, err := readHalf(fileA, p, true)
	if err != nil {
		return nil, err
	}
	b, err := readHalf(fileB, p, false)
	if err != nil {
		return nil, err
	}

	if len(a.rows) != len(b.rows) {
		return nil, &types.SchemaMismatchError{
			Year:   p.Year,
			File:   filepath.Base(fileB),
			Reason: fmt.Sprintf("%d data rows, %s has %d", len(b.rows), filepath.Base(fileA), len(a.rows)),
		}
	}

	table := &SummaryTable{
		Year:    p.Year,
		Columns: append(append([]ColumnRef(nil), a.columns...), b.columns...),
		Rows:    make([]SummaryRow, len(a.rows)),
	}

	for i := range a.rows {
		ra, rb := a.rows[i], b.rows[i]
		if ra.Line != 0 && rb.Line != 0 && ra.Line != rb.Line {
			return nil, &types.SchemaMismatchError{
				Year:   p.Year,
				File:   filepath.Base(fileB),
				Reason: fmt.Sprintf("row %d is line %d, expected line %d", i+1, rb.Line, ra.Line),
			}
		}
		values := make([]decimal.Decimal, 0, len(table.Columns))
		values = append(values, ra.Values...)
		values = append(values, rb.Values...)
		table.Rows[i] = SummaryRow{Line: ra.Line, Description: ra.Description, Values: values}
	}

	return table, nil
}

// StateLocal selects the State and Local columns named by the profile,
// skipping the national total group and rows without a line number.
func (t *SummaryTable) StateLocal(p profile.Profile) []StateLocalAmount {
	var out []StateLocalAmount
	for j, col := range t.Columns {
		if col.Group == "" || strings.EqualFold(col.Group, nationalTotalGroup) {
			continue
		}
		level, ok := p.StateLocalColumns[col.Index]
		if !ok {
			continue
		}
		for _, row := range t.Rows {
			if row.Line == 0 {
				continue
			}
			out = append(out, StateLocalAmount{
				State:       col.Group,
				Level:       level,
				Line:        row.Line,
				Description: row.Description,
				Amount:      row.Values[j],
			})
		}
	}
	return out
}

// Groups returns the distinct level-0 labels in column order.
func (t *SummaryTable) Groups() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range t.Columns {
		if c.Group != "" && !seen[c.Group] {
			seen[c.Group] = true
			out = append(out, c.Group)
		}
	}
	return out
}

// half is one parsed workbook.
type half struct {
	columns []ColumnRef
	rows    []SummaryRow
}

func readHalf(path string, p profile.Profile, first bool) (*half, error) {
	rows, err := readSheetRows(path)
	if err != nil {
		return nil, err
	}
	return parseHalf(rows, filepath.Base(path), p, first)
}

// parseHalf turns raw sheet rows into a half table. The Line and
// Description columns of the second half are dropped; its Line values are
// still read to check alignment.
func parseHalf(rows [][]string, name string, p profile.Profile, first bool) (*half, error) {
	l0, l1 := p.LevelHeaderRows()
	if len(rows) <= l1 {
		return nil, &types.SchemaMismatchError{
			Year:   p.Year,
			File:   name,
			Reason: fmt.Sprintf("sheet has %d rows, header needs %d", len(rows), l1+1),
		}
	}

	level0, level1 := rows[l0], rows[l1]
	if !isLineAnchor(cellAt(level0, 0)) || !isDescriptionAnchor(cellAt(level0, 1), cellAt(level1, 1)) {
		return nil, &types.SchemaMismatchError{
			Year: p.Year,
			File: name,
			Reason: fmt.Sprintf("expected Line/Description anchor columns, found %q/%q",
				cellAt(level0, 0), cellAt(level0, 1)),
		}
	}

	width := len(level0)
	if len(level1) > width {
		width = len(level1)
	}

	h := &half{}
	group := ""
	for j := 2; j < width; j++ {
		// merged level-0 cells only carry the label in their first column
		if label := strings.TrimSpace(cellAt(level0, j)); label != "" {
			group = label
		}
		h.columns = append(h.columns, ColumnRef{Group: group, Index: parseColumnNumber(cellAt(level1, j))})
	}

	end := l1 + 1 + p.MaxDataRows
	if p.MaxDataRows <= 0 || end > len(rows) {
		end = len(rows)
	}
	data := rows[l1+1 : end]

	// the first row under the header repeats the spreadsheet column numbers
	if len(data) > 0 {
		data = data[1:]
	}

	for _, row := range data {
		if isRowEmpty(row) {
			continue
		}
		line, _ := strconv.Atoi(strings.TrimSpace(cellAt(row, 0)))
		sr := SummaryRow{Line: line, Values: make([]decimal.Decimal, len(h.columns))}
		if first {
			sr.Description = cellAt(row, 1)
		}
		for j := range h.columns {
			sr.Values[j] = parseAmount(cellAt(row, j+2))
		}
		h.rows = append(h.rows, sr)
	}

	return h, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readSheetRows returns the raw (unformatted) cell values of the first sheet.
func readSheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isLineAnchor(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "Line")
}

func isDescriptionAnchor(level0, level1 string) bool {
	return strings.EqualFold(strings.TrimSpace(level0), "Description") ||
		strings.EqualFold(strings.TrimSpace(level1), "Description")
}

// parseColumnNumber reads "3", "3.0" or "(3)".
func parseColumnNumber(s string) int {
	s = strings.Trim(strings.TrimSpace(s), "()")
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// parseAmount reads a summary-table cell. Suppressed or not-applicable
// markers ("-", "(X)", "(NA)") read as zero.
func parseAmount(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
