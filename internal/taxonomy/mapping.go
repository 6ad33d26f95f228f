package taxonomy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// LINE MAPPING
// =============================================================================

// LineMapping lists the item codes that roll up into one summary line.
type LineMapping struct {
	Line        int
	Description string
	ItemCodes   map[string]struct{}
}

// NewLineMapping is a convenience constructor.
func NewLineMapping(line int, description string, codes ...string) LineMapping {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return LineMapping{Line: line, Description: description, ItemCodes: set}
}

// Mapping is the read-only item code -> line reference table.
type Mapping struct {
	lines  map[int]LineMapping
	byItem map[string][]int
}

// NewMapping indexes line mappings. Repeated line numbers are merged.
func NewMapping(lines ...LineMapping) *Mapping {
	m := &Mapping{
		lines:  make(map[int]LineMapping, len(lines)),
		byItem: make(map[string][]int),
	}

	for _, lm := range lines {
		existing, ok := m.lines[lm.Line]
		if !ok {
			existing = LineMapping{Line: lm.Line, Description: lm.Description, ItemCodes: make(map[string]struct{})}
		}
		for code := range lm.ItemCodes {
			existing.ItemCodes[code] = struct{}{}
		}
		m.lines[lm.Line] = existing
	}

	for line, lm := range m.lines {
		for code := range lm.ItemCodes {
			m.byItem[code] = append(m.byItem[code], line)
		}
	}
	for code := range m.byItem {
		sort.Ints(m.byItem[code])
	}

	return m
}

// Lines returns every mapped line in ascending order.
func (m *Mapping) Lines() []int {
	lines := make([]int, 0, len(m.lines))
	for line := range m.lines {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Description returns the published description of a line.
func (m *Mapping) Description(line int) string {
	return m.lines[line].Description
}

// ItemCodes returns the sorted item codes of a line.
func (m *Mapping) ItemCodes(line int) []string {
	lm, ok := m.lines[line]
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(lm.ItemCodes))
	for c := range lm.ItemCodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// LinesForItem returns every line an item code feeds.
func (m *Mapping) LinesForItem(code string) []int {
	return m.byItem[code]
}

// SelectedLines returns, for one item code, the lines that belong to the
// taxonomy.
func (m *Mapping) SelectedLines(code string, t *Taxonomy) []int {
	var out []int
	for _, line := range m.byItem[code] {
		if _, ok := t.CategoryFor(line); ok {
			out = append(out, line)
		}
	}
	return out
}

// Overlaps returns item codes that feed more than one line selected by the
// taxonomy. Their amounts appear in each of those lines.
func (m *Mapping) Overlaps(t *Taxonomy) map[string][]int {
	out := make(map[string][]int)
	for code := range m.byItem {
		if lines := m.SelectedLines(code, t); len(lines) > 1 {
			out[code] = lines
		}
	}
	return out
}

// =============================================================================
// METHODOLOGY SPREADSHEET
// =============================================================================

// LoadMethodology reads methodology_for_summary_tabulations.xlsx.
//
// LAYOUT:
//
//	row 1        title (ignored)
//	row 2        header: Line | Description | (blank ...) | Item Codes
//	row 3..      one line per row; the description is indented by placing it
//	             in one of the blank-headed columns after "Description"
func LoadMethodology(path string) (*Mapping, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open methodology file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("methodology file has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return parseMethodologyRows(rows)
}

func parseMethodologyRows(rows [][]string) (*Mapping, error) {
	headerRow, lineCol, descCol, codesCol := -1, -1, -1, -1
	for i := 0; i < len(rows) && i < 10 && headerRow < 0; i++ {
		lineCol, descCol, codesCol = -1, -1, -1
		for j, cell := range rows[i] {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case "line":
				lineCol = j
			case "description":
				descCol = j
			case "item codes":
				codesCol = j
			}
		}
		if lineCol >= 0 && descCol >= 0 && codesCol > descCol {
			headerRow = i
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("methodology header with Line, Description and Item Codes not found")
	}

	var mappings []LineMapping
	for _, row := range rows[headerRow+1:] {
		cell := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}

		line, err := strconv.Atoi(strings.TrimSpace(cell(lineCol)))
		if err != nil {
			continue
		}

		// blank cells read as a single space so indentation collapses on trim
		var desc strings.Builder
		for j := descCol; j < codesCol; j++ {
			if v := cell(j); v != "" {
				desc.WriteString(v)
			} else {
				desc.WriteString(" ")
			}
		}

		var codes []string
		for _, code := range strings.Split(cell(codesCol), ", ") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}

		mappings = append(mappings, NewLineMapping(line, strings.TrimSpace(desc.String()), codes...))
	}

	if len(mappings) == 0 {
		return nil, fmt.Errorf("methodology file has no line rows")
	}
	return NewMapping(mappings...), nil
}
