// =============================================================================
// govfin - Fixed-Width Layouts
// =============================================================================
//
// The survey publishes two fixed-width files per year:
//   1. Unit records   - ID code, item code, amount, year, imputation flag
//   2. GID directory  - one row per government unit with its identity fields
//
// A Layout lists the fields of a line by position and length. Slice is
// strict (a short line is an error) and SliceLoose pads missing trailing
// fields with empty strings, matching how the directory file omits trailing
// blanks.
//
// =============================================================================

package fixedwidth

import (
	"fmt"
	"strings"
)

// Field is one positional column.
type Field struct {
	Name     string
	Position int
	Length   int
}

// Layout is an ordered list of contiguous fields.
type Layout []Field

// FromWidths builds a contiguous layout from names and widths.
func FromWidths(names []string, widths []int) Layout {
	if len(names) != len(widths) {
		panic(fmt.Sprintf("fixedwidth: %d names for %d widths", len(names), len(widths)))
	}
	layout := make(Layout, len(widths))
	pos := 0
	for i, w := range widths {
		layout[i] = Field{Name: names[i], Position: pos, Length: w}
		pos += w
	}
	return layout
}

// Width is the total line width the layout describes.
func (l Layout) Width() int {
	if len(l) == 0 {
		return 0
	}
	last := l[len(l)-1]
	return last.Position + last.Length
}

// Index returns the position of a named field, or -1.
func (l Layout) Index(name string) int {
	for i, f := range l {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Slice cuts a line into trimmed field values. It fails when the line does
// not reach the end of the last field.
func (l Layout) Slice(line string) ([]string, error) {
	if len(line) < l.Width() {
		return nil, fmt.Errorf("line is %d bytes, layout needs %d", len(line), l.Width())
	}
	return l.SliceLoose(line), nil
}

// SliceLoose cuts a line into trimmed field values; fields beyond the end of
// the line are empty.
func (l Layout) SliceLoose(line string) []string {
	values := make([]string, len(l))
	for i, f := range l {
		if f.Position >= len(line) {
			continue
		}
		end := f.Position + f.Length
		if end > len(line) {
			end = len(line)
		}
		values[i] = strings.TrimSpace(line[f.Position:end])
	}
	return values
}

// =============================================================================
// SURVEY LAYOUTS
// =============================================================================

// UnitRecordLayout is the individual unit file: widths 14, 3, 12, 4, 1.
var UnitRecordLayout = FromWidths(
	[]string{"ID code", "Item code", "Amount", "Year", "Imputation type"},
	[]int{14, 3, 12, 4, 1},
)

// DirectoryLayout is the GID directory file.
var DirectoryLayout = FromWidths(
	[]string{
		"ID code",
		"ID name",
		"County name",
		"State code",
		"County code",
		"Place code",
		"Population",
		"Population year",
		"Enrollment",
		"Enrollment year",
		"Function code for special districts",
		"School level code",
		"Fiscal year ending",
		"Survey year",
	},
	[]int{14, 64, 35, 2, 3, 5, 9, 2, 7, 2, 2, 2, 4, 2},
)
