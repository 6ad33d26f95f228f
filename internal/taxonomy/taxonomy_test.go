package taxonomy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDefaultTaxonomiesAreDisjoint(t *testing.T) {
	set := Default()

	for _, rt := range types.ReportTypes {
		tax := set.For(rt)
		seen := make(map[int]string)
		for _, c := range tax.Categories() {
			for _, line := range c.Lines {
				owner, dup := seen[line]
				assert.False(t, dup, "%s line %d in %s and %s", rt, line, owner, c.Name)
				seen[line] = c.Name
			}
		}
		assert.Len(t, tax.Lines(), len(seen))
	}

	cat, ok := set.Expenditure.CategoryFor(94)
	require.True(t, ok)
	assert.Equal(t, "Public Safety", cat)

	cat, ok = set.Revenue.CategoryFor(9)
	require.True(t, ok)
	assert.Equal(t, "Property Tax", cat)

	_, ok = set.Expenditure.CategoryFor(1)
	assert.False(t, ok)
}

func TestNewRejectsOverlap(t *testing.T) {
	_, err := New(types.Expenditure, []Category{
		{Name: "Public Safety", Lines: []int{92, 93}},
		{Name: "Other", Lines: []int{93, 119}},
	})

	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, 93, overlap.Line)
	assert.Equal(t, "Public Safety", overlap.First)
	assert.Equal(t, "Other", overlap.Second)
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New(types.Revenue, []Category{
		{Name: "Other", Lines: []int{39}},
		{Name: "Other", Lines: []int{40}},
	})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`expenditure:
  - name: Public Safety
    lines: [4]
`), 0o644))

	set, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Public Safety"}, set.Expenditure.CategoryNames())
	assert.Len(t, set.Revenue.CategoryNames(), 8)

	require.NoError(t, os.WriteFile(path, []byte(`revenue:
  - name: A
    lines: [1, 2]
  - name: B
    lines: [2]
`), 0o644))
	_, err = LoadFile(path)
	var overlap *OverlapError
	assert.True(t, errors.As(err, &overlap))
}

func TestMappingLookups(t *testing.T) {
	m := NewMapping(
		NewLineMapping(4, "Intergovernmental revenue", "B01", "C21"),
		NewLineMapping(9, "Property", "T01"),
		NewLineMapping(2, "General revenue", "B01", "T01"),
		NewLineMapping(9, "Property", "T99"),
	)

	assert.Equal(t, []int{2, 4, 9}, m.Lines())
	assert.Equal(t, []string{"T01", "T99"}, m.ItemCodes(9))
	assert.Equal(t, []int{2, 4}, m.LinesForItem("B01"))
	assert.Equal(t, "Property", m.Description(9))

	rev := Default().Revenue
	assert.Equal(t, []int{4}, m.SelectedLines("B01", rev))
	assert.Empty(t, m.Overlaps(rev))

	overlapping := NewMapping(
		NewLineMapping(4, "Intergovernmental revenue", "B01"),
		NewLineMapping(9, "Property", "B01"),
	)
	assert.Equal(t, map[string][]int{"B01": {4, 9}}, overlapping.Overlaps(rev))
}

func TestLoadMethodology(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Methodology for summary tabulations"},
		{"Line", "Description", nil, nil, "Item Codes"},
		{1, "Revenue1", nil, nil, nil},
		{4, nil, "Intergovernmental revenue", nil, "B01, B21, C21"},
		{9, nil, nil, "Property", "T01"},
		{"note", "not a line"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "methodology_for_summary_tabulations.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	m, err := LoadMethodology(path)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4, 9}, m.Lines())
	assert.Equal(t, "Intergovernmental revenue", m.Description(4))
	assert.Equal(t, []string{"B01", "B21", "C21"}, m.ItemCodes(4))
	assert.Equal(t, "Property", m.Description(9))
	assert.Empty(t, m.ItemCodes(1))
}

func TestParseMethodologyRowsMissingHeader(t *testing.T) {
	_, err := parseMethodologyRows([][]string{{"Line", "Description"}, {"1", "x"}})
	assert.Error(t, err)
}
