package reportwriter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func localReport() *types.WideReport {
	return &types.WideReport{
		ReportType: types.Expenditure,
		Scope:      types.ScopeLocal,
		Partition:  "AL",
		Years:      []int{2016, 2017},
		Rows: []types.WideRow{{
			Key: types.WideKey{
				EntityID:    "01201001000000",
				Category:    "Public Safety",
				Description: "Police protection",
				Level:       "City",
			},
			StateAbbr:      "AL",
			StateName:      "Alabama",
			CountyName:     "JEFFERSON",
			DisplayName:    "Birmingham",
			GovernmentType: types.GovCity,
			Line:           94,
			Amount:         map[int]decimal.Decimal{2017: decimal.NewFromInt(150)},
			PerCapita:      map[int]decimal.Decimal{2017: decimal.RequireFromString("150.456")},
			Observed:       map[int]bool{2017: true},
		}},
	}
}

func newWriter(t *testing.T, formats ...Format) (*Writer, string) {
	t.Helper()
	out := t.TempDir()
	return New(utils.NewFileManager("", out, "", "test-run"), formats), out
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats([]string{"CSV", "xml", "csv"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatXML}, got)

	_, err = ParseFormats([]string{"parquet"})
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	w, out := newWriter(t, FormatCSV)
	assert.Equal(t, filepath.Join(out, "local", "AL", "local_expenditure_AL.csv"), w.Path(localReport(), FormatCSV))

	state := &types.WideReport{ReportType: types.Revenue, Scope: types.ScopeState}
	assert.Equal(t, filepath.Join(out, "state_revenue.xlsx"), w.Path(state, FormatXLSX))
}

func TestWriteCSV(t *testing.T) {
	w, _ := newWriter(t, FormatCSV)
	artifacts, err := w.Write(localReport())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, 1, artifacts[0].Rows)

	f, err := os.Open(artifacts[0].Path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Amount_2016", records[0][8])
	assert.Equal(t, []string{
		"01201001000000", "AL", "JEFFERSON", "Birmingham", "2", "Public Safety", "94", "Police protection",
		"0", "150", "0.00", "150.46", "0.00", "0.00",
	}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	w, _ := newWriter(t, FormatXLSX)
	artifacts, err := w.Write(localReport())
	require.NoError(t, err)

	f, err := excelize.OpenFile(artifacts[0].Path)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "local_expenditure_AL", sheet)

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Per Capita_2017", rows[0][11])
	assert.Equal(t, "150", rows[1][9])
	assert.Equal(t, "Birmingham", rows[1][3])

	styleID, err := f.GetCellStyle(sheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
}

func TestWriteXML(t *testing.T) {
	w, _ := newWriter(t, FormatXML)
	artifacts, err := w.Write(localReport())
	require.NoError(t, err)

	data, err := os.ReadFile(artifacts[0].Path)
	require.NoError(t, err)
	s := string(data)

	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, s, `<report name="local_expenditure_AL" type="expenditure" scope="local" partition="AL">`)
	assert.Contains(t, s, `<row n="1">`)
	assert.Contains(t, s, `<CountyName>JEFFERSON</CountyName>`)
	assert.Contains(t, s, `<PerCapita_2017>150.46</PerCapita_2017>`)
	assert.Contains(t, s, `<Amount_2016>0</Amount_2016>`)
}

func TestElementName(t *testing.T) {
	assert.Equal(t, "StateLocal", elementName("State/Local"))
	assert.Equal(t, "IDName", elementName("ID name"))
	assert.Equal(t, "Id", elementName("id"))
	assert.Equal(t, "PerStudent_2015", elementName("Per Student_2015"))
	assert.Equal(t, "_2017", elementName("2017"))
}
