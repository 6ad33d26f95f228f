package reportwriter

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// CSV
// =============================================================================

// EncodeCSV writes the header and one record per wide row.
func EncodeCSV(out io.Writer, report *types.WideReport) error {
	w := csv.NewWriter(out)
	if err := w.Write(report.Header()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	years := len(report.Years)
	for _, row := range report.Rows {
		record := report.KeyValues(row)
		for i, v := range metricCells(report, row) {
			record = append(record, formatMetric(i, years, v))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// =============================================================================
// XLSX
// =============================================================================

// maxSheetName is Excel's sheet name length limit.
const maxSheetName = 31

// EncodeXLSX writes a single-sheet workbook with a bold header row.
// Metric cells are numeric.
func EncodeXLSX(out io.Writer, report *types.WideReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := report.Name()
	if len(sheetName) > maxSheetName {
		sheetName = sheetName[:maxSheetName]
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := report.Header()
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range report.Rows {
		keys := report.KeyValues(row)
		values := make([]interface{}, 0, len(header))
		for _, k := range keys {
			values = append(values, k)
		}
		for _, v := range metricCells(report, row) {
			values = append(values, v.InexactFloat64())
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	// approximate auto-fit
	for i, h := range header {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(h) + 4)
		if width < 12 {
			width = 12
		}
		if err := f.SetColWidth(sheetName, colName, colName, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// =============================================================================
// XML
// =============================================================================
//
// STRUCTURE:
//
//	<report name="local_expenditure_AL" type="expenditure" scope="local" partition="AL">
//	  <row n="1">
//	    <Id>01201001000000</Id>
//	    ...
//	    <Amount_2017>150</Amount_2017>
//	  </row>
//	</report>

// XMLElement is a generic element with attributes, text and children.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr   `xml:",attr"`
	Value      string       `xml:",chardata"`
	Children   []XMLElement `xml:",any"`
}

// EncodeXML writes the report as an indented XML document.
func EncodeXML(out io.Writer, report *types.WideReport) error {
	doc := XMLElement{
		XMLName: xml.Name{Local: "report"},
		Attributes: []xml.Attr{
			{Name: xml.Name{Local: "name"}, Value: report.Name()},
			{Name: xml.Name{Local: "type"}, Value: string(report.ReportType)},
			{Name: xml.Name{Local: "scope"}, Value: string(report.Scope)},
		},
	}
	if report.Partition != "" {
		doc.Attributes = append(doc.Attributes, xml.Attr{Name: xml.Name{Local: "partition"}, Value: report.Partition})
	}

	header := report.Header()
	tags := make([]string, len(header))
	for i, h := range header {
		tags[i] = elementName(h)
	}

	years := len(report.Years)
	for n, row := range report.Rows {
		element := XMLElement{
			XMLName:    xml.Name{Local: "row"},
			Attributes: []xml.Attr{{Name: xml.Name{Local: "n"}, Value: fmt.Sprintf("%d", n+1)}},
		}

		keys := report.KeyValues(row)
		for i, k := range keys {
			element.Children = append(element.Children, createSimpleElement(tags[i], k))
		}
		for i, v := range metricCells(report, row) {
			element.Children = append(element.Children, createSimpleElement(tags[len(keys)+i], formatMetric(i, years, v)))
		}
		doc.Children = append(doc.Children, element)
	}

	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}

func createSimpleElement(name, value string) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Value: value}
}

// elementName turns a column header into an XML name:
// "County name" -> "CountyName", "Per Capita_2017" -> "PerCapita_2017",
// "State/Local" -> "StateLocal".
func elementName(header string) string {
	var b strings.Builder
	upper := true
	for _, r := range header {
		switch {
		case r == '_':
			b.WriteRune(r)
			upper = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upper {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}
