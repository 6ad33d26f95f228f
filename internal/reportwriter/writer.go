// =============================================================================
// govfin - Report Artifact Writer
// =============================================================================
//
// Materializes wide reports as files. One artifact is written per report
// and format:
//
//	<output>/state_expenditure.<ext>
//	<output>/state_revenue.<ext>
//	<output>/local/<ST>/local_expenditure_<ST>.<ext>
//	<output>/local/<ST>/local_revenue_<ST>.<ext>
//
// Each report maps to distinct paths, so per-state writers can run in
// parallel without coordination.
//
// =============================================================================

package reportwriter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/pkg/utils"
	"github.com/shopspring/decimal"
)

// Format is an artifact file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXML  Format = "xml"
)

// AllFormats lists the supported formats.
var AllFormats = []Format{FormatCSV, FormatXLSX, FormatXML}

// ParseFormats parses format names, case-insensitively, dropping
// duplicates.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		switch f {
		case FormatCSV, FormatXLSX, FormatXML:
		default:
			return nil, fmt.Errorf("unknown artifact format %q", name)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Artifact describes one written file.
type Artifact struct {
	Path   string
	Format Format
	Rows   int
}

// Writer writes wide reports under an output directory.
type Writer struct {
	files   *utils.FileManager
	formats []Format
}

// New creates a Writer that writes every report in each of formats.
func New(files *utils.FileManager, formats []Format) *Writer {
	return &Writer{files: files, formats: formats}
}

// Path returns the artifact path of a report in a format.
func (w *Writer) Path(report *types.WideReport, f Format) string {
	name := report.Name() + "." + string(f)
	if report.Scope == types.ScopeLocal && report.Partition != "" {
		return w.files.OutputPath(string(types.ScopeLocal), report.Partition, name)
	}
	return w.files.OutputPath(name)
}

// Write materializes a report in every configured format.
func (w *Writer) Write(report *types.WideReport) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(w.formats))
	for _, f := range w.formats {
		path := w.Path(report, f)
		encode := encoderFor(f)
		err := w.files.WriteFileAtomic(path, func(out io.Writer) error {
			return encode(out, report)
		})
		if err != nil {
			return artifacts, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
		artifacts = append(artifacts, Artifact{Path: path, Format: f, Rows: len(report.Rows)})
	}
	return artifacts, nil
}

type encodeFunc func(io.Writer, *types.WideReport) error

func encoderFor(f Format) encodeFunc {
	switch f {
	case FormatXLSX:
		return EncodeXLSX
	case FormatXML:
		return EncodeXML
	default:
		return EncodeCSV
	}
}

// =============================================================================
// CELL FORMATTING
// =============================================================================

// metricCells returns the metric cells of a row in header order.
func metricCells(report *types.WideReport, row types.WideRow) []decimal.Decimal {
	cells := make([]decimal.Decimal, 0, len(types.Metrics)*len(report.Years))
	for _, m := range types.Metrics {
		for _, year := range report.Years {
			cells = append(cells, row.Value(m, year))
		}
	}
	return cells
}

// formatMetric renders amounts as published (thousands, no rounding) and
// per-unit metrics in dollars and cents.
func formatMetric(index, years int, v decimal.Decimal) string {
	if years > 0 && index/years == 0 {
		return v.String()
	}
	return v.StringFixed(2)
}
