// =============================================================================
// govfin - Shared Types
// =============================================================================
//
// This package contains the typed records that flow between the pipeline
// stages. They live here to avoid import cycles between:
//   - fixedwidth / xlsxparser   (ingest)
//   - directory                 (entity profiles)
//   - aggregate / derive        (rollups and metrics)
//   - pivot / reportwriter      (materialization)
//   - store / query             (consumer query surface)
//
// Amounts are always decimal.Decimal in thousands of US dollars. Per-capita
// and per-student values are US dollars (amount * 1000 / denominator) kept
// at full decimal precision; artifacts print them with two decimals.
//
// =============================================================================

package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT TYPE AND SCOPE
// =============================================================================

// ReportType selects the expenditure or revenue side of the survey.
type ReportType string

const (
	Expenditure ReportType = "expenditure"
	Revenue     ReportType = "revenue"
)

// ReportTypes lists every report type in output order.
var ReportTypes = []ReportType{Expenditure, Revenue}

// ParseReportType accepts the canonical names plus the plural spellings used
// by older artifacts ("expenditures").
func ParseReportType(s string) (ReportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expenditure", "expenditures", "exp":
		return Expenditure, nil
	case "revenue", "revenues", "rev":
		return Revenue, nil
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// Scope selects the nationwide (entity = state) or local (entity = local
// government) view of a report.
type Scope string

const (
	ScopeState Scope = "state"
	ScopeLocal Scope = "local"
)

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "state", "national", "nationwide":
		return ScopeState, nil
	case "local":
		return ScopeLocal, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// =============================================================================
// GOVERNMENT TYPE
// =============================================================================

// GovType is the government-type code stored at position 3 of an entity ID.
type GovType byte

const (
	GovState           GovType = '0'
	GovCounty          GovType = '1'
	GovCity            GovType = '2'
	GovTownship        GovType = '3'
	GovSpecialDistrict GovType = '4'
	GovSchoolDistrict  GovType = '5'
)

var govTypeNames = map[GovType]string{
	GovState:           "State",
	GovCounty:          "County",
	GovCity:            "City",
	GovTownship:        "Township",
	GovSpecialDistrict: "Special District",
	GovSchoolDistrict:  "School District",
}

// GovTypeFromID extracts the government type from an entity ID.
func GovTypeFromID(entityID string) GovType {
	if len(entityID) < 3 {
		return 0
	}
	return GovType(entityID[2])
}

// Name returns the display name of the government type.
func (g GovType) Name() string {
	if name, ok := govTypeNames[g]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether g is one of the documented codes.
func (g GovType) Valid() bool {
	_, ok := govTypeNames[g]
	return ok
}

// UsesPerStudent reports whether amounts are normalized by enrollment.
func (g GovType) UsesPerStudent() bool { return g == GovSchoolDistrict }

// UsesPerCapita reports whether amounts are normalized by population.
// Special districts use neither metric.
func (g GovType) UsesPerCapita() bool {
	return g != GovSchoolDistrict && g != GovSpecialDistrict
}

// String implements fmt.Stringer.
func (g GovType) String() string {
	if g == 0 {
		return ""
	}
	return string(rune(g))
}

// MarshalText stores the code as its single character.
func (g GovType) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText reads a single-character code.
func (g *GovType) UnmarshalText(b []byte) error {
	switch len(b) {
	case 0:
		*g = 0
	case 1:
		*g = GovType(b[0])
	default:
		return fmt.Errorf("invalid government type %q", string(b))
	}
	return nil
}

// =============================================================================
// RAW RECORDS
// =============================================================================

// ImputationFlag records whether an amount was reported or imputed.
type ImputationFlag byte

const (
	Imputed  ImputationFlag = 'I'
	Reported ImputationFlag = 'R'
)

// RawFinanceRecord is one line of the unit-record file.
type RawFinanceRecord struct {
	EntityID string
	ItemCode string

	// Amount is in thousands of dollars.
	Amount decimal.Decimal

	// Year is the survey year of the file the record came from.
	Year int

	// DataYear is the year field carried on the line itself.
	DataYear int

	Flag ImputationFlag
}

// =============================================================================
// ENTITY PROFILE
// =============================================================================

// EntityProfile describes one government unit for one survey year.
type EntityProfile struct {
	EntityID            string  `json:"entity_id"`
	DisplayName         string  `json:"display_name"`
	RawName             string  `json:"raw_name"`
	StateAbbr           string  `json:"state_abbr"`
	StateName           string  `json:"state_name"`
	CountyName          string  `json:"county_name"`
	Population          int64   `json:"population"`
	Enrollment          int64   `json:"enrollment"`
	SpecialDistrictType string  `json:"special_district_type,omitempty"`
	GovernmentType      GovType `json:"government_type"`
	SurveyYear          int     `json:"survey_year"`
}

// =============================================================================
// AGGREGATED REPORT ROW
// =============================================================================

// Level values used by the nationwide report.
const (
	LevelState = "State"
	LevelLocal = "Local"
)

// AggregatedReportRow is one (entity, category, line, year) amount with its
// derived metrics.
type AggregatedReportRow struct {
	Scope      Scope      `json:"scope"`
	ReportType ReportType `json:"report_type"`

	EntityID       string  `json:"entity_id"`
	StateAbbr      string  `json:"state_abbr"`
	StateName      string  `json:"state_name"`
	CountyName     string  `json:"county_name,omitempty"`
	DisplayName    string  `json:"display_name"`
	GovernmentType GovType `json:"government_type,omitempty"`

	// Level is "State" or "Local" in the nationwide scope and the
	// government-type name in the local scope.
	Level string `json:"level"`

	Category    string `json:"category"`
	Line        int    `json:"line"`
	Description string `json:"description"`

	Amount     decimal.Decimal `json:"amount"`
	PerCapita  decimal.Decimal `json:"per_capita"`
	PerStudent decimal.Decimal `json:"per_student"`

	Population int64 `json:"population"`
	Enrollment int64 `json:"enrollment"`

	Year int `json:"year"`
}

// Key returns the identity of the row without its year.
func (r AggregatedReportRow) Key() WideKey {
	return WideKey{
		EntityID:    r.EntityID,
		Category:    r.Category,
		Description: r.Description,
		Level:       r.Level,
	}
}

// =============================================================================
// WIDE REPORT
// =============================================================================

// Metric names the per-year column families of a wide report.
type Metric string

const (
	MetricAmount     Metric = "Amount"
	MetricPerCapita  Metric = "Per Capita"
	MetricPerStudent Metric = "Per Student"
)

// Metrics lists the column families in header order.
var Metrics = []Metric{MetricAmount, MetricPerCapita, MetricPerStudent}

// ParseMetric parses a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")) {
	case "amount":
		return MetricAmount, nil
	case "per capita", "percapita":
		return MetricPerCapita, nil
	case "per student", "perstudent":
		return MetricPerStudent, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Column returns the wide column name for a metric and year,
// e.g. "Per Capita_2017".
func (m Metric) Column(year int) string {
	return fmt.Sprintf("%s_%d", m, year)
}

// WideKey identifies one row of a wide report.
type WideKey struct {
	EntityID    string
	Category    string
	Description string
	Level       string
}

// WideRow holds one keyed row with a value per year for each metric.
type WideRow struct {
	Key WideKey

	StateAbbr      string
	StateName      string
	CountyName     string
	DisplayName    string
	GovernmentType GovType
	Line           int

	Amount     map[int]decimal.Decimal
	PerCapita  map[int]decimal.Decimal
	PerStudent map[int]decimal.Decimal

	// Population and Enrollment are the per-year denominators of the
	// metrics. They are not artifact columns; ToLong restores them onto
	// the long rows.
	Population map[int]int64
	Enrollment map[int]int64

	// Observed marks the years that came from input rows; all other years
	// read as zero.
	Observed map[int]bool
}

// Value returns the metric for a year, zero when absent.
func (w WideRow) Value(m Metric, year int) decimal.Decimal {
	var src map[int]decimal.Decimal
	switch m {
	case MetricAmount:
		src = w.Amount
	case MetricPerCapita:
		src = w.PerCapita
	case MetricPerStudent:
		src = w.PerStudent
	}
	if v, ok := src[year]; ok {
		return v
	}
	return decimal.Zero
}

// WideReport is the per-year-as-column form of a set of report rows.
type WideReport struct {
	ReportType ReportType
	Scope      Scope

	// Partition is the state abbreviation for local reports, empty for the
	// nationwide report.
	Partition string

	Years []int
	Rows  []WideRow
}

// KeyColumns returns the leading identity columns for the report's scope.
func (w *WideReport) KeyColumns() []string {
	if w.Scope == ScopeState {
		return []string{"USA", "ST", "State", "Category", "Description", "State/Local"}
	}
	return []string{"id", "ST", "County name", "ID name", "Gov Type", "Category", "Line", "Description"}
}

// Header returns every column name in output order.
func (w *WideReport) Header() []string {
	header := w.KeyColumns()
	for _, m := range Metrics {
		for _, year := range w.Years {
			header = append(header, m.Column(year))
		}
	}
	return header
}

// KeyValues returns the identity cells of a row matching KeyColumns.
func (w *WideReport) KeyValues(row WideRow) []string {
	if w.Scope == ScopeState {
		return []string{"USA", row.StateAbbr, row.StateName, row.Key.Category, row.Key.Description, row.Key.Level}
	}
	return []string{
		row.Key.EntityID,
		row.StateAbbr,
		row.CountyName,
		row.DisplayName,
		row.GovernmentType.String(),
		row.Key.Category,
		fmt.Sprintf("%d", row.Line),
		row.Key.Description,
	}
}

// Name returns the logical artifact name, e.g. "state_expenditure" or
// "local_revenue_AL".
func (w *WideReport) Name() string {
	if w.Scope == ScopeState || w.Partition == "" {
		return fmt.Sprintf("%s_%s", w.Scope, w.ReportType)
	}
	return fmt.Sprintf("%s_%s_%s", w.Scope, w.ReportType, w.Partition)
}
