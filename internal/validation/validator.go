// =============================================================================
// govfin - Validation Engine
// =============================================================================
//
// Checks materialized report rows before they are written. Validation is
// performed at two levels:
//   1. Row-level: each AggregatedReportRow is checked against the report
//      rules (identity fields, government-type metric policy, categories)
//   2. Report-level: a wide report must reproduce the per-entity, per-year
//      totals of the long rows it was pivoted from
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each error carries entity, year and line for troubleshooting
//   - Errors are either warnings (written, reported) or fatal: rows with a
//     fatal finding are not stored and a report with one is not written.
//     TreatWarningsAsErrors makes warnings fatal too
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/govfin/internal/directory"
	"github.com/ginjaninja78/govfin/internal/taxonomy"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is "error" (fatal for the report) or "warning".
	Severity string

	// Field is the row field that failed validation.
	Field string

	// Value is the offending value.
	Value string

	// Rule is the name of the violated rule.
	Rule string

	// Message is a human-readable description.
	Message string

	EntityID string
	Year     int
	Line     int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Entity %s, Year %d, Line %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.EntityID,
		e.Year,
		e.Line,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// RowsValidated is the number of rows checked.
	RowsValidated int
}

func (r *ValidationResult) add(err *ValidationError, treatWarningsAsErrors bool) {
	r.Errors = append(r.Errors, err)
	if err.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
	if treatWarningsAsErrors {
		r.IsValid = false
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks report rows.
type Validator struct {
	taxonomies *taxonomy.Set
	options    ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first fatal error.
	StopOnFirstError bool

	// TreatWarningsAsErrors marks the result invalid on any warning.
	TreatWarningsAsErrors bool

	// MaxErrors bounds how many findings are kept; 0 keeps all.
	MaxErrors int
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{MaxErrors: 1000}
}

// NewValidator creates a Validator. With a nil taxonomy set, category
// names are not checked.
func NewValidator(taxonomies *taxonomy.Set) *Validator {
	return &Validator{taxonomies: taxonomies, options: DefaultValidationOptions()}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(taxonomies *taxonomy.Set, options ValidationOptions) *Validator {
	return &Validator{taxonomies: taxonomies, options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTIONS
// =============================================================================

// ValidateAll checks every row and returns a detailed result.
func (v *Validator) ValidateAll(rows []types.AggregatedReportRow) *ValidationResult {
	result := &ValidationResult{IsValid: true, RowsValidated: len(rows)}

	for i := range rows {
		for _, err := range v.ValidateRow(rows[i]) {
			if v.options.MaxErrors > 0 && len(result.Errors) >= v.options.MaxErrors {
				return result
			}
			result.add(err, v.options.TreatWarningsAsErrors)
			if err.Severity == SeverityError && v.options.StopOnFirstError {
				return result
			}
		}
	}
	return result
}

// ValidateRow checks a single row.
func (v *Validator) ValidateRow(row types.AggregatedReportRow) []*ValidationError {
	var errs []*ValidationError
	fail := func(severity, field, value, rule, msg string) {
		errs = append(errs, &ValidationError{
			Severity: severity,
			Field:    field,
			Value:    value,
			Rule:     rule,
			Message:  msg,
			EntityID: row.EntityID,
			Year:     row.Year,
			Line:     row.Line,
		})
	}

	// =========================================================================
	// REQUIRED FIELDS
	// =========================================================================

	if row.EntityID == "" {
		fail(SeverityError, "EntityID", "", "required", "entity ID is empty")
		return errs
	}
	if row.Category == "" {
		fail(SeverityError, "Category", "", "required", "category is empty")
	}
	if row.Year <= 0 {
		fail(SeverityError, "Year", fmt.Sprint(row.Year), "required", "year must be positive")
	}
	if strings.TrimSpace(row.Description) == "" {
		fail(SeverityWarning, "Description", row.Description, "required", "description is empty")
	}

	if _, ok := directory.StateByAbbr(row.StateAbbr); !ok {
		fail(SeverityError, "StateAbbr", row.StateAbbr, "state", "unknown state abbreviation")
	}

	// =========================================================================
	// CATEGORY
	// =========================================================================

	if v.taxonomies != nil && row.Category != "" {
		if t := v.taxonomies.For(row.ReportType); t == nil {
			fail(SeverityError, "ReportType", string(row.ReportType), "report_type", "unknown report type")
		} else if got, ok := t.CategoryFor(row.Line); !ok || got != row.Category {
			fail(SeverityError, "Category", row.Category, "category",
				fmt.Sprintf("line %d does not belong to category %q", row.Line, row.Category))
		}
	}

	// =========================================================================
	// SCOPE RULES
	// =========================================================================

	switch row.Scope {
	case types.ScopeState:
		if row.Level != types.LevelState && row.Level != types.LevelLocal {
			fail(SeverityError, "Level", row.Level, "level", "nationwide rows must be State or Local")
		}
		if !row.PerStudent.IsZero() {
			fail(SeverityError, "PerStudent", row.PerStudent.String(), "metric_policy", "nationwide rows carry no per-student metric")
		}

	case types.ScopeLocal:
		if len(row.EntityID) != 14 {
			fail(SeverityError, "EntityID", row.EntityID, "entity_id", "local entity IDs are 14 characters")
		}
		gov := types.GovTypeFromID(row.EntityID)
		if gov != row.GovernmentType || !gov.Valid() {
			fail(SeverityError, "GovernmentType", row.GovernmentType.String(), "government_type",
				fmt.Sprintf("government type does not match entity ID (%s)", gov))
		}
		if row.Level != row.GovernmentType.Name() {
			fail(SeverityError, "Level", row.Level, "level", "local rows are levelled by government type")
		}
		if !row.GovernmentType.UsesPerCapita() && !row.PerCapita.IsZero() {
			fail(SeverityError, "PerCapita", row.PerCapita.String(), "metric_policy",
				fmt.Sprintf("%s rows carry no per-capita metric", row.GovernmentType.Name()))
		}
		if !row.GovernmentType.UsesPerStudent() && !row.PerStudent.IsZero() {
			fail(SeverityError, "PerStudent", row.PerStudent.String(), "metric_policy",
				fmt.Sprintf("%s rows carry no per-student metric", row.GovernmentType.Name()))
		}
		if row.Amount.IsZero() {
			fail(SeverityWarning, "Amount", "0", "zero_amount", "zero line totals are dropped before materialization")
		}

	default:
		fail(SeverityError, "Scope", string(row.Scope), "scope", "unknown scope")
	}

	return errs
}

// =============================================================================
// REPORT-LEVEL VALIDATION
// =============================================================================

type entityYear struct {
	entity string
	year   int
}

// ValidateWide checks that the wide report reproduces the per-entity,
// per-year amount totals of the long rows.
func ValidateWide(rows []types.AggregatedReportRow, wide types.WideReport) []*ValidationError {
	want := make(map[entityYear]decimal.Decimal)
	for _, r := range rows {
		k := entityYear{r.EntityID, r.Year}
		want[k] = want[k].Add(r.Amount)
	}

	got := make(map[entityYear]decimal.Decimal)
	for _, w := range wide.Rows {
		for _, y := range wide.Years {
			k := entityYear{w.Key.EntityID, y}
			got[k] = got[k].Add(w.Value(types.MetricAmount, y))
		}
	}

	keys := make([]entityYear, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	for k := range got {
		if _, ok := want[k]; !ok && !got[k].IsZero() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entity != keys[j].entity {
			return keys[i].entity < keys[j].entity
		}
		return keys[i].year < keys[j].year
	})

	var errs []*ValidationError
	for _, k := range keys {
		if !want[k].Equal(got[k]) {
			errs = append(errs, &ValidationError{
				Severity: SeverityError,
				Field:    "Amount",
				Value:    got[k].String(),
				Rule:     "wide_total",
				Message:  fmt.Sprintf("wide total differs from row total %s", want[k]),
				EntityID: k.entity,
				Year:     k.year,
			})
		}
	}
	return errs
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errors)))
	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// WriteErrorLog writes validation errors to a log file, with a header
// holding the report name and timestamp.
func WriteErrorLog(errors []*ValidationError, report, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "Validation log for %s\n", report)
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintln(w)
	w.WriteString(FormatErrors(errors))

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
