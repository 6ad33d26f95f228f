package types

import "fmt"

// =============================================================================
// PIPELINE ERROR TAXONOMY
// =============================================================================
//
// Fatal for the affected year:
//   - UnsupportedYearError
//   - SchemaMismatchError
//
// Recovered locally and counted in the run summary:
//   - MalformedRecordError
//   - MissingEntityProfileError
//
// =============================================================================

// UnsupportedYearError is returned when no year profile exists.
type UnsupportedYearError struct {
	Year int
}

func (e *UnsupportedYearError) Error() string {
	return fmt.Sprintf("unsupported year %d: no layout profile registered", e.Year)
}

// SchemaMismatchError is returned when a spreadsheet header does not match
// the layout its year profile describes.
type SchemaMismatchError struct {
	Year   int
	File   string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s (year %d): %s", e.File, e.Year, e.Reason)
}

// MalformedRecordError describes a single fixed-width line that could not be
// sliced into its fields.
type MalformedRecordError struct {
	File   string
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s:%d: malformed record: %s", e.File, e.Line, e.Reason)
}

// MissingEntityProfileError is raised for an amount whose entity has no
// directory entry for the year.
type MissingEntityProfileError struct {
	EntityID string
	Year     int
}

func (e *MissingEntityProfileError) Error() string {
	return fmt.Sprintf("no entity profile for %s in %d", e.EntityID, e.Year)
}
