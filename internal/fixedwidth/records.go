package fixedwidth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD SOURCE
// =============================================================================

// RecordSource is a lazily consumed sequence of unit records.
type RecordSource interface {
	Next() bool
	Record() types.RawFinanceRecord
	Err() error
}

// maxMalformedSamples bounds how many malformed-line errors are kept for the
// run summary; the rest are only counted.
const maxMalformedSamples = 10

// =============================================================================
// STREAMING UNIT-RECORD READER
// =============================================================================

// RecordReader streams RawFinanceRecords from a unit-record file without
// loading it into memory. Malformed lines are skipped and counted.
//
// USAGE:
//
//	r, err := fixedwidth.OpenRecords(path, 2017)
//	if err != nil { ... }
//	defer r.Close()
//	for r.Next() {
//	    rec := r.Record()
//	}
//	if err := r.Err(); err != nil { ... }
//
// The sequence is restartable by opening the file again.
type RecordReader struct {
	closer  io.Closer
	scanner *bufio.Scanner
	name    string
	year    int

	current    types.RawFinanceRecord
	lineNumber int
	parsed     int
	malformed  int
	samples    []*types.MalformedRecordError
	err        error
}

// OpenRecords opens a unit-record file for the given survey year.
func OpenRecords(path string, year int) (*RecordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open unit record file: %w", err)
	}
	r := NewRecordReader(file, filepath.Base(path), year)
	r.closer = file
	return r, nil
}

// NewRecordReader reads unit records from any reader. name is used in error
// messages.
func NewRecordReader(rd io.Reader, name string, year int) *RecordReader {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &RecordReader{scanner: scanner, name: name, year: year}
}

// Next advances to the next well-formed record.
func (r *RecordReader) Next() bool {
	if r.err != nil {
		return false
	}

	for r.scanner.Scan() {
		r.lineNumber++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := ParseRecord(line, r.year)
		if err != nil {
			r.malformed++
			if len(r.samples) < maxMalformedSamples {
				r.samples = append(r.samples, &types.MalformedRecordError{
					File:   r.name,
					Line:   r.lineNumber,
					Reason: err.Error(),
				})
			}
			continue
		}

		r.current = rec
		r.parsed++
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = fmt.Errorf("error reading %s at line %d: %w", r.name, r.lineNumber+1, err)
	}
	return false
}

// Record returns the current record.
func (r *RecordReader) Record() types.RawFinanceRecord { return r.current }

// Err returns the first I/O error. Malformed lines are not errors.
func (r *RecordReader) Err() error { return r.err }

// LineNumber returns the 1-based number of the last line read.
func (r *RecordReader) LineNumber() int { return r.lineNumber }

// Parsed returns the number of records yielded so far.
func (r *RecordReader) Parsed() int { return r.parsed }

// Malformed returns the number of lines skipped so far.
func (r *RecordReader) Malformed() int { return r.malformed }

// MalformedSamples returns the first few malformed-line errors.
func (r *RecordReader) MalformedSamples() []*types.MalformedRecordError { return r.samples }

// Close releases the underlying file.
func (r *RecordReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ParseRecord slices one unit-record line.
func ParseRecord(line string, year int) (types.RawFinanceRecord, error) {
	values, err := UnitRecordLayout.Slice(line)
	if err != nil {
		return types.RawFinanceRecord{}, err
	}

	id, item, amountText, yearText, flagText := values[0], values[1], values[2], values[3], values[4]
	if id == "" {
		return types.RawFinanceRecord{}, fmt.Errorf("empty ID code")
	}
	if item == "" {
		return types.RawFinanceRecord{}, fmt.Errorf("empty item code")
	}

	amount, err := strconv.ParseInt(amountText, 10, 64)
	if err != nil {
		return types.RawFinanceRecord{}, fmt.Errorf("invalid amount %q", amountText)
	}

	dataYear, err := strconv.Atoi(yearText)
	if err != nil {
		return types.RawFinanceRecord{}, fmt.Errorf("invalid year %q", yearText)
	}

	var flag types.ImputationFlag
	switch flagText {
	case "I":
		flag = types.Imputed
	case "R":
		flag = types.Reported
	default:
		return types.RawFinanceRecord{}, fmt.Errorf("invalid imputation flag %q", flagText)
	}

	return types.RawFinanceRecord{
		EntityID: id,
		ItemCode: item,
		Amount:   decimal.NewFromInt(amount),
		Year:     year,
		DataYear: dataYear,
		Flag:     flag,
	}, nil
}

// ReadAllRecords drains a source into a slice.
func ReadAllRecords(src RecordSource) ([]types.RawFinanceRecord, error) {
	var out []types.RawFinanceRecord
	for src.Next() {
		out = append(out, src.Record())
	}
	return out, src.Err()
}

// =============================================================================
// IN-MEMORY SOURCE
// =============================================================================

// SliceSource replays records held in memory.
type SliceSource struct {
	records []types.RawFinanceRecord
	pos     int
}

// NewSliceSource wraps records as a RecordSource.
func NewSliceSource(records []types.RawFinanceRecord) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next() bool {
	if s.pos >= len(s.records) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceSource) Record() types.RawFinanceRecord { return s.records[s.pos-1] }

func (s *SliceSource) Err() error { return nil }
