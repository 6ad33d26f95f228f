// =============================================================================
// govfin - Year Profile Registry
// =============================================================================
//
// Every survey year publishes its spreadsheets and fixed-width files with a
// slightly different shape. The registry is the single place that records
// those differences:
//   - how many rows to skip before the two-level spreadsheet header
//   - which level-1 column numbers hold the "State" and "Local" amounts
//   - the published file names for the year
//
// Readers never guess a layout: a year without a profile is an error.
// New years are onboarded by adding an entry to profiles.yaml.
//
// =============================================================================

package profile

import (
	"fmt"
	"os"
	"sort"

	"github.com/ginjaninja78/govfin/internal/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Profile describes the layout of one survey year.
type Profile struct {
	Year int `yaml:"year"`

	// HeaderSkipRows is the number of rows above the first header row of the
	// summary spreadsheets.
	HeaderSkipRows int `yaml:"header_skip_rows"`

	// HeaderRowCount is the span of the header block. The level-0 header is
	// the first row of the block and the level-1 header the last.
	HeaderRowCount int `yaml:"header_row_count"`

	// StateLocalColumns maps level-1 column numbers to "State" or "Local".
	StateLocalColumns map[int]string `yaml:"state_local_columns"`

	// MaxDataRows bounds how many rows below the header are read.
	MaxDataRows int `yaml:"max_data_rows"`

	Files Files `yaml:"files"`
}

// Files holds the published file names for a year, relative to the input
// directory.
type Files struct {
	SummaryA    string `yaml:"summary_a"`
	SummaryB    string `yaml:"summary_b"`
	UnitRecords string `yaml:"unit_records"`
	Directory   string `yaml:"directory"`
}

// HasLocalData reports whether unit-level files are published for the year.
func (p Profile) HasLocalData() bool {
	return p.Files.UnitRecords != "" && p.Files.Directory != ""
}

// HasSummaryData reports whether the summary spreadsheet pair is known.
func (p Profile) HasSummaryData() bool {
	return p.Files.SummaryA != "" && p.Files.SummaryB != ""
}

// LevelHeaderRows returns the zero-based row indexes of the two header
// levels.
func (p Profile) LevelHeaderRows() (level0, level1 int) {
	return p.HeaderSkipRows, p.HeaderSkipRows + p.HeaderRowCount - 1
}

// validate checks that a profile can drive the readers.
func (p Profile) validate() error {
	if p.Year <= 0 {
		return fmt.Errorf("profile year must be positive")
	}
	if p.HeaderSkipRows < 0 {
		return fmt.Errorf("year %d: header_skip_rows must not be negative", p.Year)
	}
	if p.HeaderRowCount < 2 {
		return fmt.Errorf("year %d: header_row_count must be at least 2", p.Year)
	}
	var hasState, hasLocal bool
	for _, label := range p.StateLocalColumns {
		switch label {
		case types.LevelState:
			hasState = true
		case types.LevelLocal:
			hasLocal = true
		default:
			return fmt.Errorf("year %d: unknown state/local label %q", p.Year, label)
		}
	}
	if !hasState || !hasLocal {
		return fmt.Errorf("year %d: state_local_columns needs both State and Local", p.Year)
	}
	return nil
}

// =============================================================================
// BUILT-IN PROFILES
// =============================================================================

func builtin() []Profile {
	// 2012 and 2017 publish three columns per state, the other years five.
	threeColumn := func(year int) Profile {
		yy := year % 100
		return Profile{
			Year:              year,
			HeaderSkipRows:    7,
			HeaderRowCount:    5,
			StateLocalColumns: map[int]string{2: types.LevelState, 3: types.LevelLocal},
			MaxDataRows:       175,
			Files: Files{
				SummaryA: fmt.Sprintf("%02dslsstab1a.xlsx", yy),
				SummaryB: fmt.Sprintf("%02dslsstab1b.xlsx", yy),
			},
		}
	}
	fiveColumn := func(year int) Profile {
		p := threeColumn(year)
		p.HeaderSkipRows = 9
		p.StateLocalColumns = map[int]string{3: types.LevelState, 4: types.LevelLocal}
		return p
	}

	profiles := []Profile{
		threeColumn(2012),
		fiveColumn(2013),
		fiveColumn(2014),
		fiveColumn(2015),
		fiveColumn(2016),
		threeColumn(2017),
	}

	unitFiles := map[int]string{
		2014: "2014FinEstDAT_10162019modp_pu.txt",
		2015: "2015FinEstDAT_10162019modp_pu.txt",
		2016: "2016FinEstDAT_10162019modp_pu.txt",
		2017: "2017FinEstDAT_02202020modp_pu.txt",
	}
	for i := range profiles {
		if name, ok := unitFiles[profiles[i].Year]; ok {
			profiles[i].Files.UnitRecords = name
			profiles[i].Files.Directory = fmt.Sprintf("Fin_GID_%d.txt", profiles[i].Year)
		}
	}
	return profiles
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is a read-only lookup of year profiles.
type Registry struct {
	profiles map[int]Profile
}

// Default returns the registry of built-in profiles.
func Default() *Registry {
	r := &Registry{profiles: make(map[int]Profile)}
	for _, p := range builtin() {
		r.profiles[p.Year] = p
	}
	return r
}

// New builds a registry from explicit profiles.
func New(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[int]Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.Year]; dup {
			return nil, fmt.Errorf("duplicate profile for year %d", p.Year)
		}
		r.profiles[p.Year] = p
	}
	return r, nil
}

// For returns the profile for a year or an UnsupportedYearError.
func (r *Registry) For(year int) (Profile, error) {
	p, ok := r.profiles[year]
	if !ok {
		return Profile{}, &types.UnsupportedYearError{Year: year}
	}
	return p, nil
}

// Years returns every registered year in ascending order.
func (r *Registry) Years() []int {
	years := make([]int, 0, len(r.profiles))
	for y := range r.profiles {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// LocalYears returns the years that publish unit-level files.
func (r *Registry) LocalYears() []int {
	var years []int
	for _, y := range r.Years() {
		if r.profiles[y].HasLocalData() {
			years = append(years, y)
		}
	}
	return years
}

// =============================================================================
// YAML OVERRIDES
// =============================================================================

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile reads profiles.yaml and layers it over the receiver. Fields left
// empty in the file keep the value of an existing profile for the same year.
//
// Example:
//
//	profiles:
//	  - year: 2018
//	    header_skip_rows: 7
//	    header_row_count: 5
//	    state_local_columns: {2: State, 3: Local}
//	    max_data_rows: 175
//	    files:
//	      summary_a: 18slsstab1a.xlsx
//	      summary_b: 18slsstab1b.xlsx
func (r *Registry) LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	merged := &Registry{profiles: make(map[int]Profile, len(r.profiles)+len(file.Profiles))}
	for y, p := range r.profiles {
		merged.profiles[y] = p
	}

	for _, override := range file.Profiles {
		p := mergeProfile(merged.profiles[override.Year], override)
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("invalid profile in %s: %w", path, err)
		}
		merged.profiles[p.Year] = p
	}

	return merged, nil
}

func mergeProfile(base, override Profile) Profile {
	out := base
	out.Year = override.Year
	if override.HeaderSkipRows != 0 {
		out.HeaderSkipRows = override.HeaderSkipRows
	}
	if override.HeaderRowCount != 0 {
		out.HeaderRowCount = override.HeaderRowCount
	}
	if len(override.StateLocalColumns) > 0 {
		out.StateLocalColumns = override.StateLocalColumns
	}
	if override.MaxDataRows != 0 {
		out.MaxDataRows = override.MaxDataRows
	}
	if override.Files.SummaryA != "" {
		out.Files.SummaryA = override.Files.SummaryA
	}
	if override.Files.SummaryB != "" {
		out.Files.SummaryB = override.Files.SummaryB
	}
	if override.Files.UnitRecords != "" {
		out.Files.UnitRecords = override.Files.UnitRecords
	}
	if override.Files.Directory != "" {
		out.Files.Directory = override.Files.Directory
	}
	return out
}
