// =============================================================================
// govfin - Entity Directory Resolver
// =============================================================================
//
// Loads the per-year GID directory file (Fin_GID_<year>.txt) into typed
// EntityProfiles keyed by the 14-character ID code.
//
// ID CODE LAYOUT:
//   positions 1-2    state code (see states.go)
//   position  3      government type (0 state .. 5 school district)
//   positions 4-6    county or county-type area
//   positions 7-9    unit identifier
//   positions 10-14  00000 unless the unit is part of another government
//
// ROW RULES:
//   - rows without a county name are state-level rows and are dropped
//   - blank population / enrollment read as 0
//   - state name and abbreviation come from the ID code, never from the
//     "State code" column
//
// =============================================================================

package directory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/govfin/internal/fixedwidth"
	"github.com/ginjaninja78/govfin/internal/types"
)

// Directory is the read-only set of entity profiles for one year.
type Directory struct {
	year     int
	entities map[string]types.EntityProfile
}

// LoadStats counts what happened to the rows of a directory file.
type LoadStats struct {
	Rows         int
	Loaded       int
	StateRows    int
	UnknownState int
	Malformed    int
	Duplicates   int
}

// Options controls name normalization.
type Options struct {
	Protected *ProtectedNames
	TitleCase bool
}

// New builds a directory from profiles already in memory.
func New(year int, profiles ...types.EntityProfile) *Directory {
	d := &Directory{year: year, entities: make(map[string]types.EntityProfile, len(profiles))}
	for _, p := range profiles {
		d.entities[p.EntityID] = p
	}
	return d
}

// Load reads a GID directory file.
func Load(path string, year int, opts Options) (*Directory, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to open directory file: %w", err)
	}
	defer file.Close()

	return Parse(file, filepath.Base(path), year, opts)
}

// Parse reads GID directory rows from r.
func Parse(r io.Reader, name string, year int, opts Options) (*Directory, LoadStats, error) {
	var (
		stats      LoadStats
		d          = &Directory{year: year, entities: make(map[string]types.EntityProfile)}
		normalizer = NewNameNormalizer(opts.Protected, opts.TitleCase)
		layout     = fixedwidth.DirectoryLayout
		scanner    = bufio.NewScanner(r)
	)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	col := func(field string) int {
		i := layout.Index(field)
		if i < 0 {
			panic("directory layout has no field " + field)
		}
		return i
	}
	var (
		idCol         = col("ID code")
		nameCol       = col("ID name")
		countyCol     = col("County name")
		populationCol = col("Population")
		enrollmentCol = col("Enrollment")
		functionCol   = col("Function code for special districts")
	)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Rows++

		values := layout.SliceLoose(line)
		id := values[idCol]
		if len(id) < 3 {
			stats.Malformed++
			continue
		}

		county := values[countyCol]
		if county == "" {
			stats.StateRows++
			continue
		}

		state, ok := StateByCode(id[:2])
		if !ok || state.Code == "00" {
			stats.UnknownState++
			continue
		}

		population, err := parseCount(values[populationCol])
		if err != nil {
			stats.Malformed++
			continue
		}
		enrollment, err := parseCount(values[enrollmentCol])
		if err != nil {
			stats.Malformed++
			continue
		}

		if _, dup := d.entities[id]; dup {
			stats.Duplicates++
			continue
		}

		rawName := values[nameCol]
		d.entities[id] = types.EntityProfile{
			EntityID:            id,
			DisplayName:         normalizer.Normalize(state.Abbr, rawName),
			RawName:             rawName,
			StateAbbr:           state.Abbr,
			StateName:           state.Name,
			CountyName:          county,
			Population:          population,
			Enrollment:          enrollment,
			SpecialDistrictType: SpecialDistrictType(values[functionCol]),
			GovernmentType:      types.GovTypeFromID(id),
			SurveyYear:          year,
		}
		stats.Loaded++
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("error reading %s: %w", name, err)
	}

	return d, stats, nil
}

func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Year returns the survey year of the directory.
func (d *Directory) Year() int { return d.year }

// Len returns the number of entities.
func (d *Directory) Len() int { return len(d.entities) }

// Get looks up an entity by ID code.
func (d *Directory) Get(id string) (types.EntityProfile, bool) {
	p, ok := d.entities[id]
	return p, ok
}

// Entities returns every profile ordered by ID code.
func (d *Directory) Entities() []types.EntityProfile {
	out := make([]types.EntityProfile, 0, len(d.entities))
	for _, p := range d.entities {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// States returns the abbreviations present, sorted.
func (d *Directory) States() []string {
	seen := make(map[string]struct{})
	for _, p := range d.entities {
		seen[p.StateAbbr] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
