package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ginjaninja78/govfin/internal/directory"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATE POPULATION
// =============================================================================

// StatePopulation holds annual resident population by state name.
type StatePopulation map[string]map[int]int64

// For returns the population of a state for a year.
func (p StatePopulation) For(state string, year int) (int64, bool) {
	byYear, ok := p[state]
	if !ok {
		return 0, false
	}
	v, ok := byYear[year]
	return v, ok
}

// Set records a population value.
func (p StatePopulation) Set(state string, year int, value int64) {
	if p[state] == nil {
		p[state] = make(map[int]int64)
	}
	p[state][year] = value
}

// ReadStatePopulation reads the Census annual state estimates workbook.
// The header row is the first row holding year columns; state rows are the
// ones whose name starts with "." (regions and the national row do not).
func ReadStatePopulation(path string) (StatePopulation, error) {
	rows, err := readSheetRows(path)
	if err != nil {
		return nil, err
	}
	pop, err := parseStatePopulation(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return pop, nil
}

func parseStatePopulation(rows [][]string) (StatePopulation, error) {
	headerRow := -1
	yearCols := make(map[int]int)
	for i, row := range rows {
		for j, cell := range row {
			if y, ok := parseYear(cell); ok {
				yearCols[j] = y
			}
		}
		if len(yearCols) > 0 {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("no header row with year columns")
	}

	pop := make(StatePopulation)
	for _, row := range rows[headerRow+1:] {
		name := strings.TrimSpace(cellAt(row, 0))
		if !strings.HasPrefix(name, ".") {
			continue
		}
		name = strings.TrimSpace(strings.TrimPrefix(name, "."))
		for col, year := range yearCols {
			v := strings.ReplaceAll(strings.TrimSpace(cellAt(row, col)), ",", "")
			if v == "" {
				continue
			}
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("population for %s %d: %w", name, year, err)
			}
			pop.Set(name, year, d.Round(0).IntPart())
		}
	}

	if len(pop) == 0 {
		return nil, fmt.Errorf("no state rows found")
	}
	return pop, nil
}

func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 2200 {
		return 0, false
	}
	return y, true
}

// =============================================================================
// CITY NAMES
// =============================================================================

// ReadCityNames reads the "City" and "State short" columns of the canonical
// city list.
func ReadCityNames(path string) ([]directory.Place, error) {
	rows, err := readSheetRows(path)
	if err != nil {
		return nil, err
	}
	places, err := parseCityNames(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return places, nil
}

func parseCityNames(rows [][]string) ([]directory.Place, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty city list")
	}

	cityCol, stateCol := -1, -1
	for j, cell := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "city":
			cityCol = j
		case "state short":
			stateCol = j
		}
	}
	if cityCol < 0 || stateCol < 0 {
		return nil, fmt.Errorf("city list needs City and State short columns")
	}

	var places []directory.Place
	for _, row := range rows[1:] {
		city, state := strings.TrimSpace(cellAt(row, cityCol)), strings.TrimSpace(cellAt(row, stateCol))
		if city == "" || state == "" {
			continue
		}
		places = append(places, directory.Place{State: state, Name: city})
	}
	return places, nil
}
