// =============================================================================
// govfin - Consumer Query Surface
// =============================================================================
//
// Read-only access to materialized reports for downstream consumers
// (dashboards, the `govfin query` command). Lookups go through an optional
// Redis read-through cache; identical concurrent lookups are collapsed into
// one store query.
//
// GOVERNMENT TYPE FILTER:
//
//	county   -> 1
//	city     -> 2, 3   (default for the local scope)
//	township -> 3
//	special  -> 4
//	school   -> 5
//	all      -> no filter
//	0..5     -> that code
//
// =============================================================================

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ginjaninja78/govfin/internal/pivot"
	"github.com/ginjaninja78/govfin/internal/store"
	"github.com/ginjaninja78/govfin/internal/trend"
	"github.com/ginjaninja78/govfin/internal/types"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = store.ErrNotFound

// Repository is the read side of the report store.
type Repository interface {
	Rows(ctx context.Context, f store.RowFilter) ([]types.AggregatedReportRow, error)
	Years(ctx context.Context, scope types.Scope, rt types.ReportType) ([]int, error)
	Profile(ctx context.Context, entityID string, year int) (types.EntityProfile, error)
}

// Filters narrows a report lookup. Empty fields do not filter, except
// GovernmentType which defaults to "city" in the local scope.
type Filters struct {
	State          string
	Category       string
	Subcategory    string
	GovernmentType string
	Year           int
}

// TrendLine is the sparkline encoding of one report row.
type TrendLine struct {
	Key         types.WideKey `json:"key"`
	StateAbbr   string        `json:"state_abbr"`
	DisplayName string        `json:"display_name"`
	Trend       string        `json:"trend"`
}

// Service answers report queries.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService creates a query service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// GetReport returns the long-form rows of a report matching f.
func (s *Service) GetReport(ctx context.Context, rt types.ReportType, scope types.Scope, f Filters) ([]types.AggregatedReportRow, error) {
	filter, err := buildFilter(rt, scope, f)
	if err != nil {
		return nil, err
	}

	key, err := s.cache.BuildKey(ctx, "govfin", "report", string(rt), string(scope), filterToken(filter))
	if err != nil {
		s.logger.Warn("query cache unavailable", "error", err)
		return s.repo.Rows(ctx, filter)
	}

	var rows []types.AggregatedReportRow
	err = s.fetch(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.Rows(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s report: %w", scope, rt, err)
	}
	return rows, nil
}

// GetEntityProfile returns the profile of an entity for a survey year, or
// an error wrapping ErrNotFound.
func (s *Service) GetEntityProfile(ctx context.Context, entityID string, year int) (types.EntityProfile, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return types.EntityProfile{}, fmt.Errorf("entity id is required")
	}

	// Not cached: a miss must surface ErrNotFound, not a cached empty value.
	return s.repo.Profile(ctx, entityID, year)
}

// GetTrends returns one sparkline encoding per report row over years. When
// years is empty, every stored year of the report is used. f.Year is
// ignored.
func (s *Service) GetTrends(ctx context.Context, rt types.ReportType, scope types.Scope, f Filters, metric types.Metric, years []int) ([]TrendLine, error) {
	if len(years) == 0 {
		stored, err := s.repo.Years(ctx, scope, rt)
		if err != nil {
			return nil, fmt.Errorf("failed to list years: %w", err)
		}
		years = stored
	}
	if len(years) == 0 {
		return nil, nil
	}

	f.Year = 0
	filter, err := buildFilter(rt, scope, f)
	if err != nil {
		return nil, err
	}
	filter.Years = years

	key, err := s.cache.BuildKey(ctx, "govfin", "trend", string(rt), string(scope), string(metric), filterToken(filter))
	if err != nil {
		s.logger.Warn("query cache unavailable", "error", err)
		lines, err := s.trendLines(ctx, filter, metric, years)
		if err != nil {
			return nil, fmt.Errorf("failed to build trends: %w", err)
		}
		return lines, nil
	}

	var lines []TrendLine
	err = s.fetch(ctx, key, &lines, func(ctx context.Context) (interface{}, error) {
		return s.trendLines(ctx, filter, metric, years)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build trends: %w", err)
	}
	return lines, nil
}

func (s *Service) trendLines(ctx context.Context, filter store.RowFilter, metric types.Metric, years []int) ([]TrendLine, error) {
	rows, err := s.repo.Rows(ctx, filter)
	if err != nil {
		return nil, err
	}
	report := pivot.ToWide(rows)
	encoded := trend.ForWide(report, metric, years)
	out := make([]TrendLine, len(report.Rows))
	for i, row := range report.Rows {
		out[i] = TrendLine{
			Key:         row.Key,
			StateAbbr:   row.StateAbbr,
			DisplayName: row.DisplayName,
			Trend:       encoded[i],
		}
	}
	return out, nil
}

// InvalidateCache bumps the cache version after a pipeline run.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// fetch collapses concurrent lookups of the same key into one cache fill.
func (s *Service) fetch(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

// =============================================================================
// FILTERS
// =============================================================================

func buildFilter(rt types.ReportType, scope types.Scope, f Filters) (store.RowFilter, error) {
	filter := store.RowFilter{
		Scope:       scope,
		ReportType:  rt,
		State:       strings.ToUpper(strings.TrimSpace(f.State)),
		Category:    strings.TrimSpace(f.Category),
		Description: strings.TrimSpace(f.Subcategory),
	}
	if f.Year != 0 {
		filter.Years = []int{f.Year}
	}

	if scope == types.ScopeLocal {
		govTypes, err := ParseGovTypes(f.GovernmentType)
		if err != nil {
			return store.RowFilter{}, err
		}
		filter.GovTypes = govTypes
	}
	return filter, nil
}

// ParseGovTypes maps a government type filter to type codes. An empty
// filter selects cities and townships; "all" selects every type (nil).
func ParseGovTypes(s string) ([]types.GovType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "city", "cities":
		return []types.GovType{types.GovCity, types.GovTownship}, nil
	case "all", "*":
		return nil, nil
	case "county", "counties":
		return []types.GovType{types.GovCounty}, nil
	case "township", "townships":
		return []types.GovType{types.GovTownship}, nil
	case "special", "special district", "special districts":
		return []types.GovType{types.GovSpecialDistrict}, nil
	case "school", "school district", "school districts":
		return []types.GovType{types.GovSchoolDistrict}, nil
	case "state":
		return []types.GovType{types.GovState}, nil
	}

	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 1 {
		if g := types.GovType(trimmed[0]); g.Valid() {
			return []types.GovType{g}, nil
		}
	}
	return nil, fmt.Errorf("unknown government type %q", s)
}

// filterToken renders a filter as a stable cache key component.
func filterToken(f store.RowFilter) string {
	parts := []string{f.State, f.Category, f.Description}

	codes := make([]string, len(f.GovTypes))
	for i, g := range f.GovTypes {
		codes[i] = g.String()
	}
	parts = append(parts, strings.Join(codes, ","))

	years := make([]string, len(f.Years))
	for i, y := range f.Years {
		years[i] = strconv.Itoa(y)
	}
	parts = append(parts, strings.Join(years, ","))

	return strings.Join(parts, "|")
}
