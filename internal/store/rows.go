package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ginjaninja78/govfin/internal/types"
)

var rowColumns = []string{
	"scope", "report_type", "year", "entity_id", "state_abbr", "state_name",
	"county_name", "display_name", "government_type", "level", "category",
	"line", "description", "amount", "per_capita", "per_student",
	"population", "enrollment", "run_id",
}

// RowFilter selects report rows. Zero-valued fields do not filter.
type RowFilter struct {
	Scope       types.Scope
	ReportType  types.ReportType
	EntityID    string
	State       string
	Category    string
	Description string
	GovTypes    []types.GovType
	Years       []int
}

// =============================================================================
// REPORT ROWS
// =============================================================================

// ReplaceRows deletes every stored row of (scope, rt, year) and inserts rows
// in their place, atomically. Every row must belong to that slice.
func (s *Store) ReplaceRows(ctx context.Context, scope types.Scope, rt types.ReportType, year int, runID string, rows []types.AggregatedReportRow) error {
	for i, r := range rows {
		if r.Scope != scope || r.ReportType != rt || r.Year != year {
			return fmt.Errorf("row %d (%s/%s/%d) does not belong to %s/%s/%d",
				i, r.Scope, r.ReportType, r.Year, scope, rt, year)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		del := psql.Delete("report_rows").Where(sq.Eq{
			"scope":       string(scope),
			"report_type": string(rt),
			"year":        year,
		})
		if _, err := execBuilder(ctx, tx, del); err != nil {
			return fmt.Errorf("failed to clear %s %s %d: %w", scope, rt, year, err)
		}

		for start := 0; start < len(rows); start += insertBatch {
			end := min(start+insertBatch, len(rows))
			ins := psql.Insert("report_rows").Columns(rowColumns...)
			for _, r := range rows[start:end] {
				ins = ins.Values(
					string(r.Scope), string(r.ReportType), r.Year, r.EntityID, r.StateAbbr, r.StateName,
					r.CountyName, r.DisplayName, r.GovernmentType.String(), r.Level, r.Category,
					r.Line, r.Description, r.Amount, r.PerCapita, r.PerStudent,
					r.Population, r.Enrollment, runID,
				)
			}
			if _, err := execBuilder(ctx, tx, ins); err != nil {
				return fmt.Errorf("failed to insert rows: %w", err)
			}
		}
		return nil
	})
}

// Rows returns the rows matching f ordered by state, entity, category, line
// and year.
func (s *Store) Rows(ctx context.Context, f RowFilter) ([]types.AggregatedReportRow, error) {
	q := psql.Select(rowColumns[:len(rowColumns)-1]...).From("report_rows")

	if f.Scope != "" {
		q = q.Where(sq.Eq{"scope": string(f.Scope)})
	}
	if f.ReportType != "" {
		q = q.Where(sq.Eq{"report_type": string(f.ReportType)})
	}
	if f.EntityID != "" {
		q = q.Where(sq.Eq{"entity_id": f.EntityID})
	}
	if f.State != "" {
		q = q.Where(sq.Eq{"state_abbr": f.State})
	}
	if f.Category != "" {
		q = q.Where(sq.Eq{"category": f.Category})
	}
	if f.Description != "" {
		q = q.Where(sq.Eq{"description": f.Description})
	}
	if len(f.GovTypes) > 0 {
		codes := make([]string, len(f.GovTypes))
		for i, g := range f.GovTypes {
			codes[i] = g.String()
		}
		q = q.Where(sq.Eq{"government_type": codes})
	}
	if len(f.Years) > 0 {
		q = q.Where(sq.Eq{"year": f.Years})
	}
	q = q.OrderBy("state_abbr", "entity_id", "category", "line", "description", "level", "year")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rs, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rs.Close()

	var out []types.AggregatedReportRow
	for rs.Next() {
		var (
			r       types.AggregatedReportRow
			scope   string
			rt      string
			govType string
		)
		err := rs.Scan(
			&scope, &rt, &r.Year, &r.EntityID, &r.StateAbbr, &r.StateName,
			&r.CountyName, &r.DisplayName, &govType, &r.Level, &r.Category,
			&r.Line, &r.Description, &r.Amount, &r.PerCapita, &r.PerStudent,
			&r.Population, &r.Enrollment,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Scope = types.Scope(scope)
		r.ReportType = types.ReportType(rt)
		if err := r.GovernmentType.UnmarshalText([]byte(govType)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

// ReportRows returns every stored year of one report, the input of its
// multi-year artifacts.
func (s *Store) ReportRows(ctx context.Context, scope types.Scope, rt types.ReportType) ([]types.AggregatedReportRow, error) {
	return s.Rows(ctx, RowFilter{Scope: scope, ReportType: rt})
}

// Years lists the distinct years stored for a scope and report type.
func (s *Store) Years(ctx context.Context, scope types.Scope, rt types.ReportType) ([]int, error) {
	query, args, err := psql.Select("DISTINCT year").From("report_rows").
		Where(sq.Eq{"scope": string(scope), "report_type": string(rt)}).
		OrderBy("year").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rs, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rs.Close()

	var years []int
	for rs.Next() {
		var y int
		if err := rs.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rs.Err()
}

// =============================================================================
// ENTITY PROFILES
// =============================================================================

var profileColumns = []string{
	"entity_id", "survey_year", "display_name", "raw_name", "state_abbr",
	"state_name", "county_name", "population", "enrollment",
	"special_district_type", "government_type",
}

// SaveProfiles replaces the stored profiles of a survey year.
func (s *Store) SaveProfiles(ctx context.Context, year int, profiles []types.EntityProfile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		del := psql.Delete("entity_profiles").Where(sq.Eq{"survey_year": year})
		if _, err := execBuilder(ctx, tx, del); err != nil {
			return fmt.Errorf("failed to clear profiles for %d: %w", year, err)
		}

		for start := 0; start < len(profiles); start += insertBatch {
			end := min(start+insertBatch, len(profiles))
			ins := psql.Insert("entity_profiles").Columns(profileColumns...)
			for _, p := range profiles[start:end] {
				ins = ins.Values(
					p.EntityID, year, p.DisplayName, p.RawName, p.StateAbbr,
					p.StateName, p.CountyName, p.Population, p.Enrollment,
					p.SpecialDistrictType, p.GovernmentType.String(),
				)
			}
			if _, err := execBuilder(ctx, tx, ins); err != nil {
				return fmt.Errorf("failed to insert profiles: %w", err)
			}
		}
		return nil
	})
}

// Profile returns the profile of an entity for a survey year, or ErrNotFound.
func (s *Store) Profile(ctx context.Context, entityID string, year int) (types.EntityProfile, error) {
	query, args, err := psql.Select(profileColumns...).From("entity_profiles").
		Where(sq.Eq{"entity_id": entityID, "survey_year": year}).ToSql()
	if err != nil {
		return types.EntityProfile{}, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		p       types.EntityProfile
		govType string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.EntityID, &p.SurveyYear, &p.DisplayName, &p.RawName, &p.StateAbbr,
		&p.StateName, &p.CountyName, &p.Population, &p.Enrollment,
		&p.SpecialDistrictType, &govType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.EntityProfile{}, fmt.Errorf("entity %s in %d: %w", entityID, year, ErrNotFound)
	}
	if err != nil {
		return types.EntityProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := p.GovernmentType.UnmarshalText([]byte(govType)); err != nil {
		return types.EntityProfile{}, err
	}
	return p, nil
}
