// =============================================================================
// govfin - Pipeline Orchestration
// =============================================================================
//
// Runs the whole ETL for a set of survey years.
//
// STAGES:
//   1. Per-year tasks (bounded errgroup, one slot per task):
//        state year: summary table -> national rows -> per-capita metrics
//        local year: directory + unit records -> line totals -> join ->
//                    per-capita / per-student metrics
//   2. Store writes, serial on the coordinating goroutine
//   3. Materialization (bounded errgroup): one task per nationwide report
//      and per (state, report type) local report, each writing its own
//      files. Reports are rebuilt from every stored year, so a run over a
//      single year keeps the columns of the others.
//   4. Run summary, error logs and metrics
//
// ERRORS:
//   A failing year is recorded in its YearResult and the other years carry
//   on, unless ContinueOnError is false. Malformed lines, missing profiles
//   and dropped zero totals are counted, never fatal. Rows or reports with
//   validation errors are withheld from the store and the output and
//   listed in RunStats.FailedReports.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/govfin/internal/aggregate"
	"github.com/ginjaninja78/govfin/internal/derive"
	"github.com/ginjaninja78/govfin/internal/directory"
	"github.com/ginjaninja78/govfin/internal/fixedwidth"
	"github.com/ginjaninja78/govfin/internal/observability"
	"github.com/ginjaninja78/govfin/internal/pivot"
	"github.com/ginjaninja78/govfin/internal/reportwriter"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/internal/validation"
	"github.com/ginjaninja78/govfin/internal/xlsxparser"
	"github.com/ginjaninja78/govfin/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// OPTIONS AND DEPENDENCIES
// =============================================================================

// Options selects what a run does.
type Options struct {
	StateYears []int
	LocalYears []int

	// MaxConcurrency bounds both the year stage and the materialization
	// stage. Values below 1 mean 1.
	MaxConcurrency int

	ContinueOnError bool

	// DryRun computes and validates every report but writes no artifacts,
	// store rows or logs.
	DryRun bool

	// MetricsFile receives the run metrics when set.
	MetricsFile string

	// PartialSelection is set when the years were narrowed below the
	// configured set. Without a store such a run cannot rebuild the
	// multi-year artifacts and writes none.
	PartialSelection bool

	// Validation decides which findings withhold a report.
	Validation validation.ValidationOptions
}

// RowStore persists report rows and entity profiles and reads back the
// rows every artifact is materialized from.
type RowStore interface {
	ReplaceRows(ctx context.Context, scope types.Scope, rt types.ReportType, year int, runID string, rows []types.AggregatedReportRow) error
	SaveProfiles(ctx context.Context, year int, profiles []types.EntityProfile) error
	ReportRows(ctx context.Context, scope types.Scope, rt types.ReportType) ([]types.AggregatedReportRow, error)
}

// CacheInvalidator drops cached query results after new rows are stored.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Deps are the collaborators of a Pipeline. Store, Cache and Metrics may be
// nil.
type Deps struct {
	Files   *utils.FileManager
	Writer  *reportwriter.Writer
	Store   RowStore
	Cache   CacheInvalidator
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Pipeline runs the report ETL.
type Pipeline struct {
	pctx      *PipelineContext
	opts      Options
	files     *utils.FileManager
	writer    *reportwriter.Writer
	store     RowStore
	cache     CacheInvalidator
	metrics   *observability.Metrics
	logger    *slog.Logger
	validator *validation.Validator
}

// New creates a Pipeline.
func New(pctx *PipelineContext, opts Options, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Pipeline{
		pctx:      pctx,
		opts:      opts,
		files:     deps.Files,
		writer:    deps.Writer,
		store:     deps.Store,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		logger:    logger.With("run_id", deps.Files.RunID),
		validator: validation.NewValidatorWithOptions(&pctx.Taxonomies, opts.Validation),
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// YearStats counts the non-fatal outcomes of one year task.
type YearStats struct {
	Records         int
	Malformed       int
	MissingEntities int
	ZeroDropped     int
	Rows            int

	DirectoryLoaded   int
	UnknownStates     []string
	MissingPopulation []string
}

// YearResult is the outcome of one (year, scope) task.
type YearResult struct {
	Year  int
	Scope types.Scope

	Rows     map[types.ReportType][]types.AggregatedReportRow
	Profiles []types.EntityProfile

	Stats      YearStats
	Issues     []utils.ErrorLogEntry
	Validation []*validation.ValidationError

	// Rejected holds the report types whose rows failed validation, with
	// their error counts. Rejected rows are neither stored nor written.
	Rejected map[types.ReportType]int

	Duration time.Duration

	// Err is the fatal error of the year, nil on success.
	Err error
}

// Accepted reports whether the rows of rt may be stored and written.
func (r *YearResult) Accepted(rt types.ReportType) bool {
	_, rejected := r.Rejected[rt]
	return r.Err == nil && !rejected
}

// FailedReport is a report withheld because validation found errors. Year
// is set for the rows of a single year and zero for a whole artifact.
type FailedReport struct {
	Name   string
	Year   int
	Errors int
}

// RunStats summarizes a run.
type RunStats struct {
	RunID string
	Start time.Time
	End   time.Time

	Years         []YearResult
	Artifacts     []reportwriter.Artifact
	FailedReports []FailedReport

	ValidationErrors int
	StoredRows       int

	SummaryPath    string
	ErrorLogPath   string
	ValidationPath string
}

// Failed returns the number of failed year tasks.
func (s *RunStats) Failed() int {
	n := 0
	for _, y := range s.Years {
		if y.Err != nil {
			n++
		}
	}
	return n
}

// Summary converts the stats into the run summary log structure.
func (s *RunStats) Summary() utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		RunID:            s.RunID,
		StartTime:        s.Start,
		EndTime:          s.End,
		ValidationErrors: s.ValidationErrors,
	}
	for _, y := range s.Years {
		ys := utils.YearSummary{
			Year:            y.Year,
			Scope:           string(y.Scope),
			Status:          "ok",
			Records:         y.Stats.Records,
			Malformed:       y.Stats.Malformed,
			MissingEntities: y.Stats.MissingEntities,
			ZeroDropped:     y.Stats.ZeroDropped,
			Rows:            y.Stats.Rows,
			Duration:        y.Duration,
		}
		if y.Err != nil {
			ys.Status = "failed"
			ys.Error = y.Err.Error()
		}
		summary.Years = append(summary.Years, ys)
	}
	for _, a := range s.Artifacts {
		summary.Artifacts = append(summary.Artifacts, utils.ArtifactInfo{Path: a.Path, Format: string(a.Format), Rows: a.Rows})
	}
	return summary
}

// =============================================================================
// RUN
// =============================================================================

// Run executes every stage. The returned stats are never nil. An error is
// returned when the run was cancelled, when a year failed and
// ContinueOnError is false, or when artifacts or store rows could not be
// written.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{RunID: p.files.RunID, Start: time.Now()}
	defer func() { stats.End = time.Now() }()

	if !p.opts.DryRun {
		if err := p.files.EnsureDirectories(); err != nil {
			return stats, err
		}
	}

	p.logger.Info("pipeline started",
		"state_years", p.opts.StateYears,
		"local_years", p.opts.LocalYears,
		"dry_run", p.opts.DryRun)

	results, err := p.processYears(ctx)
	stats.Years = results
	if err != nil {
		return stats, p.finish(stats, err)
	}
	stats.FailedReports = rejectedReports(results)

	stored, err := p.persist(ctx, stats.RunID, results)
	stats.StoredRows = stored
	if err != nil {
		return stats, p.finish(stats, err)
	}

	artifacts, findings, failed, err := p.materialize(ctx, results)
	stats.Artifacts = artifacts
	stats.FailedReports = append(stats.FailedReports, failed...)
	if err != nil {
		return stats, p.finish(stats, err)
	}

	for _, r := range results {
		findings = append(findings, r.Validation...)
	}
	stats.ValidationErrors = len(findings)
	if len(findings) > 0 {
		p.logger.Warn("validation findings", "count", len(findings), "failed_reports", len(stats.FailedReports))
		if !p.opts.DryRun {
			path := p.files.OutputPath(fmt.Sprintf("validation_%s.log", stats.RunID))
			if err := validation.WriteErrorLog(findings, "govfin run "+stats.RunID, path); err != nil {
				p.logger.Error("failed to write validation log", "error", err)
			} else {
				stats.ValidationPath = path
			}
		}
	}

	return stats, p.finish(stats, nil)
}

func rejectedReports(results []YearResult) []FailedReport {
	var out []FailedReport
	for _, r := range results {
		for _, rt := range types.ReportTypes {
			if n, ok := r.Rejected[rt]; ok {
				out = append(out, FailedReport{
					Name:   fmt.Sprintf("%s_%s", r.Scope, rt),
					Year:   r.Year,
					Errors: n,
				})
			}
		}
	}
	return out
}

// finish writes the run summary, error log and metrics, and returns err.
func (p *Pipeline) finish(stats *RunStats, err error) error {
	stats.End = time.Now()

	if !p.opts.DryRun {
		summaryPath, werr := utils.WriteSummaryLog(stats.Summary(), p.files.OutputDir)
		if werr != nil {
			p.logger.Error("failed to write summary log", "error", werr)
		}
		stats.SummaryPath = summaryPath

		logPath, werr := utils.WriteErrorLog(errorLogEntries(stats), p.files.OutputDir)
		if werr != nil {
			p.logger.Error("failed to write error log", "error", werr)
		}
		stats.ErrorLogPath = logPath
	}

	if werr := p.metrics.WriteTextfile(p.opts.MetricsFile); werr != nil {
		p.logger.Error("failed to write metrics file", "error", werr)
	}

	p.logger.Info("pipeline finished",
		"years", len(stats.Years),
		"failed", stats.Failed(),
		"artifacts", len(stats.Artifacts),
		"failed_reports", len(stats.FailedReports),
		"stored_rows", stats.StoredRows,
		"duration", stats.End.Sub(stats.Start))
	return err
}

func errorLogEntries(stats *RunStats) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry
	for _, y := range stats.Years {
		if y.Err != nil {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:    stats.End,
				Year:         y.Year,
				Scope:        string(y.Scope),
				ErrorType:    errorType(y.Err),
				ErrorMessage: y.Err.Error(),
			})
		}
		entries = append(entries, y.Issues...)
	}
	for _, f := range stats.FailedReports {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    stats.End,
			Year:         f.Year,
			ErrorType:    "validation_failed",
			ErrorMessage: fmt.Sprintf("%s withheld: %d validation error(s)", f.Name, f.Errors),
		})
	}
	return entries
}

func errorType(err error) string {
	var unsupported *types.UnsupportedYearError
	var mismatch *types.SchemaMismatchError
	switch {
	case errors.As(err, &unsupported):
		return "unsupported_year"
	case errors.As(err, &mismatch):
		return "schema_mismatch"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "year_failed"
}

// =============================================================================
// STAGE 1: YEARS
// =============================================================================

type yearTask struct {
	year  int
	scope types.Scope
}

func (p *Pipeline) processYears(ctx context.Context) ([]YearResult, error) {
	var tasks []yearTask
	for _, y := range p.opts.StateYears {
		tasks = append(tasks, yearTask{year: y, scope: types.ScopeState})
	}
	for _, y := range p.opts.LocalYears {
		tasks = append(tasks, yearTask{year: y, scope: types.ScopeLocal})
	}

	results := make([]YearResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrency)

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			logger := p.logger.With("year", task.year, "scope", task.scope)
			logger.Debug("year started")

			var res YearResult
			if task.scope == types.ScopeState {
				res = p.stateYear(gctx, task.year)
			} else {
				res = p.localYear(gctx, task.year)
			}
			res.Duration = time.Since(start)
			results[i] = res
			p.metrics.YearRun(string(task.scope), res.Err)

			if res.Err != nil {
				logger.Error("year failed", "error", res.Err)
				if !p.opts.ContinueOnError {
					return fmt.Errorf("%s year %d: %w", task.scope, task.year, res.Err)
				}
				return nil
			}
			logger.Info("year processed",
				"rows", res.Stats.Rows,
				"records", res.Stats.Records,
				"malformed", res.Stats.Malformed,
				"missing_entities", res.Stats.MissingEntities,
				"duration", res.Duration)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func newYearResult(year int, scope types.Scope) YearResult {
	return YearResult{
		Year:  year,
		Scope: scope,
		Rows:  make(map[types.ReportType][]types.AggregatedReportRow, len(types.ReportTypes)),
	}
}

// check validates the rows of one report type and rejects them on any
// finding the validator options treat as fatal.
func (p *Pipeline) check(res *YearResult, rt types.ReportType, rows []types.AggregatedReportRow) {
	result := p.validator.ValidateAll(rows)
	res.Validation = append(res.Validation, result.Errors...)
	if result.IsValid {
		return
	}
	if res.Rejected == nil {
		res.Rejected = make(map[types.ReportType]int)
	}
	n := result.ErrorCount
	if p.opts.Validation.TreatWarningsAsErrors {
		n += result.WarningCount
	}
	res.Rejected[rt] = n
	p.logger.Error("rows failed validation",
		"year", res.Year, "scope", res.Scope, "report_type", rt,
		"errors", result.ErrorCount, "warnings", result.WarningCount)
}

// stateYear builds the nationwide rows of one year from the summary table.
func (p *Pipeline) stateYear(ctx context.Context, year int) YearResult {
	res := newYearResult(year, types.ScopeState)

	prof, err := p.pctx.Registry.For(year)
	if err != nil {
		res.Err = err
		return res
	}
	if !prof.HasSummaryData() {
		res.Err = fmt.Errorf("no summary table files registered for %d", year)
		return res
	}
	if missing := p.files.MissingInputs(prof.Files.SummaryA, prof.Files.SummaryB); len(missing) > 0 {
		res.Err = fmt.Errorf("missing input files: %s", strings.Join(missing, ", "))
		return res
	}

	tr := p.metrics.Track("summary_table")
	table, err := xlsxparser.ReadSummaryTable(p.files.InputPath(prof.Files.SummaryA), p.files.InputPath(prof.Files.SummaryB), prof)
	if tr.End(err) != nil {
		res.Err = fmt.Errorf("failed to read summary table: %w", err)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	unknown := make(map[string]bool)
	noPop := make(map[string]bool)
	for _, rt := range types.ReportTypes {
		rows, ns := aggregate.National(table, prof, p.pctx.Taxonomies.For(rt), p.pctx.Population, rt)
		derive.ApplyNational(rows)
		res.Rows[rt] = rows
		res.Stats.Rows += len(rows)
		p.check(&res, rt, rows)

		for _, s := range ns.UnknownStates {
			unknown[s] = true
		}
		for _, s := range ns.MissingPopulation {
			noPop[s] = true
		}
	}

	for _, s := range sortedSet(unknown) {
		res.Stats.UnknownStates = append(res.Stats.UnknownStates, s)
		res.Issues = append(res.Issues, p.issue(res, prof.Files.SummaryA, "unknown_state",
			fmt.Sprintf("summary table group %q is not a state", s)))
	}
	for _, s := range sortedSet(noPop) {
		res.Stats.MissingPopulation = append(res.Stats.MissingPopulation, s)
		res.Issues = append(res.Issues, p.issue(res, "", "missing_population",
			fmt.Sprintf("no population estimate for %s in %d; per capita is 0", s, year)))
	}
	return res
}

// localYear builds the local rows of one year from the unit records.
func (p *Pipeline) localYear(ctx context.Context, year int) YearResult {
	res := newYearResult(year, types.ScopeLocal)

	prof, err := p.pctx.Registry.For(year)
	if err != nil {
		res.Err = err
		return res
	}
	if !prof.HasLocalData() {
		res.Err = fmt.Errorf("no unit-level files registered for %d", year)
		return res
	}
	if p.pctx.Mapping == nil {
		res.Err = fmt.Errorf("methodology mapping not loaded")
		return res
	}
	if missing := p.files.MissingInputs(prof.Files.Directory, prof.Files.UnitRecords); len(missing) > 0 {
		res.Err = fmt.Errorf("missing input files: %s", strings.Join(missing, ", "))
		return res
	}

	tr := p.metrics.Track("directory")
	dir, dstats, err := directory.Load(p.files.InputPath(prof.Files.Directory), year, directory.Options{
		Protected: p.pctx.Protected,
		TitleCase: p.pctx.TitleCase,
	})
	if tr.End(err) != nil {
		res.Err = err
		return res
	}
	res.Profiles = dir.Entities()
	res.Stats.DirectoryLoaded = dstats.Loaded
	if dstats.Malformed > 0 {
		res.Issues = append(res.Issues, p.issue(res, prof.Files.Directory, "malformed_directory_row",
			fmt.Sprintf("%d directory rows skipped as malformed", dstats.Malformed)))
	}

	tr = p.metrics.Track("unit_records")
	reader, err := fixedwidth.OpenRecords(p.files.InputPath(prof.Files.UnitRecords), year)
	if tr.End(err) != nil {
		res.Err = err
		return res
	}
	totals, astats, err := aggregate.LocalSet(ctx, reader, p.pctx.Mapping, p.pctx.Taxonomies)
	reader.Close()
	if err != nil {
		res.Err = fmt.Errorf("failed to aggregate unit records: %w", err)
		return res
	}

	res.Stats.Records = reader.Parsed()
	res.Stats.Malformed = reader.Malformed()
	p.metrics.AddRecords(year, reader.Parsed(), reader.Malformed())
	for _, m := range reader.MalformedSamples() {
		entry := p.issue(res, m.File, "malformed_record", m.Reason)
		entry.LineNumber = m.Line
		res.Issues = append(res.Issues, entry)
	}

	for _, rt := range types.ReportTypes {
		res.Stats.ZeroDropped += astats[rt].ZeroDropped

		rows, js := aggregate.Join(totals[rt], dir, year, rt)
		derive.ApplyLocal(rows)
		res.Rows[rt] = rows
		res.Stats.Rows += len(rows)
		res.Stats.MissingEntities += js.MissingEntities
		for _, m := range js.MissingSamples {
			entry := p.issue(res, prof.Files.UnitRecords, "missing_entity_profile", m.Error())
			entry.ReportType = string(rt)
			entry.EntityID = m.EntityID
			res.Issues = append(res.Issues, entry)
		}
		p.check(&res, rt, rows)
	}
	p.metrics.AddMissingEntities(year, res.Stats.MissingEntities)
	return res
}

func (p *Pipeline) issue(res YearResult, file, kind, msg string) utils.ErrorLogEntry {
	return utils.ErrorLogEntry{
		Timestamp:    time.Now(),
		Year:         res.Year,
		Scope:        string(res.Scope),
		FileName:     filepath.Base(file),
		ErrorType:    kind,
		ErrorMessage: msg,
	}
}

// =============================================================================
// STAGE 2: STORE
// =============================================================================

// persist replaces the stored rows of every accepted (year, report type).
// It runs on the calling goroutine; SQLite has a single writer.
func (p *Pipeline) persist(ctx context.Context, runID string, results []YearResult) (int, error) {
	if p.store == nil || p.opts.DryRun {
		return 0, nil
	}

	tr := p.metrics.Track("store")
	stored := 0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, rt := range types.ReportTypes {
			if !r.Accepted(rt) {
				continue
			}
			if err := p.store.ReplaceRows(ctx, r.Scope, rt, r.Year, runID, r.Rows[rt]); err != nil {
				return stored, tr.End(fmt.Errorf("failed to store %s %s %d: %w", r.Scope, rt, r.Year, err))
			}
			stored += len(r.Rows[rt])
		}
		if r.Scope == types.ScopeLocal {
			if err := p.store.SaveProfiles(ctx, r.Year, r.Profiles); err != nil {
				return stored, tr.End(fmt.Errorf("failed to store profiles %d: %w", r.Year, err))
			}
		}
	}
	tr.End(nil)

	if p.cache != nil {
		if err := p.cache.Bump(ctx); err != nil {
			p.logger.Warn("failed to invalidate query cache", "error", err)
		}
	}
	return stored, nil
}

// =============================================================================
// STAGE 3: MATERIALIZATION
// =============================================================================

var scopes = []types.Scope{types.ScopeState, types.ScopeLocal}

type reportJob struct {
	report types.WideReport
	rows   []types.AggregatedReportRow
}

type jobOutput struct {
	artifacts []reportwriter.Artifact
	findings  []*validation.ValidationError
	failed    *FailedReport
}

// reportJobs picks the rows each artifact is built from. With a store the
// reports touched by this run are rebuilt from every stored year. Without
// one only this run's rows are known, which is the full report unless the
// year selection was narrowed.
func (p *Pipeline) reportJobs(ctx context.Context, results []YearResult) ([]reportJob, error) {
	switch {
	case p.store != nil && !p.opts.DryRun:
		return p.storedJobs(ctx, results)
	case p.opts.PartialSelection && !p.opts.DryRun:
		p.logger.Warn("no report store for a partial year selection; artifacts left unchanged")
		return nil, nil
	}
	return memoryJobs(results), nil
}

func (p *Pipeline) storedJobs(ctx context.Context, results []YearResult) ([]reportJob, error) {
	var jobs []reportJob
	for _, scope := range scopes {
		for _, rt := range types.ReportTypes {
			if !touched(results, scope, rt) {
				continue
			}
			rows, err := p.store.ReportRows(ctx, scope, rt)
			if err != nil {
				return nil, fmt.Errorf("failed to load stored %s %s rows: %w", scope, rt, err)
			}
			jobs = append(jobs, jobsFor(scope, rows)...)
		}
	}
	return jobs, nil
}

func touched(results []YearResult, scope types.Scope, rt types.ReportType) bool {
	for i := range results {
		if results[i].Scope == scope && results[i].Accepted(rt) {
			return true
		}
	}
	return false
}

// memoryJobs gathers the accepted rows of this run.
func memoryJobs(results []YearResult) []reportJob {
	var jobs []reportJob
	for _, scope := range scopes {
		for _, rt := range types.ReportTypes {
			var rows []types.AggregatedReportRow
			for i := range results {
				if results[i].Scope == scope && results[i].Accepted(rt) {
					rows = append(rows, results[i].Rows[rt]...)
				}
			}
			jobs = append(jobs, jobsFor(scope, rows)...)
		}
	}
	return jobs
}

// jobsFor makes one nationwide report, or one local report per state.
func jobsFor(scope types.Scope, rows []types.AggregatedReportRow) []reportJob {
	if len(rows) == 0 {
		return nil
	}
	if scope == types.ScopeState {
		return []reportJob{{report: pivot.ToWide(rows), rows: rows}}
	}
	parts := pivot.Partition(rows)
	jobs := make([]reportJob, 0, len(parts))
	for _, st := range pivot.Keys(parts) {
		w := pivot.ToWide(parts[st])
		w.Partition = st
		jobs = append(jobs, reportJob{report: w, rows: parts[st]})
	}
	return jobs
}

func (p *Pipeline) materialize(ctx context.Context, results []YearResult) ([]reportwriter.Artifact, []*validation.ValidationError, []FailedReport, error) {
	jobs, err := p.reportJobs(ctx, results)
	if err != nil {
		return nil, nil, nil, err
	}
	outputs := make([]jobOutput, len(jobs))

	tr := p.metrics.Track("materialize")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := jobOutput{findings: validation.ValidateWide(job.rows, job.report)}
			if n := countErrors(out.findings); n > 0 {
				out.failed = &FailedReport{Name: job.report.Name(), Errors: n}
				p.logger.Error("report withheld", "report", job.report.Name(), "errors", n)
				outputs[i] = out
				return nil
			}
			if !p.opts.DryRun {
				artifacts, err := p.writer.Write(&job.report)
				if err != nil {
					return err
				}
				out.artifacts = artifacts
			}
			outputs[i] = out
			return nil
		})
	}
	err = tr.End(g.Wait())

	var (
		artifacts []reportwriter.Artifact
		findings  []*validation.ValidationError
		failed    []FailedReport
	)
	for _, out := range outputs {
		artifacts = append(artifacts, out.artifacts...)
		findings = append(findings, out.findings...)
		if out.failed != nil {
			failed = append(failed, *out.failed)
		}
	}
	for _, a := range artifacts {
		p.metrics.AddArtifacts(string(a.Format), 1)
	}
	if err != nil {
		return artifacts, findings, failed, fmt.Errorf("failed to materialize reports: %w", err)
	}

	p.logger.Info("reports materialized", "reports", len(jobs), "artifacts", len(artifacts), "withheld", len(failed))
	return artifacts, findings, failed, nil
}

func countErrors(findings []*validation.ValidationError) int {
	n := 0
	for _, f := range findings {
		if f.Severity == validation.SeverityError {
			n++
		}
	}
	return n
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
