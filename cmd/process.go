// =============================================================================
// govfin - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the report pipeline.
//
// COMMAND USAGE:
//   govfin process [flags]
//
// FLAGS:
//   --year     : Survey year to process (repeatable, default: configured years)
//   --scope    : state, local or all (default: all)
//   --dry-run  : Compute and validate every report without writing anything
//
// PROCESSING PIPELINE:
//   1. Load the shared inputs (profiles, taxonomy, methodology, population)
//   2. Resolve the years of each scope
//   3. Open the report store and the query cache
//   4. Run the pipeline (years concurrently, then reports per state)
//   5. Print the summary and prune old archives
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ginjaninja78/govfin/internal/config"
	"github.com/ginjaninja78/govfin/internal/observability"
	"github.com/ginjaninja78/govfin/internal/pipeline"
	"github.com/ginjaninja78/govfin/internal/query"
	"github.com/ginjaninja78/govfin/internal/reportwriter"
	"github.com/ginjaninja78/govfin/internal/store"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/internal/validation"
	"github.com/ginjaninja78/govfin/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	processYears []int
	processScope string
	dryRun       bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Build the expenditure and revenue reports",
	Long: `The process command builds the nationwide report from the summary tables
and the local reports from the unit-level records for every selected year.

Years are processed concurrently. A year that fails (missing files, an
unsupported layout) is reported and the other years carry on unless
continue_on_error is false.

On success:
  - Report artifacts are written to the output directory
    (state_<type>.<fmt>, local/<ST>/local_<type>_<ST>.<fmt>)
  - Replaced artifacts are archived
  - The report store is refreshed and the query cache invalidated
  - A processing summary is written

Malformed lines and amounts without a directory entry are counted in the
summary and listed in the error log.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().IntSliceVar(
		&processYears,
		"year",
		nil,
		"Survey year to process (repeatable)",
	)

	processCmd.Flags().StringVar(
		&processScope,
		"scope",
		"all",
		"Report scope: state, local or all",
	)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Compute and validate reports without writing any output",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()
	cfg := appConfig

	// =========================================================================
	// STEP 1: SHARED INPUTS
	// =========================================================================

	wantState, wantLocal, err := parseScopeFlag(processScope)
	if err != nil {
		return err
	}

	files := newFileManager(cfg, utils.NewRunID())
	log := logger.With("run_id", files.RunID)

	pctx, err := pipeline.BuildContext(files, sourcesFrom(cfg), wantLocal, wantState, log)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: YEARS
	// =========================================================================

	opts := pipeline.Options{
		MaxConcurrency:  cfg.MaxConcurrency,
		ContinueOnError: cfg.ContinueOnError,
		DryRun:          dryRun,
		MetricsFile:     cfg.MetricsFile,
		Validation: validation.ValidationOptions{
			TreatWarningsAsErrors: cfg.StrictValidation,
			MaxErrors:             validation.DefaultValidationOptions().MaxErrors,
		},
	}
	if wantState {
		opts.StateYears = selectYears(processYears, cfg.StateYears, pctx.Registry.Years())
		all := selectYears(nil, cfg.StateYears, pctx.Registry.Years())
		opts.PartialSelection = !slices.Equal(opts.StateYears, all)
	}
	if wantLocal {
		opts.LocalYears = selectYears(processYears, cfg.LocalYears, pctx.Registry.LocalYears())
		all := selectYears(nil, cfg.LocalYears, pctx.Registry.LocalYears())
		opts.PartialSelection = opts.PartialSelection || !slices.Equal(opts.LocalYears, all)
	}
	if len(opts.StateYears) == 0 && len(opts.LocalYears) == 0 {
		return fmt.Errorf("no years selected for scope %q", processScope)
	}

	// =========================================================================
	// STEP 3: STORE, CACHE AND WRITER
	// =========================================================================

	formats, err := reportwriter.ParseFormats(cfg.Formats)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Files:   files,
		Writer:  reportwriter.New(files, formats),
		Metrics: observability.NewMetrics(),
		Logger:  log,
	}

	if cfg.DatabasePath != "" && !dryRun {
		st, err := store.Open(ctx, cfg.DatabasePath, log)
		if err != nil {
			return err
		}
		defer st.Close()
		deps.Store = st
	}

	if cfg.RedisAddr != "" && !dryRun {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		deps.Cache = query.NewCache(client, cfg.CacheTTL)
	}

	// =========================================================================
	// STEP 4: RUN
	// =========================================================================

	fmt.Println("=== govfin ===")
	if dryRun {
		fmt.Println("Dry run: nothing will be written")
	}
	fmt.Printf("State years: %v\n", opts.StateYears)
	fmt.Printf("Local years: %v\n", opts.LocalYears)

	stats, runErr := pipeline.New(pctx, opts, deps).Run(ctx)

	// =========================================================================
	// STEP 5: SUMMARY
	// =========================================================================

	for _, y := range stats.Years {
		if y.Err != nil {
			fmt.Printf("  ✗ %s %d: %v\n", y.Scope, y.Year, y.Err)
			continue
		}
		fmt.Printf("  ✓ %s %d: %d rows", y.Scope, y.Year, y.Stats.Rows)
		if y.Scope == types.ScopeLocal {
			fmt.Printf(" (%d records, %d malformed, %d without profile)",
				y.Stats.Records, y.Stats.Malformed, y.Stats.MissingEntities)
		}
		fmt.Println()
	}
	for _, f := range stats.FailedReports {
		if f.Year != 0 {
			fmt.Printf("  ✗ %s %d withheld: %d validation error(s)\n", f.Name, f.Year, f.Errors)
		} else {
			fmt.Printf("  ✗ %s withheld: %d validation error(s)\n", f.Name, f.Errors)
		}
	}

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Years:           %d\n", len(stats.Years))
	fmt.Printf("Failed:          %d\n", stats.Failed())
	fmt.Printf("Artifacts:       %d\n", len(stats.Artifacts))
	fmt.Printf("Withheld:        %d\n", len(stats.FailedReports))
	fmt.Printf("Stored rows:     %d\n", stats.StoredRows)
	fmt.Printf("Validation:      %d finding(s)\n", stats.ValidationErrors)
	fmt.Printf("Time elapsed:    %s\n", time.Since(startTime))
	if stats.SummaryPath != "" {
		fmt.Printf("Summary:         %s\n", stats.SummaryPath)
	}
	if stats.ErrorLogPath != "" {
		fmt.Printf("Error log:       %s\n", stats.ErrorLogPath)
	}

	if !dryRun && cfg.ArchiveDir != "" && cfg.ArchiveRetention > 0 {
		removed, err := utils.CleanOldArchives(cfg.ArchiveDir, cfg.ArchiveRetention)
		if err != nil {
			log.Warn("failed to clean archives", "error", err)
		} else if removed > 0 {
			log.Info("old archives removed", "count", removed)
		}
	}

	if runErr != nil {
		return runErr
	}
	if n := stats.Failed(); n > 0 {
		return fmt.Errorf("%d year(s) failed", n)
	}
	if n := len(stats.FailedReports); n > 0 {
		return fmt.Errorf("%d report(s) failed validation", n)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func parseScopeFlag(s string) (state, local bool, err error) {
	if s == "" || s == "all" {
		return true, true, nil
	}
	scope, err := types.ParseScope(s)
	if err != nil {
		return false, false, err
	}
	return scope == types.ScopeState, scope == types.ScopeLocal, nil
}

// selectYears picks the flag years, else the configured years, else every
// year the registry supports. Flag years are kept even when unsupported so
// the run reports them.
func selectYears(flagYears, configured, supported []int) []int {
	var years []int
	switch {
	case len(flagYears) > 0:
		years = slices.Clone(flagYears)
	case len(configured) > 0:
		years = slices.Clone(configured)
	default:
		years = slices.Clone(supported)
	}
	slices.Sort(years)
	return slices.Compact(years)
}

func newFileManager(cfg *config.MainConfig, runID string) *utils.FileManager {
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.ArchiveDir, runID)
	files.UseTimestampSubdirs = cfg.UseTimestampSubdirs
	return files
}

func sourcesFrom(cfg *config.MainConfig) pipeline.Sources {
	return pipeline.Sources{
		ProfilesFile:    cfg.ProfilesFile,
		TaxonomyFile:    cfg.TaxonomyFile,
		MethodologyFile: cfg.MethodologyFile,
		PopulationFile:  cfg.PopulationFile,
		CityNamesFile:   cfg.CityNamesFile,
		TitleCase:       cfg.TitleCaseNames,
	}
}
