// =============================================================================
// govfin - Validate Command
// =============================================================================
//
// Checks the configuration and the input directory without processing.
//
// COMMAND USAGE:
//   govfin validate [--scope state|local|all]
//
// CHECKS:
//   1. config.yaml and GOVFIN_* overrides parse and validate
//   2. profiles.yaml / taxonomy.yaml overrides load
//   3. The methodology, population and city names workbooks parse
//   4. Every selected year has a profile and its published files exist
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/govfin/internal/pipeline"
	"github.com/ginjaninja78/govfin/internal/reportwriter"
	"github.com/ginjaninja78/govfin/pkg/utils"
	"github.com/spf13/cobra"
)

var validateScope string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and input files without processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateScope, "scope", "all", "Report scope: state, local or all")
}

func runValidate() error {
	cfg := appConfig

	wantState, wantLocal, err := parseScopeFlag(validateScope)
	if err != nil {
		return err
	}
	if _, err := reportwriter.ParseFormats(cfg.Formats); err != nil {
		return err
	}

	files := newFileManager(cfg, utils.NewRunID())
	pctx, err := pipeline.BuildContext(files, sourcesFrom(cfg), wantLocal, wantState, logger)
	if err != nil {
		return err
	}

	fmt.Println("=== govfin validate ===")
	fmt.Printf("Input directory: %s\n", cfg.InputDir)

	var problems []string
	fail := func(msg string) {
		problems = append(problems, msg)
		fmt.Printf("  ✗ %s\n", msg)
	}

	if wantState {
		for _, year := range selectYears(nil, cfg.StateYears, pctx.Registry.Years()) {
			p, err := pctx.Registry.For(year)
			if err != nil {
				fail(err.Error())
				continue
			}
			if missing := files.MissingInputs(p.Files.SummaryA, p.Files.SummaryB); len(missing) > 0 {
				fail(fmt.Sprintf("state %d: missing %s", year, strings.Join(missing, ", ")))
				continue
			}
			fmt.Printf("  ✓ state %d\n", year)
		}
	}

	if wantLocal {
		fmt.Printf("Methodology:     %d lines\n", len(pctx.Mapping.Lines()))
		fmt.Printf("Protected names: %d\n", pctx.Protected.Len())
		for _, year := range selectYears(nil, cfg.LocalYears, pctx.Registry.LocalYears()) {
			p, err := pctx.Registry.For(year)
			if err != nil {
				fail(err.Error())
				continue
			}
			if !p.HasLocalData() {
				fail(fmt.Sprintf("local %d: no unit-level files registered", year))
				continue
			}
			if missing := files.MissingInputs(p.Files.Directory, p.Files.UnitRecords); len(missing) > 0 {
				fail(fmt.Sprintf("local %d: missing %s", year, strings.Join(missing, ", ")))
				continue
			}
			fmt.Printf("  ✓ local %d\n", year)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	fmt.Println("Configuration is valid.")
	return nil
}
