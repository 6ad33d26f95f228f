// =============================================================================
// govfin - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (govfin)
//   ├── processCmd  (govfin process)
//   ├── queryCmd    (govfin query report|entity|trend)
//   ├── validateCmd (govfin validate)
//   └── versionCmd  (govfin version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading config.yaml and GOVFIN_* environment overrides
//   3. Setting up the structured logger
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ginjaninja78/govfin/internal/config"
	"github.com/ginjaninja78/govfin/internal/logging"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// appConfig and logger are set by the root PersistentPreRunE before any
// subcommand runs.
var (
	appConfig *config.MainConfig
	logger    *slog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "govfin",
	Short: "govfin - State and local government finance reports",
	Long: `govfin turns the Census Bureau's Annual Survey of State and Local
Government Finances into per-category expenditure and revenue reports.

It reads the published summary tables (nationwide report, State and Local
level per state) and the unit-level item records with their government
directory (local report, one file set per state), derives per-capita and
per-student metrics, and pivots every survey year into one wide report.

Example Usage:
  govfin process                         # Every configured year, both scopes
  govfin process --scope local --year 2017
  govfin query report --type expenditure --scope local --state AL
  govfin validate                        # Check configuration and inputs`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. Interrupts cancel the command context so a
// running pipeline stops between records.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// initConfig loads the configuration and builds the logger. An absent
// config.yaml is fine when --config was left at its default.
func initConfig(cmd *cobra.Command) error {
	optional := !cmd.Flags().Changed("config")

	cfg, err := config.LoadMainConfig(cfgFile, optional)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = l
	slog.SetDefault(l)
	return nil
}
