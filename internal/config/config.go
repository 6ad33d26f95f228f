// =============================================================================
// govfin - Configuration Module
// =============================================================================
//
// This module loads the main application configuration.
//
// SOURCES (later wins):
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. config.yaml
//   3. Environment variables prefixed GOVFIN_ (e.g. GOVFIN_OUTPUT_DIR)
//
// Year layouts and the category taxonomy have their own optional override
// files (profiles.yaml, taxonomy.yaml); this file only points at them.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "GOVFIN"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir holds the survey extracts and supporting spreadsheets.
	// Default: "./input"
	InputDir string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`

	// OutputDir receives report artifacts, the run summary and error logs.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`

	// ArchiveDir receives the previous version of every overwritten
	// artifact. Empty disables archiving.
	// Default: "./output_archive"
	ArchiveDir string `yaml:"archive_dir" envconfig:"ARCHIVE_DIR"`

	// ArchiveRetention removes archived artifacts older than this at the end
	// of a run. Zero keeps everything.
	ArchiveRetention time.Duration `yaml:"archive_retention" envconfig:"ARCHIVE_RETENTION" validate:"min=0"`

	// UseTimestampSubdirs archives under YYYY/MM/DD/<run id>.
	UseTimestampSubdirs bool `yaml:"use_timestamp_subdirs" envconfig:"USE_TIMESTAMP_SUBDIRS"`

	// DatabasePath is the SQLite report store. Empty disables the store.
	// Default: "./output/govfin.db"
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH"`

	// =========================================================================
	// YEARS
	// =========================================================================

	// StateYears selects the survey years of the nationwide report.
	// Default: every year with a profile.
	StateYears []int `yaml:"state_years" envconfig:"STATE_YEARS" validate:"dive,min=1990,max=2100"`

	// LocalYears selects the survey years of the local reports.
	// Default: every year whose profile lists unit-level files.
	LocalYears []int `yaml:"local_years" envconfig:"LOCAL_YEARS" validate:"dive,min=1990,max=2100"`

	// =========================================================================
	// SUPPORTING FILES (relative to InputDir unless absolute)
	// =========================================================================

	MethodologyFile string `yaml:"methodology_file" envconfig:"METHODOLOGY_FILE" validate:"required"`
	PopulationFile  string `yaml:"population_file" envconfig:"POPULATION_FILE" validate:"required"`
	CityNamesFile   string `yaml:"city_names_file" envconfig:"CITY_NAMES_FILE"`

	// ProfilesFile and TaxonomyFile are optional overrides of the built-in
	// year profiles and category taxonomy.
	ProfilesFile string `yaml:"profiles_file" envconfig:"PROFILES_FILE"`
	TaxonomyFile string `yaml:"taxonomy_file" envconfig:"TAXONOMY_FILE"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// Formats lists the artifact formats: csv, xlsx, xml.
	// Default: ["csv", "xlsx"]
	Formats []string `yaml:"formats" envconfig:"FORMATS" validate:"min=1,dive,oneof=csv xlsx xml"`

	// TitleCaseNames renders directory names in title case
	// ("BIRMINGHAM" -> "Birmingham").
	TitleCaseNames bool `yaml:"title_case_names" envconfig:"TITLE_CASE_NAMES"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=text json"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the number of years (and states) processed
	// concurrently. Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1,max=64"`

	// ContinueOnError keeps processing the other years when one year fails.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error" envconfig:"CONTINUE_ON_ERROR"`

	// StrictValidation withholds a report on validation warnings as well
	// as errors. Reports with validation errors are never written.
	StrictValidation bool `yaml:"strict_validation" envconfig:"STRICT_VALIDATION"`

	// =========================================================================
	// QUERY CACHE AND METRICS
	// =========================================================================

	// RedisAddr enables the query cache when set (host:port).
	RedisAddr string `yaml:"redis_addr" envconfig:"REDIS_ADDR" validate:"omitempty,hostname_port"`

	// CacheTTL is the lifetime of cached query results.
	// Default: 10m
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" validate:"min=0"`

	// MetricsFile receives the run metrics in Prometheus text format.
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration used when no config file exists.
func Default() *MainConfig {
	config := &MainConfig{ContinueOnError: true}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration from a YAML file and the
// environment.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file is
//     not an error when optional is true; defaults and the environment apply.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or the result is invalid.
func LoadMainConfig(configPath string, optional bool) (*MainConfig, error) {
	config := &MainConfig{ContinueOnError: true}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = "./output_archive"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "./output/govfin.db"
	}
	if config.MethodologyFile == "" {
		config.MethodologyFile = "methodology_for_summary_tabulations.xlsx"
	}
	if config.PopulationFile == "" {
		config.PopulationFile = "nst-est2019-01.xlsx"
	}
	if config.CityNamesFile == "" {
		config.CityNamesFile = "city_names.xlsx"
	}
	if len(config.Formats) == 0 {
		config.Formats = []string{"csv", "xlsx"}
	}
	for i, f := range config.Formats {
		config.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	config.LogLevel = strings.ToLower(config.LogLevel)
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	config.LogFormat = strings.ToLower(config.LogFormat)
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}
}

var validate = validator.New()

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
