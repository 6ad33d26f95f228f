// Package observability exposes the Prometheus collectors of a pipeline run.
// A batch run has no /metrics endpoint; the registry is written once at the
// end of the run in text format for the node-exporter textfile collector.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the run collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	parsed      *prometheus.CounterVec
	malformed   *prometheus.CounterVec
	missing     *prometheus.CounterVec
	yearRuns    *prometheus.CounterVec
	stageTiming *prometheus.HistogramVec
	artifacts   *prometheus.CounterVec
}

// NewMetrics builds and registers the run collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	parsed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govfin_records_parsed_total",
		Help: "Unit records parsed, by survey year.",
	}, []string{"year"})
	malformed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govfin_records_malformed_total",
		Help: "Unit records skipped as malformed, by survey year.",
	}, []string{"year"})
	missing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govfin_missing_entities_total",
		Help: "Aggregated entities without a directory profile, by survey year.",
	}, []string{"year"})
	yearRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govfin_year_runs_total",
		Help: "Per-year pipeline tasks partitioned by scope and status.",
	}, []string{"scope", "status"})
	stageTiming := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govfin_stage_duration_seconds",
		Help:    "Duration in seconds of pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	artifacts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govfin_artifacts_written_total",
		Help: "Report artifacts written, by format.",
	}, []string{"format"})
	registry.MustRegister(parsed, malformed, missing, yearRuns, stageTiming, artifacts)

	return &Metrics{
		registry:    registry,
		parsed:      parsed,
		malformed:   malformed,
		missing:     missing,
		yearRuns:    yearRuns,
		stageTiming: stageTiming,
		artifacts:   artifacts,
	}
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// AddRecords records the parse counts of one survey year.
func (m *Metrics) AddRecords(year, parsed, malformed int) {
	if m == nil {
		return
	}
	y := strconv.Itoa(year)
	m.parsed.WithLabelValues(y).Add(float64(parsed))
	m.malformed.WithLabelValues(y).Add(float64(malformed))
}

// AddMissingEntities records entities that had no profile.
func (m *Metrics) AddMissingEntities(year, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.missing.WithLabelValues(strconv.Itoa(year)).Add(float64(count))
}

// AddArtifacts counts written artifacts of a format.
func (m *Metrics) AddArtifacts(format string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.artifacts.WithLabelValues(format).Add(float64(count))
}

// YearRun counts one finished per-year task.
func (m *Metrics) YearRun(scope string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.yearRuns.WithLabelValues(scope, status).Inc()
}

// WriteTextfile writes the registry in Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Tracker times one pipeline stage.
type Tracker struct {
	metrics *Metrics
	stage   string
	start   time.Time
}

// Track starts timing a stage.
func (m *Metrics) Track(stage string) *Tracker {
	return &Tracker{metrics: m, stage: stage, start: time.Now()}
}

// End records the stage duration and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.stage == "" {
		return err
	}
	t.metrics.stageTiming.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())
	return err
}
