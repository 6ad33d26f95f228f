package observability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewMetrics()
	m.AddRecords(2017, 10, 2)
	m.AddRecords(2017, 5, 0)
	m.AddMissingEntities(2017, 3)
	m.AddMissingEntities(2016, 0)
	m.AddArtifacts("csv", 4)
	m.YearRun("local", nil)
	m.YearRun("local", errors.New("boom"))

	assert.Equal(t, 15.0, testutil.ToFloat64(m.parsed.WithLabelValues("2017")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.malformed.WithLabelValues("2017")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.missing.WithLabelValues("2017")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.artifacts.WithLabelValues("csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.yearRuns.WithLabelValues("local", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.yearRuns.WithLabelValues("local", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.missing))
}

func TestTrackerAndTextfile(t *testing.T) {
	m := NewMetrics()
	err := errors.New("stage failed")
	assert.Same(t, err, m.Track("ingest").End(err))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageTiming))

	path := filepath.Join(t.TempDir(), "govfin.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `govfin_stage_duration_seconds_count{stage="ingest"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.AddRecords(2017, 1, 1)
	m.YearRun("state", nil)
	assert.NoError(t, m.Track("x").End(nil))
	assert.NoError(t, m.WriteTextfile("ignored"))
}
