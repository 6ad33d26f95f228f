package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicArchivesPrevious(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "in"), filepath.Join(root, "out"), filepath.Join(root, "archive"), "run-1")
	require.NoError(t, fm.EnsureDirectories())

	path := fm.OutputPath("local", "AL", "local_revenue_AL.csv")
	write := func(s string) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := io.WriteString(w, s)
			return err
		}
	}

	require.NoError(t, fm.WriteFileAtomic(path, write("first")))
	require.NoError(t, fm.WriteFileAtomic(path, write("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	archived, err := os.ReadFile(filepath.Join(root, "archive", "run-1", "local", "AL", "local_revenue_AL.csv"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(archived))

	// a failing writer leaves the existing file alone
	err = fm.WriteFileAtomic(path, func(io.Writer) error { return errors.New("boom") })
	require.Error(t, err)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestMissingInputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "17slsstab1a.xlsx"), nil, 0o644))

	fm := NewFileManager(dir, t.TempDir(), "", "")
	assert.Equal(t, []string{"17slsstab1b.xlsx"}, fm.MissingInputs("17slsstab1a.xlsx", "17slsstab1b.xlsx", ""))
	assert.Equal(t, "/abs/file", fm.InputPath("/abs/file"))
}

func TestSummaryAndErrorLogs(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	summary := ProcessingSummary{
		RunID:     "run-1",
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
		Years: []YearSummary{
			{Year: 2017, Scope: "local", Status: "ok", Records: 10, Rows: 4},
			{Year: 2011, Scope: "local", Status: "failed", Error: "unsupported survey year 2011"},
		},
		Artifacts: []ArtifactInfo{{Path: "state_revenue.csv", Format: "csv", Rows: 8}},
	}
	assert.Equal(t, 1, summary.Failed())

	path, err := WriteSummaryLog(summary, dir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Run ID:         run-1")
	assert.Contains(t, string(data), "unsupported survey year 2011")
	assert.Contains(t, string(data), "state_revenue.csv")

	logPath, err := WriteErrorLog(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, logPath)

	logPath, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    start,
		Year:         2017,
		FileName:     "2017FinEstDAT_06052020modp_pu.txt",
		ErrorType:    "malformed_record",
		ErrorMessage: "amount is not an integer",
		LineNumber:   12,
	}}, dir)
	require.NoError(t, err)
	data, err = os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Line Number: 12")
}

func TestCleanOldArchives(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.csv")
	fresh := filepath.Join(dir, "fresh.csv")
	require.NoError(t, os.WriteFile(old, nil, 0o644))
	require.NoError(t, os.WriteFile(fresh, nil, 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	removed, err := CleanOldArchives(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, FileExists(fresh))
	assert.False(t, FileExists(old))

	removed, err = CleanOldArchives("", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
