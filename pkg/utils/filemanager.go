// =============================================================================
// govfin - File Manager Utility
// =============================================================================
//
// File management for a pipeline run:
//   - Input file resolution and presence checks
//   - Output directory management and atomic artifact writes
//   - Archival of the previous run's artifacts before they are replaced
//   - Run summary and error log generation
//
// ARCHIVAL STRATEGY:
//   - An artifact about to be overwritten is copied to
//     <archive>/<run id>/<relative path> first
//   - Archives older than the retention window are removed
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a pipeline run.
type FileManager struct {
	// InputDir holds the survey files.
	InputDir string

	// OutputDir receives the report artifacts and run logs.
	OutputDir string

	// ArchiveDir receives copies of replaced artifacts. Empty disables
	// archival.
	ArchiveDir string

	// RunID names the archive subdirectory of this run.
	RunID string

	// UseTimestampSubdirs nests archives under YYYY/MM/DD.
	UseTimestampSubdirs bool
}

// NewFileManager creates a FileManager for one run.
func NewFileManager(inputDir, outputDir, archiveDir, runID string) *FileManager {
	return &FileManager{
		InputDir:   inputDir,
		OutputDir:  outputDir,
		ArchiveDir: archiveDir,
		RunID:      runID,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.ArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// INPUT FILES
// =============================================================================

// InputPath resolves a file name against the input directory. Absolute
// paths are returned unchanged.
func (fm *FileManager) InputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(fm.InputDir, name)
}

// MissingInputs returns the names that do not resolve to an existing file,
// sorted.
func (fm *FileManager) MissingInputs(names ...string) []string {
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if !FileExists(fm.InputPath(name)) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// =============================================================================
// OUTPUT FILES
// =============================================================================

// OutputPath joins path elements under the output directory.
func (fm *FileManager) OutputPath(elem ...string) string {
	return filepath.Join(append([]string{fm.OutputDir}, elem...)...)
}

// WriteFileAtomic writes a file through a temporary sibling and renames it
// into place, so readers never see a partial artifact. An existing file is
// archived first.
func (fm *FileManager) WriteFileAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filepath.Base(path), err)
	}

	if FileExists(path) {
		if _, err := fm.ArchiveOutputFile(path); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveOutputFile copies an output file to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived copy, or filePath when archival is off.
//   - An error if archival fails.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if fm.ArchiveDir == "" {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}
	return archivePath, nil
}

// getArchivePath keeps the file's path relative to the output directory.
func (fm *FileManager) getArchivePath(filePath string) string {
	rel, err := filepath.Rel(fm.OutputDir, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(filePath)
	}

	dir := fm.ArchiveDir
	if fm.UseTimestampSubdirs {
		now := time.Now()
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}
	if fm.RunID != "" {
		dir = filepath.Join(dir, fm.RunID)
	}
	return filepath.Join(dir, rel)
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	Year         int
	Scope        string
	ReportType   string
	FileName     string
	ErrorType    string
	ErrorMessage string
	LineNumber   int
	EntityID     string
}

// WriteErrorLog writes error entries to error_log_<timestamp>.txt in the
// output directory. Nothing is written for an empty list.
//
// RETURNS:
//   - The path to the error log file, empty when nothing was written.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", timestamp))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "govfin - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"%s\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		len(entries),
		rule)

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n", i+1)
		fmt.Fprintf(writer, "  Timestamp:   %s\n", entry.Timestamp.Format("2006-01-02 15:04:05"))
		if entry.Year > 0 {
			fmt.Fprintf(writer, "  Year:        %d\n", entry.Year)
		}
		if entry.Scope != "" {
			fmt.Fprintf(writer, "  Scope:       %s\n", entry.Scope)
		}
		if entry.ReportType != "" {
			fmt.Fprintf(writer, "  Report:      %s\n", entry.ReportType)
		}
		if entry.FileName != "" {
			fmt.Fprintf(writer, "  File:        %s\n", entry.FileName)
		}
		fmt.Fprintf(writer, "  Error Type:  %s\n", entry.ErrorType)
		fmt.Fprintf(writer, "  Message:     %s\n", entry.ErrorMessage)
		if entry.LineNumber > 0 {
			fmt.Fprintf(writer, "  Line Number: %d\n", entry.LineNumber)
		}
		if entry.EntityID != "" {
			fmt.Fprintf(writer, "  Entity:      %s\n", entry.EntityID)
		}
		writer.WriteString("\n")
	}

	writer.WriteString(rule + "\nEnd of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

const rule = "================================================================================"

// ProcessingSummary contains summary information about a pipeline run.
type ProcessingSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	Years     []YearSummary
	Artifacts []ArtifactInfo

	ValidationErrors int
}

// YearSummary describes the outcome of one (year, scope) task.
type YearSummary struct {
	Year            int
	Scope           string
	Status          string
	Records         int
	Malformed       int
	MissingEntities int
	ZeroDropped     int
	Rows            int
	Duration        time.Duration
	Error           string
}

// ArtifactInfo describes one written report artifact.
type ArtifactInfo struct {
	Path   string
	Format string
	Rows   int
}

// Failed returns the number of failed year tasks.
func (s ProcessingSummary) Failed() int {
	n := 0
	for _, y := range s.Years {
		if y.Error != "" {
			n++
		}
	}
	return n
}

// WriteSummaryLog writes processing_summary_<timestamp>.txt to the output
// directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "govfin - Processing Summary\n"+
		"%s\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Year Tasks:         %d\n"+
		"  Failed:             %d\n"+
		"  Artifacts:          %d\n"+
		"  Validation Errors:  %d\n\n",
		rule,
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		len(summary.Years),
		summary.Failed(),
		len(summary.Artifacts),
		summary.ValidationErrors)

	if len(summary.Years) > 0 {
		writer.WriteString("Years:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, y := range summary.Years {
			fmt.Fprintf(writer, "  %d %-6s %s\n", y.Year, y.Scope, y.Status)
			fmt.Fprintf(writer, "    Records:          %d\n", y.Records)
			fmt.Fprintf(writer, "    Malformed:        %d\n", y.Malformed)
			fmt.Fprintf(writer, "    Missing Entities: %d\n", y.MissingEntities)
			fmt.Fprintf(writer, "    Zero Dropped:     %d\n", y.ZeroDropped)
			fmt.Fprintf(writer, "    Rows:             %d\n", y.Rows)
			fmt.Fprintf(writer, "    Process Time:     %s\n", y.Duration.String())
			if y.Error != "" {
				fmt.Fprintf(writer, "    Error:            %s\n", y.Error)
			}
			writer.WriteString("\n")
		}
	}

	if len(summary.Artifacts) > 0 {
		writer.WriteString("Artifacts:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, a := range summary.Artifacts {
			fmt.Fprintf(writer, "  %-5s %6d rows  %s\n", a.Format, a.Rows, a.Path)
		}
		writer.WriteString("\n")
	}

	writer.WriteString(rule + "\nEnd of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// CleanOldArchives removes archive files older than maxAge.
//
// RETURNS:
//   - The number of files removed.
//   - An error if cleaning fails.
func CleanOldArchives(archiveDir string, maxAge time.Duration) (int, error) {
	if archiveDir == "" || !FileExists(archiveDir) {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.Walk(archiveDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to clean archives: %w", err)
	}
	return removed, nil
}
