// =============================================================================
// FBR Invoicer - File Manager Utility
// =============================================================================
//
// This module handles the files around a processing run:
//   - Finding invoice sheets in the input directory
//   - Moving processed sheets into the input archive
//   - Naming payload files
//   - Writing the row error log and the run summary
//   - Pruning old archives
//
// ARCHIVAL STRATEGY:
//   - A sheet is archived only when every row normalized and, if requested,
//     every submission succeeded
//   - An archived file that would overwrite an older one gets a timestamp
//     suffix instead
//   - Failed sheets stay in the input directory for the next run
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InputExtensions are the sheet formats picked up from the input directory.
var InputExtensions = []string{".xlsx", ".xlsm", ".xls", ".csv"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager owns the input, output and archive directories of a run.
type FileManager struct {
	InputDir         string
	OutputDir        string
	InputArchiveDir  string
	OutputArchiveDir string

	// UseDateSubdirs archives into <archive>/YYYY/MM/DD/.
	UseDateSubdirs bool

	now func() time.Time
}

// NewFileManager creates a FileManager over the given directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		now:              time.Now,
	}
}

// EnsureDirectories creates every configured directory.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the invoice sheets directly inside InputDir,
// sorted by name. Office lock files ("~$...") are skipped.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if IsInputFile(e.Name()) {
			files = append(files, filepath.Join(fm.InputDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// IsInputFile reports whether name has one of InputExtensions.
func IsInputFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range InputExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves filePath into InputArchiveDir and returns the new
// path.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.archivePath(fm.InputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves need a copy.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}
	return archivePath, nil
}

func (fm *FileManager) archivePath(archiveDir, filePath string) string {
	now := fm.now()
	dir := archiveDir
	if fm.UseDateSubdirs {
		dir = filepath.Join(archiveDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	}

	name := filepath.Base(filePath)
	target := filepath.Join(dir, name)
	if FileExists(target) {
		ext := filepath.Ext(name)
		target = filepath.Join(dir, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), now.Format("20060102_150405"), ext))
	}
	return target
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a payload file name template.
//
// Placeholders:
//
//	{uuid}      random UUID
//	{timestamp} YYYYMMDD_HHMMSS
//	{date}      YYYYMMDD
//	{time}      HHMMSS
//	any key of params, e.g. {row}, {ntn}, {ref}
//
// Values from params are made file-name safe. The result always ends in
// ".json".
//
// Example: "invoice_{row}_{uuid}" with {"row": "3"} gives
// "invoice_3_a1b2c3d4-e5f6-7890-abcd-ef1234567890.json".
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()
	replacements := map[string]string{
		"{uuid}":      uuid.NewString(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = unsafeNameChars.ReplaceAllString(value, "_")
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	if !strings.HasSuffix(strings.ToLower(result), ".json") {
		result += ".json"
	}
	return result
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry is one failure recorded during a run.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string // read, mapping, row, validation, submission
	ErrorMessage string
	RowNumber    int
	StatusCode   int
}

// WriteErrorLog writes entries to error_log_<timestamp>.txt in outputDir.
// Nothing is written for an empty slice and the returned path is "".
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", time.Now().Format("20060102_150405")))
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "FBR Invoicer - Error Log\nGenerated: %s\nTotal Errors: %d\n%s\n\n",
		time.Now().Format("2006-01-02 15:04:05"), len(entries), rule)

	for i, e := range entries {
		fmt.Fprintf(w, "Error #%d\n", i+1)
		fmt.Fprintf(w, "  Timestamp:  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  File:       %s\n", e.FileName)
		fmt.Fprintf(w, "  Type:       %s\n", e.ErrorType)
		fmt.Fprintf(w, "  Message:    %s\n", e.ErrorMessage)
		if e.RowNumber > 0 {
			fmt.Fprintf(w, "  Row:        %d\n", e.RowNumber)
		}
		if e.StatusCode > 0 {
			fmt.Fprintf(w, "  HTTP:       %d\n", e.StatusCode)
		}
		w.WriteString("\n")
	}
	fmt.Fprintf(w, "%s\nEnd of Error Log\n", rule)

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

const rule = "================================================================================"

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary describes a whole run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalRows       int
	Invoices        int
	RowErrors       int
	Submitted       int
	SubmitFailures  int
	TotalAmount     decimal.Decimal
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo is one sheet that was read and normalized.
type ProcessedFileInfo struct {
	InputFile   string
	Sheet       string
	ReportFile  string
	ArchivePath string
	Rows        int
	Invoices    int
	Amount      decimal.Decimal
	ProcessTime time.Duration
}

// FailedFileInfo is one sheet that could not be processed.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes processing_summary_<timestamp>.txt in outputDir.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", time.Now().Format("20060102_150405")))
	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "FBR Invoicer - Processing Summary\n%s\n\n", rule)
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Start Time:       %s\n", summary.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:         %s\n", summary.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:         %s\n\n", summary.EndTime.Sub(summary.StartTime))
	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Total Files:      %d\n", summary.TotalFiles)
	fmt.Fprintf(w, "  Successful:       %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(w, "  Failed:           %d\n", summary.FailedFiles)
	fmt.Fprintf(w, "  Total Rows:       %d\n", summary.TotalRows)
	fmt.Fprintf(w, "  Invoices:         %d\n", summary.Invoices)
	fmt.Fprintf(w, "  Row Errors:       %d\n", summary.RowErrors)
	fmt.Fprintf(w, "  Submitted:        %d\n", summary.Submitted)
	fmt.Fprintf(w, "  Submit Failures:  %d\n", summary.SubmitFailures)
	fmt.Fprintf(w, "  Total Amount:     %s\n\n", summary.TotalAmount.StringFixed(2))

	if len(summary.ProcessedFiles) > 0 {
		fmt.Fprintf(w, "Processed Files:\n%s\n", strings.Repeat("-", len(rule)))
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(w, "  Sheet:        %s\n", pf.Sheet)
			if pf.ReportFile != "" {
				fmt.Fprintf(w, "  Report:       %s\n", pf.ReportFile)
			}
			if pf.ArchivePath != "" {
				fmt.Fprintf(w, "  Archived To:  %s\n", pf.ArchivePath)
			}
			fmt.Fprintf(w, "  Rows:         %d\n", pf.Rows)
			fmt.Fprintf(w, "  Invoices:     %d\n", pf.Invoices)
			fmt.Fprintf(w, "  Amount:       %s\n", pf.Amount.StringFixed(2))
			fmt.Fprintf(w, "  Process Time: %s\n\n", pf.ProcessTime)
		}
	}

	if len(summary.FailedFilesList) > 0 {
		fmt.Fprintf(w, "Failed Files:\n%s\n", strings.Repeat("-", len(rule)))
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}
	fmt.Fprintf(w, "%s\nEnd of Summary\n", rule)

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// CleanOldArchives removes regular files under archiveDir last modified
// more than maxAge ago and returns how many were removed.
func CleanOldArchives(archiveDir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(archiveDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
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
