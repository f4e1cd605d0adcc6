// =============================================================================
// TNS AT Report Builder - File Utilities
// =============================================================================
//
// This module provides the file handling the converter needs:
//   - Atomic output files (write to a temp file, rename into place)
//   - Directory management
//   - Error log generation for failed validation runs
//
// ATOMIC WRITES:
//   The report is written to a uniquely named temp file next to the
//   destination. Only a fully written, synced file is renamed over the
//   destination, so a failed or interrupted run never leaves a truncated
//   report behind.
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ATOMIC FILE
// =============================================================================

// AtomicFile is a temp file that replaces its destination on Commit.
type AtomicFile struct {
	*os.File

	// Path is the final destination.
	Path string

	done bool
}

// CreateAtomic creates a temp file in the destination's directory. The
// directory is created if needed.
//
// PARAMETERS:
//   - path: The final destination of the file.
//
// RETURNS:
//   - The open temp file. Callers must end with Commit or Abort.
//   - An error if the directory or temp file cannot be created.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &AtomicFile{File: f, Path: path}, nil
}

// Commit syncs and closes the temp file and renames it to Path.
func (a *AtomicFile) Commit() error {
	if a.done {
		return errors.New("atomic file already finished")
	}
	a.done = true

	if err := a.File.Sync(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to sync %s: %w", a.Path, err)
	}
	if err := a.File.Close(); err != nil {
		os.Remove(a.File.Name())
		return fmt.Errorf("failed to close %s: %w", a.Path, err)
	}
	if err := os.Rename(a.File.Name(), a.Path); err != nil {
		os.Remove(a.File.Name())
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	return nil
}

// Abort closes and removes the temp file. It is a no-op after Commit, so it
// can be deferred unconditionally.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.cleanup()
}

func (a *AtomicFile) cleanup() {
	a.File.Close()
	os.Remove(a.File.Name())
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDir creates dir and its parents if they don't exist.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp  time.Time
	FileName   string
	Severity   string
	Rule       string
	Message    string
	RowNumber  int
	LineNumber int
	FieldName  string
	FieldValue string
}

// WriteErrorLog writes error entries to path, replacing any previous log.
//
// PARAMETERS:
//   - entries: The error entries to write.
//   - path: The log file to write.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, path string) error {
	file, err := CreateAtomic(path)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Abort()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "TNS AT Report Builder - Error Log\n"+
		"Generated: %s\n"+
		"Total Findings: %d\n"+
		"================================================================================\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Finding #%d\n"+
			"  Timestamp:  %s\n"+
			"  File:       %s\n"+
			"  Severity:   %s\n"+
			"  Message:    %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.Severity,
			entry.Message)

		if entry.Rule != "" {
			fmt.Fprintf(writer, "  Rule:       %s\n", entry.Rule)
		}
		if entry.RowNumber >= 0 && entry.LineNumber > 0 {
			fmt.Fprintf(writer, "  Row:        %d (line %d)\n", entry.RowNumber, entry.LineNumber)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:      %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:      %s\n", entry.FieldValue)
		}

		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush error log: %w", err)
	}

	return file.Commit()
}
