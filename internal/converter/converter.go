// =============================================================================
// TNS AT Report Builder - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It orchestrates the whole
// pipeline for a single catalog, from reading the dictionary to writing the
// report file.
//
// CONVERSION PIPELINE:
//   1. Load the TNS dictionary (values.json)
//   2. Read the input catalog
//   3. Validate the catalog
//   4. Build one report entry per row
//   5. Write the report document
//
// Any failure aborts the run. The output file is written atomically, so an
// aborted run never leaves a partial report behind.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/tns-at-report/internal/catalog"
	"github.com/ginjaninja78/tns-at-report/internal/config"
	"github.com/ginjaninja78/tns-at-report/internal/dictionary"
	"github.com/ginjaninja78/tns-at-report/internal/jsonwriter"
	"github.com/ginjaninja78/tns-at-report/internal/report"
	"github.com/ginjaninja78/tns-at-report/internal/types"
	"github.com/ginjaninja78/tns-at-report/internal/validation"
	"github.com/ginjaninja78/tns-at-report/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single catalog.
type Result struct {
	// RunID identifies the run in log output.
	RunID string

	// CatalogPath is the path to the input catalog.
	CatalogPath string

	// OutputFile is the path to the written report.
	// This is empty if processing failed or nothing was written.
	OutputFile string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Findings holds every validation finding, warnings included.
	Findings []*validation.ValidationError

	// Document is the built report. It is nil if the build failed.
	Document *types.Document

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsProcessed is the number of catalog rows read.
	RowsProcessed int

	// EntriesCreated is the number of report entries built.
	EntriesCreated int

	// PhotometryPoints is the number of photometry points across all entries.
	PhotometryPoints int

	// UnlistedFilters is the number of photometry points whose filter was
	// reported as "Other".
	UnlistedFilters int

	// ValidationErrors is the number of error-severity findings.
	ValidationErrors int

	// ValidationWarnings is the number of warnings.
	ValidationWarnings int

	// BytesWritten is the size of the report file.
	BytesWritten int64

	// ProcessingTime is the time taken to process the catalog.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options selects what a run does beyond building the report.
type Options struct {
	// CatalogPath is the input catalog.
	CatalogPath string

	// OutputPath is the report file. When empty the run validates and
	// builds but writes nothing.
	OutputPath string

	// ErrorLogPath, when set, receives the findings of a failed run.
	ErrorLogPath string

	// Progress, when set, is called after each row is built.
	Progress func(done, total int)
}

// Converter runs the pipeline for one catalog.
type Converter struct {
	cfg     *config.Config
	options Options
	logger  *slog.Logger
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - cfg: The application configuration.
//   - options: Input and output paths for this run.
//   - logger: Destination for progress and warnings. nil discards.
//
// RETURNS:
//   - A new Converter instance.
func New(cfg *config.Config, options Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Converter{cfg: cfg, options: options, logger: logger}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline.
//
// RETURNS:
//   - A Result struct containing the outcome of the processing. Result.Error
//     is set on failure; nothing is written in that case.
func (c *Converter) Run(ctx context.Context) (result Result) {
	startTime := time.Now()
	result = Result{
		RunID:       uuid.New().String(),
		CatalogPath: c.options.CatalogPath,
	}
	logger := c.logger.With("run_id", result.RunID)

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	// =========================================================================
	// STEP 1: LOAD DICTIONARY
	// =========================================================================
	// Nothing else is touched when the dictionary cannot be loaded.

	dict, err := dictionary.Load(c.cfg.DictionaryFile)
	if err != nil {
		result.Error = err
		return result
	}
	logger.Debug("loaded dictionary", "path", c.cfg.DictionaryFile, "categories", len(dict.Categories()))

	// =========================================================================
	// STEP 2: READ CATALOG
	// =========================================================================

	table, err := catalog.Read(c.options.CatalogPath, c.cfg.Catalog)
	if err != nil {
		result.Error = err
		return result
	}

	result.Stats.RowsProcessed = len(table.Rows)
	logger.Info("read catalog",
		"path", c.options.CatalogPath,
		"format", table.Format,
		"rows", len(table.Rows),
		"columns", len(table.Columns),
	)

	// =========================================================================
	// STEP 3: VALIDATE CATALOG
	// =========================================================================
	// Every finding is collected before the run is aborted, so one pass
	// reports all problems in the catalog.

	options := validation.DefaultValidationOptions()
	options.PhotometryMarker = c.cfg.Catalog.PhotometryMarker
	options.TreatWarningsAsErrors = c.cfg.Validation.Strict
	options.StopOnFirstError = c.cfg.Validation.StopOnFirstError
	checked := validation.NewValidatorWithOptions(dict, options).ValidateTable(table)

	result.Findings = checked.Errors
	result.Stats.ValidationErrors = checked.ErrorCount
	result.Stats.ValidationWarnings = checked.WarningCount

	for _, w := range checked.Warnings() {
		logger.Warn("validation warning", "finding", w.Error())
	}

	if !checked.IsValid {
		result.Error = checked.Err()
		c.writeErrorLog(logger, checked.Errors)
		return result
	}

	// =========================================================================
	// STEP 4: BUILD REPORT
	// =========================================================================

	builder := report.NewBuilder(dict, report.Options{
		PhotometryMarker: c.cfg.Catalog.PhotometryMarker,
		Logger:           logger,
		Progress:         c.options.Progress,
	})

	doc, err := builder.BuildDocument(ctx, table)
	if err != nil {
		result.Error = fmt.Errorf("failed to build report: %w", err)
		c.writeErrorLog(logger, []*validation.ValidationError{buildFinding(err)})
		return result
	}

	result.Document = doc
	c.countEntries(&result.Stats, doc)

	// =========================================================================
	// STEP 5: WRITE OUTPUT FILE
	// =========================================================================

	if c.options.OutputPath == "" {
		result.Success = true
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	n, err := jsonwriter.WriteFile(c.options.OutputPath, doc, jsonwriter.GenerateOptions{
		Indent:     c.cfg.Output.Indent,
		EscapeHTML: c.cfg.Output.EscapeHTML,
	})
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return result
	}

	result.OutputFile = c.options.OutputPath
	result.Stats.BytesWritten = n
	result.Success = true

	logger.Info("wrote report",
		"path", c.options.OutputPath,
		"entries", result.Stats.EntriesCreated,
		"bytes", n,
	)

	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (c *Converter) countEntries(stats *ProcessingStats, doc *types.Document) {
	stats.EntriesCreated = len(doc.ATReport)
	for _, entry := range doc.ATReport {
		stats.PhotometryPoints += len(entry.Photometry)
		for _, p := range entry.Photometry {
			if p.FilterID == dictionary.UnlistedFilter {
				stats.UnlistedFilters++
			}
		}
	}
}

// writeErrorLog writes findings to the configured error log. Failing to
// write the log is logged, not returned; the run has already failed.
func (c *Converter) writeErrorLog(logger *slog.Logger, findings []*validation.ValidationError) {
	if c.options.ErrorLogPath == "" {
		return
	}

	now := time.Now()
	fileName := filepath.Base(c.options.CatalogPath)
	entries := make([]utils.ErrorLogEntry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:  now,
			FileName:   fileName,
			Severity:   f.Severity,
			Rule:       f.Rule,
			Message:    f.Message,
			RowNumber:  f.Row,
			LineNumber: f.Line,
			FieldName:  f.Field,
			FieldValue: f.Value,
		})
	}

	if err := utils.WriteErrorLog(entries, c.options.ErrorLogPath); err != nil {
		logger.Error("failed to write error log", "path", c.options.ErrorLogPath, "error", err)
		return
	}
	logger.Info("wrote error log", "path", c.options.ErrorLogPath, "findings", len(entries))
}

// buildFinding turns a build failure into a finding for the error log.
func buildFinding(err error) *validation.ValidationError {
	finding := &validation.ValidationError{
		Severity: validation.SeverityError,
		Row:      -1,
		Rule:     "build",
		Message:  err.Error(),
	}

	var rowErr *report.RowError
	if errors.As(err, &rowErr) {
		finding.Row = rowErr.Row
		finding.Line = rowErr.Line
		finding.Value = rowErr.ID
		finding.Field = "ID"
		finding.Message = rowErr.Err.Error()
	}
	return finding
}
