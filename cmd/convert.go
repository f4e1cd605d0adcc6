// =============================================================================
// TNS AT Report Builder - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which is the main command for
// turning a catalog into a TNS bulk report. The root command runs the same
// code when given two arguments.
//
// COMMAND USAGE:
//   tnsreport convert CATALOG OUTPUT [flags]
//
// FLAGS:
//   --format     : Catalog format (auto, csv, tsv, pipe, whitespace, xlsx)
//   --delimiter  : Field delimiter for csv catalogs
//   --sheet      : Worksheet to read from a workbook
//   --strict     : Treat validation warnings as errors
//   --fail-fast  : Stop validation at the first error
//   --progress   : Show a progress bar while building entries
//   --error-log  : Write validation findings to this file on failure
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/tns-at-report/internal/converter"
	"github.com/ginjaninja78/tns-at-report/internal/validation"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// catalogFormat overrides catalog.format.
var catalogFormat string

// delimiter overrides catalog.delimiter.
var delimiter string

// sheet overrides catalog.sheet.
var sheet string

// strict overrides validation.strict when set.
var strict bool

// failFast overrides validation.stop_on_first_error when set.
var failFast bool

// showProgress draws a progress bar on stderr.
var showProgress bool

// errorLogPath receives the findings of a failed run.
var errorLogPath string

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert CATALOG OUTPUT",
	Short: "Convert a transient catalog to a TNS AT report",
	Long: `The convert command reads the catalog, validates every row, builds one
TNS AT report entry per row and writes the bulk report JSON to OUTPUT.

Any problem aborts the run before OUTPUT is touched:
  - The dictionary cannot be loaded
  - The catalog cannot be read or has no rows
  - A row fails validation (all findings are listed)
  - A label is not found in the dictionary`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	addConvertFlags(convertCmd)
}

// addConvertFlags registers the catalog and output flags on c.
func addConvertFlags(c *cobra.Command) {
	addCatalogFlags(c)
	c.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar while building entries")
	c.Flags().StringVar(&errorLogPath, "error-log", "", "Write findings to this file when the run fails")
}

// addCatalogFlags registers the flags that control catalog reading.
func addCatalogFlags(c *cobra.Command) {
	c.Flags().StringVar(&catalogFormat, "format", "", "Catalog format: auto, csv, tsv, pipe, whitespace, xlsx")
	c.Flags().StringVar(&delimiter, "delimiter", "", "Field delimiter for csv catalogs")
	c.Flags().StringVar(&sheet, "sheet", "", "Worksheet to read from a workbook (default is the first)")
	c.Flags().BoolVar(&strict, "strict", false, "Treat validation warnings as errors")
	c.Flags().BoolVar(&failFast, "fail-fast", false, "Stop validation at the first error")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runConvert converts catalogPath into a report at outputPath.
func runConvert(cmd *cobra.Command, catalogPath, outputPath string) error {
	if err := applyCatalogFlags(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== TNS AT Report Builder ===")
	fmt.Fprintf(out, "Dictionary: %s\n", cfg.DictionaryFile)
	fmt.Fprintf(out, "Catalog:    %s\n", catalogPath)

	options := converter.Options{
		CatalogPath:  catalogPath,
		OutputPath:   outputPath,
		ErrorLogPath: errorLogPath,
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		options.Progress = func(done, total int) {
			if bar == nil {
				bar = newProgressBar(cmd.ErrOrStderr(), total)
			}
			_ = bar.Set(done)
		}
	}

	result := converter.New(cfg, options, slog.Default()).Run(cmd.Context())
	if bar != nil {
		_ = bar.Finish()
	}

	if result.Error != nil {
		return result.Error
	}

	printSummary(out, result)
	return nil
}

// applyCatalogFlags copies the catalog flags onto the configuration.
func applyCatalogFlags() error {
	if catalogFormat != "" {
		cfg.Catalog.Format = catalogFormat
	}
	if delimiter != "" {
		cfg.Catalog.Delimiter = delimiter
	}
	if sheet != "" {
		cfg.Catalog.Sheet = sheet
	}
	if strict {
		cfg.Validation.Strict = true
	}
	if failFast {
		cfg.Validation.StopOnFirstError = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Building entries"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// printFindings lists validation findings, warnings included.
func printFindings(w io.Writer, findings []*validation.ValidationError) {
	if len(findings) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, validation.FormatErrors(findings))
}

func printSummary(w io.Writer, result converter.Result) {
	stats := result.Stats

	fmt.Fprintln(w, "\n=== Processing Complete ===")
	fmt.Fprintf(w, "Rows:              %d\n", stats.RowsProcessed)
	fmt.Fprintf(w, "Entries:           %d\n", stats.EntriesCreated)
	fmt.Fprintf(w, "Photometry points: %d\n", stats.PhotometryPoints)
	fmt.Fprintf(w, "Unlisted filters:  %d\n", stats.UnlistedFilters)
	fmt.Fprintf(w, "Warnings:          %d\n", stats.ValidationWarnings)
	if result.OutputFile != "" {
		fmt.Fprintf(w, "Output:            %s (%d bytes)\n", result.OutputFile, stats.BytesWritten)
	}
	fmt.Fprintf(w, "Time elapsed:      %s\n", stats.ProcessingTime)
}
