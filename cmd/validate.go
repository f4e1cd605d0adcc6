// =============================================================================
// TNS AT Report Builder - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It runs the whole pipeline,
// including building every entry, but writes no report. Use it to check a
// catalog against the dictionary before submitting.
//
// COMMAND USAGE:
//   tnsreport validate CATALOG [flags]
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/tns-at-report/internal/converter"
)

var validateCmd = &cobra.Command{
	Use:   "validate CATALOG",
	Short: "Check a catalog without writing a report",
	Long: `The validate command reads the catalog, checks every row and builds every
report entry exactly like convert, then prints all findings. No report is
written. The command fails if any error-severity finding is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addCatalogFlags(validateCmd)
	validateCmd.Flags().StringVar(&errorLogPath, "error-log", "", "Write findings to this file when validation fails")
}

func runValidate(cmd *cobra.Command, catalogPath string) error {
	if err := applyCatalogFlags(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s against %s\n", catalogPath, cfg.DictionaryFile)

	result := converter.New(cfg, converter.Options{
		CatalogPath:  catalogPath,
		ErrorLogPath: errorLogPath,
	}, slog.Default()).Run(cmd.Context())

	printFindings(out, result.Findings)

	if result.Error != nil {
		return result.Error
	}

	fmt.Fprintf(out, "Catalog is valid: %d row(s), %d warning(s)\n",
		result.Stats.RowsProcessed, result.Stats.ValidationWarnings)
	return nil
}
