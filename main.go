// =============================================================================
// TNS AT Report Builder - Main Entry Point
// =============================================================================
//
// This is the main entry point for the TNS AT Report Builder CLI. It
// delegates command execution to the cmd package.
//
// USAGE:
//   tnsreport CATALOG OUTPUT        - Convert a catalog to a TNS AT report
//   tnsreport validate CATALOG      - Check a catalog without writing output
//   tnsreport version               - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core logic (dictionary, catalog, validation, report, writer)
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/tns-at-report/cmd"
)

func main() {
	cmd.Execute()
}
