// =============================================================================
// TNS AT Report Builder - Catalog Validation
// =============================================================================
//
// This module checks a catalog before any report entry is built, so a run
// that will fail reports every problem at once instead of stopping at the
// first bad row.
//
// CHECKS:
//   Table level:
//     - Every required column is present
//   Row level:
//     - RA and Dec are finite numbers; Dec lies in [-90, 90]
//     - Discovery (and, for Observation rows, reference) dates are valid
//     - Reference_Method is exactly "Observation" or "Archive", and the
//       columns that method needs are present and filled in
//     - Required text fields are not empty
//     - The discovery band has flux and flux error columns
//     - Labels resolve against the TNS dictionary, when one is given
//
// SEVERITY:
//   - "error"   = the run cannot produce a correct report
//   - "warning" = the report is produced, but a value is dropped or suspect
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/tns-at-report/internal/catalog"
	"github.com/ginjaninja78/tns-at-report/internal/coord"
	"github.com/ginjaninja78/tns-at-report/internal/dictionary"
	"github.com/ginjaninja78/tns-at-report/internal/report"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ErrInvalidCatalog is wrapped by ValidationResult.Err.
var ErrInvalidCatalog = errors.New("catalog failed validation")

// RequiredColumns must be present in every catalog.
var RequiredColumns = []string{
	"ID", "RA", "Dec",
	"Reporting_Group", "Data_Source", "Reporter",
	"Discovery_Year", "Discovery_Month", "Discovery_Day",
	"AT_Type", "Reference_Method",
	"Discovery_Filter", "Discovery_Instrument", "Discovery_Flux_Units",
}

// ObservationColumns are required when a row's Reference_Method is
// "Observation".
var ObservationColumns = []string{
	"Reference_Year", "Reference_Month", "Reference_Day",
	"Reference_Flux_Units", "Reference_Filter", "Reference_Instrument",
}

// ArchiveColumns are required when a row's Reference_Method is "Archive".
var ArchiveColumns = []string{"Archive", "Archival_Remark"}

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Row is the zero-based data row index, or -1 for table-level findings.
	Row int

	// Line is the 1-based source line of the row, 0 for table-level findings.
	Line int

	// Field is the column the finding is about.
	Field string

	// Value is the offending cell value.
	Value string

	// Rule names the check that failed.
	Rule string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("[%s] Column '%s': %s", strings.ToUpper(e.Severity), e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] Row %d (line %d), Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Row,
		e.Line,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no error-severity findings.
	IsValid bool

	// Errors contains all findings, warnings included, in row order.
	Errors []*ValidationError

	// ErrorCount is the number of error-severity findings.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RowsValidated is the number of rows checked.
	RowsValidated int
}

// Warnings returns the warning-severity findings.
func (r *ValidationResult) Warnings() []*ValidationError {
	return r.filter(SeverityWarning)
}

// Failures returns the error-severity findings.
func (r *ValidationResult) Failures() []*ValidationError {
	return r.filter(SeverityError)
}

func (r *ValidationResult) filter(severity string) []*ValidationError {
	var out []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// Err returns nil for a valid result, otherwise an error wrapping
// ErrInvalidCatalog that lists every error-severity finding. A result that
// only failed on warnings lists the warnings.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	findings := r.Failures()
	if len(findings) == 0 {
		findings = r.Errors
	}
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, FormatErrors(findings))
}

func (r *ValidationResult) add(e *ValidationError, options ValidationOptions) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
	if options.TreatWarningsAsErrors {
		r.IsValid = false
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first error-severity finding.
	// Default: false
	StopOnFirstError bool

	// TreatWarningsAsErrors makes warnings invalidate the result.
	// Default: false
	TreatWarningsAsErrors bool

	// PhotometryMarker identifies flux columns of additional bands.
	// Default: "_Phot"
	PhotometryMarker string
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{PhotometryMarker: "_Phot"}
}

// Validator checks catalogs.
type Validator struct {
	dict    *dictionary.Dictionary
	options ValidationOptions
}

// NewValidator creates a Validator. dict may be nil, in which case labels
// are not checked against the dictionary.
func NewValidator(dict *dictionary.Dictionary) *Validator {
	return NewValidatorWithOptions(dict, DefaultValidationOptions())
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(dict *dictionary.Dictionary, options ValidationOptions) *Validator {
	return &Validator{dict: dict, options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// ValidateTable checks the whole table. Missing required columns are
// reported on their own; row checks only run once the columns are there.
func (v *Validator) ValidateTable(table *catalog.Table) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	for _, col := range RequiredColumns {
		if !table.HasColumn(col) {
			result.add(&ValidationError{
				Severity: SeverityError,
				Row:      -1,
				Field:    col,
				Rule:     "required_column",
				Message:  "required column is missing",
			}, v.options)
		}
	}
	if !result.IsValid {
		return result
	}

	bands := table.PhotometryBands(v.options.PhotometryMarker)

	for _, row := range table.Rows {
		result.RowsValidated++

		for _, e := range v.ValidateRow(table, row, bands) {
			result.add(e, v.options)
			if v.options.StopOnFirstError && e.Severity == SeverityError {
				return result
			}
		}
	}

	return result
}

// ValidateRow checks one row. bands are the table's additional photometry
// bands as returned by Table.PhotometryBands.
func (v *Validator) ValidateRow(table *catalog.Table, row catalog.Row, bands []string) []*ValidationError {
	c := &rowChecker{table: table, row: row, dict: v.dict}

	if _, err := coord.ParseDegrees(row.String("RA")); err != nil {
		c.fail("RA", "numeric", "right ascension is not a number")
	}
	if _, err := coord.ParseDec(row.String("Dec")); err != nil {
		if errors.Is(err, coord.ErrOutOfRange) {
			c.fail("Dec", "range", "declination must lie between -90 and 90 degrees")
		} else {
			c.fail("Dec", "numeric", "declination is not a number")
		}
	}

	c.date("Discovery")

	c.resolve("Reporting_Group", dictionary.Groups)
	c.resolve("Data_Source", dictionary.Groups)
	c.required("Reporter")
	c.resolve("AT_Type", dictionary.ATTypes)
	c.resolve("Discovery_Flux_Units", dictionary.Units)
	c.resolve("Discovery_Instrument", dictionary.Instruments)
	c.required("Discovery_Filter")

	c.reference()
	c.discoveryPhotometry()
	c.additionalPhotometry(bands)
	c.hostRedshift()

	return c.findings
}

// =============================================================================
// ROW CHECKS
// =============================================================================

type rowChecker struct {
	table    *catalog.Table
	row      catalog.Row
	dict     *dictionary.Dictionary
	findings []*ValidationError
}

func (c *rowChecker) report(severity, field, rule, message string) {
	c.findings = append(c.findings, &ValidationError{
		Severity: severity,
		Row:      c.row.Index,
		Line:     c.row.Line,
		Field:    field,
		Value:    c.row.String(field),
		Rule:     rule,
		Message:  message,
	})
}

func (c *rowChecker) fail(field, rule, message string) {
	c.report(SeverityError, field, rule, message)
}

func (c *rowChecker) warn(field, rule, message string) {
	c.report(SeverityWarning, field, rule, message)
}

// required checks that field is present and not an empty sentinel.
func (c *rowChecker) required(field string) bool {
	if !c.table.HasColumn(field) {
		c.fail(field, "required_column", "required column is missing")
		return false
	}
	if _, ok := c.row.Value(field); !ok {
		c.fail(field, "required", "value is empty")
		return false
	}
	return true
}

// resolve checks that field is filled in and, with a dictionary, that its
// label is listed in category.
func (c *rowChecker) resolve(field, category string) {
	if !c.required(field) || c.dict == nil {
		return
	}
	if _, err := c.dict.Resolve(category, c.row.String(field)); err != nil {
		c.fail(field, "dictionary", fmt.Sprintf("not found in TNS dictionary category %q", category))
	}
}

// date checks the {prefix}_Year/Month/Day columns.
func (c *rowChecker) date(prefix string) {
	for _, part := range []string{"Year", "Month", "Day"} {
		if !c.required(prefix + "_" + part) {
			return
		}
	}

	_, err := coord.ParseDate(
		c.row.String(prefix+"_Year"),
		c.row.String(prefix+"_Month"),
		c.row.String(prefix+"_Day"),
	)
	if err != nil {
		c.fail(prefix+"_Year", "date", fmt.Sprintf("%s date is invalid: %v", strings.ToLower(prefix), err))
	}
}

func (c *rowChecker) reference() {
	method := c.row.String("Reference_Method")

	switch method {
	case report.MethodObservation:
		if !c.columns(ObservationColumns) {
			return
		}
		c.date("Reference")
		c.resolve("Reference_Flux_Units", dictionary.Units)
		c.resolve("Reference_Instrument", dictionary.Instruments)

	case report.MethodArchive:
		if !c.columns(ArchiveColumns) {
			return
		}
		c.resolve("Archive", dictionary.Archives)

	default:
		c.fail("Reference_Method", "reference_method",
			fmt.Sprintf("must be either %q or %q", report.MethodArchive, report.MethodObservation))
	}
}

// columns reports each missing column and returns true when none is missing.
func (c *rowChecker) columns(names []string) bool {
	ok := true
	for _, name := range names {
		if !c.table.HasColumn(name) {
			c.fail(name, "required_column", "required column is missing")
			ok = false
		}
	}
	return ok
}

func (c *rowChecker) discoveryPhotometry() {
	band, ok := c.row.Value("Discovery_Filter")
	if !ok {
		return
	}

	flux := catalog.FluxColumn(band)
	if !c.table.HasColumn(flux) {
		c.fail("Discovery_Filter", "photometry_column", fmt.Sprintf("no %s column for the discovery band", flux))
		return
	}
	if fluxErr := catalog.FluxErrorColumn(band); !c.table.HasColumn(fluxErr) {
		c.fail("Discovery_Filter", "photometry_column", fmt.Sprintf("no %s column for the discovery band", fluxErr))
	}
	if _, ok := c.row.Value(flux); !ok {
		c.fail(flux, "photometry_value", "discovery flux is empty")
	}
}

func (c *rowChecker) additionalPhotometry(bands []string) {
	discovery := c.row.String("Discovery_Filter")

	for _, band := range bands {
		if band == discovery {
			continue
		}
		if _, ok := c.row.Value(catalog.FluxColumn(band)); !ok {
			continue
		}
		if fluxErr := catalog.FluxErrorColumn(band); !c.table.HasColumn(fluxErr) {
			c.fail(catalog.FluxColumn(band), "photometry_column", fmt.Sprintf("no %s column", fluxErr))
		}
	}
}

func (c *rowChecker) hostRedshift() {
	z, ok := c.row.Value("Host_z")
	if !ok {
		return
	}
	if _, err := strconv.ParseFloat(z, 64); err != nil {
		c.warn("Host_z", "numeric", "host redshift is not a number and will be omitted")
	}
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation findings for display or logging.
//
// PARAMETERS:
//   - findings: The findings to format.
//
// RETURNS:
//   - A formatted string containing all findings.
func FormatErrors(findings []*ValidationError) string {
	if len(findings) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("validation completed with %d finding(s):\n", len(findings)))

	for i, err := range findings {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
