// =============================================================================
// TNS AT Report Builder - Catalog Reader
// =============================================================================
//
// This module reads the transient catalog: one row per transient, one column
// per attribute. Several physical formats are supported:
//   - Comma, tab and pipe delimited text
//   - Whitespace separated text (astropy "basic" style tables)
//   - Excel workbooks (.xlsx / .xlsm)
//
// FORMAT DETECTION:
//   With format "auto" the file extension picks the workbook reader; any other
//   file is read as text and the first non-comment line decides the
//   delimiter: a tab means TSV, a comma CSV, a pipe a pipe table, anything
//   else whitespace separated.
//
// EMPTY VALUES:
//   Catalogs written by different tools mark a missing value differently.
//   "--" and the empty string are always treated as empty; further tokens
//   ("null", "None") come from configuration. Row.Value hides them so callers
//   never see a sentinel.
//
// =============================================================================

package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/tns-at-report/internal/config"
)

// Supported catalog formats.
const (
	FormatAuto       = "auto"
	FormatCSV        = "csv"
	FormatTSV        = "tsv"
	FormatPipe       = "pipe"
	FormatWhitespace = "whitespace"
	FormatXLSX       = "xlsx"
)

// MaskedValue is the sentinel astropy writes for masked cells.
const MaskedValue = "--"

var (
	// ErrEmptyCatalog is returned when a catalog has a header but no data rows,
	// or no header at all.
	ErrEmptyCatalog = errors.New("catalog contains no data rows")

	// ErrUnsupportedFormat is returned for an unknown format name.
	ErrUnsupportedFormat = errors.New("unsupported catalog format")
)

// =============================================================================
// TABLE
// =============================================================================

// Table is a fully loaded catalog.
type Table struct {
	// Columns holds the column names in file order.
	Columns []string

	// Rows holds the data rows in file order.
	Rows []Row

	// Source is the file the table was read from.
	Source string

	// Format is the format the table was actually read as.
	Format string

	index map[string]int
	nulls map[string]struct{}
}

// Row is one catalog row.
type Row struct {
	// Index is the zero-based position among data rows. It becomes the row's
	// key in the report.
	Index int

	// Line is the 1-based line (or worksheet row) the row came from.
	Line int

	cells []string
	table *Table
}

// NewTable creates an empty table with the given columns. Header names are
// trimmed and blank names replaced with Column_N. When a name repeats, the
// first column with that name is the one looked up.
//
// PARAMETERS:
//   - columns: The header row.
//   - nullValues: Extra tokens that mark an empty cell, besides "--" and "".
func NewTable(columns []string, nullValues []string) *Table {
	t := &Table{
		Columns: cleanHeaders(columns),
		index:   make(map[string]int, len(columns)),
		nulls:   map[string]struct{}{MaskedValue: {}, "": {}},
	}

	for i, name := range t.Columns {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	for _, v := range nullValues {
		t.nulls[strings.TrimSpace(v)] = struct{}{}
	}

	return t
}

// AppendRow adds a data row. Cells are trimmed; short rows are padded with
// empty cells.
func (t *Table) AppendRow(cells []string, line int) error {
	if len(cells) > len(t.Columns) {
		extra := cells[len(t.Columns):]
		if !isRowEmpty(extra) {
			return fmt.Errorf("line %d has %d fields, header has %d", line, len(cells), len(t.Columns))
		}
		cells = cells[:len(t.Columns)]
	}

	row := make([]string, len(t.Columns))
	for i, c := range cells {
		row[i] = strings.TrimSpace(c)
	}

	t.Rows = append(t.Rows, Row{
		Index: len(t.Rows),
		Line:  line,
		cells: row,
		table: t,
	})
	return nil
}

// HasColumn reports whether the table has a column with this name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// IsEmptyValue reports whether v is one of the table's empty sentinels.
func (t *Table) IsEmptyValue(v string) bool {
	_, ok := t.nulls[strings.TrimSpace(v)]
	return ok
}

// ColumnsContaining returns, in file order, the columns whose name contains
// substr.
func (t *Table) ColumnsContaining(substr string) []string {
	var out []string
	for _, c := range t.Columns {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the raw (trimmed) cell for column. ok is false when the table
// has no such column.
func (r Row) Get(column string) (string, bool) {
	if r.table == nil {
		return "", false
	}
	i, ok := r.table.index[column]
	if !ok {
		return "", false
	}
	return r.cells[i], true
}

// Value returns the cell for column only when the column exists and the
// cell is not an empty sentinel.
func (r Row) Value(column string) (string, bool) {
	v, ok := r.Get(column)
	if !ok || r.table.IsEmptyValue(v) {
		return "", false
	}
	return v, true
}

// String returns the cell for column, or "" when the column is absent.
func (r Row) String(column string) string {
	v, _ := r.Get(column)
	return v
}

// =============================================================================
// READING
// =============================================================================

// Read loads the catalog at path.
//
// PARAMETERS:
//   - path: The catalog file.
//   - settings: Format, delimiter, comment prefix, sheet and null tokens.
//
// RETURNS:
//   - The loaded table with at least one data row.
//   - An error if the file cannot be read or holds no data.
func Read(path string, settings config.CatalogSettings) (*Table, error) {
	format, err := resolveFormat(path, settings)
	if err != nil {
		return nil, err
	}

	var table *Table
	if format == FormatXLSX {
		table, err = readWorkbook(path, settings)
	} else {
		table, err = readText(path, format, settings)
	}
	if err != nil {
		return nil, err
	}

	table.Source = path
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCatalog)
	}

	return table, nil
}

// resolveFormat maps the configured format to a concrete one. Text formats
// that still need sniffing come back as FormatAuto.
func resolveFormat(path string, settings config.CatalogSettings) (string, error) {
	format := strings.ToLower(strings.TrimSpace(settings.Format))

	switch format {
	case "", FormatAuto:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx", ".xlsm":
			return FormatXLSX, nil
		}
		if settings.Delimiter != "" {
			return delimiterFormat(settings.Delimiter), nil
		}
		return FormatAuto, nil
	case FormatCSV, FormatTSV, FormatPipe, FormatWhitespace, FormatXLSX:
		return format, nil
	case "ascii", "basic":
		return FormatWhitespace, nil
	case "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, settings.Format)
	}
}

// delimiterFormat turns a configured delimiter into a format name.
func delimiterFormat(delimiter string) string {
	switch delimiter {
	case "\\t", "\t", "tab", "TAB":
		return FormatTSV
	case "|", "pipe", "PIPE":
		return FormatPipe
	case " ", "space", "whitespace":
		return FormatWhitespace
	default:
		return FormatCSV
	}
}

// cleanHeaders trims header names and replaces blank ones.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
