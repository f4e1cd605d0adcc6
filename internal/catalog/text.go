package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/tns-at-report/internal/config"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// record is one parsed line with its 1-based source line number.
type record struct {
	fields []string
	line   int
}

// readText reads a delimited or whitespace separated text catalog.
func readText(path, format string, settings config.CatalogSettings) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file '%s': %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if format == FormatAuto {
		format = sniffFormat(data, settings.CommentPrefix)
	}

	var records []record
	if format == FormatWhitespace {
		records, err = splitWhitespace(data, settings.CommentPrefix)
	} else {
		records, err = readDelimited(data, delimiterRune(format, settings.Delimiter), settings.CommentPrefix)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file '%s': %w", path, err)
	}

	table, err := buildTable(records, settings.NullValues)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file '%s': %w", path, err)
	}
	table.Format = format

	return table, nil
}

// buildTable turns the first record into the header and the rest into rows.
// Blank rows are skipped.
func buildTable(records []record, nullValues []string) (*Table, error) {
	if len(records) == 0 {
		return NewTable(nil, nullValues), nil
	}

	table := NewTable(records[0].fields, nullValues)
	for _, rec := range records[1:] {
		if isRowEmpty(rec.fields) {
			continue
		}
		if err := table.AppendRow(rec.fields, rec.line); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// sniffFormat picks a text format from the first non-comment line.
func sniffFormat(data []byte, commentPrefix string) string {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if isSkippable(line, commentPrefix) {
			continue
		}

		switch {
		case strings.Contains(line, "\t"):
			return FormatTSV
		case strings.Contains(line, ","):
			return FormatCSV
		case strings.Contains(line, "|"):
			return FormatPipe
		default:
			return FormatWhitespace
		}
	}
	return FormatWhitespace
}

func isSkippable(line, commentPrefix string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	return commentPrefix != "" && strings.HasPrefix(trimmed, commentPrefix)
}

// =============================================================================
// DELIMITED TEXT
// =============================================================================

func delimiterRune(format, delimiter string) rune {
	switch format {
	case FormatTSV:
		return '\t'
	case FormatPipe:
		return '|'
	}

	if delimiter == "\\t" {
		return '\t'
	}
	if r, size := utf8.DecodeRuneInString(delimiter); size > 0 && size == len(delimiter) {
		return r
	}
	return ','
}

// readDelimited parses delimited text with encoding/csv.
func readDelimited(data []byte, comma rune, commentPrefix string) ([]record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	configureReader(reader, comma, commentPrefix)

	var records []record
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		// multi-character prefixes are not handled by csv.Reader.Comment
		if commentPrefix != "" && len(fields) > 0 && strings.HasPrefix(strings.TrimSpace(fields[0]), commentPrefix) {
			continue
		}

		line, _ := reader.FieldPos(0)
		records = append(records, record{fields: fields, line: line})
	}

	return records, nil
}

// configureReader sets up the CSV reader for catalog text.
//
// PARAMETERS:
//   - reader: The CSV reader to configure.
//   - comma: The field delimiter.
//   - commentPrefix: Lines starting with this are skipped.
func configureReader(reader *csv.Reader, comma rune, commentPrefix string) {
	reader.Comma = comma

	if r, size := utf8.DecodeRuneInString(commentPrefix); size > 0 && size == len(commentPrefix) && r != comma {
		reader.Comment = r
	}

	// Short rows are padded later, long rows are checked against the header.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// =============================================================================
// WHITESPACE SEPARATED TEXT
// =============================================================================

// splitWhitespace parses astropy "basic" style text: fields separated by runs
// of spaces or tabs, double quotes group words, and a doubled quote inside a
// quoted field is a literal quote.
func splitWhitespace(data []byte, commentPrefix string) ([]record, error) {
	var records []record

	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if isSkippable(line, commentPrefix) {
			continue
		}

		fields, err := tokenize(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, record{fields: fields, line: i + 1})
	}

	return records, nil
}

func tokenize(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inField bool
		quoted  bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case quoted:
			if r != '"' {
				current.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
				continue
			}
			quoted = false

		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}

		case r == '"':
			quoted = true
			inField = true

		default:
			current.WriteRune(r)
			inField = true
		}
	}

	if quoted {
		return nil, errors.New("unterminated quoted field")
	}
	if inField {
		fields = append(fields, current.String())
	}

	return fields, nil
}
