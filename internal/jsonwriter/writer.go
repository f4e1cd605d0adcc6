// =============================================================================
// TNS AT Report Builder - JSON Writer Module
// =============================================================================
//
// This module serializes the report document built by the report package.
// The document is a typed tree; key order, separators and string escaping
// are left to the encoder, so free text copied from the catalog (reporter,
// remarks, comments) can never break the output.
//
// OUTPUT STRUCTURE:
//   {
//     "at_report": {
//       "0": {
//         "ra": {"value": "02:22:00.00"},
//         "dec": {"value": "-10:15:00.00"},
//         "reporting_groupid": "112",
//         ...
//         "photometry": {
//           "0": {"obsdate": "2023-07-04", "flux": "20.12", ...}
//         }
//       },
//       "1": {...}
//     }
//   }
//
// =============================================================================

package jsonwriter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/ginjaninja78/tns-at-report/internal/types"
	"github.com/ginjaninja78/tns-at-report/pkg/utils"
)

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for JSON generation.
type GenerateOptions struct {
	// Indent is the string used for each indentation level. Empty produces
	// compact output.
	// Default: "  " (two spaces)
	Indent string

	// EscapeHTML escapes <, > and & inside strings as \u003c etc.
	// Default: false
	EscapeHTML bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Indent: "  "}
}

// =============================================================================
// GENERATION FUNCTIONS
// =============================================================================

// Encode writes doc to w.
func Encode(w io.Writer, doc *types.Document, options GenerateOptions) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", options.Indent)
	enc.SetEscapeHTML(options.EscapeHTML)

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Generate returns doc as JSON.
func Generate(doc *types.Document, options GenerateOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, options); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes doc to path atomically.
//
// PARAMETERS:
//   - path: The output file. Its directory is created if needed.
//   - doc: The report document.
//   - options: Formatting options.
//
// RETURNS:
//   - The number of bytes written.
//   - An error if encoding or writing fails. On error path is untouched.
func WriteFile(path string, doc *types.Document, options GenerateOptions) (int64, error) {
	file, err := utils.CreateAtomic(path)
	if err != nil {
		return 0, err
	}
	defer file.Abort()

	counter := &countingWriter{w: bufio.NewWriter(file)}
	if err := Encode(counter, doc, options); err != nil {
		return 0, err
	}
	if err := counter.w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := file.Commit(); err != nil {
		return 0, err
	}

	return counter.n, nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
