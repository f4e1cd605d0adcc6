// =============================================================================
// TNS AT Report Builder - Reference Dictionary
// =============================================================================
//
// This module loads the TNS reference dictionary ("values.json") and resolves
// human-readable labels to the numeric codes the registry expects.
//
// FILE SHAPE:
//   {
//     "data": {
//       "groups":      {"0": "None", "18": "ZTF", ...},
//       "filters":     {"0": "Other", "110": "g-ZTF", ...},
//       "instruments": {...},
//       "units":       {...},
//       "archives":    {...},
//       "at_types":    {"1": "PSN - Possible SN", ...}
//     }
//   }
//
// ORDERING:
//   Resolution returns the first label containing the search term, so the
//   order of codes inside each category matters. The file is decoded token by
//   token to keep that order; a Go map would lose it.
//
// =============================================================================

package dictionary

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// =============================================================================
// CATEGORIES AND CONSTANTS
// =============================================================================

// Category names used by the report builder.
const (
	Groups      = "groups"
	Filters     = "filters"
	Instruments = "instruments"
	Units       = "units"
	Archives    = "archives"
	ATTypes     = "at_types"
)

// UnlistedFilter is the "Other" filter code substituted when a filter label is
// not found in the dictionary.
const UnlistedFilter = "0"

// DefaultFileName is the dictionary file looked up in the working directory.
const DefaultFileName = "values.json"

// RequiredCategories must all be present in a dictionary file.
var RequiredCategories = []string{Groups, Filters, Instruments, Units, Archives, ATTypes}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCodeNotFound is wrapped by every LookupError.
	ErrCodeNotFound = errors.New("value not in TNS dictionary")

	// ErrUnknownCategory is returned when resolving against a category that
	// was not loaded.
	ErrUnknownCategory = errors.New("unknown dictionary category")

	// ErrMissingCategory is returned by Parse when a required category is absent.
	ErrMissingCategory = errors.New("missing dictionary category")

	// ErrMalformed is returned by Parse for content that is not a dictionary.
	ErrMalformed = errors.New("malformed dictionary")
)

// LookupError reports a search term that matched no label in a category.
type LookupError struct {
	Category string
	Term     string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("value %q not in TNS dictionary category %q", e.Term, e.Category)
}

func (e *LookupError) Unwrap() error {
	return ErrCodeNotFound
}

// =============================================================================
// DICTIONARY
// =============================================================================

// Entry is a single code/label pair.
type Entry struct {
	Code  string
	Label string
}

// Dictionary is the loaded reference dictionary. It is read-only after Parse.
type Dictionary struct {
	// Source is the path the dictionary was loaded from, if any.
	Source string

	categories map[string][]Entry
	order      []string
}

// Load reads and parses the dictionary file at path.
//
// PARAMETERS:
//   - path: The dictionary file, normally DefaultFileName.
//
// RETURNS:
//   - The parsed dictionary.
//   - An error naming the file if it cannot be read or parsed.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file '%s': %w", path, err)
	}

	dict, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dictionary file '%s': %w", path, err)
	}

	dict.Source = path
	return dict, nil
}

// Parse decodes dictionary content. Categories whose value is not a JSON
// object are skipped; every category in RequiredCategories must be present.
func Parse(data []byte) (*Dictionary, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope.Data) == 0 || envelope.Data[0] != '{' {
		return nil, fmt.Errorf("%w: missing \"data\" object", ErrMalformed)
	}

	dict := &Dictionary{categories: make(map[string][]Entry)}

	dec := json.NewDecoder(bytes.NewReader(envelope.Data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrMalformed, tok)
		}

		entries, isObject, err := readCategory(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %v", ErrMalformed, name, err)
		}
		if !isObject {
			continue
		}

		if _, seen := dict.categories[name]; !seen {
			dict.order = append(dict.order, name)
		}
		dict.categories[name] = entries
	}

	for _, name := range RequiredCategories {
		if _, ok := dict.categories[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCategory, name)
		}
	}

	return dict, nil
}

// readCategory consumes one category value from dec. isObject is false when
// the value was something other than an object; it has been skipped.
func readCategory(dec *json.Decoder) (entries []Entry, isObject bool, err error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, false, nil
	}
	if delim != '{' {
		return nil, false, skipValue(dec, delim)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, true, err
		}
		code, ok := tok.(string)
		if !ok {
			return nil, true, fmt.Errorf("unexpected token %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, true, err
		}

		// Nested values are not labels.
		if d, ok := tok.(json.Delim); ok {
			if err := skipValue(dec, d); err != nil {
				return nil, true, err
			}
			continue
		}

		entries = append(entries, Entry{Code: code, Label: scalarText(tok)})
	}

	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, true, err
	}

	return entries, true, nil
}

// skipValue consumes tokens until the container opened by open is closed.
func skipValue(dec *json.Decoder, open json.Delim) error {
	if open != '{' && open != '[' {
		return nil
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func scalarText(tok any) string {
	switch v := tok.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve returns the code of the first label in category that contains term.
//
// The first match in file order wins. If two labels both contain the term
// (for example a short label that is a substring of a longer one), reordering
// the dictionary file upstream changes the result.
//
// A miss in Filters returns UnlistedFilter and no error. A miss in any other
// category returns a *LookupError. An empty or blank term never matches.
func (d *Dictionary) Resolve(category, term string) (string, error) {
	entries, ok := d.categories[category]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	if code, ok := firstMatch(entries, term); ok {
		return code, nil
	}

	if category == Filters {
		return UnlistedFilter, nil
	}

	return "", &LookupError{Category: category, Term: term}
}

// ResolveFilter resolves a filter label. listed is false when the resulting
// code is the "Other" code, whether by fallback or because the term matched
// that label directly; callers then owe the registry a comment naming the
// literal filter.
func (d *Dictionary) ResolveFilter(term string) (code string, listed bool) {
	code, ok := firstMatch(d.categories[Filters], term)
	if !ok {
		return UnlistedFilter, false
	}
	return code, code != UnlistedFilter
}

func firstMatch(entries []Entry, term string) (string, bool) {
	if strings.TrimSpace(term) == "" {
		return "", false
	}
	for _, e := range entries {
		if strings.Contains(e.Label, term) {
			return e.Code, true
		}
	}
	return "", false
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Categories returns the loaded category names in file order.
func (d *Dictionary) Categories() []string {
	return append([]string(nil), d.order...)
}

