// =============================================================================
// TNS AT Report Builder - Shared Types
// =============================================================================
//
// This package contains the report document types shared by the report
// builder and the JSON writer. Keeping them here avoids an import cycle
// between report and jsonwriter.
//
// DOCUMENT LAYOUT:
//   {
//     "at_report": {
//       "0": {                          <-- Entry, one per catalog row
//         "ra": {"value": "..."},
//         "dec": {"value": "..."},
//         "reporting_groupid": "...",
//         ...
//         "non_detection": {...},
//         "photometry": {
//           "0": {...},                 <-- discovery point
//           "1": {...}                  <-- additional bands
//         }
//       }
//     }
//   }
//
// Field order in the output follows struct field order, so the structs below
// are declared in the registry's key order.
//
// =============================================================================

package types

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is the full bulk-report envelope.
type Document struct {
	ATReport Indexed[Entry] `json:"at_report"`
}

// Entry is the report for one transient (one catalog row).
type Entry struct {
	RA  Value `json:"ra"`
	Dec Value `json:"dec"`

	ReportingGroupID  string `json:"reporting_groupid"`
	DataSourceGroupID string `json:"data_source_groupid"`
	Reporter          string `json:"reporter"`
	DiscoveryDatetime string `json:"discovery_datetime"`
	ATType            string `json:"at_type"`

	// Optional fields. Empty means "not reported" and the key is omitted.
	HostName     string `json:"host_name,omitempty"`
	HostRedshift string `json:"host_redshift,omitempty"`
	InternalName string `json:"internal_name,omitempty"`
	Remarks      string `json:"remarks,omitempty"`

	NonDetection NonDetection             `json:"non_detection"`
	Photometry   Indexed[PhotometryPoint] `json:"photometry"`
}

// Value wraps a single string in the {"value": ...} form used for
// coordinates.
type Value struct {
	Value string `json:"value"`
}

// =============================================================================
// NON-DETECTION
// =============================================================================

// NonDetection holds the last non-detection. Exactly one of the two shapes is
// populated:
//   - observation: ObsDate, FluxUnitID, FilterID, InstrumentID
//   - archive:     ArchiveID, ArchivalRemarks
type NonDetection struct {
	ObsDate      string `json:"obsdate,omitempty"`
	FluxUnitID   string `json:"flux_unitid,omitempty"`
	FilterID     string `json:"filterid,omitempty"`
	InstrumentID string `json:"instrumentid,omitempty"`

	ArchiveID string `json:"archiveid,omitempty"`

	// ArchivalRemarks is a pointer so an archive non-detection always carries
	// the key, even when the remark itself is empty.
	ArchivalRemarks *string `json:"archival_remarks,omitempty"`
}

// IsArchive reports whether the non-detection uses the archive shape.
func (n NonDetection) IsArchive() bool {
	return n.ArchiveID != ""
}

// =============================================================================
// PHOTOMETRY
// =============================================================================

// PhotometryPoint is one photometric measurement.
type PhotometryPoint struct {
	ObsDate      string `json:"obsdate"`
	Flux         string `json:"flux"`
	FluxError    string `json:"flux_error"`
	FluxUnitID   string `json:"flux_unitid"`
	FilterID     string `json:"filterid"`
	InstrumentID string `json:"instrumentid"`
	Comments     string `json:"comments,omitempty"`
}

// =============================================================================
// INDEXED COLLECTIONS
// =============================================================================

// Indexed is an ordered list that serializes as a JSON object keyed by the
// zero-based position of each element ("0", "1", ..., "10"). A Go map would
// sort "10" before "2"; Indexed keeps slice order.
type Indexed[T any] []T

// MarshalJSON implements json.Marshaler. Elements are written without HTML
// escaping; the encoder that calls MarshalJSON re-escapes the result when its
// own HTML escaping is on.
func (ix Indexed[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range ix {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i)))
		buf.WriteByte(':')

		b, err := json.MarshalWithOption(item, json.DisableHTMLEscape())
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Keys must be the contiguous
// indices "0".."n-1"; they may appear in any order.
func (ix *Indexed[T]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]T, len(raw))
	for key, msg := range raw {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(raw) {
			return fmt.Errorf("indexed object: unexpected key %q", key)
		}
		if err := json.Unmarshal(msg, &out[i]); err != nil {
			return err
		}
	}

	*ix = out
	return nil
}
