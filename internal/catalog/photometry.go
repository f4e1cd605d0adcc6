package catalog

import "strings"

// Photometry column suffixes. A band "g" has its flux in "g_Phot" and the
// flux error in "g_Phot_Err".
const (
	FluxSuffix      = "_Phot"
	FluxErrorSuffix = "_Phot_Err"
)

// FluxColumn returns the flux column name for band.
func FluxColumn(band string) string { return band + FluxSuffix }

// FluxErrorColumn returns the flux error column name for band.
func FluxErrorColumn(band string) string { return band + FluxErrorSuffix }

// PhotometryBands returns the distinct bands found among columns whose name
// contains marker, in order of first appearance. The band is the part of the
// column name before the first underscore, and it only counts when the table
// has a flux column for it; this keeps names like
// "Discovery_Photometry_Comment" from being taken as a band.
func (t *Table) PhotometryBands(marker string) []string {
	if marker == "" {
		return nil
	}

	var bands []string
	seen := make(map[string]bool)

	for _, col := range t.ColumnsContaining(marker) {
		band, _, _ := strings.Cut(col, "_")
		if band == "" || seen[band] {
			continue
		}
		seen[band] = true

		if t.HasColumn(FluxColumn(band)) {
			bands = append(bands, band)
		}
	}

	return bands
}
