package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/tns-at-report/internal/catalog"
	"github.com/ginjaninja78/tns-at-report/internal/dictionary"
	"github.com/ginjaninja78/tns-at-report/internal/types"
)

const values = `{"data": {
	"groups": {"0": "None", "18": "ZTF", "112": "JADES"},
	"filters": {"110": "g-ZTF", "111": "r-ZTF", "112": "i-ZTF", "0": "Other"},
	"instruments": {"0": "Other", "196": "ZTF-Cam", "259": "JWST - NIRCam"},
	"units": {"1": "ABMag", "10": "uJy"},
	"archives": {"0": "Other", "1": "SDSS", "2": "DSS2 Red"},
	"at_types": {"1": "PSN - Possible SN", "4": "Other - Undefined"}
}}`

var baseColumns = []string{
	"ID", "RA", "Dec", "Reporting_Group", "Data_Source", "Reporter",
	"Discovery_Year", "Discovery_Month", "Discovery_Day", "AT_Type",
	"Reference_Method", "Reference_Year", "Reference_Month", "Reference_Day",
	"Reference_Flux_Units", "Reference_Filter", "Reference_Instrument",
	"Archive", "Archival_Remark",
	"Discovery_Filter", "Discovery_Instrument", "Discovery_Flux_Units",
	"g_Phot", "g_Phot_Err", "r_Phot", "r_Phot_Err", "i_Phot", "i_Phot_Err",
}

func baseRow() map[string]string {
	return map[string]string{
		"ID": "JADES-1", "RA": "35.5", "Dec": "-10.25",
		"Reporting_Group": "JADES", "Data_Source": "ZTF", "Reporter": "A. Astronomer",
		"Discovery_Year": "2023", "Discovery_Month": "7", "Discovery_Day": "4",
		"AT_Type": "PSN",
		"Reference_Method": "Observation", "Reference_Year": "2022.0", "Reference_Month": "12.0", "Reference_Day": "1.0",
		"Reference_Flux_Units": "ABMag", "Reference_Filter": "r-ZTF", "Reference_Instrument": "ZTF-Cam",
		"Archive": "--", "Archival_Remark": "--",
		"Discovery_Filter": "g", "Discovery_Instrument": "ZTF-Cam", "Discovery_Flux_Units": "ABMag",
		"g_Phot": "20.12", "g_Phot_Err": "0.05",
		"r_Phot": "--", "r_Phot_Err": "--",
		"i_Phot": "--", "i_Phot_Err": "--",
	}
}

func buildTable(t *testing.T, cols []string, rows ...map[string]string) *catalog.Table {
	t.Helper()
	table := catalog.NewTable(cols, []string{"null", "None"})
	for i, r := range rows {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = r[c]
		}
		require.NoError(t, table.AppendRow(cells, i+2))
	}
	return table
}

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	dict, err := dictionary.Parse([]byte(values))
	require.NoError(t, err)
	return NewBuilder(dict, Options{})
}

func buildOne(t *testing.T, cols []string, row map[string]string) types.Entry {
	t.Helper()
	table := buildTable(t, cols, row)
	entry, err := newBuilder(t).BuildEntry(table, table.Rows[0])
	require.NoError(t, err)
	return entry
}

// asMap marshals v and decodes it into a generic map so tests can check
// which keys are present.
func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func withColumns(extra ...string) []string {
	return append(append([]string(nil), baseColumns...), extra...)
}

func TestBuildEntry(t *testing.T) {
	entry := buildOne(t, baseColumns, baseRow())

	assert.Equal(t, types.Entry{
		RA:                types.Value{Value: "02:22:00.00"},
		Dec:               types.Value{Value: "-10:15:00.00"},
		ReportingGroupID:  "112",
		DataSourceGroupID: "18",
		Reporter:          "A. Astronomer",
		DiscoveryDatetime: "2023-07-04",
		ATType:            "1",
		NonDetection: types.NonDetection{
			ObsDate:      "2022-12-01",
			FluxUnitID:   "1",
			FilterID:     "111",
			InstrumentID: "196",
		},
		Photometry: types.Indexed[types.PhotometryPoint]{{
			ObsDate:      "2023-07-04",
			Flux:         "20.12",
			FluxError:    "0.05",
			FluxUnitID:   "1",
			FilterID:     "110",
			InstrumentID: "196",
		}},
	}, entry)
}

func TestBuildEntryZeroCoordinates(t *testing.T) {
	row := baseRow()
	row["RA"] = "0.0"
	row["Dec"] = "0.0"

	entry := buildOne(t, baseColumns, row)
	assert.Equal(t, "00:00:00.00", entry.RA.Value)
	assert.Equal(t, "-00:00:00.00", entry.Dec.Value)
}

func TestOptionalFields(t *testing.T) {
	cols := withColumns("Host_ID", "Host_z", "Internal_Name", "Remarks")

	row := baseRow()
	row["Host_ID"] = "NGC 1234"
	row["Host_z"] = "0.5"
	row["Internal_Name"] = "JADES-GS-1"
	row["Remarks"] = `Host "z" from <spectrum>`

	entry := buildOne(t, cols, row)
	assert.Equal(t, "NGC 1234", entry.HostName)
	assert.Equal(t, "0.5", entry.HostRedshift)
	assert.Equal(t, "JADES-GS-1", entry.InternalName)
	assert.Equal(t, `Host "z" from <spectrum>`, entry.Remarks)

	m := asMap(t, entry)
	assert.Equal(t, "0.5", m["host_redshift"])
}

func TestOptionalFieldsOmitted(t *testing.T) {
	cols := withColumns("Host_ID", "Host_z", "Internal_Name", "Remarks")

	for _, z := range []string{"-99", "--", "", "0", "null", "None", "abc", "inf", "+Inf", "-inf", "NaN"} {
		t.Run("Host_z="+z, func(t *testing.T) {
			row := baseRow()
			row["Host_ID"] = "--"
			row["Host_z"] = z
			row["Internal_Name"] = ""
			row["Remarks"] = "None"

			m := asMap(t, buildOne(t, cols, row))
			for _, key := range []string{"host_name", "host_redshift", "internal_name", "remarks"} {
				assert.NotContains(t, m, key)
			}
		})
	}
}

func TestOptionalColumnsAbsent(t *testing.T) {
	m := asMap(t, buildOne(t, baseColumns, baseRow()))
	for _, key := range []string{"host_name", "host_redshift", "internal_name", "remarks"} {
		assert.NotContains(t, m, key)
	}
}

func TestNonDetectionObservation(t *testing.T) {
	m := asMap(t, buildOne(t, baseColumns, baseRow()))

	nd := m["non_detection"].(map[string]any)
	assert.Equal(t, map[string]any{
		"obsdate":      "2022-12-01",
		"flux_unitid":  "1",
		"filterid":     "111",
		"instrumentid": "196",
	}, nd)
}

func TestNonDetectionObservationUnlistedFilter(t *testing.T) {
	row := baseRow()
	row["Reference_Filter"] = "Clear"

	entry := buildOne(t, baseColumns, row)
	assert.Equal(t, dictionary.UnlistedFilter, entry.NonDetection.FilterID)
}

func TestNonDetectionArchive(t *testing.T) {
	row := baseRow()
	row["Reference_Method"] = "Archive"
	row["Archive"] = "DSS2"
	row["Archival_Remark"] = "Not detected in DSS2 red plates"
	row["Reference_Year"] = "--"

	m := asMap(t, buildOne(t, baseColumns, row))
	nd := m["non_detection"].(map[string]any)
	assert.Equal(t, map[string]any{
		"archiveid":        "2",
		"archival_remarks": "Not detected in DSS2 red plates",
	}, nd)
}

func TestNonDetectionArchiveEmptyRemark(t *testing.T) {
	row := baseRow()
	row["Reference_Method"] = "Archive"
	row["Archive"] = "SDSS"
	row["Archival_Remark"] = "--"

	m := asMap(t, buildOne(t, baseColumns, row))
	nd := m["non_detection"].(map[string]any)
	assert.Equal(t, "", nd["archival_remarks"])
	assert.NotContains(t, nd, "obsdate")
}

func TestBadReferenceMethod(t *testing.T) {
	row := baseRow()
	row["Reference_Method"] = "Survey"

	table := buildTable(t, baseColumns, baseRow(), row)
	_, err := newBuilder(t).BuildDocument(context.Background(), table)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadReferenceMethod)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Row)
	assert.Equal(t, 3, rowErr.Line)
	assert.Equal(t, "JADES-1", rowErr.ID)
	assert.Contains(t, err.Error(), `"Survey"`)
}

func TestDictionaryMissIsFatal(t *testing.T) {
	tests := []struct {
		column   string
		category string
	}{
		{"Reporting_Group", dictionary.Groups},
		{"Data_Source", dictionary.Groups},
		{"AT_Type", dictionary.ATTypes},
		{"Discovery_Flux_Units", dictionary.Units},
		{"Discovery_Instrument", dictionary.Instruments},
		{"Reference_Flux_Units", dictionary.Units},
		{"Reference_Instrument", dictionary.Instruments},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			row := baseRow()
			row[tt.column] = "Unlisted Thing"

			table := buildTable(t, baseColumns, row)
			doc, err := newBuilder(t).BuildDocument(context.Background(), table)
			require.Error(t, err)
			assert.Nil(t, doc)

			var lookupErr *dictionary.LookupError
			require.True(t, errors.As(err, &lookupErr))
			assert.Equal(t, tt.category, lookupErr.Category)
			assert.Equal(t, "Unlisted Thing", lookupErr.Term)
		})
	}
}

func TestArchiveMissIsFatal(t *testing.T) {
	row := baseRow()
	row["Reference_Method"] = "Archive"
	row["Archive"] = "Pan-STARRS"

	table := buildTable(t, baseColumns, row)
	_, err := newBuilder(t).BuildEntry(table, table.Rows[0])
	assert.ErrorIs(t, err, dictionary.ErrCodeNotFound)
}

func TestInvalidCoordinatesAndDates(t *testing.T) {
	for column, value := range map[string]string{
		"RA":             "nan",
		"Dec":            "-95",
		"Discovery_Day":  "40",
		"Reference_Year": "--",
	} {
		t.Run(column, func(t *testing.T) {
			row := baseRow()
			row[column] = value

			table := buildTable(t, baseColumns, row)
			_, err := newBuilder(t).BuildEntry(table, table.Rows[0])
			require.Error(t, err)
			assert.Contains(t, err.Error(), strings.SplitN(column, "_", 2)[0])
		})
	}
}

func TestAdditionalPhotometry(t *testing.T) {
	row := baseRow()
	row["r_Phot"] = "20.5"
	row["r_Phot_Err"] = "0.07"
	row["i_Phot"] = "20.9"
	row["i_Phot_Err"] = "0.09"

	entry := buildOne(t, baseColumns, row)
	require.Len(t, entry.Photometry, 3)

	assert.Equal(t, "110", entry.Photometry[0].FilterID)

	assert.Equal(t, types.PhotometryPoint{
		ObsDate:      "2023-07-04",
		Flux:         "20.5",
		FluxError:    "0.07",
		FluxUnitID:   "1",
		FilterID:     "111",
		InstrumentID: "196",
	}, entry.Photometry[1])

	assert.Equal(t, "20.9", entry.Photometry[2].Flux)
	assert.Equal(t, "112", entry.Photometry[2].FilterID)

	m := asMap(t, entry)
	phot := m["photometry"].(map[string]any)
	assert.Len(t, phot, 3)
	assert.Equal(t, "20.5", phot["1"].(map[string]any)["flux"])
	assert.Equal(t, "20.9", phot["2"].(map[string]any)["flux"])
}

func TestAdditionalPhotometrySkipsSentinelBands(t *testing.T) {
	row := baseRow()
	row["i_Phot"] = "20.9"
	row["i_Phot_Err"] = "0.09"

	entry := buildOne(t, baseColumns, row)
	require.Len(t, entry.Photometry, 2)
	assert.Equal(t, "20.9", entry.Photometry[1].Flux)
	assert.Equal(t, "112", entry.Photometry[1].FilterID)
}

func TestAdditionalPhotometryFollowsColumnOrder(t *testing.T) {
	cols := []string{
		"ID", "RA", "Dec", "Reporting_Group", "Data_Source", "Reporter",
		"Discovery_Year", "Discovery_Month", "Discovery_Day", "AT_Type",
		"Reference_Method", "Reference_Year", "Reference_Month", "Reference_Day",
		"Reference_Flux_Units", "Reference_Filter", "Reference_Instrument",
		"Discovery_Filter", "Discovery_Instrument", "Discovery_Flux_Units",
		"i_Phot", "i_Phot_Err", "g_Phot", "g_Phot_Err", "r_Phot", "r_Phot_Err",
	}
	row := baseRow()
	row["r_Phot"] = "20.5"
	row["i_Phot"] = "20.9"

	entry := buildOne(t, cols, row)
	require.Len(t, entry.Photometry, 3)
	assert.Equal(t, "112", entry.Photometry[1].FilterID)
	assert.Equal(t, "111", entry.Photometry[2].FilterID)
}

func TestUnlistedDiscoveryFilterComment(t *testing.T) {
	cols := withColumns("F444W_Phot", "F444W_Phot_Err", "Discovery_Photometry_Comment")

	row := baseRow()
	row["Discovery_Filter"] = "F444W"
	row["Discovery_Instrument"] = "JWST - NIRCam"
	row["F444W_Phot"] = "28.1"
	row["F444W_Phot_Err"] = "0.2"
	row["g_Phot"] = "--"
	row["Discovery_Photometry_Comment"] = "Forced photometry"

	entry := buildOne(t, cols, row)
	require.Len(t, entry.Photometry, 1)

	p := entry.Photometry[0]
	assert.Equal(t, dictionary.UnlistedFilter, p.FilterID)
	assert.Equal(t, "259", p.InstrumentID)
	assert.Equal(t, "28.1", p.Flux)
	assert.Equal(t, "Forced photometry. Filter is JWST - NIRCam-F444W. ", p.Comments)
}

func TestDiscoveryCommentWithoutUnlistedFilter(t *testing.T) {
	cols := withColumns("Discovery_Photometry_Comment")

	row := baseRow()
	row["Discovery_Photometry_Comment"] = "Difference imaging"
	entry := buildOne(t, cols, row)
	assert.Equal(t, "Difference imaging. ", entry.Photometry[0].Comments)

	row["Discovery_Photometry_Comment"] = "--"
	entry = buildOne(t, cols, row)
	assert.Empty(t, entry.Photometry[0].Comments)

	m := asMap(t, entry)
	point := m["photometry"].(map[string]any)["0"].(map[string]any)
	assert.NotContains(t, point, "comments")
}

func TestUnlistedAdditionalBandComment(t *testing.T) {
	cols := withColumns("F200W_Phot", "F200W_Phot_Err")

	row := baseRow()
	row["F200W_Phot"] = "27.3"
	row["F200W_Phot_Err"] = "0.3"

	entry := buildOne(t, cols, row)
	require.Len(t, entry.Photometry, 2)
	assert.Empty(t, entry.Photometry[0].Comments)
	assert.Equal(t, dictionary.UnlistedFilter, entry.Photometry[1].FilterID)
	assert.Equal(t, "Filter is ZTF-Cam-F200W. ", entry.Photometry[1].Comments)
	assert.Equal(t, "196", entry.Photometry[1].InstrumentID)
}

func TestBandMatchingOtherLabelGetsComment(t *testing.T) {
	cols := withColumns("Oth_Phot", "Oth_Phot_Err")

	row := baseRow()
	row["Discovery_Filter"] = "Oth"
	row["Oth_Phot"] = "22.4"
	row["Oth_Phot_Err"] = "0.1"
	row["g_Phot"] = "--"

	entry := buildOne(t, cols, row)
	require.Len(t, entry.Photometry, 1)
	assert.Equal(t, dictionary.UnlistedFilter, entry.Photometry[0].FilterID)
	assert.Equal(t, "Filter is ZTF-Cam-Oth. ", entry.Photometry[0].Comments)
}

func TestUnlistedFilterIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	dict, err := dictionary.Parse([]byte(values))
	require.NoError(t, err)
	b := NewBuilder(dict, Options{Logger: logger})

	cols := withColumns("F200W_Phot", "F200W_Phot_Err")
	row := baseRow()
	row["F200W_Phot"] = "27.3"

	table := buildTable(t, cols, row)
	_, err = b.BuildEntry(table, table.Rows[0])
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "filter=F200W")
}

func TestBuildDocument(t *testing.T) {
	rows := make([]map[string]string, 12)
	for i := range rows {
		rows[i] = baseRow()
	}
	rows[10]["Reporter"] = "Row Ten"

	var progress []int
	dict, err := dictionary.Parse([]byte(values))
	require.NoError(t, err)
	b := NewBuilder(dict, Options{Progress: func(done, total int) {
		assert.Equal(t, 12, total)
		progress = append(progress, done)
	}})

	doc, err := b.BuildDocument(context.Background(), buildTable(t, baseColumns, rows...))
	require.NoError(t, err)
	require.Len(t, doc.ATReport, 12)
	assert.Equal(t, "Row Ten", doc.ATReport[10].Reporter)
	assert.Len(t, progress, 12)

	b2, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded struct {
		ATReport map[string]map[string]any `json:"at_report"`
	}
	require.NoError(t, json.Unmarshal(b2, &decoded))
	assert.Len(t, decoded.ATReport, 12)
	assert.Equal(t, "Row Ten", decoded.ATReport["10"]["reporter"])

	// "10" follows "9" in the serialized output
	s := string(b2)
	assert.Less(t, strings.Index(s, `"9":`), strings.Index(s, `"10":`))
}

func TestBuildDocumentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newBuilder(t).BuildDocument(ctx, buildTable(t, baseColumns, baseRow()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerbatimTextIsEscaped(t *testing.T) {
	row := baseRow()
	row["Reporter"] = "O'Brien \"Jr\"\t\\ et al."

	doc, err := newBuilder(t).BuildDocument(context.Background(), buildTable(t, baseColumns, row))
	require.NoError(t, err)

	b, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded types.Document
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "O'Brien \"Jr\"\t\\ et al.", decoded.ATReport[0].Reporter)
}
