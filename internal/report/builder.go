// =============================================================================
// TNS AT Report Builder - Row Transformer
// =============================================================================
//
// This module turns catalog rows into TNS AT report entries.
//
// PER ROW:
//   1. RA/Dec degrees -> sexagesimal strings
//   2. Group, AT type, unit, instrument, archive labels -> dictionary codes
//   3. Optional fields (host, redshift, internal name, remarks) when filled in
//   4. Non-detection block, by Reference_Method:
//        "Observation" -> obsdate, flux_unitid, filterid, instrumentid
//        "Archive"     -> archiveid, archival_remarks
//   5. Photometry: the discovery point at "0", then one point per additional
//      band with a flux value, in column order
//
// FILTERS:
//   A filter that is not in the dictionary is reported as "Other" (code "0")
//   and named in the point's comment, e.g. "Filter is JWST-F444W. ".
//   Additional bands reuse the discovery flux unit and instrument.
//
// =============================================================================

package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/ginjaninja78/tns-at-report/internal/catalog"
	"github.com/ginjaninja78/tns-at-report/internal/coord"
	"github.com/ginjaninja78/tns-at-report/internal/dictionary"
	"github.com/ginjaninja78/tns-at-report/internal/types"
)

// Catalog column names.
const (
	ColID                  = "ID"
	ColRA                  = "RA"
	ColDec                 = "Dec"
	ColReportingGroup      = "Reporting_Group"
	ColDataSource          = "Data_Source"
	ColReporter            = "Reporter"
	ColATType              = "AT_Type"
	ColHostID              = "Host_ID"
	ColHostZ               = "Host_z"
	ColInternalName        = "Internal_Name"
	ColRemarks             = "Remarks"
	ColReferenceMethod     = "Reference_Method"
	ColReferenceFluxUnits  = "Reference_Flux_Units"
	ColReferenceFilter     = "Reference_Filter"
	ColReferenceInstrument = "Reference_Instrument"
	ColArchive             = "Archive"
	ColArchivalRemark      = "Archival_Remark"
	ColDiscoveryFilter     = "Discovery_Filter"
	ColDiscoveryInstrument = "Discovery_Instrument"
	ColDiscoveryFluxUnits  = "Discovery_Flux_Units"
	ColPhotometryComment   = "Discovery_Photometry_Comment"
)

// Reference methods.
const (
	MethodObservation = "Observation"
	MethodArchive     = "Archive"
)

// ErrBadReferenceMethod is returned for a Reference_Method other than
// "Observation" or "Archive".
var ErrBadReferenceMethod = errors.New("reference method must be either 'Archive' or 'Observation'")

// RowError ties a failure to the catalog row that caused it.
type RowError struct {
	// Row is the zero-based data row index.
	Row int

	// Line is the 1-based source line.
	Line int

	// ID is the row's ID column.
	ID string

	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (line %d, ID %q): %v", e.Row, e.Line, e.ID, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BUILDER
// =============================================================================

// Options configures a Builder.
type Options struct {
	// PhotometryMarker identifies flux columns of additional bands.
	// Default: "_Phot"
	PhotometryMarker string

	// Logger receives notices about unlisted filters. Default: discarded.
	Logger *slog.Logger

	// Progress, when set, is called after each row with the number of rows
	// done and the total.
	Progress func(done, total int)
}

// Builder builds report entries from catalog rows. It holds no per-row
// state.
type Builder struct {
	dict    *dictionary.Dictionary
	options Options
}

// NewBuilder creates a Builder resolving labels against dict.
func NewBuilder(dict *dictionary.Dictionary, options Options) *Builder {
	if options.PhotometryMarker == "" {
		options.PhotometryMarker = "_Phot"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{dict: dict, options: options}
}

// BuildDocument builds the entry for every row, in row order.
//
// PARAMETERS:
//   - ctx: Checked between rows; cancellation aborts the build.
//   - table: The catalog.
//
// RETURNS:
//   - The complete document.
//   - The first error, as a *RowError, if any row fails. No partial document
//     is returned.
func (b *Builder) BuildDocument(ctx context.Context, table *catalog.Table) (*types.Document, error) {
	bands := table.PhotometryBands(b.options.PhotometryMarker)
	entries := make(types.Indexed[types.Entry], 0, len(table.Rows))

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := b.buildEntry(row, bands)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)

		if b.options.Progress != nil {
			b.options.Progress(len(entries), len(table.Rows))
		}
	}

	return &types.Document{ATReport: entries}, nil
}

// BuildEntry builds the entry for one row of table.
func (b *Builder) BuildEntry(table *catalog.Table, row catalog.Row) (types.Entry, error) {
	return b.buildEntry(row, table.PhotometryBands(b.options.PhotometryMarker))
}

func (b *Builder) buildEntry(row catalog.Row, bands []string) (types.Entry, error) {
	r := &rowBuilder{Builder: b, row: row}
	entry := r.entry(bands)
	if r.err != nil {
		return types.Entry{}, &RowError{
			Row:  row.Index,
			Line: row.Line,
			ID:   row.String(ColID),
			Err:  r.err,
		}
	}
	return entry, nil
}

// =============================================================================
// ROW BUILDER
// =============================================================================

// rowBuilder carries the first error hit while building one row; later steps
// become no-ops once it is set.
type rowBuilder struct {
	*Builder
	row catalog.Row
	err error
}

func (r *rowBuilder) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *rowBuilder) resolve(category, column string) string {
	if r.err != nil {
		return ""
	}
	code, err := r.dict.Resolve(category, r.row.String(column))
	if err != nil {
		r.fail(fmt.Errorf("%s: %w", column, err))
	}
	return code
}

// filter resolves a filter label and builds the comment owed when it is not
// listed.
func (r *rowBuilder) filter(label, instrument string) (code, comment string) {
	code, listed := r.dict.ResolveFilter(label)
	if listed {
		return code, ""
	}

	r.options.Logger.Warn("filter not in TNS dictionary, reporting as Other",
		"row", r.row.Index,
		"filter", label,
		"instrument", instrument,
	)
	return code, fmt.Sprintf("Filter is %s-%s. ", instrument, label)
}

func (r *rowBuilder) date(prefix string) string {
	if r.err != nil {
		return ""
	}
	d, err := coord.ParseDate(
		r.row.String(prefix+"_Year"),
		r.row.String(prefix+"_Month"),
		r.row.String(prefix+"_Day"),
	)
	if err != nil {
		r.fail(fmt.Errorf("%s date: %w", prefix, err))
	}
	return d
}

func (r *rowBuilder) entry(bands []string) types.Entry {
	var e types.Entry

	ra, err := coord.ParseDegrees(r.row.String(ColRA))
	if err != nil {
		r.fail(fmt.Errorf("%s: %w", ColRA, err))
	}
	dec, err := coord.ParseDec(r.row.String(ColDec))
	if err != nil {
		r.fail(fmt.Errorf("%s: %w", ColDec, err))
	}
	e.RA = types.Value{Value: coord.FormatRA(ra)}
	e.Dec = types.Value{Value: coord.FormatDec(dec)}

	e.ReportingGroupID = r.resolve(dictionary.Groups, ColReportingGroup)
	e.DataSourceGroupID = r.resolve(dictionary.Groups, ColDataSource)
	e.Reporter = r.row.String(ColReporter)

	discovery := r.date("Discovery")
	e.DiscoveryDatetime = discovery
	e.ATType = r.resolve(dictionary.ATTypes, ColATType)

	e.HostName, _ = r.row.Value(ColHostID)
	e.HostRedshift = r.hostRedshift()
	e.InternalName, _ = r.row.Value(ColInternalName)
	e.Remarks, _ = r.row.Value(ColRemarks)

	e.NonDetection = r.nonDetection()
	e.Photometry = r.photometry(discovery, bands)

	return e
}

// hostRedshift returns the Host_z text when it is a finite number greater
// than zero.
func (r *rowBuilder) hostRedshift() string {
	z, ok := r.row.Value(ColHostZ)
	if !ok {
		return ""
	}
	v, err := strconv.ParseFloat(z, 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		return ""
	}
	return z
}

func (r *rowBuilder) nonDetection() types.NonDetection {
	var nd types.NonDetection

	switch method := r.row.String(ColReferenceMethod); method {
	case MethodObservation:
		nd.ObsDate = r.date("Reference")
		nd.FluxUnitID = r.resolve(dictionary.Units, ColReferenceFluxUnits)
		nd.FilterID, _ = r.dict.ResolveFilter(r.row.String(ColReferenceFilter))
		nd.InstrumentID = r.resolve(dictionary.Instruments, ColReferenceInstrument)

	case MethodArchive:
		nd.ArchiveID = r.resolve(dictionary.Archives, ColArchive)
		remark, _ := r.row.Value(ColArchivalRemark)
		nd.ArchivalRemarks = &remark

	default:
		r.fail(fmt.Errorf("%w; you have listed %q", ErrBadReferenceMethod, method))
	}

	return nd
}

func (r *rowBuilder) photometry(obsdate string, bands []string) types.Indexed[types.PhotometryPoint] {
	band := r.row.String(ColDiscoveryFilter)
	instrument := r.row.String(ColDiscoveryInstrument)

	unitID := r.resolve(dictionary.Units, ColDiscoveryFluxUnits)
	instrumentID := r.resolve(dictionary.Instruments, ColDiscoveryInstrument)
	if r.err != nil {
		return nil
	}

	var comment string
	if c, ok := r.row.Value(ColPhotometryComment); ok {
		comment = c + ". "
	}
	filterID, filterComment := r.filter(band, instrument)
	comment += filterComment

	points := types.Indexed[types.PhotometryPoint]{{
		ObsDate:      obsdate,
		Flux:         r.row.String(catalog.FluxColumn(band)),
		FluxError:    r.row.String(catalog.FluxErrorColumn(band)),
		FluxUnitID:   unitID,
		FilterID:     filterID,
		InstrumentID: instrumentID,
		Comments:     comment,
	}}

	for _, extra := range bands {
		if extra == band {
			continue
		}
		flux, ok := r.row.Value(catalog.FluxColumn(extra))
		if !ok {
			continue
		}

		filterID, filterComment := r.filter(extra, instrument)
		points = append(points, types.PhotometryPoint{
			ObsDate:      obsdate,
			Flux:         flux,
			FluxError:    r.row.String(catalog.FluxErrorColumn(extra)),
			FluxUnitID:   unitID,
			FilterID:     filterID,
			InstrumentID: instrumentID,
			Comments:     filterComment,
		})
	}

	return points
}
