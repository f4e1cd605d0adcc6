package catalog

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/tns-at-report/internal/config"
)

// readWorkbook reads a catalog from an Excel workbook. The first non-empty
// row of the sheet is the header.
//
// PARAMETERS:
//   - path: The workbook file.
//   - settings: Sheet selects the worksheet; empty means the first sheet.
//
// RETURNS:
//   - The table, possibly with no rows.
//   - An error if the workbook or sheet cannot be read.
func readWorkbook(path string, settings config.CatalogSettings) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog workbook '%s': %w", path, err)
	}
	defer f.Close()

	sheetName := strings.TrimSpace(settings.Sheet)
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("catalog workbook '%s' has no sheets", path)
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("catalog workbook '%s' has no sheet %q", path, sheetName)
	}

	// Raw values keep numbers as stored rather than as displayed.
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %q: %w", sheetName, err)
	}

	var records []record
	for i, row := range rows {
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}
		if len(records) == 0 && settings.CommentPrefix != "" &&
			strings.HasPrefix(strings.TrimSpace(row[0]), settings.CommentPrefix) {
			continue
		}
		records = append(records, record{fields: row, line: i + 1})
	}

	table, err := buildTable(records, settings.NullValues)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog workbook '%s': %w", path, err)
	}
	table.Format = FormatXLSX

	return table, nil
}
