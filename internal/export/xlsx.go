package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"docfill/internal/domain"
)

const sheetName = "Placeholders"

// ContentTypeXLSX is the MIME type of the workbook returned by WriteXLSX.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX renders placeholders as a single-sheet workbook with a bold header row.
func WriteXLSX(placeholders []domain.Placeholder) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	if err := writeRow(f, 1, columns); err != nil {
		return nil, err
	}
	for i := range placeholders {
		if err := writeRow(f, i+2, placeholderToRow(&placeholders[i])); err != nil {
			return nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return nil, fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "B", 28); err != nil {
		return nil, fmt.Errorf("sizing columns: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}
