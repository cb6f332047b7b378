package quotation

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the table is written to.
const SheetName = "Quotation"

// headerRow is the 1-based row holding the column headers. The rows above
// carry the company name, quotation number and date.
const headerRow = 5

// RenderXLSX writes the table as a single-sheet workbook.
func RenderXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, values := range sheetRows(t) {
		if len(values) == 0 {
			continue
		}
		if err := setRow(f, i+1, values); err != nil {
			return nil, err
		}
	}

	for i, c := range Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, c.SheetWidth); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6E6E6"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(int(numColumns), headerRow)
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", headerRow), last, bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetRows lays the table out row by row: company, quotation number and
// date, a blank row, then the headers at headerRow and the table rows.
func sheetRows(t *Table) [][]any {
	out := [][]any{
		{"Company", t.CompanyName},
		{"Quotation No", t.QuotationNo},
		{"Date", t.Date},
		{},
	}
	headers := make([]any, 0, numColumns)
	for _, h := range Headers() {
		headers = append(headers, h)
	}
	out = append(out, headers)
	for _, r := range t.Rows {
		cells := r.Cells()
		values := make([]any, len(cells))
		values[0] = r.SrNo
		for j := 1; j < len(cells); j++ {
			values[j] = cells[j]
		}
		out = append(out, values)
	}
	return out
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
