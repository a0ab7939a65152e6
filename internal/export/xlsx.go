package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"medparse/internal/domain"
)

// SheetName is the worksheet holding the exported fields.
const SheetName = "Results"

// Workbook builds an XLSX workbook with one row per present field of res.
// The caller must close the returned file.
func Workbook(document string, res *domain.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")
	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)

	write := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(SheetName, cell, v)
	}

	for i, h := range columns {
		if err := write(i+1, 1, h); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	for r, row := range Rows(document, res) {
		for c, v := range row.cells() {
			if err := write(c+1, r+2, v); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 24)
	_ = f.SetColWidth(SheetName, "C", "D", 22)
	_ = f.SetColWidth(SheetName, "E", "E", 40)
	return f, nil
}

// WriteXLSX writes the workbook for res to out.
func WriteXLSX(out io.Writer, document string, res *domain.Result) error {
	f, err := Workbook(document, res)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
