package reports

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExcelExporter interface {
	GetCellValues() []interface{}
}

// writeSheet puts headings on row 1 and one row per exporter below.
// It returns the next free row number.
func writeSheet[T ExcelExporter](f *excelize.File, sheetName string, headings []string, data []T) (int, error) {
	if err := writeRow(f, sheetName, 1, headingValues(headings)); err != nil {
		return 0, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}
	last, err := excelize.CoordinatesToCellName(len(headings), 1)
	if err != nil {
		return 0, err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return 0, err
	}

	row := 2
	for _, d := range data {
		if err := writeRow(f, sheetName, row, d.GetCellValues()); err != nil {
			return 0, err
		}
		row++
	}
	return row, nil
}

func headingValues(headings []string) []interface{} {
	values := make([]interface{}, len(headings))
	for i, h := range headings {
		values[i] = h
	}
	return values
}

func writeRow(f *excelize.File, sheetName string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}

// newWorkbook renames the default sheet instead of adding a second one.
func newWorkbook(sheetName string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// money rounds for display; the stored value keeps full precision.
func money(d decimal.Decimal, places int32) float64 {
	return d.Round(places).InexactFloat64()
}

// Write streams the workbook and closes it.
func Write(w io.Writer, f *excelize.File) error {
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
