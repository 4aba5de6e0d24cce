package report

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// numFmtMoney is the built-in "#,##0.00" format.
const numFmtMoney = 4

// sheetName trims a title to the 31 characters Excel allows.
func sheetName(title string) string {
	if len(title) > 31 {
		return title[:31]
	}
	return title
}

// WriteXLSX renders r as a single-sheet workbook: the heading in A1, column
// labels on row 3 and data from row 4.
func WriteXLSX(r Report) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(r.Title)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return nil, err
	}

	if err := f.SetCellValue(sheet, "A1", r.Heading); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return nil, err
	}

	for i, col := range r.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 3)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col.Label); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return nil, err
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, 18); err != nil {
			return nil, err
		}
	}

	for ri, row := range r.Rows {
		for ci, col := range r.Columns {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+4)
			if err != nil {
				return nil, err
			}
			switch v := row[col.Key].(type) {
			case decimal.Decimal:
				if err := f.SetCellValue(sheet, cell, v.InexactFloat64()); err != nil {
					return nil, err
				}
				if err := f.SetCellStyle(sheet, cell, cell, money); err != nil {
					return nil, err
				}
			default:
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, err
				}
			}
		}
	}

	if r.Totals != nil {
		row := len(r.Rows) + 4
		values := map[string]decimal.Decimal{
			"opening_balance":  r.Totals.OpeningBalance,
			"remaining_amount": r.Totals.Remaining,
			"paid_amount":      r.Totals.Paid,
		}
		for ci, col := range r.Columns {
			cell, err := excelize.CoordinatesToCellName(ci+1, row)
			if err != nil {
				return nil, err
			}
			if ci == 0 {
				if err := f.SetCellValue(sheet, cell, "Total"); err != nil {
					return nil, err
				}
				continue
			}
			if v, ok := values[col.Key]; ok {
				if err := f.SetCellValue(sheet, cell, v.InexactFloat64()); err != nil {
					return nil, err
				}
				if err := f.SetCellStyle(sheet, cell, cell, money); err != nil {
					return nil, err
				}
			}
		}
	}

	return f.WriteToBuffer()
}
