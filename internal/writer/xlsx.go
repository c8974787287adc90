package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-parser/internal/models"
)

const xlsxSheet = "Transactions"

// XLSXWriter writes a workbook with one transactions sheet. Amounts are
// numeric cells so they sum in a spreadsheet.
type XLSXWriter struct {
	IncludeHeader bool
}

func (w *XLSXWriter) Extension() string { return ".xlsx" }
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (w *XLSXWriter) Write(out io.Writer, info *models.StatementInfo) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	row := 1
	if w.IncludeHeader {
		for _, kv := range metadata(info) {
			if err := setRow(f, row, kv[0], kv[1]); err != nil {
				return err
			}
			row++
		}
		if row > 1 {
			row++ // blank line before the table
		}
	}

	if err := setRow(f, row, "Date", "Description", "Amount", "Direction"); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(4, row)
	if err := f.SetCellStyle(xlsxSheet, first, last, boldStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	row++

	for _, txn := range info.Transactions {
		if err := setRow(f, row, txn.Date.Format(models.DateLayout), txn.Description, txn.Amount.InexactFloat64(), string(txn.Direction)); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetCellStyle(xlsxSheet, cell, cell, amountStyle); err != nil {
			return fmt.Errorf("failed to style amount: %w", err)
		}
		row++
	}

	if err := f.SetColWidth(xlsxSheet, "B", "B", 60); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
