package journal

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pilldock/internal/model"
)

// ExportXLSX writes journal entries to an Excel workbook, one row per
// entry in the given order.
func ExportXLSX(entries []model.Entry, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Activity Log"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Date", "Timestamp", "Slot", "Status", "Details"}
	for i, col := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	// Bold header row
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.Date,
			entry.Timestamp,
			entry.Slot,
			string(entry.Status),
			entry.Details,
		}
		for i, val := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
