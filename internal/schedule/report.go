package schedule

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ReportRow is one work item line of a progress workbook.
type ReportRow struct {
	Record
	AssignedTotal   decimal.Decimal
	Remaining       decimal.Decimal
	ProgressPercent decimal.Decimal
}

var reportHeader = []string{
	"Floor", "Work type", "Start", "End", "Unit",
	"Total", "Completed", "Assigned", "Remaining", "Progress %",
}

const progressSheet = "Progress"

// RenderReport writes a progress workbook with a summary header block and one
// row per work item.
func RenderReport(meta Meta, rows []ReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	index, err := f.NewSheet(progressSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	summary := [][2]interface{}{
		{"Object", meta.ObjectName},
		{"Queue", meta.Stage},
		{"Section", meta.Block},
	}
	for i, kv := range summary {
		row := i + 1
		if err := f.SetCellValue(progressSheet, fmt.Sprintf("A%d", row), kv[0]); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(progressSheet, fmt.Sprintf("B%d", row), kv[1]); err != nil {
			return nil, err
		}
	}

	headerRow := len(summary) + 2
	for col, title := range reportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		if err := f.SetCellValue(progressSheet, cell, title); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(reportHeader), headerRow)
	if err := f.SetCellStyle(progressSheet, first, last, bold); err != nil {
		return nil, err
	}

	for i, r := range rows {
		values := []interface{}{
			r.Floor,
			r.WorkType,
			r.StartDate.Format(DateLayout),
			r.EndDate.Format(DateLayout),
			r.Unit,
			r.TotalVolume.InexactFloat64(),
			r.CompletedVolume.InexactFloat64(),
			r.AssignedTotal.InexactFloat64(),
			r.Remaining.InexactFloat64(),
			r.ProgressPercent.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err := f.SetSheetRow(progressSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
