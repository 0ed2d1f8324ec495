package schedule

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Floor", 22, "L"},
	{"Work type", 58, "L"},
	{"Start", 22, "C"},
	{"End", 22, "C"},
	{"Unit", 14, "C"},
	{"Total", 22, "R"},
	{"Completed", 22, "R"},
	{"Assigned", 22, "R"},
	{"Remaining", 22, "R"},
	{"%", 16, "R"},
}

// RenderReportPDF writes the same progress table as RenderReport as a
// landscape A4 document.
func RenderReportPDF(meta Meta, rows []ReportRow, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s progress", meta.ObjectName), true)
	pdf.AddPage()

	pdf.SetFillColor(0, 0, 0)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 11, "Section progress report", "1", 1, "C", true, 0, "")
	pdf.SetFillColor(255, 255, 255)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Object: %s", meta.ObjectName))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Queue: %s    Section: %s", meta.Stage, meta.Block))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated on: %s", generated.Format("2006-01-02 15:04")))
	pdf.Ln(9)

	header := func() {
		pdf.SetFillColor(200, 220, 240)
		pdf.SetFont("Arial", "B", 9)
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFillColor(255, 255, 255)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	total, completed := decimal.Zero, decimal.Zero
	for _, r := range rows {
		_, pageHeight := pdf.GetPageSize()
		_, _, _, bottom := pdf.GetMargins()
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		cells := []string{
			tr(r.Floor),
			tr(r.WorkType),
			r.StartDate.Format(DateLayout),
			r.EndDate.Format(DateLayout),
			tr(r.Unit),
			r.TotalVolume.StringFixed(2),
			r.CompletedVolume.StringFixed(2),
			r.AssignedTotal.StringFixed(2),
			r.Remaining.StringFixed(2),
			r.ProgressPercent.StringFixed(1),
		}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
		total = total.Add(r.TotalVolume)
		completed = completed.Add(r.CompletedVolume)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Lines: %d    Total: %s    Completed: %s", len(rows), total.StringFixed(2), completed.StringFixed(2)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
