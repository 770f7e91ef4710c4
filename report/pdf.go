package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BalancesPDF writes an A4 table of every employee's used and remaining leave.
func BalancesPDF(w io.Writer, rows []BalanceRow, quota int, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Leave balances", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Leave balances")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Monthly quota: %d days", quota))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	widths := []float64{35, 85, 30, 30}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Employee", "Name", "Used", "Remaining"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 10)
	for _, r := range rows {
		pdf.CellFormat(widths[0], 7, tr(r.EmployeeID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(r.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprint(r.Used), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprint(r.Remaining), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	if len(rows) == 0 {
		pdf.CellFormat(180, 7, "No employees", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render balances pdf: %w", err)
	}
	return nil
}
