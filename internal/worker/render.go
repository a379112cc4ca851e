package worker

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/msandnes/invoiceagent/internal/model"
)

// Render produces a printable A4 journal voucher.
func Render(v model.Voucher) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Journal Voucher")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Voucher ID: "+v.VoucherID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date: "+v.Date)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Description: "+v.Description)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Created: "+v.CreatedAt)
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 8, "Account", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Code", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Debit", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Credit", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, e := range v.Entries {
		pdf.CellFormat(60, 8, e.AccountName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, e.AccountCode, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", e.Debit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", e.Credit), "1", 1, "R", false, 0, "")
	}

	totals := v.Totals()
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(85, 8, "Totals", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", totals.TotalDebits), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", totals.TotalCredits), "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	balance := "Balanced"
	if !totals.IsBalanced {
		balance = fmt.Sprintf("Unbalanced (difference %.2f)", totals.Difference)
	}
	pdf.Cell(0, 7, balance)
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, "GAAP Reasoning")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	for _, e := range v.Entries {
		pdf.MultiCell(0, 5, fmt.Sprintf("%s (%s): %s", e.AccountName, e.AccountCode, e.GAAPReasoning), "", "L", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
