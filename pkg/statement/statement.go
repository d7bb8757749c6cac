// Package statement renders a loan ledger as a downloadable document.
package statement

import (
	"bytes"
	"fmt"
	"time"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ContentType returns the MIME type for a supported format, or "" if the
// format is unknown.
func ContentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return ""
}

// Build renders view in the given format.
func Build(format string, view *models.LedgerView) ([]byte, error) {
	switch format {
	case FormatPDF:
		return BuildPDF(view)
	case FormatXLSX:
		return BuildXLSX(view)
	}
	return nil, fmt.Errorf("unsupported statement format %q", format)
}

type summaryLine struct {
	label string
	value string
}

func summary(view *models.LedgerView) []summaryLine {
	return []summaryLine{
		{"Loan ID", view.LoanID.String()},
		{"Customer ID", view.CustomerID},
		{"Principal", view.Principal.StringFixed(2)},
		{"Interest Rate (% p.a.)", view.InterestRate.String()},
		{"Loan Period (years)", fmt.Sprintf("%d", view.TermYears)},
		{"Total Amount", view.TotalPayable.StringFixed(2)},
		{"Monthly EMI", view.MonthlyInstallment.StringFixed(2)},
		{"Amount Paid", view.AmountPaid.StringFixed(2)},
		{"Balance Amount", view.BalanceAmount.StringFixed(2)},
		{"EMIs Left", fmt.Sprintf("%d", view.InstallmentsRemaining)},
		{"Status", string(view.Status)},
	}
}

// BuildPDF renders a one-page summary followed by the transaction table.
func BuildPDF(view *models.LedgerView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Loan Ledger Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range summary(view) {
		pdf.CellFormat(60, 6, line.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, line.value, "", 0, "L", false, 0, "")
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(75, 6, "Transaction ID", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, tx := range view.Transactions {
		pdf.CellFormat(45, 6, tx.Date.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, tx.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, string(tx.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(75, 6, tx.TransactionID.String(), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	if len(view.Transactions) == 0 {
		pdf.CellFormat(190, 6, "No transactions found for this loan.", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX writes a "summary" sheet and a "transactions" sheet.
func BuildXLSX(view *models.LedgerView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	txSheet := "transactions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(txSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Loan Ledger Statement")
	for i, line := range summary(view) {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), line.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), line.value)
	}

	_ = f.SetCellValue(txSheet, "A1", "Date")
	_ = f.SetCellValue(txSheet, "B1", "Amount")
	_ = f.SetCellValue(txSheet, "C1", "Type")
	_ = f.SetCellValue(txSheet, "D1", "Transaction ID")
	for i, tx := range view.Transactions {
		row := i + 2
		_ = f.SetCellValue(txSheet, fmt.Sprintf("A%d", row), tx.Date.Format(time.RFC3339))
		_ = f.SetCellValue(txSheet, fmt.Sprintf("B%d", row), tx.Amount.StringFixed(2))
		_ = f.SetCellValue(txSheet, fmt.Sprintf("C%d", row), string(tx.Type))
		_ = f.SetCellValue(txSheet, fmt.Sprintf("D%d", row), tx.TransactionID.String())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
