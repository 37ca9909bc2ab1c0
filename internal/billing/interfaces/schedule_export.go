package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "campus-ledger/internal/billing/domain"
)

// ScheduleDocument carries everything a schedule export needs.
type ScheduleDocument struct {
	BeneficiaryID string
	ProgramCode   string
	AcademicYear  string
	Currency      string
	GeneratedAt   time.Time
	Schedule      billing.Schedule
}

func lineState(line billing.ScheduleLine) string {
	switch {
	case line.Paid:
		return "Soldée"
	case line.Partial:
		return "Partielle"
	default:
		return "Impayée"
	}
}

func lineDue(line billing.ScheduleLine) string {
	if line.Tranche.DueDate == nil {
		return "immédiate"
	}
	return line.Tranche.DueDate.Format("2006-01-02")
}

// BuildSchedulePDF renders a payment schedule statement as PDF.
func BuildSchedulePDF(doc ScheduleDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Echeancier de paiement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Etudiant: %s", doc.BeneficiaryID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Programme: %s", doc.ProgramCode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Annee academique: %s", doc.AcademicYear))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Genere: %s", doc.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Situation: %s", doc.Schedule.Standing))
	pdf.Ln(5)
	if doc.Schedule.DaysLate > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Jours de retard: %d", doc.Schedule.DaysLate))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total paye (%s): %s", doc.Currency, doc.Schedule.TotalPaid))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Reste du (%s): %s", doc.Currency, doc.Schedule.TotalOwed))
	pdf.Ln(8)

	// Tranche table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 6, "Tranche", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Echeance", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Montant", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Reste", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Etat", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range doc.Schedule.Lines {
		pdf.CellFormat(55, 6, line.Tranche.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, lineDue(line), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, line.Tranche.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, line.RemainingOwed.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, lineState(line), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildScheduleXLSX renders a payment schedule statement as XLSX.
func BuildScheduleXLSX(doc ScheduleDocument) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "resume"
	linesSheet := "tranches"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(linesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Echeancier de paiement")
	_ = f.SetCellValue(summarySheet, "A3", "Etudiant")
	_ = f.SetCellValue(summarySheet, "B3", doc.BeneficiaryID)
	_ = f.SetCellValue(summarySheet, "A4", "Programme")
	_ = f.SetCellValue(summarySheet, "B4", doc.ProgramCode)
	_ = f.SetCellValue(summarySheet, "A5", "Annee academique")
	_ = f.SetCellValue(summarySheet, "B5", doc.AcademicYear)
	_ = f.SetCellValue(summarySheet, "A6", "Situation")
	_ = f.SetCellValue(summarySheet, "B6", string(doc.Schedule.Standing))
	_ = f.SetCellValue(summarySheet, "A7", "Jours de retard")
	_ = f.SetCellValue(summarySheet, "B7", doc.Schedule.DaysLate)
	_ = f.SetCellValue(summarySheet, "A8", "Total paye")
	_ = f.SetCellValue(summarySheet, "B8", doc.Schedule.TotalPaid.String())
	_ = f.SetCellValue(summarySheet, "A9", "Reste du")
	_ = f.SetCellValue(summarySheet, "B9", doc.Schedule.TotalOwed.String())
	_ = f.SetCellValue(summarySheet, "A10", "Devise")
	_ = f.SetCellValue(summarySheet, "B10", doc.Currency)

	_ = f.SetCellValue(linesSheet, "A1", "Tranche")
	_ = f.SetCellValue(linesSheet, "B1", "Echeance")
	_ = f.SetCellValue(linesSheet, "C1", "Montant")
	_ = f.SetCellValue(linesSheet, "D1", "Paye")
	_ = f.SetCellValue(linesSheet, "E1", "Reste")
	_ = f.SetCellValue(linesSheet, "F1", "Etat")
	for i, line := range doc.Schedule.Lines {
		row := i + 2
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("A%d", row), line.Tranche.Label)
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("B%d", row), lineDue(line))
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("C%d", row), line.Tranche.Amount.String())
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("D%d", row), line.AmountPaid.String())
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("E%d", row), line.RemainingOwed.String())
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("F%d", row), lineState(line))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
