package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/rules"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func date(y int, m time.Month, d int) *time.Time {
	dt := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &dt
}

func tuitionSchedule(t *testing.T) rules.FeeSchedule {
	t.Helper()
	return rules.FeeSchedule{
		ProgramCode:  "AGRO-L1",
		AcademicYear: "2025-2026",
		Currency:     "XAF",
		Tranches: []rules.Tranche{
			{Kind: rules.TrancheAutres, Label: "Frais annexes", Amount: dec(t, "5000")},
			{Kind: rules.TrancheInscription, Label: "Inscription", Amount: dec(t, "25000"), DueDate: date(2025, time.October, 15)},
			{Kind: rules.TrancheScolarite, Label: "Scolarité tranche 1", Amount: dec(t, "50000"), DueDate: date(2025, time.October, 30)},
			{Kind: rules.TrancheScolarite, Label: "Scolarité tranche 2", Amount: dec(t, "50000"), DueDate: date(2025, time.December, 14)},
			{Kind: rules.TrancheScolarite, Label: "Scolarité tranche 3", Amount: dec(t, "50000"), DueDate: date(2026, time.March, 28)},
		},
	}
}
