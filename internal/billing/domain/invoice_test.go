package billing

import (
	"errors"
	"testing"
	"time"
)

func TestNewInvoiceInjectsMandatoryLines(t *testing.T) {
	inv, err := NewInvoice("2025_FACT_SCOL_0001", "STU-001", "AGRO-L1", "2025-2026",
		time.Date(2025, time.September, 20, 0, 0, 0, 0, time.UTC),
		[]LineItem{{Code: "inscription", Label: "Inscription", Amount: dec(t, "25000")}})
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	lines := inv.Lines()
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3 (inscription + KIT + LABO)", len(lines))
	}
	byCode := make(map[string]LineItem, len(lines))
	for _, li := range lines {
		byCode[li.Code] = li
	}
	for _, code := range MandatoryLineCodes {
		li, ok := byCode[code]
		if !ok {
			t.Errorf("mandatory line %s missing", code)
			continue
		}
		if !li.Amount.IsZero() {
			t.Errorf("mandatory line %s amount = %s, want 0", code, li.Amount)
		}
	}
	if !inv.Total().Equal(dec(t, "25000")) {
		t.Errorf("total = %s, want 25000", inv.Total())
	}
}

func TestNewInvoiceKeepsProvidedMandatoryLines(t *testing.T) {
	inv, err := NewInvoice("2025_FACT_SCOL_0002", "STU-001", "AGRO-L1", "2025-2026",
		time.Now(), []LineItem{
			{Code: "KIT", Label: "Kit agro", Amount: dec(t, "0")},
			{Code: "labo", Label: "Frais labo", Amount: dec(t, "0")},
		})
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	if got := len(inv.Lines()); got != 2 {
		t.Errorf("lines = %d, want 2 (no duplicates injected)", got)
	}
}

func TestNewInvoiceRejectsNegativeLine(t *testing.T) {
	_, err := NewInvoice("2025_FACT_SCOL_0003", "STU-001", "AGRO-L1", "2025-2026",
		time.Now(), []LineItem{{Code: "X", Amount: dec(t, "-5")}})
	if !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("err = %v, want ErrNegativeAmount", err)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	inv, err := NewInvoice("2025_FACT_SCOL_0004", "STU-002", "AGRO-L1", "2025-2026",
		time.Now(), nil)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	if err := inv.MarkPaid(); !errors.Is(err, ErrInvoiceNotOpen) {
		t.Errorf("paying a draft should fail, got %v", err)
	}
	if err := inv.Issue(date(2025, time.October, 30)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if inv.Status() != InvoiceStatusIssued {
		t.Errorf("status = %q, want issued", inv.Status())
	}
	if err := inv.MarkPaid(); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if err := inv.Cancel(); !errors.Is(err, ErrInvoiceNotOpen) {
		t.Errorf("cancelling a paid invoice should fail, got %v", err)
	}
}

func TestFormatInvoiceNumber(t *testing.T) {
	if got, want := FormatInvoiceNumber(2025, 7), "2025_FACT_SCOL_0007"; got != want {
		t.Errorf("number = %q, want %q", got, want)
	}
	if got, want := FormatInvoiceNumber(2026, 12345), "2026_FACT_SCOL_12345"; got != want {
		t.Errorf("number = %q, want %q", got, want)
	}
}

func TestPaymentLedgerAppendOnly(t *testing.T) {
	ledger := NewPaymentLedger("STU-001")
	if err := ledger.Append(Payment{ID: "p1", Amount: dec(t, "30000")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := ledger.Append(Payment{ID: "p2", Amount: dec(t, "0")}); !errors.Is(err, ErrNonPositiveAmount) {
		t.Errorf("zero payment should be rejected, got %v", err)
	}
	if err := ledger.Append(Payment{ID: "p3", Amount: dec(t, "-10")}); !errors.Is(err, ErrNonPositiveAmount) {
		t.Errorf("negative payment should be rejected, got %v", err)
	}
	if err := ledger.Append(Payment{ID: "p4", Amount: dec(t, "40000")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !ledger.TotalPaid().Equal(dec(t, "70000")) {
		t.Errorf("total paid = %s, want 70000", ledger.TotalPaid())
	}
}
