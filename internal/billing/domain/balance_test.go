package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTotalsBalance(t *testing.T) {
	totals := Totals{
		Invoiced:           dec(t, "180000"),
		Paid:               dec(t, "70000"),
		ActiveScholarships: dec(t, "50000"),
	}
	if got := totals.Balance(); !got.Equal(dec(t, "60000")) {
		t.Errorf("balance = %s, want 60000", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name           string
		balance        string
		deferralActive bool
		want           FinancialStatus
	}{
		{"credit balance", "-10000", false, StatusOk},
		{"zero balance", "0", false, StatusOk},
		{"moderate debt does not block", "50000", false, StatusOk},
		{"debt above threshold blocks", "50001", false, StatusBlocked},
		{"large debt blocks", "200000", false, StatusBlocked},
		{"active deferral overrides large debt", "200000", true, StatusDeferred},
		{"active deferral overrides clean balance", "0", true, StatusDeferred},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(dec(t, tc.balance), tc.deferralActive); got != tc.want {
				t.Errorf("Classify(%s, %v) = %q, want %q", tc.balance, tc.deferralActive, got, tc.want)
			}
		})
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	totals := Totals{
		Invoiced:           dec(t, "180000"),
		Paid:               dec(t, "20000"),
		ActiveScholarships: decimal.Zero,
	}

	first := Recompute(totals, false)
	second := Recompute(totals, false)

	if !first.Balance.Equal(second.Balance) || first.Status != second.Status {
		t.Errorf("recompute not idempotent: %+v vs %+v", first, second)
	}
	if first.Status != StatusBlocked {
		t.Errorf("status = %q, want %q for 160000 debt", first.Status, StatusBlocked)
	}
}

func TestStudentFinanceGuardRegistration(t *testing.T) {
	f, err := NewStudentFinance("STU-001")
	if err != nil {
		t.Fatalf("NewStudentFinance: %v", err)
	}
	if err := f.GuardRegistration(); err != nil {
		t.Fatalf("Ok standing should register: %v", err)
	}

	f.Apply(BalanceResult{Balance: dec(t, "90000"), Status: StatusBlocked}, time.Now())
	err = f.GuardRegistration()
	if err == nil {
		t.Fatal("Blocked standing should reject registration")
	}
	if !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("error should match ErrPolicyViolation, got %v", err)
	}
	var pv *PolicyViolationError
	if !errors.As(err, &pv) || pv.Rule != "registration_while_blocked" {
		t.Errorf("unexpected policy violation: %v", err)
	}

	f.Apply(BalanceResult{Balance: dec(t, "90000"), Status: StatusDeferred}, time.Now())
	if err := f.GuardRegistration(); err != nil {
		t.Errorf("Deferred standing should register: %v", err)
	}
}
