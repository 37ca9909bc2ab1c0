package billing

import "github.com/shopspring/decimal"

// FinancialStatus is the derived financial standing of one student.
// Wire values match the persisted records of the surrounding system.
type FinancialStatus string

const (
	StatusOk       FinancialStatus = "OK"
	StatusBlocked  FinancialStatus = "Bloqué"
	StatusDeferred FinancialStatus = "Moratoire"
)

// LargeDebtThreshold is the debt above which a student is blocked.
var LargeDebtThreshold = decimal.NewFromInt(50000)

// Totals are the persisted aggregates a recomputation derives from.
type Totals struct {
	Invoiced           decimal.Decimal
	Paid               decimal.Decimal
	ActiveScholarships decimal.Decimal
}

// Balance is the canonical signed balance: invoiced minus paid minus
// active scholarships. A positive balance is debt owed by the student.
func (t Totals) Balance() decimal.Decimal {
	return t.Invoiced.Sub(t.Paid).Sub(t.ActiveScholarships)
}

// BalanceResult is the output of one recomputation.
type BalanceResult struct {
	Balance decimal.Decimal
	Status  FinancialStatus
}

// Classify derives the financial status from a balance. The deferral
// override is sticky: while a deferral is active the status stays
// Deferred regardless of the balance; only the lifecycle releases it.
func Classify(balance decimal.Decimal, deferralActive bool) FinancialStatus {
	if deferralActive {
		return StatusDeferred
	}
	if balance.GreaterThan(LargeDebtThreshold) {
		return StatusBlocked
	}
	return StatusOk
}

// Recompute derives balance and status from current totals. It is a pure
// function: identical inputs always yield identical output.
func Recompute(totals Totals, deferralActive bool) BalanceResult {
	balance := totals.Balance()
	return BalanceResult{Balance: balance, Status: Classify(balance, deferralActive)}
}
