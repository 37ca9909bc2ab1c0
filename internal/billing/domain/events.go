package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecomputeRequested asks for a full balance recomputation of one student.
// Published by every invoice, payment and grant write.
type RecomputeRequested struct {
	BeneficiaryID string
	Reason        string
	OccurredAt    time.Time
}

// BalanceRecomputed reports a completed recomputation.
type BalanceRecomputed struct {
	BeneficiaryID string
	Balance       decimal.Decimal
	Status        FinancialStatus
	OccurredAt    time.Time
}

// PaymentRecorded reports an appended payment.
type PaymentRecorded struct {
	BeneficiaryID string
	InvoiceNumber string
	Amount        decimal.Decimal
	OccurredAt    time.Time
}

// InvoiceIssued reports a newly issued invoice.
type InvoiceIssued struct {
	BeneficiaryID string
	Number        string
	Total         decimal.Decimal
	OccurredAt    time.Time
}
