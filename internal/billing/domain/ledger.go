package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one received amount, tied to an invoice, fungible in
// schedule allocation.
type Payment struct {
	ID            string
	BeneficiaryID string
	InvoiceNumber string
	Amount        decimal.Decimal
	ReceivedAt    time.Time
	Method        string
	Reference     string
}

// PaymentLedger is the append-only payment history of one student.
type PaymentLedger struct {
	beneficiaryID string
	payments      []Payment
}

// NewPaymentLedger creates an empty ledger for a student.
func NewPaymentLedger(beneficiaryID string) *PaymentLedger {
	return &PaymentLedger{beneficiaryID: beneficiaryID}
}

// RehydratePaymentLedger rebuilds a ledger from persisted payments.
func RehydratePaymentLedger(beneficiaryID string, payments []Payment) *PaymentLedger {
	l := &PaymentLedger{beneficiaryID: beneficiaryID}
	l.payments = append(l.payments, payments...)
	return l
}

// Append records a payment. Zero and negative amounts are rejected;
// the ledger is never rewritten.
func (l *PaymentLedger) Append(p Payment) error {
	if !p.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	l.payments = append(l.payments, p)
	return nil
}

// TotalPaid is the cumulative amount received.
func (l *PaymentLedger) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.payments {
		total = total.Add(p.Amount)
	}
	return total
}

func (l *PaymentLedger) BeneficiaryID() string { return l.beneficiaryID }

// Payments returns a defensive copy in append order.
func (l *PaymentLedger) Payments() []Payment {
	out := make([]Payment, len(l.payments))
	copy(out, l.payments)
	return out
}
