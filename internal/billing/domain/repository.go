package billing

import "context"

// InvoiceRepository persists invoices. NextInvoiceNumber must allocate
// numbers under mutual exclusion so concurrent issuers never collide.
type InvoiceRepository interface {
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*Invoice, error)
	Save(ctx context.Context, inv *Invoice) error
	NextInvoiceNumber(ctx context.Context, year int) (string, error)
}

// PaymentRepository persists the append-only payment ledger.
type PaymentRepository interface {
	LedgerFor(ctx context.Context, beneficiaryID string) (*PaymentLedger, error)
	Append(ctx context.Context, p Payment) error
}

// FinanceRepository persists derived student standings.
type FinanceRepository interface {
	FindByBeneficiary(ctx context.Context, beneficiaryID string) (*StudentFinance, error)
	Save(ctx context.Context, f *StudentFinance) error
}

// TotalsReader reads the aggregates a recomputation derives from.
// Implementations sum issued (non-cancelled) invoices, the payment
// ledger, and active scholarship amounts.
type TotalsReader interface {
	TotalsFor(ctx context.Context, beneficiaryID string) (Totals, error)
}
