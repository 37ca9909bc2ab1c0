package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	billing "campus-ledger/internal/billing/domain"
)

// InvoiceRepository is an in-memory repository for invoices.
type InvoiceRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.Invoice
	seq  map[int]int64
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{
		data: make(map[string]*billing.Invoice),
		seq:  make(map[int]int64),
	}
}

// FindByNumber loads one invoice.
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	inv := r.data[number]
	r.mu.RUnlock()
	if inv == nil {
		return nil, billing.ErrNotFound
	}
	return inv.Clone(), nil
}

// ListByBeneficiary returns all invoices of one student.
func (r *InvoiceRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*billing.Invoice
	for _, inv := range r.data {
		if inv.BeneficiaryID() == beneficiaryID {
			out = append(out, inv.Clone())
		}
	}
	return out, nil
}

// Save persists an invoice (overwrites existing).
func (r *InvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	_ = ctx
	if inv == nil {
		return billing.ErrNilAggregate
	}
	copy := inv.Clone()
	r.mu.Lock()
	r.data[inv.Number()] = copy
	r.mu.Unlock()
	inv.MarkPersisted()
	return nil
}

// NextInvoiceNumber allocates the next number for a year under the
// repository mutex, mirroring the row lock of the Postgres variant.
func (r *InvoiceRepository) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	_ = ctx
	r.mu.Lock()
	r.seq[year]++
	seq := r.seq[year]
	r.mu.Unlock()
	return billing.FormatInvoiceNumber(year, seq), nil
}

// PaymentRepository is an in-memory append-only payment store.
type PaymentRepository struct {
	mu   sync.RWMutex
	data map[string][]billing.Payment
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{data: make(map[string][]billing.Payment)}
}

// LedgerFor returns the payment ledger of one student.
func (r *PaymentRepository) LedgerFor(ctx context.Context, beneficiaryID string) (*billing.PaymentLedger, error) {
	_ = ctx
	r.mu.RLock()
	payments := make([]billing.Payment, len(r.data[beneficiaryID]))
	copy(payments, r.data[beneficiaryID])
	r.mu.RUnlock()
	return billing.RehydratePaymentLedger(beneficiaryID, payments), nil
}

// Append records a payment.
func (r *PaymentRepository) Append(ctx context.Context, p billing.Payment) error {
	_ = ctx
	if !p.Amount.IsPositive() {
		return billing.ErrNonPositiveAmount
	}
	r.mu.Lock()
	r.data[p.BeneficiaryID] = append(r.data[p.BeneficiaryID], p)
	r.mu.Unlock()
	return nil
}

// FinanceRepository is an in-memory store for student standings.
type FinanceRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.StudentFinance
}

// NewFinanceRepository constructs a repository.
func NewFinanceRepository() *FinanceRepository {
	return &FinanceRepository{data: make(map[string]*billing.StudentFinance)}
}

// FindByBeneficiary loads a standing.
func (r *FinanceRepository) FindByBeneficiary(ctx context.Context, beneficiaryID string) (*billing.StudentFinance, error) {
	_ = ctx
	r.mu.RLock()
	f := r.data[beneficiaryID]
	r.mu.RUnlock()
	if f == nil {
		return nil, billing.ErrNotFound
	}
	return f.Clone(), nil
}

// Save persists a standing (overwrites existing).
func (r *FinanceRepository) Save(ctx context.Context, f *billing.StudentFinance) error {
	_ = ctx
	if f == nil {
		return billing.ErrNilAggregate
	}
	copy := f.Clone()
	r.mu.Lock()
	r.data[f.BeneficiaryID()] = copy
	r.mu.Unlock()
	f.MarkPersisted()
	return nil
}

// TotalsReader derives recompute inputs from the in-memory stores plus a
// scholarship total function supplied by the grants context.
type TotalsReader struct {
	Invoices     *InvoiceRepository
	Payments     *PaymentRepository
	Scholarships func(ctx context.Context, beneficiaryID string) (decimal.Decimal, error)
}

// TotalsFor sums issued invoices, payments and active scholarships.
func (t *TotalsReader) TotalsFor(ctx context.Context, beneficiaryID string) (billing.Totals, error) {
	var totals billing.Totals
	totals.Invoiced = decimal.Zero
	totals.Paid = decimal.Zero
	totals.ActiveScholarships = decimal.Zero

	invoices, err := t.Invoices.ListByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return totals, err
	}
	for _, inv := range invoices {
		if inv.Status() != billing.InvoiceStatusIssued && inv.Status() != billing.InvoiceStatusPaid {
			continue
		}
		totals.Invoiced = totals.Invoiced.Add(inv.Total())
	}

	ledger, err := t.Payments.LedgerFor(ctx, beneficiaryID)
	if err != nil {
		return totals, err
	}
	totals.Paid = ledger.TotalPaid()

	if t.Scholarships != nil {
		granted, err := t.Scholarships(ctx, beneficiaryID)
		if err != nil {
			return totals, err
		}
		totals.ActiveScholarships = granted
	}
	return totals, nil
}
