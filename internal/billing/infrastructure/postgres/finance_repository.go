package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billing "campus-ledger/internal/billing/domain"
)

const defaultFinanceTable = "student_finance"

// FinanceRepository is a Postgres store for derived student standings.
type FinanceRepository struct {
	db    *sql.DB
	table string
}

// NewFinanceRepository constructs a repository with defaults.
func NewFinanceRepository(db *sql.DB, opts ...FinanceRepositoryOption) *FinanceRepository {
	repo := &FinanceRepository{db: db, table: defaultFinanceTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FinanceRepositoryOption configures the repository.
type FinanceRepositoryOption func(*FinanceRepository)

// WithFinanceTable overrides the default table.
func WithFinanceTable(table string) FinanceRepositoryOption {
	return func(repo *FinanceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindByBeneficiary loads one standing.
func (r *FinanceRepository) FindByBeneficiary(ctx context.Context, beneficiaryID string) (*billing.StudentFinance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("finance repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT status, balance, computed_at
FROM %s
WHERE beneficiary_id = $1
LIMIT 1`, r.table)

	var (
		status     string
		rawBalance string
		computedAt time.Time
	)
	row := r.db.QueryRowContext(ctx, query, beneficiaryID)
	if err := row.Scan(&status, &rawBalance, &computedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrNotFound
		}
		return nil, err
	}
	balance, err := parseAmount(rawBalance)
	if err != nil {
		return nil, fmt.Errorf("finance repo: standing of %s: %w", beneficiaryID, err)
	}
	return billing.RehydrateStudentFinance(beneficiaryID, billing.FinancialStatus(status), balance, computedAt), nil
}

// Save upserts the standing.
func (r *FinanceRepository) Save(ctx context.Context, f *billing.StudentFinance) error {
	if r == nil || r.db == nil {
		return errors.New("finance repo: nil db")
	}
	if f == nil {
		return billing.ErrNilAggregate
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	beneficiary_id,
	status,
	balance,
	computed_at
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (beneficiary_id)
DO UPDATE SET
	status = EXCLUDED.status,
	balance = EXCLUDED.balance,
	computed_at = EXCLUDED.computed_at,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		f.BeneficiaryID(),
		string(f.Status()),
		f.Balance().String(),
		f.ComputedAt().UTC(),
	)
	if err != nil {
		return err
	}
	f.MarkPersisted()
	return nil
}

// TotalsReader derives recompute inputs with aggregate queries over the
// invoice, payment and scholarship tables.
type TotalsReader struct {
	db *sql.DB

	invoiceTable     string
	paymentTable     string
	scholarshipTable string
}

// NewTotalsReader constructs a reader with default table names.
func NewTotalsReader(db *sql.DB) *TotalsReader {
	return &TotalsReader{
		db:               db,
		invoiceTable:     defaultInvoiceTable,
		paymentTable:     defaultPaymentTable,
		scholarshipTable: "scholarship_grants",
	}
}

// TotalsFor sums issued invoices, payments and active scholarships.
func (t *TotalsReader) TotalsFor(ctx context.Context, beneficiaryID string) (billing.Totals, error) {
	var totals billing.Totals
	if t == nil || t.db == nil {
		return totals, errors.New("totals reader: nil db")
	}

	query := fmt.Sprintf(`
SELECT
	COALESCE((SELECT SUM(total_amount) FROM %s WHERE beneficiary_id = $1 AND status IN ('ISSUED', 'PAID')), 0),
	COALESCE((SELECT SUM(amount) FROM %s WHERE beneficiary_id = $1), 0),
	COALESCE((SELECT SUM(amount) FROM %s WHERE beneficiary_id = $1 AND status = 'Active'), 0)`,
		t.invoiceTable, t.paymentTable, t.scholarshipTable)

	var rawInvoiced, rawPaid, rawGranted string
	row := t.db.QueryRowContext(ctx, query, beneficiaryID)
	if err := row.Scan(&rawInvoiced, &rawPaid, &rawGranted); err != nil {
		return totals, err
	}

	var err error
	if totals.Invoiced, err = parseAmount(rawInvoiced); err != nil {
		return totals, fmt.Errorf("totals reader: invoiced: %w", err)
	}
	if totals.Paid, err = parseAmount(rawPaid); err != nil {
		return totals, fmt.Errorf("totals reader: paid: %w", err)
	}
	if totals.ActiveScholarships, err = parseAmount(rawGranted); err != nil {
		return totals, fmt.Errorf("totals reader: scholarships: %w", err)
	}
	return totals, nil
}
