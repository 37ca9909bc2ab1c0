package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	billing "campus-ledger/internal/billing/domain"
)

const defaultPaymentTable = "payments"

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// PaymentRepository is a Postgres implementation of the append-only
// payment ledger. Rows are inserted, never updated.
type PaymentRepository struct {
	db    *sql.DB
	table string
}

// NewPaymentRepository constructs a repository with defaults.
func NewPaymentRepository(db *sql.DB, opts ...PaymentRepositoryOption) *PaymentRepository {
	repo := &PaymentRepository{db: db, table: defaultPaymentTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// PaymentRepositoryOption configures the repository.
type PaymentRepositoryOption func(*PaymentRepository)

// WithPaymentTable overrides the default table.
func WithPaymentTable(table string) PaymentRepositoryOption {
	return func(repo *PaymentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// LedgerFor returns the payment ledger of one student in receipt order.
func (r *PaymentRepository) LedgerFor(ctx context.Context, beneficiaryID string) (*billing.PaymentLedger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, invoice_number, amount, received_at, method, reference
FROM %s
WHERE beneficiary_id = $1
ORDER BY received_at, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var (
			p          billing.Payment
			rawAmount  string
			invoice    sql.NullString
			method     sql.NullString
			reference  sql.NullString
			receivedAt time.Time
		)
		if err := rows.Scan(&p.ID, &invoice, &rawAmount, &receivedAt, &method, &reference); err != nil {
			return nil, err
		}
		p.BeneficiaryID = beneficiaryID
		p.InvoiceNumber = invoice.String
		p.Method = method.String
		p.Reference = reference.String
		p.ReceivedAt = receivedAt
		if p.Amount, err = parseAmount(rawAmount); err != nil {
			return nil, fmt.Errorf("payment repo: payment %s: %w", p.ID, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return billing.RehydratePaymentLedger(beneficiaryID, payments), nil
}

// Append inserts one payment row.
func (r *PaymentRepository) Append(ctx context.Context, p billing.Payment) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if !p.Amount.IsPositive() {
		return billing.ErrNonPositiveAmount
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	beneficiary_id,
	invoice_number,
	amount,
	received_at,
	method,
	reference
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		p.ID,
		p.BeneficiaryID,
		p.InvoiceNumber,
		p.Amount.String(),
		p.ReceivedAt.UTC(),
		p.Method,
		p.Reference,
	)
	return err
}
