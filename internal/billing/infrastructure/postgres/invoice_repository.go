package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	billing "campus-ledger/internal/billing/domain"
)

const (
	defaultInvoiceTable  = "invoices"
	defaultSequenceTable = "invoice_sequences"
)

// InvoiceRepository is a Postgres implementation for invoices. Line items
// are stored as a JSON column; invoice numbers come from a per-year
// sequence row locked with SELECT ... FOR UPDATE.
type InvoiceRepository struct {
	db       *sql.DB
	table    string
	seqTable string
}

// NewInvoiceRepository constructs a repository with defaults.
func NewInvoiceRepository(db *sql.DB, opts ...InvoiceRepositoryOption) *InvoiceRepository {
	repo := &InvoiceRepository{
		db:       db,
		table:    defaultInvoiceTable,
		seqTable: defaultSequenceTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InvoiceRepositoryOption configures the repository.
type InvoiceRepositoryOption func(*InvoiceRepository)

// WithInvoiceTable overrides the default invoice table.
func WithInvoiceTable(table string) InvoiceRepositoryOption {
	return func(repo *InvoiceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithSequenceTable overrides the default sequence table.
func WithSequenceTable(table string) InvoiceRepositoryOption {
	return func(repo *InvoiceRepository) {
		if table != "" {
			repo.seqTable = table
		}
	}
}

type lineItemRecord struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// FindByNumber loads one invoice.
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT number, beneficiary_id, program_code, academic_year, issue_date, due_date, status, line_items
FROM %s
WHERE number = $1
LIMIT 1`, r.table)
	return scanInvoice(r.db.QueryRowContext(ctx, query, number))
}

// ListByBeneficiary returns all invoices of one student.
func (r *InvoiceRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT number, beneficiary_id, program_code, academic_year, issue_date, due_date, status, line_items
FROM %s
WHERE beneficiary_id = $1
ORDER BY issue_date, number`, r.table)

	rows, err := r.db.QueryContext(ctx, query, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var (
		number, beneficiaryID, programCode, academicYear, status string
		issueDate                                                time.Time
		dueDate                                                  sql.NullTime
		rawLines                                                 []byte
	)
	if err := row.Scan(&number, &beneficiaryID, &programCode, &academicYear, &issueDate, &dueDate, &status, &rawLines); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrNotFound
		}
		return nil, err
	}

	var records []lineItemRecord
	if len(rawLines) > 0 {
		if err := json.Unmarshal(rawLines, &records); err != nil {
			return nil, fmt.Errorf("invoice repo: decode line items of %s: %w", number, err)
		}
	}
	lines := make([]billing.LineItem, 0, len(records))
	for _, rec := range records {
		amount, err := parseAmount(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("invoice repo: line %s of %s: %w", rec.Code, number, err)
		}
		lines = append(lines, billing.LineItem{Code: rec.Code, Label: rec.Label, Amount: amount})
	}

	var due *time.Time
	if dueDate.Valid {
		d := dueDate.Time
		due = &d
	}
	return billing.RehydrateInvoice(number, beneficiaryID, programCode, academicYear, issueDate, due, billing.InvoiceStatus(status), lines), nil
}

// Save upserts the invoice.
func (r *InvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if inv == nil {
		return billing.ErrNilAggregate
	}

	records := make([]lineItemRecord, 0, len(inv.Lines()))
	for _, li := range inv.Lines() {
		records = append(records, lineItemRecord{Code: li.Code, Label: li.Label, Amount: li.Amount.String()})
	}
	rawLines, err := json.Marshal(records)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	number,
	beneficiary_id,
	program_code,
	academic_year,
	issue_date,
	due_date,
	status,
	line_items,
	total_amount
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)
ON CONFLICT (number)
DO UPDATE SET
	due_date = EXCLUDED.due_date,
	status = EXCLUDED.status,
	line_items = EXCLUDED.line_items,
	total_amount = EXCLUDED.total_amount,
	updated_at = NOW()`, r.table)

	var due any
	if d := inv.DueDate(); d != nil {
		due = d.UTC()
	}
	_, err = r.db.ExecContext(
		ctx,
		query,
		inv.Number(),
		inv.BeneficiaryID(),
		inv.ProgramCode(),
		inv.AcademicYear(),
		inv.IssueDate().UTC(),
		due,
		string(inv.Status()),
		rawLines,
		inv.Total().String(),
	)
	if err != nil {
		return err
	}
	inv.MarkPersisted()
	return nil
}

// NextInvoiceNumber allocates the next number for a year. The per-year
// counter row is locked so concurrent issuers serialize on it.
func (r *InvoiceRepository) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("invoice repo: nil db")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	insert := fmt.Sprintf(`
INSERT INTO %s (year, last_seq) VALUES ($1, 0)
ON CONFLICT (year) DO NOTHING`, r.seqTable)
	if _, err := tx.ExecContext(ctx, insert, year); err != nil {
		return "", err
	}

	var seq int64
	lock := fmt.Sprintf(`SELECT last_seq FROM %s WHERE year = $1 FOR UPDATE`, r.seqTable)
	if err := tx.QueryRowContext(ctx, lock, year).Scan(&seq); err != nil {
		return "", err
	}
	seq++

	update := fmt.Sprintf(`UPDATE %s SET last_seq = $1 WHERE year = $2`, r.seqTable)
	if _, err := tx.ExecContext(ctx, update, seq, year); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return billing.FormatInvoiceNumber(year, seq), nil
}
