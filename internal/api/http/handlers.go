package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

// PaymentsReportHandler serves payment ledger queries for the
// accounting office. It reads the payments table directly: reporting
// needs no aggregate behavior, only rows.
type PaymentsReportHandler struct {
	db *sql.DB
}

// NewPaymentsReportHandler constructs a PaymentsReportHandler.
func NewPaymentsReportHandler(db *sql.DB) *PaymentsReportHandler {
	return &PaymentsReportHandler{db: db}
}

// ServeHTTP handles GET /api/v1/reports/payments.
func (h *PaymentsReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	beneficiaryID := r.URL.Query().Get("student_id")
	if beneficiaryID == "" {
		http.Error(w, "student_id is required", http.StatusBadRequest)
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryPayments(r.Context(), h.db, beneficiaryID, from, to)
	if err != nil {
		http.Error(w, "query payments error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// InvoicesReportHandler serves invoice queries by student and issue
// date range.
type InvoicesReportHandler struct {
	db *sql.DB
}

// NewInvoicesReportHandler constructs an InvoicesReportHandler.
func NewInvoicesReportHandler(db *sql.DB) *InvoicesReportHandler {
	return &InvoicesReportHandler{db: db}
}

// ServeHTTP handles GET /api/v1/reports/invoices.
func (h *InvoicesReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	beneficiaryID := r.URL.Query().Get("student_id")
	if beneficiaryID == "" {
		http.Error(w, "student_id is required", http.StatusBadRequest)
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryInvoices(r.Context(), h.db, beneficiaryID, from, to)
	if err != nil {
		http.Error(w, "query invoices error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportPaymentsCSVHandler serves payment ledger CSV exports.
type ExportPaymentsCSVHandler struct {
	db *sql.DB
}

// NewExportPaymentsCSVHandler constructs an ExportPaymentsCSVHandler.
func NewExportPaymentsCSVHandler(db *sql.DB) *ExportPaymentsCSVHandler {
	return &ExportPaymentsCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/reports/payments.csv.
func (h *ExportPaymentsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	beneficiaryID := r.URL.Query().Get("student_id")
	if beneficiaryID == "" {
		http.Error(w, "student_id is required", http.StatusBadRequest)
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := queryPayments(r.Context(), h.db, beneficiaryID, from, to)
	if err != nil {
		http.Error(w, "query payments error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"payment_id",
		"student_id",
		"invoice_number",
		"amount",
		"received_at",
		"method",
		"reference",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			row.BeneficiaryID,
			row.InvoiceNumber,
			row.Amount,
			row.ReceivedAt.Format(time.RFC3339),
			row.Method,
			row.Reference,
		})
	}
	writer.Flush()
}

type paymentRow struct {
	ID            string    `json:"payment_id"`
	BeneficiaryID string    `json:"student_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Amount        string    `json:"amount"`
	ReceivedAt    time.Time `json:"received_at"`
	Method        string    `json:"method"`
	Reference     string    `json:"reference"`
}

type invoiceRow struct {
	Number        string     `json:"number"`
	BeneficiaryID string     `json:"student_id"`
	ProgramCode   string     `json:"program_code"`
	AcademicYear  string     `json:"academic_year"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date"`
	Status        string     `json:"status"`
	TotalAmount   string     `json:"total_amount"`
}

func queryPayments(ctx context.Context, db *sql.DB, beneficiaryID string, from, to time.Time) ([]paymentRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	id,
	beneficiary_id,
	invoice_number,
	amount,
	received_at,
	method,
	reference
FROM payments
WHERE beneficiary_id = $1
	AND received_at >= $2
	AND received_at < $3
ORDER BY received_at ASC, id ASC`, beneficiaryID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []paymentRow
	for rows.Next() {
		var row paymentRow
		var invoiceNumber, method, reference sql.NullString
		if err := rows.Scan(
			&row.ID,
			&row.BeneficiaryID,
			&invoiceNumber,
			&row.Amount,
			&row.ReceivedAt,
			&method,
			&reference,
		); err != nil {
			return nil, err
		}
		row.ReceivedAt = row.ReceivedAt.UTC()
		row.InvoiceNumber = invoiceNumber.String
		row.Method = method.String
		row.Reference = reference.String
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func queryInvoices(ctx context.Context, db *sql.DB, beneficiaryID string, from, to time.Time) ([]invoiceRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	number,
	beneficiary_id,
	program_code,
	academic_year,
	issue_date,
	due_date,
	status,
	total_amount
FROM invoices
WHERE beneficiary_id = $1
	AND issue_date >= $2
	AND issue_date < $3
ORDER BY issue_date ASC, number ASC`, beneficiaryID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invoiceRow
	for rows.Next() {
		var row invoiceRow
		var due sql.NullTime
		if err := rows.Scan(
			&row.Number,
			&row.BeneficiaryID,
			&row.ProgramCode,
			&row.AcademicYear,
			&row.IssueDate,
			&due,
			&row.Status,
			&row.TotalAmount,
		); err != nil {
			return nil, err
		}
		row.IssueDate = row.IssueDate.UTC()
		if due.Valid {
			t := due.Time.UTC()
			row.DueDate = &t
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// parseDateRange reads from/to query params as dates; to is exclusive.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDateQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}
