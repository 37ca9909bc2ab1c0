package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/auth"
	billingapp "campus-ledger/internal/billing/application"
	billing "campus-ledger/internal/billing/domain"
	"campus-ledger/internal/observability/metrics"
)

// Handler handles billing APIs: invoices, payments, schedules, standings.
type Handler struct {
	billing  *billingapp.BillingService
	balance  *billingapp.BalanceService
	schedule *billingapp.ScheduleService
}

// NewHandler constructs a handler.
func NewHandler(billingSvc *billingapp.BillingService, balance *billingapp.BalanceService, schedule *billingapp.ScheduleService) (*Handler, error) {
	if billingSvc == nil {
		return nil, errors.New("billing handler: nil billing service")
	}
	if balance == nil {
		return nil, errors.New("billing handler: nil balance service")
	}
	if schedule == nil {
		return nil, errors.New("billing handler: nil schedule service")
	}
	return &Handler{billing: billingSvc, balance: balance, schedule: schedule}, nil
}

// ServeHTTP handles routes under /api/v1/invoices, /api/v1/payments and
// /api/v1/students/{id}/(schedule|balance).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/invoices" && r.Method == http.MethodPost:
		h.handleIssueInvoice(w, r)
	case strings.HasPrefix(path, "/api/v1/invoices/") && r.Method == http.MethodGet:
		h.handleGetInvoice(w, r, strings.TrimPrefix(path, "/api/v1/invoices/"))
	case path == "/api/v1/payments" && r.Method == http.MethodPost:
		h.handleRecordPayment(w, r)
	case strings.HasPrefix(path, "/api/v1/students/"):
		h.handleStudent(w, r, strings.TrimPrefix(path, "/api/v1/students/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ensureSelfOrStaff rejects students reading records of other students.
func ensureSelfOrStaff(r *http.Request, beneficiaryID string) bool {
	if auth.RoleFromContext(r.Context()) != auth.RoleStudent {
		return true
	}
	return auth.SubjectFromContext(r.Context()) == beneficiaryID
}

func (h *Handler) handleIssueInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BeneficiaryID string `json:"beneficiary_id"`
		ProgramCode   string `json:"program_code"`
		AcademicYear  string `json:"academic_year"`
		DueDate       string `json:"due_date"`
		Lines         []struct {
			Code   string `json:"code"`
			Label  string `json:"label"`
			Amount string `json:"amount"`
		} `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cmd := billingapp.IssueInvoiceCommand{
		BeneficiaryID: req.BeneficiaryID,
		ProgramCode:   req.ProgramCode,
		AcademicYear:  req.AcademicYear,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			http.Error(w, "invalid due_date", http.StatusBadRequest)
			return
		}
		cmd.DueDate = &due
	}
	for _, li := range req.Lines {
		amount, err := decimal.NewFromString(li.Amount)
		if err != nil {
			http.Error(w, "invalid line amount", http.StatusBadRequest)
			return
		}
		cmd.Lines = append(cmd.Lines, billing.LineItem{Code: li.Code, Label: li.Label, Amount: amount})
	}

	inv, err := h.billing.IssueInvoice(r.Context(), cmd)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(invoiceResponse(inv))
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request, number string) {
	inv, err := h.billing.Invoice(r.Context(), number)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !ensureSelfOrStaff(r, inv.BeneficiaryID()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(invoiceResponse(inv))
}

func invoiceResponse(inv *billing.Invoice) map[string]any {
	lines := make([]map[string]any, 0, len(inv.Lines()))
	for _, li := range inv.Lines() {
		lines = append(lines, map[string]any{
			"code":   li.Code,
			"label":  li.Label,
			"amount": li.Amount.String(),
		})
	}
	resp := map[string]any{
		"number":         inv.Number(),
		"beneficiary_id": inv.BeneficiaryID(),
		"program_code":   inv.ProgramCode(),
		"academic_year":  inv.AcademicYear(),
		"issue_date":     inv.IssueDate().Format("2006-01-02"),
		"status":         string(inv.Status()),
		"total_amount":   inv.Total().String(),
		"lines":          lines,
	}
	if due := inv.DueDate(); due != nil {
		resp["due_date"] = due.Format("2006-01-02")
	}
	return resp
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID     string `json:"payment_id"`
		BeneficiaryID string `json:"beneficiary_id"`
		InvoiceNumber string `json:"invoice_number"`
		Amount        string `json:"amount"`
		Method        string `json:"method"`
		Reference     string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	err = h.billing.RecordPayment(r.Context(), billingapp.RecordPaymentCommand{
		PaymentID:     req.PaymentID,
		BeneficiaryID: req.BeneficiaryID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        amount,
		Method:        req.Method,
		Reference:     req.Reference,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"payment_id": req.PaymentID, "status": "recorded"})
}

func (h *Handler) handleStudent(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	beneficiaryID := parts[0]
	if !ensureSelfOrStaff(r, beneficiaryID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch strings.Join(parts[1:], "/") {
	case "balance":
		h.handleBalance(w, r, beneficiaryID)
	case "schedule":
		h.handleSchedule(w, r, beneficiaryID)
	case "schedule/export.pdf":
		h.handleScheduleExport(w, r, beneficiaryID, "pdf")
	case "schedule/export.xlsx":
		h.handleScheduleExport(w, r, beneficiaryID, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request, beneficiaryID string) {
	standing, err := h.balance.Standing(r.Context(), beneficiaryID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"beneficiary_id": standing.BeneficiaryID(),
		"balance":        standing.Balance().String(),
		"status":         string(standing.Status()),
		"computed_at":    standing.ComputedAt().Format(time.RFC3339),
	})
}

func scheduleQuery(r *http.Request, beneficiaryID string) billingapp.ScheduleQuery {
	return billingapp.ScheduleQuery{
		BeneficiaryID: beneficiaryID,
		ProgramCode:   r.URL.Query().Get("program"),
		AcademicYear:  r.URL.Query().Get("year"),
	}
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request, beneficiaryID string) {
	sched, err := h.schedule.ScheduleFor(r.Context(), scheduleQuery(r, beneficiaryID))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	lines := make([]map[string]any, 0, len(sched.Lines))
	for _, line := range sched.Lines {
		entry := map[string]any{
			"label":          line.Tranche.Label,
			"kind":           string(line.Tranche.Kind),
			"amount":         line.Tranche.Amount.String(),
			"amount_paid":    line.AmountPaid.String(),
			"remaining_owed": line.RemainingOwed.String(),
			"due":            line.Due,
			"paid":           line.Paid,
			"partial":        line.Partial,
		}
		if line.Tranche.DueDate != nil {
			entry["due_date"] = line.Tranche.DueDate.Format("2006-01-02")
		}
		lines = append(lines, entry)
	}
	resp := map[string]any{
		"beneficiary_id": beneficiaryID,
		"lines":          lines,
		"total_due":      sched.TotalDue.String(),
		"total_paid":     sched.TotalPaid.String(),
		"total_owed":     sched.TotalOwed.String(),
		"days_late":      sched.DaysLate,
		"standing":       string(sched.Standing),
	}
	if sched.NextDueDate != nil {
		resp["next_due_date"] = sched.NextDueDate.Format("2006-01-02")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleScheduleExport(w http.ResponseWriter, r *http.Request, beneficiaryID, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveScheduleExport(format, result, time.Since(start))
	}()

	q := scheduleQuery(r, beneficiaryID)
	sched, err := h.schedule.ScheduleFor(r.Context(), q)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	doc := ScheduleDocument{
		BeneficiaryID: beneficiaryID,
		ProgramCode:   q.ProgramCode,
		AcademicYear:  q.AcademicYear,
		Currency:      "XAF",
		GeneratedAt:   time.Now(),
		Schedule:      sched,
	}

	var data []byte
	contentType := "application/pdf"
	if format == "xlsx" {
		data, err = BuildScheduleXLSX(doc)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	} else {
		data, err = BuildSchedulePDF(doc)
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, billing.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrPolicyViolation):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
