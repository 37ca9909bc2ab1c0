package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// MandatoryLineCodes are ancillary zero-amount lines every tuition invoice
// must carry, injected when the issuer omits them.
var MandatoryLineCodes = []string{"KIT", "LABO"}

// LineItem is one billed position on an invoice.
type LineItem struct {
	Code   string
	Label  string
	Amount decimal.Decimal
}

// Invoice is a billed claim against one student.
type Invoice struct {
	number        string
	beneficiaryID string
	programCode   string
	academicYear  string
	issueDate     time.Time
	dueDate       *time.Time
	status        InvoiceStatus
	lines         []LineItem

	isNew bool
}

// FormatInvoiceNumber renders the canonical invoice number for a year and
// sequence, e.g. 2025_FACT_SCOL_0042.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("%d_FACT_SCOL_%04d", year, seq)
}

// NewInvoice creates a draft invoice. Lines with a negative amount are
// rejected; the mandatory ancillary lines are injected when missing.
func NewInvoice(number, beneficiaryID, programCode, academicYear string, issueDate time.Time, lines []LineItem) (*Invoice, error) {
	if number == "" {
		return nil, fmt.Errorf("billing: empty invoice number")
	}
	if beneficiaryID == "" {
		return nil, fmt.Errorf("billing: empty beneficiary id")
	}
	seen := make(map[string]struct{}, len(lines))
	out := make([]LineItem, 0, len(lines)+len(MandatoryLineCodes))
	for _, li := range lines {
		if li.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: line %s", ErrNegativeAmount, li.Code)
		}
		code := strings.ToUpper(strings.TrimSpace(li.Code))
		li.Code = code
		seen[code] = struct{}{}
		out = append(out, li)
	}
	for _, code := range MandatoryLineCodes {
		if _, ok := seen[code]; !ok {
			out = append(out, LineItem{Code: code, Label: code, Amount: decimal.Zero})
		}
	}
	return &Invoice{
		number:        number,
		beneficiaryID: beneficiaryID,
		programCode:   programCode,
		academicYear:  academicYear,
		issueDate:     issueDate,
		status:        InvoiceStatusDraft,
		lines:         out,
		isNew:         true,
	}, nil
}

// Issue moves a draft invoice to issued with the given due date.
func (inv *Invoice) Issue(dueDate *time.Time) error {
	if inv.status != InvoiceStatusDraft {
		return ErrInvoiceNotOpen
	}
	inv.status = InvoiceStatusIssued
	if dueDate != nil {
		d := *dueDate
		inv.dueDate = &d
	}
	return nil
}

// MarkPaid closes an issued invoice.
func (inv *Invoice) MarkPaid() error {
	if inv.status != InvoiceStatusIssued {
		return ErrInvoiceNotOpen
	}
	inv.status = InvoiceStatusPaid
	return nil
}

// Cancel voids a draft or issued invoice.
func (inv *Invoice) Cancel() error {
	if inv.status != InvoiceStatusDraft && inv.status != InvoiceStatusIssued {
		return ErrInvoiceNotOpen
	}
	inv.status = InvoiceStatusCancelled
	return nil
}

// Total is the sum of line amounts.
func (inv *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range inv.lines {
		total = total.Add(li.Amount)
	}
	return total
}

func (inv *Invoice) Number() string         { return inv.number }
func (inv *Invoice) BeneficiaryID() string  { return inv.beneficiaryID }
func (inv *Invoice) ProgramCode() string    { return inv.programCode }
func (inv *Invoice) AcademicYear() string   { return inv.academicYear }
func (inv *Invoice) IssueDate() time.Time   { return inv.issueDate }
func (inv *Invoice) Status() InvoiceStatus  { return inv.status }
func (inv *Invoice) IsNew() bool            { return inv.isNew }

// DueDate returns a copy of the due date, nil when unset.
func (inv *Invoice) DueDate() *time.Time {
	if inv.dueDate == nil {
		return nil
	}
	d := *inv.dueDate
	return &d
}

// Lines returns a defensive copy of the line items.
func (inv *Invoice) Lines() []LineItem {
	out := make([]LineItem, len(inv.lines))
	copy(out, inv.lines)
	return out
}

// MarkPersisted marks the invoice as persisted.
func (inv *Invoice) MarkPersisted() {
	if inv != nil {
		inv.isNew = false
	}
}

// Clone returns a detached copy marked as persisted.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	cp := *inv
	cp.lines = make([]LineItem, len(inv.lines))
	copy(cp.lines, inv.lines)
	if inv.dueDate != nil {
		d := *inv.dueDate
		cp.dueDate = &d
	}
	cp.isNew = false
	return &cp
}

// RehydrateInvoice rebuilds a persisted invoice without construction checks.
func RehydrateInvoice(number, beneficiaryID, programCode, academicYear string, issueDate time.Time, dueDate *time.Time, status InvoiceStatus, lines []LineItem) *Invoice {
	inv := &Invoice{
		number:        number,
		beneficiaryID: beneficiaryID,
		programCode:   programCode,
		academicYear:  academicYear,
		issueDate:     issueDate,
		status:        status,
		lines:         lines,
	}
	if dueDate != nil {
		d := *dueDate
		inv.dueDate = &d
	}
	return inv
}
