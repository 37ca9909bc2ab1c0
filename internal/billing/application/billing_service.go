package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	billing "campus-ledger/internal/billing/domain"
	"campus-ledger/internal/rules"
)

// IssueInvoiceCommand requests a new tuition invoice.
type IssueInvoiceCommand struct {
	BeneficiaryID string
	ProgramCode   string
	AcademicYear  string
	Lines         []billing.LineItem
	DueDate       *time.Time
}

// RecordPaymentCommand appends a received payment.
type RecordPaymentCommand struct {
	PaymentID     string
	BeneficiaryID string
	InvoiceNumber string
	Amount        decimal.Decimal
	ReceivedAt    time.Time
	Method        string
	Reference     string
}

// BillingService handles invoice and payment use cases. Every write ends
// with a RecomputeRequested event so the standing catches up.
type BillingService struct {
	invoices  billing.InvoiceRepository
	payments  billing.PaymentRepository
	finance   billing.FinanceRepository
	resolver  rules.Resolver
	publisher EventPublisher
	clock     Clock
}

// NewBillingService constructs the service.
func NewBillingService(
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
	finance billing.FinanceRepository,
	resolver rules.Resolver,
	publisher EventPublisher,
	clock Clock,
) (*BillingService, error) {
	if invoices == nil {
		return nil, errors.New("billing service: nil invoice repository")
	}
	if payments == nil {
		return nil, errors.New("billing service: nil payment repository")
	}
	if finance == nil {
		return nil, errors.New("billing service: nil finance repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BillingService{
		invoices:  invoices,
		payments:  payments,
		finance:   finance,
		resolver:  resolver,
		publisher: publisher,
		clock:     clock,
	}, nil
}

// IssueInvoice creates and issues a numbered invoice. When the command
// carries no lines, the program's fee schedule provides them.
func (s *BillingService) IssueInvoice(ctx context.Context, cmd IssueInvoiceCommand) (*billing.Invoice, error) {
	now := s.clock.Now()

	lines := cmd.Lines
	if len(lines) == 0 && s.resolver != nil {
		fs, err := s.resolver.FeeSchedule(ctx, cmd.ProgramCode, cmd.AcademicYear)
		if err != nil {
			return nil, err
		}
		for _, tr := range fs.Tranches {
			lines = append(lines, billing.LineItem{
				Code:   string(tr.Kind),
				Label:  tr.Label,
				Amount: tr.Amount,
			})
		}
	}

	number, err := s.invoices.NextInvoiceNumber(ctx, now.Year())
	if err != nil {
		return nil, err
	}
	inv, err := billing.NewInvoice(number, cmd.BeneficiaryID, cmd.ProgramCode, cmd.AcademicYear, now, lines)
	if err != nil {
		return nil, err
	}
	if err := inv.Issue(cmd.DueDate); err != nil {
		return nil, err
	}
	if err := s.invoices.Save(ctx, inv); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, billing.InvoiceIssued{
			BeneficiaryID: cmd.BeneficiaryID,
			Number:        number,
			Total:         inv.Total(),
			OccurredAt:    now,
		}); err != nil {
			return nil, err
		}
		if err := s.requestRecompute(ctx, cmd.BeneficiaryID, "invoice_issued", now); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// RecordPayment appends one payment to the ledger.
func (s *BillingService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) error {
	if cmd.BeneficiaryID == "" {
		return billing.ErrNilAggregate
	}
	if !cmd.Amount.IsPositive() {
		return billing.ErrNonPositiveAmount
	}

	receivedAt := cmd.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.clock.Now()
	}
	err := s.payments.Append(ctx, billing.Payment{
		ID:            cmd.PaymentID,
		BeneficiaryID: cmd.BeneficiaryID,
		InvoiceNumber: cmd.InvoiceNumber,
		Amount:        cmd.Amount,
		ReceivedAt:    receivedAt,
		Method:        cmd.Method,
		Reference:     cmd.Reference,
	})
	if err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, billing.PaymentRecorded{
		BeneficiaryID: cmd.BeneficiaryID,
		InvoiceNumber: cmd.InvoiceNumber,
		Amount:        cmd.Amount,
		OccurredAt:    receivedAt,
	}); err != nil {
		return err
	}
	return s.requestRecompute(ctx, cmd.BeneficiaryID, "payment_recorded", receivedAt)
}

// Invoice loads one invoice by number.
func (s *BillingService) Invoice(ctx context.Context, number string) (*billing.Invoice, error) {
	return s.invoices.FindByNumber(ctx, number)
}

// GuardRegistration rejects registration for blocked students. A student
// without a standing yet registers freely.
func (s *BillingService) GuardRegistration(ctx context.Context, beneficiaryID string) error {
	standing, err := s.finance.FindByBeneficiary(ctx, beneficiaryID)
	if errors.Is(err, billing.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return standing.GuardRegistration()
}

func (s *BillingService) requestRecompute(ctx context.Context, beneficiaryID, reason string, at time.Time) error {
	return s.publisher.Publish(ctx, billing.RecomputeRequested{
		BeneficiaryID: beneficiaryID,
		Reason:        reason,
		OccurredAt:    at,
	})
}
