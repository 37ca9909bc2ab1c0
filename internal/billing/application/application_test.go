package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "campus-ledger/internal/billing/domain"
	"campus-ledger/internal/billing/infrastructure/memory"
	"campus-ledger/internal/rules"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturePublisher) Publish(ctx context.Context, event any) error {
	_ = ctx
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) ofType(match func(any) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if match(ev) {
			n++
		}
	}
	return n
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type stubDeferrals struct{ active bool }

func (s stubDeferrals) DeferralActive(ctx context.Context, beneficiaryID string, ref time.Time) (bool, error) {
	_, _, _ = ctx, beneficiaryID, ref
	return s.active, nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func testResolver(t *testing.T) rules.Resolver {
	t.Helper()
	due := func(y int, m time.Month, d int) *time.Time {
		dt := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &dt
	}
	resolver := rules.NewMemoryResolver()
	resolver.Register("AGRO-L1", "2025-2026", rules.ProgramConfig{
		Fees: rules.FeeSchedule{
			ProgramCode:  "AGRO-L1",
			AcademicYear: "2025-2026",
			Currency:     "XAF",
			Tranches: []rules.Tranche{
				{Kind: rules.TrancheInscription, Label: "Inscription", Amount: dec(t, "25000"), DueDate: due(2025, time.October, 15)},
				{Kind: rules.TrancheScolarite, Label: "Scolarité tranche 1", Amount: dec(t, "50000"), DueDate: due(2025, time.October, 30)},
				{Kind: rules.TrancheScolarite, Label: "Scolarité tranche 2", Amount: dec(t, "50000"), DueDate: due(2025, time.December, 14)},
			},
		},
	})
	return resolver
}

type billingFixture struct {
	invoices  *memory.InvoiceRepository
	payments  *memory.PaymentRepository
	finance   *memory.FinanceRepository
	publisher *capturePublisher
	billing   *BillingService
	balance   *BalanceService
	schedule  *ScheduleService
}

func newBillingFixture(t *testing.T, deferrals DeferralStateReader) *billingFixture {
	t.Helper()
	f := &billingFixture{
		invoices:  memory.NewInvoiceRepository(),
		payments:  memory.NewPaymentRepository(),
		finance:   memory.NewFinanceRepository(),
		publisher: &capturePublisher{},
	}
	clock := fixedClock{at: time.Date(2025, time.November, 2, 10, 0, 0, 0, time.UTC)}
	resolver := testResolver(t)

	var err error
	f.billing, err = NewBillingService(f.invoices, f.payments, f.finance, resolver, f.publisher, clock)
	if err != nil {
		t.Fatalf("NewBillingService: %v", err)
	}
	totals := &memory.TotalsReader{Invoices: f.invoices, Payments: f.payments}
	f.balance, err = NewBalanceService(f.finance, totals, deferrals, f.publisher, clock)
	if err != nil {
		t.Fatalf("NewBalanceService: %v", err)
	}
	f.schedule, err = NewScheduleService(resolver, f.payments, clock)
	if err != nil {
		t.Fatalf("NewScheduleService: %v", err)
	}
	return f
}

func TestIssueInvoiceFromFeeSchedule(t *testing.T) {
	f := newBillingFixture(t, nil)
	ctx := context.Background()

	inv, err := f.billing.IssueInvoice(ctx, IssueInvoiceCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	})
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if got, want := inv.Number(), "2025_FACT_SCOL_0001"; got != want {
		t.Errorf("number = %q, want %q", got, want)
	}
	if !inv.Total().Equal(dec(t, "125000")) {
		t.Errorf("total = %s, want 125000", inv.Total())
	}
	if inv.Status() != billing.InvoiceStatusIssued {
		t.Errorf("status = %q, want issued", inv.Status())
	}
	recomputes := f.publisher.ofType(func(ev any) bool {
		_, ok := ev.(billing.RecomputeRequested)
		return ok
	})
	if recomputes != 1 {
		t.Errorf("recompute requests = %d, want 1", recomputes)
	}
	issued := f.publisher.ofType(func(ev any) bool {
		evt, ok := ev.(billing.InvoiceIssued)
		return ok && evt.Number == inv.Number() && evt.Total.Equal(inv.Total())
	})
	if issued != 1 {
		t.Errorf("invoice issued events = %d, want 1", issued)
	}

	second, err := f.billing.IssueInvoice(ctx, IssueInvoiceCommand{
		BeneficiaryID: "STU-002",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	})
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if got, want := second.Number(), "2025_FACT_SCOL_0002"; got != want {
		t.Errorf("second number = %q, want %q", got, want)
	}
}

func TestRecordPaymentPublishesRecompute(t *testing.T) {
	f := newBillingFixture(t, nil)
	ctx := context.Background()

	err := f.billing.RecordPayment(ctx, RecordPaymentCommand{
		PaymentID:     "p1",
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "30000"),
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if err := f.billing.RecordPayment(ctx, RecordPaymentCommand{
		PaymentID:     "p2",
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "0"),
	}); !errors.Is(err, billing.ErrNonPositiveAmount) {
		t.Errorf("zero payment err = %v, want ErrNonPositiveAmount", err)
	}

	ledger, err := f.payments.LedgerFor(ctx, "STU-001")
	if err != nil {
		t.Fatalf("LedgerFor: %v", err)
	}
	if !ledger.TotalPaid().Equal(dec(t, "30000")) {
		t.Errorf("total paid = %s, want 30000", ledger.TotalPaid())
	}
	recomputes := f.publisher.ofType(func(ev any) bool {
		_, ok := ev.(billing.RecomputeRequested)
		return ok
	})
	if recomputes != 1 {
		t.Errorf("recompute requests = %d, want 1", recomputes)
	}
}

func TestBalanceRecomputeBlocksLargeDebt(t *testing.T) {
	f := newBillingFixture(t, stubDeferrals{active: false})
	ctx := context.Background()

	if _, err := f.billing.IssueInvoice(ctx, IssueInvoiceCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	}); err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if err := f.billing.RecordPayment(ctx, RecordPaymentCommand{
		PaymentID:     "p1",
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "70000"),
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	result, err := f.balance.Recompute(ctx, "STU-001")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !result.Balance.Equal(dec(t, "55000")) {
		t.Errorf("balance = %s, want 55000", result.Balance)
	}
	if result.Status != billing.StatusBlocked {
		t.Errorf("status = %q, want %q", result.Status, billing.StatusBlocked)
	}

	standing, err := f.balance.Standing(ctx, "STU-001")
	if err != nil {
		t.Fatalf("Standing: %v", err)
	}
	if standing.Status() != billing.StatusBlocked {
		t.Errorf("persisted status = %q, want blocked", standing.Status())
	}
	if err := f.billing.GuardRegistration(ctx, "STU-001"); !errors.Is(err, billing.ErrPolicyViolation) {
		t.Errorf("registration guard err = %v, want policy violation", err)
	}

	recomputed := f.publisher.ofType(func(ev any) bool {
		_, ok := ev.(billing.BalanceRecomputed)
		return ok
	})
	if recomputed != 1 {
		t.Errorf("BalanceRecomputed events = %d, want 1", recomputed)
	}
}

func TestBalanceRecomputeDeferralOverride(t *testing.T) {
	f := newBillingFixture(t, stubDeferrals{active: true})
	ctx := context.Background()

	if _, err := f.billing.IssueInvoice(ctx, IssueInvoiceCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	}); err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}

	result, err := f.balance.Recompute(ctx, "STU-001")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if result.Status != billing.StatusDeferred {
		t.Errorf("status = %q, want %q despite 125000 debt", result.Status, billing.StatusDeferred)
	}
	if err := f.billing.GuardRegistration(ctx, "STU-001"); err != nil {
		t.Errorf("deferred student should register: %v", err)
	}
}

func TestBalanceRecomputeIdempotent(t *testing.T) {
	f := newBillingFixture(t, nil)
	ctx := context.Background()

	if _, err := f.billing.IssueInvoice(ctx, IssueInvoiceCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	}); err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}

	first, err := f.balance.Recompute(ctx, "STU-001")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	second, err := f.balance.Recompute(ctx, "STU-001")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !first.Balance.Equal(second.Balance) || first.Status != second.Status {
		t.Errorf("recompute not idempotent: %+v vs %+v", first, second)
	}
}

func TestScheduleForAllocatesCumulativePayments(t *testing.T) {
	f := newBillingFixture(t, nil)
	ctx := context.Background()

	for i, amount := range []string{"25000", "45000"} {
		if err := f.billing.RecordPayment(ctx, RecordPaymentCommand{
			PaymentID:     "p" + string(rune('1'+i)),
			BeneficiaryID: "STU-001",
			Amount:        dec(t, amount),
		}); err != nil {
			t.Fatalf("RecordPayment: %v", err)
		}
	}

	sched, err := f.schedule.ScheduleFor(ctx, ScheduleQuery{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	})
	if err != nil {
		t.Fatalf("ScheduleFor: %v", err)
	}
	// 70000 covers inscription and 45000 of tranche 1.
	if !sched.Lines[0].Paid {
		t.Errorf("inscription should be paid")
	}
	if got := sched.Lines[1]; !got.Partial || !got.RemainingOwed.Equal(dec(t, "5000")) {
		t.Errorf("tranche 1 = %+v, want partial with 5000 remaining", got)
	}
	if got := sched.Lines[2]; got.Paid || !got.RemainingOwed.Equal(dec(t, "50000")) {
		t.Errorf("tranche 2 = %+v, want untouched", got)
	}
	if sched.Standing != billing.StandingLate {
		t.Errorf("standing = %q, want late at Nov 2", sched.Standing)
	}
}

func TestBalanceServiceSerializesPerBeneficiary(t *testing.T) {
	f := newBillingFixture(t, nil)
	ctx := context.Background()

	if _, err := f.billing.IssueInvoice(ctx, IssueInvoiceCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
	}); err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.balance.Recompute(ctx, "STU-001"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent recompute: %v", err)
	}

	standing, err := f.balance.Standing(ctx, "STU-001")
	if err != nil {
		t.Fatalf("Standing: %v", err)
	}
	if !standing.Balance().Equal(dec(t, "125000")) {
		t.Errorf("balance = %s, want 125000", standing.Balance())
	}
	if standing.Status() != billing.StatusBlocked {
		t.Errorf("status = %q, want blocked", standing.Status())
	}
}
