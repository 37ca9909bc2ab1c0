package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/auth"
	billing "campus-ledger/internal/billing/domain"
	grants "campus-ledger/internal/grants/domain"
	"campus-ledger/internal/grants/infrastructure/memory"
)

type capturePublisher struct{ events []any }

func (p *capturePublisher) Publish(ctx context.Context, event any) error {
	_ = ctx
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) count(match func(any) bool) int {
	n := 0
	for _, ev := range p.events {
		if match(ev) {
			n++
		}
	}
	return n
}

type movableClock struct{ at time.Time }

func (c *movableClock) Now() time.Time { return c.at }

type stubDebt struct{ debt decimal.Decimal }

func (s stubDebt) CurrentDebt(ctx context.Context, beneficiaryID string) (decimal.Decimal, error) {
	_, _ = ctx, beneficiaryID
	return s.debt, nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

type grantFixture struct {
	scholarships *memory.ScholarshipRepository
	deferrals    *memory.DeferralRepository
	publisher    *capturePublisher
	clock        *movableClock
	service      *GrantService
}

func newGrantFixture(t *testing.T, debt DebtReader) *grantFixture {
	t.Helper()
	f := &grantFixture{
		scholarships: memory.NewScholarshipRepository(),
		deferrals:    memory.NewDeferralRepository(),
		publisher:    &capturePublisher{},
		clock:        &movableClock{at: time.Date(2025, time.November, 1, 9, 0, 0, 0, time.UTC)},
	}
	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("GRANT-%03d", seq)
	}
	var err error
	f.service, err = NewGrantService(f.scholarships, f.deferrals, debt, f.publisher, f.clock, newID)
	if err != nil {
		t.Fatalf("NewGrantService: %v", err)
	}
	return f
}

func TestGrantScholarshipSoD(t *testing.T) {
	f := newGrantFixture(t, nil)
	ctx := context.Background()
	cmd := GrantScholarshipCommand{BeneficiaryID: "STU-001", Amount: dec(t, "50000")}

	// A scolarité operator granting to themselves trips the guard.
	self := auth.NewScope("STU-001", auth.RoleScolarite)
	if _, err := f.service.GrantScholarship(ctx, self, cmd); !errors.Is(err, grants.ErrPolicyViolation) {
		t.Errorf("self-grant err = %v, want policy violation", err)
	}
	rejections := f.publisher.count(func(ev any) bool {
		_, ok := ev.(grants.SoDViolationRejected)
		return ok
	})
	if rejections != 1 {
		t.Errorf("SoD rejection events = %d, want 1", rejections)
	}

	// The rector may override the separation of duties.
	rector := auth.NewScope("STU-001", auth.RoleRecteur)
	if _, err := f.service.GrantScholarship(ctx, rector, cmd); err != nil {
		t.Errorf("rector self-grant should pass: %v", err)
	}

	// A student may not grant at all.
	student := auth.NewScope("STU-002", auth.RoleStudent)
	if _, err := f.service.GrantScholarship(ctx, student, cmd); !errors.Is(err, grants.ErrPolicyViolation) {
		t.Errorf("student grant err = %v, want policy violation", err)
	}
}

func TestScholarshipTransitionsPublishRecompute(t *testing.T) {
	f := newGrantFixture(t, nil)
	ctx := context.Background()
	scolarite := auth.NewScope("SCO-1", auth.RoleScolarite)
	rector := auth.NewScope("REC-1", auth.RoleRecteur)

	g, err := f.service.GrantScholarship(ctx, scolarite, GrantScholarshipCommand{
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "50000"),
	})
	if err != nil {
		t.Fatalf("GrantScholarship: %v", err)
	}

	// Finance operators may not suspend.
	finance := auth.NewScope("FIN-1", auth.RoleOperatorFinance)
	if err := f.service.SuspendScholarship(ctx, finance, g.ID()); !errors.Is(err, grants.ErrPolicyViolation) {
		t.Errorf("finance suspend err = %v, want policy violation", err)
	}

	if err := f.service.SuspendScholarship(ctx, rector, g.ID()); err != nil {
		t.Fatalf("SuspendScholarship: %v", err)
	}
	total, err := f.service.ActiveScholarshipTotal(ctx, "STU-001")
	if err != nil {
		t.Fatalf("ActiveScholarshipTotal: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("suspended grant still counts: %s", total)
	}

	if err := f.service.ReinstateScholarship(ctx, rector, g.ID()); err != nil {
		t.Fatalf("ReinstateScholarship: %v", err)
	}
	total, _ = f.service.ActiveScholarshipTotal(ctx, "STU-001")
	if !total.Equal(dec(t, "50000")) {
		t.Errorf("reinstated total = %s, want 50000", total)
	}

	if err := f.service.TerminateScholarship(ctx, rector, g.ID()); err != nil {
		t.Fatalf("TerminateScholarship: %v", err)
	}
	if err := f.service.SuspendScholarship(ctx, rector, g.ID()); !errors.Is(err, grants.ErrPolicyViolation) {
		t.Errorf("suspend after terminate err = %v, want policy violation", err)
	}

	// grant + suspend + reinstate + terminate, one recompute each.
	recomputes := f.publisher.count(func(ev any) bool {
		_, ok := ev.(billing.RecomputeRequested)
		return ok
	})
	if recomputes != 4 {
		t.Errorf("recompute requests = %d, want 4", recomputes)
	}
}

func TestGrantDeferralCapsAtDebt(t *testing.T) {
	f := newGrantFixture(t, stubDebt{debt: dec(t, "60000")})
	ctx := context.Background()
	finance := auth.NewScope("FIN-1", auth.RoleOperatorFinance)

	if _, err := f.service.GrantDeferral(ctx, finance, GrantDeferralCommand{
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "80000"),
		DurationDays:  60,
	}); !errors.Is(err, grants.ErrPolicyViolation) {
		t.Errorf("over-debt deferral err = %v, want policy violation", err)
	}

	g, err := f.service.GrantDeferral(ctx, finance, GrantDeferralCommand{
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "60000"),
		DurationDays:  60,
	})
	if err != nil {
		t.Fatalf("GrantDeferral: %v", err)
	}
	if g.Status() != grants.DeferralActif {
		t.Errorf("status = %q, want active", g.Status())
	}

	active, err := f.service.DeferralActive(ctx, "STU-001", f.clock.at)
	if err != nil {
		t.Fatalf("DeferralActive: %v", err)
	}
	if !active {
		t.Errorf("fresh deferral should read active")
	}
}

func TestDeferralLapseReclassifies(t *testing.T) {
	f := newGrantFixture(t, nil)
	ctx := context.Background()
	finance := auth.NewScope("FIN-1", auth.RoleOperatorFinance)

	g, err := f.service.GrantDeferral(ctx, finance, GrantDeferralCommand{
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "40000"),
		DurationDays:  30,
	})
	if err != nil {
		t.Fatalf("GrantDeferral: %v", err)
	}

	// 31 days later the deferral lapses and stops pinning the status.
	later := f.clock.at.AddDate(0, 0, 31)
	active, err := f.service.DeferralActive(ctx, "STU-001", later)
	if err != nil {
		t.Fatalf("DeferralActive: %v", err)
	}
	if active {
		t.Errorf("lapsed deferral must not read active")
	}

	stored, err := f.service.Deferral(ctx, g.ID())
	if err != nil {
		t.Fatalf("Deferral: %v", err)
	}
	if stored.Status() != grants.DeferralDepasse {
		t.Errorf("status = %q, want lapsed", stored.Status())
	}
	lapses := f.publisher.count(func(ev any) bool {
		_, ok := ev.(grants.DeferralLapsed)
		return ok
	})
	if lapses != 1 {
		t.Errorf("lapse events = %d, want 1", lapses)
	}

	// A second sync is a no-op.
	if _, err := f.service.DeferralActive(ctx, "STU-001", later.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("DeferralActive: %v", err)
	}
	lapses = f.publisher.count(func(ev any) bool {
		_, ok := ev.(grants.DeferralLapsed)
		return ok
	})
	if lapses != 1 {
		t.Errorf("lapse events after resync = %d, want still 1", lapses)
	}
}

func TestHonorDeferralRoles(t *testing.T) {
	f := newGrantFixture(t, nil)
	ctx := context.Background()
	finance := auth.NewScope("FIN-1", auth.RoleOperatorFinance)

	g, err := f.service.GrantDeferral(ctx, finance, GrantDeferralCommand{
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "40000"),
		DurationDays:  90,
	})
	if err != nil {
		t.Fatalf("GrantDeferral: %v", err)
	}

	teacher := auth.NewScope("TEA-1", auth.RoleTeacher)
	if err := f.service.HonorDeferral(ctx, teacher, g.ID()); !errors.Is(err, grants.ErrPolicyViolation) {
		t.Errorf("teacher honor err = %v, want policy violation", err)
	}

	scolarite := auth.NewScope("SCO-1", auth.RoleScolarite)
	if err := f.service.HonorDeferral(ctx, scolarite, g.ID()); err != nil {
		t.Fatalf("HonorDeferral: %v", err)
	}
	stored, _ := f.service.Deferral(ctx, g.ID())
	if stored.Status() != grants.DeferralRespecte {
		t.Errorf("status = %q, want honored", stored.Status())
	}

	active, err := f.service.DeferralActive(ctx, "STU-001", f.clock.at)
	if err != nil {
		t.Fatalf("DeferralActive: %v", err)
	}
	if active {
		t.Errorf("honored deferral must not read active")
	}
}

func TestScholarshipAutoTerminationByDate(t *testing.T) {
	f := newGrantFixture(t, nil)
	ctx := context.Background()
	scolarite := auth.NewScope("SCO-1", auth.RoleScolarite)

	until := f.clock.at.AddDate(0, 2, 0)
	g, err := f.service.GrantScholarship(ctx, scolarite, GrantScholarshipCommand{
		BeneficiaryID: "STU-001",
		Amount:        dec(t, "30000"),
		ValidUntil:    &until,
	})
	if err != nil {
		t.Fatalf("GrantScholarship: %v", err)
	}

	if err := f.service.SyncByDate(ctx, "STU-001", until.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("SyncByDate: %v", err)
	}
	stored, _ := f.service.Scholarship(ctx, g.ID())
	if stored.Status() != grants.ScholarshipTerminee {
		t.Errorf("status = %q, want auto-terminated", stored.Status())
	}
	total, _ := f.service.ActiveScholarshipTotal(ctx, "STU-001")
	if !total.IsZero() {
		t.Errorf("terminated grant still counts: %s", total)
	}

	autos := f.publisher.count(func(ev any) bool {
		term, ok := ev.(grants.ScholarshipTerminated)
		return ok && term.Auto
	})
	if autos != 1 {
		t.Errorf("auto-termination events = %d, want 1", autos)
	}
}
