package grants

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestScholarshipLifecycle(t *testing.T) {
	until := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	g, err := NewScholarshipGrant("SCH-1", "STU-001", "SCO-1", dec(t, "50000"), &until, time.Now())
	if err != nil {
		t.Fatalf("NewScholarshipGrant: %v", err)
	}
	if g.Status() != ScholarshipActive || !g.CountsTowardBalance() {
		t.Fatalf("new grant = %q, want active counting toward balance", g.Status())
	}

	if err := g.Reinstate(); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("reinstating an active grant err = %v, want policy violation", err)
	}
	if err := g.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if g.CountsTowardBalance() {
		t.Errorf("suspended grant must not count toward balance")
	}
	if err := g.Suspend(); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("double suspend err = %v, want policy violation", err)
	}
	if err := g.Reinstate(); err != nil {
		t.Fatalf("Reinstate: %v", err)
	}
	if err := g.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if err := g.Terminate(); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("terminating a terminated grant err = %v, want policy violation", err)
	}
	if err := g.Suspend(); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("suspending a terminated grant err = %v, want policy violation", err)
	}
	if g.Status() != ScholarshipTerminee {
		t.Errorf("rejected transitions must not mutate state, got %q", g.Status())
	}
}

func TestScholarshipSyncByDate(t *testing.T) {
	until := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	g, err := NewScholarshipGrant("SCH-1", "STU-001", "SCO-1", dec(t, "50000"), &until, time.Now())
	if err != nil {
		t.Fatalf("NewScholarshipGrant: %v", err)
	}

	if g.SyncByDate(time.Date(2026, time.June, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("grant must stay active before expiry")
	}
	if !g.SyncByDate(time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("grant should auto-terminate past expiry")
	}
	if g.Status() != ScholarshipTerminee {
		t.Errorf("status = %q, want terminated", g.Status())
	}
	if g.SyncByDate(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sync on a terminated grant must be a no-op")
	}

	open, err := NewScholarshipGrant("SCH-2", "STU-001", "SCO-1", dec(t, "10000"), nil, time.Now())
	if err != nil {
		t.Fatalf("NewScholarshipGrant: %v", err)
	}
	if open.SyncByDate(time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("open-ended grant never auto-terminates")
	}
}

func TestScholarshipRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-100"} {
		if _, err := NewScholarshipGrant("SCH-1", "STU-001", "SCO-1", dec(t, amount), nil, time.Now()); !errors.Is(err, ErrPolicyViolation) {
			t.Errorf("amount %s err = %v, want policy violation", amount, err)
		}
	}
}

func TestDeferralLifecycle(t *testing.T) {
	grantedAt := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	g, err := NewDeferralGrant("DEF-1", "STU-001", "FIN-1", dec(t, "40000"), 60, grantedAt)
	if err != nil {
		t.Fatalf("NewDeferralGrant: %v", err)
	}
	if !g.Active() {
		t.Fatalf("new deferral should be active")
	}
	if want := grantedAt.AddDate(0, 0, 60); !g.EndDate().Equal(want) {
		t.Errorf("end date = %v, want %v", g.EndDate(), want)
	}

	if g.SyncByDate(grantedAt.AddDate(0, 0, 59)) {
		t.Errorf("deferral must stay active before its end date")
	}
	if err := g.Honor(); err != nil {
		t.Fatalf("Honor: %v", err)
	}
	if g.Status() != DeferralRespecte || g.Active() {
		t.Errorf("status = %q, want honored inactive", g.Status())
	}
	if err := g.Honor(); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("honoring twice err = %v, want policy violation", err)
	}
	if g.SyncByDate(grantedAt.AddDate(0, 0, 90)) {
		t.Errorf("honored deferral never lapses")
	}
}

func TestDeferralLapsesPastEndDate(t *testing.T) {
	grantedAt := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	g, err := NewDeferralGrant("DEF-1", "STU-001", "FIN-1", dec(t, "40000"), 30, grantedAt)
	if err != nil {
		t.Fatalf("NewDeferralGrant: %v", err)
	}

	if !g.SyncByDate(grantedAt.AddDate(0, 0, 31)) {
		t.Errorf("deferral should lapse past its end date")
	}
	if g.Status() != DeferralDepasse {
		t.Errorf("status = %q, want lapsed", g.Status())
	}
	if err := g.Honor(); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("honoring a lapsed deferral err = %v, want policy violation", err)
	}
}

func TestDeferralRejectsInvalidDuration(t *testing.T) {
	for _, days := range []int{0, 15, 45, 120} {
		if _, err := NewDeferralGrant("DEF-1", "STU-001", "FIN-1", dec(t, "1000"), days, time.Now()); !errors.Is(err, ErrPolicyViolation) {
			t.Errorf("duration %d err = %v, want policy violation", days, err)
		}
	}
	for _, days := range DeferralDurations {
		if _, err := NewDeferralGrant("DEF-1", "STU-001", "FIN-1", dec(t, "1000"), days, time.Now()); err != nil {
			t.Errorf("duration %d should be allowed: %v", days, err)
		}
	}
}

func TestSoDGuard(t *testing.T) {
	if err := SoDGuard("FIN-1", "STU-001", false); err != nil {
		t.Errorf("distinct actor and beneficiary: %v", err)
	}
	if err := SoDGuard("STU-001", "STU-001", false); !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("self-grant err = %v, want policy violation", err)
	}
	if err := SoDGuard("STU-001", "STU-001", true); err != nil {
		t.Errorf("override-authorized self-grant should pass: %v", err)
	}
	if err := SoDGuard("", "STU-001", false); err != nil {
		t.Errorf("empty author never trips the guard: %v", err)
	}
}
