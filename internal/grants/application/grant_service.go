package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/auth"
	billing "campus-ledger/internal/billing/domain"
	grants "campus-ledger/internal/grants/domain"
	"campus-ledger/internal/observability/metrics"
)

// EventPublisher emits domain events to the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces grant identifiers.
type IDGenerator func() string

// GrantScholarshipCommand creates a scholarship.
type GrantScholarshipCommand struct {
	GrantID       string
	BeneficiaryID string
	Amount        decimal.Decimal
	ValidUntil    *time.Time
}

// GrantDeferralCommand creates a payment deferral.
type GrantDeferralCommand struct {
	GrantID       string
	BeneficiaryID string
	Amount        decimal.Decimal
	DurationDays  int
}

// DebtReader reports the current debt of a student. Used to cap the
// deferred amount; a credit balance reads as zero debt.
type DebtReader interface {
	CurrentDebt(ctx context.Context, beneficiaryID string) (decimal.Decimal, error)
}

// GrantService drives scholarship and deferral lifecycles. Every
// completed transition publishes its domain event plus a recompute
// request for the beneficiary.
type GrantService struct {
	scholarships grants.ScholarshipRepository
	deferrals    grants.DeferralRepository
	debt         DebtReader
	publisher    EventPublisher
	clock        Clock
	newID        IDGenerator
}

// NewGrantService constructs the service.
func NewGrantService(
	scholarships grants.ScholarshipRepository,
	deferrals grants.DeferralRepository,
	debt DebtReader,
	publisher EventPublisher,
	clock Clock,
	newID IDGenerator,
) (*GrantService, error) {
	if scholarships == nil {
		return nil, errors.New("grant service: nil scholarship repository")
	}
	if deferrals == nil {
		return nil, errors.New("grant service: nil deferral repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &GrantService{
		scholarships: scholarships,
		deferrals:    deferrals,
		debt:         debt,
		publisher:    publisher,
		clock:        clock,
		newID:        newID,
	}, nil
}

func roleViolation(action string, role auth.Role) error {
	return &grants.PolicyViolationError{
		Rule:   "role_not_authorized",
		Detail: "role " + string(role) + " may not " + action,
	}
}

// guardSoD rejects self-grants and publishes the rejection event.
func (s *GrantService) guardSoD(ctx context.Context, grantType, beneficiaryID string, scope auth.Scope) error {
	err := grants.SoDGuard(scope.ActorID, beneficiaryID, scope.OverridesSoD())
	if err == nil {
		return nil
	}
	metrics.IncSoDRejection(grantType)
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, grants.SoDViolationRejected{
			GrantType:     grantType,
			BeneficiaryID: beneficiaryID,
			ActorID:       scope.ActorID,
			OccurredAt:    s.clock.Now(),
		})
	}
	return err
}

func (s *GrantService) publish(ctx context.Context, events ...any) error {
	if s.publisher == nil {
		return nil
	}
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *GrantService) recompute(beneficiaryID, reason string, at time.Time) billing.RecomputeRequested {
	return billing.RecomputeRequested{BeneficiaryID: beneficiaryID, Reason: reason, OccurredAt: at}
}

// GrantScholarship creates an active scholarship.
func (s *GrantService) GrantScholarship(ctx context.Context, scope auth.Scope, cmd GrantScholarshipCommand) (*grants.ScholarshipGrant, error) {
	if !auth.CanGrantScholarship(scope.Role) {
		return nil, roleViolation("grant scholarships", scope.Role)
	}
	if err := s.guardSoD(ctx, "scholarship", cmd.BeneficiaryID, scope); err != nil {
		return nil, err
	}

	id := cmd.GrantID
	if id == "" && s.newID != nil {
		id = s.newID()
	}
	now := s.clock.Now()
	g, err := grants.NewScholarshipGrant(id, cmd.BeneficiaryID, scope.ActorID, cmd.Amount, cmd.ValidUntil, now)
	if err != nil {
		return nil, err
	}
	if err := s.scholarships.Save(ctx, g); err != nil {
		return nil, err
	}

	metrics.IncGrantTransition("scholarship", "granted")
	err = s.publish(ctx,
		grants.ScholarshipGranted{
			GrantID:       g.ID(),
			BeneficiaryID: g.BeneficiaryID(),
			GrantedBy:     g.GrantedBy(),
			Amount:        g.Amount(),
			OccurredAt:    now,
		},
		s.recompute(g.BeneficiaryID(), "scholarship_granted", now),
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// SuspendScholarship suspends an active scholarship.
func (s *GrantService) SuspendScholarship(ctx context.Context, scope auth.Scope, grantID string) error {
	if !auth.CanSuspendScholarship(scope.Role) {
		return roleViolation("suspend scholarships", scope.Role)
	}
	g, err := s.scholarships.FindByID(ctx, grantID)
	if err != nil {
		return err
	}
	if err := g.Suspend(); err != nil {
		return err
	}
	if err := s.scholarships.Save(ctx, g); err != nil {
		return err
	}

	now := s.clock.Now()
	metrics.IncGrantTransition("scholarship", "suspended")
	return s.publish(ctx,
		grants.ScholarshipSuspended{GrantID: grantID, BeneficiaryID: g.BeneficiaryID(), ActorID: scope.ActorID, OccurredAt: now},
		s.recompute(g.BeneficiaryID(), "scholarship_suspended", now),
	)
}

// ReinstateScholarship lifts a suspension.
func (s *GrantService) ReinstateScholarship(ctx context.Context, scope auth.Scope, grantID string) error {
	if !auth.CanSuspendScholarship(scope.Role) {
		return roleViolation("reinstate scholarships", scope.Role)
	}
	g, err := s.scholarships.FindByID(ctx, grantID)
	if err != nil {
		return err
	}
	if err := g.Reinstate(); err != nil {
		return err
	}
	if err := s.scholarships.Save(ctx, g); err != nil {
		return err
	}

	now := s.clock.Now()
	metrics.IncGrantTransition("scholarship", "reinstated")
	return s.publish(ctx,
		grants.ScholarshipReinstated{GrantID: grantID, BeneficiaryID: g.BeneficiaryID(), ActorID: scope.ActorID, OccurredAt: now},
		s.recompute(g.BeneficiaryID(), "scholarship_reinstated", now),
	)
}

// TerminateScholarship closes a scholarship for good.
func (s *GrantService) TerminateScholarship(ctx context.Context, scope auth.Scope, grantID string) error {
	if !auth.CanSuspendScholarship(scope.Role) {
		return roleViolation("terminate scholarships", scope.Role)
	}
	g, err := s.scholarships.FindByID(ctx, grantID)
	if err != nil {
		return err
	}
	if err := g.Terminate(); err != nil {
		return err
	}
	if err := s.scholarships.Save(ctx, g); err != nil {
		return err
	}

	now := s.clock.Now()
	metrics.IncGrantTransition("scholarship", "terminated")
	return s.publish(ctx,
		grants.ScholarshipTerminated{GrantID: grantID, BeneficiaryID: g.BeneficiaryID(), ActorID: scope.ActorID, OccurredAt: now},
		s.recompute(g.BeneficiaryID(), "scholarship_terminated", now),
	)
}

// GrantDeferral creates an active deferral. The deferred amount may not
// exceed the student's current debt.
func (s *GrantService) GrantDeferral(ctx context.Context, scope auth.Scope, cmd GrantDeferralCommand) (*grants.DeferralGrant, error) {
	if !auth.CanGrantDeferral(scope.Role) {
		return nil, roleViolation("grant deferrals", scope.Role)
	}
	if err := s.guardSoD(ctx, "deferral", cmd.BeneficiaryID, scope); err != nil {
		return nil, err
	}
	if s.debt != nil {
		debt, err := s.debt.CurrentDebt(ctx, cmd.BeneficiaryID)
		if err != nil {
			return nil, err
		}
		if cmd.Amount.GreaterThan(debt) {
			return nil, &grants.PolicyViolationError{
				Rule:   "deferral_exceeds_debt",
				Detail: "deferred amount " + cmd.Amount.String() + " exceeds current debt " + debt.String(),
			}
		}
	}

	id := cmd.GrantID
	if id == "" && s.newID != nil {
		id = s.newID()
	}
	now := s.clock.Now()
	g, err := grants.NewDeferralGrant(id, cmd.BeneficiaryID, scope.ActorID, cmd.Amount, cmd.DurationDays, now)
	if err != nil {
		return nil, err
	}
	if err := s.deferrals.Save(ctx, g); err != nil {
		return nil, err
	}

	metrics.IncGrantTransition("deferral", "granted")
	err = s.publish(ctx,
		grants.DeferralGranted{
			GrantID:       g.ID(),
			BeneficiaryID: g.BeneficiaryID(),
			GrantedBy:     g.GrantedBy(),
			Amount:        g.Amount(),
			DurationDays:  g.DurationDays(),
			EndDate:       g.EndDate(),
			OccurredAt:    now,
		},
		s.recompute(g.BeneficiaryID(), "deferral_granted", now),
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// HonorDeferral settles an active deferral.
func (s *GrantService) HonorDeferral(ctx context.Context, scope auth.Scope, grantID string) error {
	if !auth.CanSettleDeferral(scope.Role) {
		return roleViolation("honor deferrals", scope.Role)
	}
	g, err := s.deferrals.FindByID(ctx, grantID)
	if err != nil {
		return err
	}
	if err := g.Honor(); err != nil {
		return err
	}
	if err := s.deferrals.Save(ctx, g); err != nil {
		return err
	}

	now := s.clock.Now()
	metrics.IncGrantTransition("deferral", "honored")
	return s.publish(ctx,
		grants.DeferralHonored{GrantID: grantID, BeneficiaryID: g.BeneficiaryID(), ActorID: scope.ActorID, OccurredAt: now},
		s.recompute(g.BeneficiaryID(), "deferral_honored", now),
	)
}

// SyncByDate runs date-based transitions for one student: scholarships
// past their validity terminate, deferrals past their end date lapse.
func (s *GrantService) SyncByDate(ctx context.Context, beneficiaryID string, ref time.Time) error {
	list, err := s.scholarships.ListByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return err
	}
	for _, g := range list {
		if !g.SyncByDate(ref) {
			continue
		}
		if err := s.scholarships.Save(ctx, g); err != nil {
			return err
		}
		metrics.IncGrantTransition("scholarship", "terminated")
		err = s.publish(ctx, grants.ScholarshipTerminated{
			GrantID:       g.ID(),
			BeneficiaryID: beneficiaryID,
			Auto:          true,
			OccurredAt:    ref,
		})
		if err != nil {
			return err
		}
	}

	deferrals, err := s.deferrals.ListByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return err
	}
	for _, g := range deferrals {
		if !g.SyncByDate(ref) {
			continue
		}
		if err := s.deferrals.Save(ctx, g); err != nil {
			return err
		}
		metrics.IncGrantTransition("deferral", "lapsed")
		err = s.publish(ctx, grants.DeferralLapsed{
			GrantID:       g.ID(),
			BeneficiaryID: beneficiaryID,
			OccurredAt:    ref,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DeferralActive reports whether an active deferral pins the student's
// standing. Date-based transitions run first, so a lapsed deferral
// never reads as active.
func (s *GrantService) DeferralActive(ctx context.Context, beneficiaryID string, ref time.Time) (bool, error) {
	if err := s.SyncByDate(ctx, beneficiaryID, ref); err != nil {
		return false, err
	}
	list, err := s.deferrals.ListByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return false, err
	}
	for _, g := range list {
		if g.Active() {
			return true, nil
		}
	}
	return false, nil
}

// ActiveScholarshipTotal sums active scholarship amounts.
func (s *GrantService) ActiveScholarshipTotal(ctx context.Context, beneficiaryID string) (decimal.Decimal, error) {
	return s.scholarships.ActiveTotal(ctx, beneficiaryID)
}

// Scholarship loads one scholarship.
func (s *GrantService) Scholarship(ctx context.Context, grantID string) (*grants.ScholarshipGrant, error) {
	return s.scholarships.FindByID(ctx, grantID)
}

// Deferral loads one deferral.
func (s *GrantService) Deferral(ctx context.Context, grantID string) (*grants.DeferralGrant, error) {
	return s.deferrals.FindByID(ctx, grantID)
}
