package application

import (
	"context"
	"errors"
	"time"

	billing "campus-ledger/internal/billing/domain"
	"campus-ledger/internal/observability/metrics"
	"campus-ledger/internal/rules"
)

// ScheduleService computes the annotated payment schedule of a student
// against the program's fee schedule.
type ScheduleService struct {
	resolver rules.Resolver
	payments billing.PaymentRepository
	clock    Clock
}

// NewScheduleService constructs the service.
func NewScheduleService(resolver rules.Resolver, payments billing.PaymentRepository, clock Clock) (*ScheduleService, error) {
	if resolver == nil {
		return nil, errors.New("schedule service: nil resolver")
	}
	if payments == nil {
		return nil, errors.New("schedule service: nil payment repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ScheduleService{resolver: resolver, payments: payments, clock: clock}, nil
}

// ScheduleQuery identifies the student and program context.
type ScheduleQuery struct {
	BeneficiaryID string
	ProgramCode   string
	AcademicYear  string
	// Ref overrides the evaluation instant, zero means now.
	Ref time.Time
}

// ScheduleFor allocates the student's cumulative payments over the
// program's tranches.
func (s *ScheduleService) ScheduleFor(ctx context.Context, q ScheduleQuery) (billing.Schedule, error) {
	started := time.Now()
	sched, err := s.scheduleFor(ctx, q)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	metrics.ObserveScheduleAllocate(outcome, time.Since(started))
	return sched, err
}

func (s *ScheduleService) scheduleFor(ctx context.Context, q ScheduleQuery) (billing.Schedule, error) {
	var sched billing.Schedule

	fs, err := s.resolver.FeeSchedule(ctx, q.ProgramCode, q.AcademicYear)
	if err != nil {
		return sched, err
	}
	ledger, err := s.payments.LedgerFor(ctx, q.BeneficiaryID)
	if err != nil {
		return sched, err
	}

	ref := q.Ref
	if ref.IsZero() {
		ref = s.clock.Now()
	}
	return billing.Allocate(fs, ledger.TotalPaid(), ref), nil
}
