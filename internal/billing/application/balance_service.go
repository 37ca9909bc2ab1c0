package application

import (
	"context"
	"errors"
	"sync"
	"time"

	billing "campus-ledger/internal/billing/domain"
	"campus-ledger/internal/observability/metrics"
)

// EventPublisher emits domain events to the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// DeferralStateReader reports whether a beneficiary currently holds an
// active payment deferral. Implementations run date-based transitions
// before answering, so a lapsed deferral never reads as active.
type DeferralStateReader interface {
	DeferralActive(ctx context.Context, beneficiaryID string, ref time.Time) (bool, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// BalanceService recomputes student standings. Recomputations for the
// same beneficiary serialize on a per-key mutex; different beneficiaries
// proceed concurrently.
type BalanceService struct {
	finance   billing.FinanceRepository
	totals    billing.TotalsReader
	deferrals DeferralStateReader
	publisher EventPublisher
	clock     Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBalanceService constructs the service.
func NewBalanceService(
	finance billing.FinanceRepository,
	totals billing.TotalsReader,
	deferrals DeferralStateReader,
	publisher EventPublisher,
	clock Clock,
) (*BalanceService, error) {
	if finance == nil {
		return nil, errors.New("balance service: nil finance repository")
	}
	if totals == nil {
		return nil, errors.New("balance service: nil totals reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BalanceService{
		finance:   finance,
		totals:    totals,
		deferrals: deferrals,
		publisher: publisher,
		clock:     clock,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

func (s *BalanceService) lockFor(beneficiaryID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[beneficiaryID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[beneficiaryID] = lock
	}
	return lock
}

// HandleRecomputeRequested runs a full recomputation for one student.
func (s *BalanceService) HandleRecomputeRequested(ctx context.Context, event billing.RecomputeRequested) error {
	if event.BeneficiaryID == "" {
		return billing.ErrNilAggregate
	}
	_, err := s.Recompute(ctx, event.BeneficiaryID)
	return err
}

// Recompute reads totals and deferral state, classifies, persists the
// standing and publishes BalanceRecomputed. Identical inputs produce the
// identical standing, so replays are harmless.
func (s *BalanceService) Recompute(ctx context.Context, beneficiaryID string) (billing.BalanceResult, error) {
	lock := s.lockFor(beneficiaryID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	result, err := s.recomputeLocked(ctx, beneficiaryID)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	metrics.ObserveBalanceRecompute(outcome, time.Since(started))
	return result, err
}

func (s *BalanceService) recomputeLocked(ctx context.Context, beneficiaryID string) (billing.BalanceResult, error) {
	var result billing.BalanceResult

	totals, err := s.totals.TotalsFor(ctx, beneficiaryID)
	if err != nil {
		return result, err
	}

	now := s.clock.Now()
	deferralActive := false
	if s.deferrals != nil {
		deferralActive, err = s.deferrals.DeferralActive(ctx, beneficiaryID, now)
		if err != nil {
			return result, err
		}
	}

	result = billing.Recompute(totals, deferralActive)

	standing, err := s.finance.FindByBeneficiary(ctx, beneficiaryID)
	if errors.Is(err, billing.ErrNotFound) {
		standing, err = billing.NewStudentFinance(beneficiaryID)
	}
	if err != nil {
		return result, err
	}
	standing.Apply(result, now)
	if err := s.finance.Save(ctx, standing); err != nil {
		return result, err
	}

	if s.publisher != nil {
		err = s.publisher.Publish(ctx, billing.BalanceRecomputed{
			BeneficiaryID: beneficiaryID,
			Balance:       result.Balance,
			Status:        result.Status,
			OccurredAt:    now,
		})
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// Standing returns the persisted standing of one student.
func (s *BalanceService) Standing(ctx context.Context, beneficiaryID string) (*billing.StudentFinance, error) {
	return s.finance.FindByBeneficiary(ctx, beneficiaryID)
}
