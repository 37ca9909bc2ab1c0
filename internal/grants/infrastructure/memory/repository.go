package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	grants "campus-ledger/internal/grants/domain"
)

// ScholarshipRepository is an in-memory store for scholarships.
type ScholarshipRepository struct {
	mu   sync.RWMutex
	data map[string]*grants.ScholarshipGrant
}

// NewScholarshipRepository constructs a repository.
func NewScholarshipRepository() *ScholarshipRepository {
	return &ScholarshipRepository{data: make(map[string]*grants.ScholarshipGrant)}
}

// FindByID loads one scholarship.
func (r *ScholarshipRepository) FindByID(ctx context.Context, id string) (*grants.ScholarshipGrant, error) {
	_ = ctx
	r.mu.RLock()
	g := r.data[id]
	r.mu.RUnlock()
	if g == nil {
		return nil, grants.ErrNotFound
	}
	return g.Clone(), nil
}

// ListByBeneficiary returns all scholarships of one student.
func (r *ScholarshipRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*grants.ScholarshipGrant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*grants.ScholarshipGrant
	for _, g := range r.data {
		if g.BeneficiaryID() == beneficiaryID {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

// Save persists a scholarship (overwrites existing).
func (r *ScholarshipRepository) Save(ctx context.Context, g *grants.ScholarshipGrant) error {
	_ = ctx
	if g == nil {
		return grants.ErrNilAggregate
	}
	copy := g.Clone()
	r.mu.Lock()
	r.data[g.ID()] = copy
	r.mu.Unlock()
	g.MarkPersisted()
	return nil
}

// ActiveTotal sums the amounts of active scholarships.
func (r *ScholarshipRepository) ActiveTotal(ctx context.Context, beneficiaryID string) (decimal.Decimal, error) {
	_ = ctx
	total := decimal.Zero
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.data {
		if g.BeneficiaryID() == beneficiaryID && g.CountsTowardBalance() {
			total = total.Add(g.Amount())
		}
	}
	return total, nil
}

// DeferralRepository is an in-memory store for deferrals.
type DeferralRepository struct {
	mu   sync.RWMutex
	data map[string]*grants.DeferralGrant
}

// NewDeferralRepository constructs a repository.
func NewDeferralRepository() *DeferralRepository {
	return &DeferralRepository{data: make(map[string]*grants.DeferralGrant)}
}

// FindByID loads one deferral.
func (r *DeferralRepository) FindByID(ctx context.Context, id string) (*grants.DeferralGrant, error) {
	_ = ctx
	r.mu.RLock()
	g := r.data[id]
	r.mu.RUnlock()
	if g == nil {
		return nil, grants.ErrNotFound
	}
	return g.Clone(), nil
}

// ListByBeneficiary returns all deferrals of one student.
func (r *DeferralRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*grants.DeferralGrant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*grants.DeferralGrant
	for _, g := range r.data {
		if g.BeneficiaryID() == beneficiaryID {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

// Save persists a deferral (overwrites existing).
func (r *DeferralRepository) Save(ctx context.Context, g *grants.DeferralGrant) error {
	_ = ctx
	if g == nil {
		return grants.ErrNilAggregate
	}
	copy := g.Clone()
	r.mu.Lock()
	r.data[g.ID()] = copy
	r.mu.Unlock()
	g.MarkPersisted()
	return nil
}
