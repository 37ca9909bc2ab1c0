package grants

import (
	"context"

	"github.com/shopspring/decimal"
)

// ScholarshipRepository persists scholarship grants.
type ScholarshipRepository interface {
	FindByID(ctx context.Context, id string) (*ScholarshipGrant, error)
	ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*ScholarshipGrant, error)
	Save(ctx context.Context, g *ScholarshipGrant) error
	ActiveTotal(ctx context.Context, beneficiaryID string) (decimal.Decimal, error)
}

// DeferralRepository persists deferral grants.
type DeferralRepository interface {
	FindByID(ctx context.Context, id string) (*DeferralGrant, error)
	ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*DeferralGrant, error)
	Save(ctx context.Context, g *DeferralGrant) error
}
