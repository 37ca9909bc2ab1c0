package grants

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeferralStatus is the lifecycle state of a payment deferral.
// Wire values match the persisted records of the surrounding system.
type DeferralStatus string

const (
	DeferralActif    DeferralStatus = "Actif"
	DeferralRespecte DeferralStatus = "Respecté"
	DeferralDepasse  DeferralStatus = "Dépassé"
)

// DeferralDurations are the allowed deferral lengths in days.
var DeferralDurations = []int{30, 60, 90}

// DeferralGrant postpones payment of part of a student's debt. While
// active it pins the financial status to Moratoire.
type DeferralGrant struct {
	id            string
	beneficiaryID string
	grantedBy     string
	amount        decimal.Decimal
	durationDays  int
	status        DeferralStatus
	grantedAt     time.Time
	endDate       time.Time

	isNew bool
}

// NewDeferralGrant creates an active deferral. Duration must be one of
// DeferralDurations; the end date defaults to grant date plus duration.
func NewDeferralGrant(id, beneficiaryID, grantedBy string, amount decimal.Decimal, durationDays int, grantedAt time.Time) (*DeferralGrant, error) {
	if id == "" || beneficiaryID == "" {
		return nil, ErrNilAggregate
	}
	if !amount.IsPositive() {
		return nil, violation("non_positive_amount", "deferral amount %s must be positive", amount)
	}
	allowed := false
	for _, d := range DeferralDurations {
		if durationDays == d {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, violation("invalid_duration", "deferral duration %d not in {30, 60, 90}", durationDays)
	}
	return &DeferralGrant{
		id:            id,
		beneficiaryID: beneficiaryID,
		grantedBy:     grantedBy,
		amount:        amount,
		durationDays:  durationDays,
		status:        DeferralActif,
		grantedAt:     grantedAt,
		endDate:       grantedAt.AddDate(0, 0, durationDays),
		isNew:         true,
	}, nil
}

// RehydrateDeferralGrant rebuilds a persisted deferral.
func RehydrateDeferralGrant(id, beneficiaryID, grantedBy string, amount decimal.Decimal, durationDays int, status DeferralStatus, grantedAt, endDate time.Time) *DeferralGrant {
	return &DeferralGrant{
		id:            id,
		beneficiaryID: beneficiaryID,
		grantedBy:     grantedBy,
		amount:        amount,
		durationDays:  durationDays,
		status:        status,
		grantedAt:     grantedAt,
		endDate:       endDate,
	}
}

// Honor settles an active deferral. Honored is terminal.
func (g *DeferralGrant) Honor() error {
	if g.status != DeferralActif {
		return violation("invalid_transition", "cannot honor a %s deferral", g.status)
	}
	g.status = DeferralRespecte
	return nil
}

// SyncByDate lapses the deferral when its end date has passed. It
// reports whether a transition happened.
func (g *DeferralGrant) SyncByDate(ref time.Time) bool {
	if g.status != DeferralActif {
		return false
	}
	if g.endDate.Before(ref) {
		g.status = DeferralDepasse
		return true
	}
	return false
}

// Active reports whether the deferral still pins the financial status.
func (g *DeferralGrant) Active() bool { return g.status == DeferralActif }

func (g *DeferralGrant) ID() string              { return g.id }
func (g *DeferralGrant) BeneficiaryID() string   { return g.beneficiaryID }
func (g *DeferralGrant) GrantedBy() string       { return g.grantedBy }
func (g *DeferralGrant) Amount() decimal.Decimal { return g.amount }
func (g *DeferralGrant) DurationDays() int       { return g.durationDays }
func (g *DeferralGrant) Status() DeferralStatus  { return g.status }
func (g *DeferralGrant) GrantedAt() time.Time    { return g.grantedAt }
func (g *DeferralGrant) EndDate() time.Time      { return g.endDate }
func (g *DeferralGrant) IsNew() bool             { return g.isNew }

// MarkPersisted marks the grant as persisted.
func (g *DeferralGrant) MarkPersisted() {
	if g != nil {
		g.isNew = false
	}
}

// Clone returns a detached copy marked as persisted.
func (g *DeferralGrant) Clone() *DeferralGrant {
	if g == nil {
		return nil
	}
	cp := *g
	cp.isNew = false
	return &cp
}
