package grants

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScholarshipStatus is the lifecycle state of a scholarship.
// Wire values match the persisted records of the surrounding system.
type ScholarshipStatus string

const (
	ScholarshipActive    ScholarshipStatus = "Active"
	ScholarshipSuspendue ScholarshipStatus = "Suspendue"
	ScholarshipTerminee  ScholarshipStatus = "Terminee"
)

// ScholarshipGrant is a granted amount reducing a student's balance
// while active.
type ScholarshipGrant struct {
	id            string
	beneficiaryID string
	grantedBy     string
	amount        decimal.Decimal
	status        ScholarshipStatus
	validUntil    *time.Time
	grantedAt     time.Time

	isNew bool
}

// NewScholarshipGrant creates an active scholarship. The amount must be
// positive; a nil validUntil means no expiry.
func NewScholarshipGrant(id, beneficiaryID, grantedBy string, amount decimal.Decimal, validUntil *time.Time, grantedAt time.Time) (*ScholarshipGrant, error) {
	if id == "" || beneficiaryID == "" {
		return nil, ErrNilAggregate
	}
	if !amount.IsPositive() {
		return nil, violation("non_positive_amount", "scholarship amount %s must be positive", amount)
	}
	g := &ScholarshipGrant{
		id:            id,
		beneficiaryID: beneficiaryID,
		grantedBy:     grantedBy,
		amount:        amount,
		status:        ScholarshipActive,
		grantedAt:     grantedAt,
		isNew:         true,
	}
	if validUntil != nil {
		d := *validUntil
		g.validUntil = &d
	}
	return g, nil
}

// RehydrateScholarshipGrant rebuilds a persisted scholarship.
func RehydrateScholarshipGrant(id, beneficiaryID, grantedBy string, amount decimal.Decimal, status ScholarshipStatus, validUntil *time.Time, grantedAt time.Time) *ScholarshipGrant {
	g := &ScholarshipGrant{
		id:            id,
		beneficiaryID: beneficiaryID,
		grantedBy:     grantedBy,
		amount:        amount,
		status:        status,
		grantedAt:     grantedAt,
	}
	if validUntil != nil {
		d := *validUntil
		g.validUntil = &d
	}
	return g
}

// Suspend moves an active scholarship to suspended.
func (g *ScholarshipGrant) Suspend() error {
	if g.status != ScholarshipActive {
		return violation("invalid_transition", "cannot suspend a %s scholarship", g.status)
	}
	g.status = ScholarshipSuspendue
	return nil
}

// Reinstate moves a suspended scholarship back to active.
func (g *ScholarshipGrant) Reinstate() error {
	if g.status != ScholarshipSuspendue {
		return violation("invalid_transition", "cannot reinstate a %s scholarship", g.status)
	}
	g.status = ScholarshipActive
	return nil
}

// Terminate closes the scholarship. Terminated is terminal.
func (g *ScholarshipGrant) Terminate() error {
	if g.status == ScholarshipTerminee {
		return violation("invalid_transition", "scholarship already terminated")
	}
	g.status = ScholarshipTerminee
	return nil
}

// SyncByDate terminates the scholarship when its validity has passed.
// It reports whether a transition happened.
func (g *ScholarshipGrant) SyncByDate(ref time.Time) bool {
	if g.status == ScholarshipTerminee || g.validUntil == nil {
		return false
	}
	if g.validUntil.Before(ref) {
		g.status = ScholarshipTerminee
		return true
	}
	return false
}

// CountsTowardBalance reports whether the amount reduces the balance.
func (g *ScholarshipGrant) CountsTowardBalance() bool {
	return g.status == ScholarshipActive
}

func (g *ScholarshipGrant) ID() string                { return g.id }
func (g *ScholarshipGrant) BeneficiaryID() string     { return g.beneficiaryID }
func (g *ScholarshipGrant) GrantedBy() string         { return g.grantedBy }
func (g *ScholarshipGrant) Amount() decimal.Decimal   { return g.amount }
func (g *ScholarshipGrant) Status() ScholarshipStatus { return g.status }
func (g *ScholarshipGrant) GrantedAt() time.Time      { return g.grantedAt }
func (g *ScholarshipGrant) IsNew() bool               { return g.isNew }

// ValidUntil returns a copy of the expiry date, nil when open-ended.
func (g *ScholarshipGrant) ValidUntil() *time.Time {
	if g.validUntil == nil {
		return nil
	}
	d := *g.validUntil
	return &d
}

// MarkPersisted marks the grant as persisted.
func (g *ScholarshipGrant) MarkPersisted() {
	if g != nil {
		g.isNew = false
	}
}

// Clone returns a detached copy marked as persisted.
func (g *ScholarshipGrant) Clone() *ScholarshipGrant {
	if g == nil {
		return nil
	}
	cp := *g
	if g.validUntil != nil {
		d := *g.validUntil
		cp.validUntil = &d
	}
	cp.isNew = false
	return &cp
}
