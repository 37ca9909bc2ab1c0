package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentFinance is the persisted financial standing of one student.
type StudentFinance struct {
	beneficiaryID string
	status        FinancialStatus
	balance       decimal.Decimal
	computedAt    time.Time

	isNew bool
}

// NewStudentFinance creates the initial standing for a student.
func NewStudentFinance(beneficiaryID string) (*StudentFinance, error) {
	if beneficiaryID == "" {
		return nil, ErrNilAggregate
	}
	return &StudentFinance{
		beneficiaryID: beneficiaryID,
		status:        StatusOk,
		balance:       decimal.Zero,
		isNew:         true,
	}, nil
}

// RehydrateStudentFinance rebuilds a persisted standing.
func RehydrateStudentFinance(beneficiaryID string, status FinancialStatus, balance decimal.Decimal, computedAt time.Time) *StudentFinance {
	return &StudentFinance{
		beneficiaryID: beneficiaryID,
		status:        status,
		balance:       balance,
		computedAt:    computedAt,
	}
}

// Apply overwrites the standing with a recomputation result.
func (f *StudentFinance) Apply(res BalanceResult, at time.Time) {
	f.status = res.Status
	f.balance = res.Balance
	f.computedAt = at
}

// GuardRegistration rejects a registration attempt while the student is
// blocked. Deferred and Ok standings may register.
func (f *StudentFinance) GuardRegistration() error {
	if f.status == StatusBlocked {
		return &PolicyViolationError{
			Rule:   "registration_while_blocked",
			Detail: "student " + f.beneficiaryID + " is financially blocked",
		}
	}
	return nil
}

func (f *StudentFinance) BeneficiaryID() string     { return f.beneficiaryID }
func (f *StudentFinance) Status() FinancialStatus   { return f.status }
func (f *StudentFinance) Balance() decimal.Decimal  { return f.balance }
func (f *StudentFinance) ComputedAt() time.Time     { return f.computedAt }
func (f *StudentFinance) IsNew() bool               { return f.isNew }

// MarkPersisted marks the standing as persisted.
func (f *StudentFinance) MarkPersisted() {
	if f != nil {
		f.isNew = false
	}
}

// Clone returns a detached copy marked as persisted.
func (f *StudentFinance) Clone() *StudentFinance {
	if f == nil {
		return nil
	}
	cp := *f
	cp.isNew = false
	return &cp
}
