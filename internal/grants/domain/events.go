package grants

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScholarshipGranted reports a newly created scholarship.
type ScholarshipGranted struct {
	GrantID       string
	BeneficiaryID string
	GrantedBy     string
	Amount        decimal.Decimal
	OccurredAt    time.Time
}

// ScholarshipSuspended reports a manual suspension.
type ScholarshipSuspended struct {
	GrantID       string
	BeneficiaryID string
	ActorID       string
	OccurredAt    time.Time
}

// ScholarshipReinstated reports a suspension lifted.
type ScholarshipReinstated struct {
	GrantID       string
	BeneficiaryID string
	ActorID       string
	OccurredAt    time.Time
}

// ScholarshipTerminated reports a terminal close, manual or by date.
type ScholarshipTerminated struct {
	GrantID       string
	BeneficiaryID string
	ActorID       string
	Auto          bool
	OccurredAt    time.Time
}

// DeferralGranted reports a newly created deferral.
type DeferralGranted struct {
	GrantID       string
	BeneficiaryID string
	GrantedBy     string
	Amount        decimal.Decimal
	DurationDays  int
	EndDate       time.Time
	OccurredAt    time.Time
}

// DeferralHonored reports a settled deferral.
type DeferralHonored struct {
	GrantID       string
	BeneficiaryID string
	ActorID       string
	OccurredAt    time.Time
}

// DeferralLapsed reports a deferral whose end date passed unsettled.
type DeferralLapsed struct {
	GrantID       string
	BeneficiaryID string
	OccurredAt    time.Time
}

// SoDViolationRejected reports a self-grant attempt that was refused.
type SoDViolationRejected struct {
	GrantType     string
	BeneficiaryID string
	ActorID       string
	OccurredAt    time.Time
}
