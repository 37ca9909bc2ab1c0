package academic

import (
	"time"

	"github.com/shopspring/decimal"
)

// GradeRecorded reports a newly recorded evaluation item.
type GradeRecorded struct {
	BeneficiaryID string
	UECode        string
	Component     string
	Score         decimal.Decimal
	ActorID       string
	OccurredAt    time.Time
}

// UnitValidationClosed reports the recomputed outcome of one unit.
type UnitValidationClosed struct {
	BeneficiaryID string
	UECode        string
	Average       decimal.Decimal
	Decision      string
	Blocked       bool
	OccurredAt    time.Time
}
