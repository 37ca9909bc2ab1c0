package academic

import "context"

// GradeLedger holds the recorded evaluation items of one student for one
// academic year, keyed by teaching unit.
type GradeLedger struct {
	beneficiaryID string
	academicYear  string
	items         map[string][]EvaluationItem
}

// NewGradeLedger creates an empty ledger.
func NewGradeLedger(beneficiaryID, academicYear string) *GradeLedger {
	return &GradeLedger{
		beneficiaryID: beneficiaryID,
		academicYear:  academicYear,
		items:         make(map[string][]EvaluationItem),
	}
}

// Record stores one evaluation item. Blank scores never reach the
// ledger; negative scores and scores above the component scale are
// rejected.
func (l *GradeLedger) Record(ueCode string, it EvaluationItem) error {
	if ueCode == "" {
		return ErrEmptyUnitCode
	}
	if it.Score.IsNegative() {
		return ErrScoreOutOfRange
	}
	if it.MaxScore.IsPositive() && it.Score.GreaterThan(it.MaxScore) {
		return ErrScoreOutOfRange
	}
	l.items[ueCode] = append(l.items[ueCode], it)
	return nil
}

// Items returns the recorded items of one unit.
func (l *GradeLedger) Items(ueCode string) []EvaluationItem {
	out := make([]EvaluationItem, len(l.items[ueCode]))
	copy(out, l.items[ueCode])
	return out
}

// UnitCodes returns the units with at least one recorded item.
func (l *GradeLedger) UnitCodes() []string {
	codes := make([]string, 0, len(l.items))
	for code := range l.items {
		codes = append(codes, code)
	}
	return codes
}

func (l *GradeLedger) BeneficiaryID() string { return l.beneficiaryID }
func (l *GradeLedger) AcademicYear() string  { return l.academicYear }

// Clone returns a detached copy.
func (l *GradeLedger) Clone() *GradeLedger {
	if l == nil {
		return nil
	}
	cp := NewGradeLedger(l.beneficiaryID, l.academicYear)
	for code, items := range l.items {
		cp.items[code] = append([]EvaluationItem(nil), items...)
	}
	return cp
}

// GradeRepository persists grade ledgers.
type GradeRepository interface {
	LedgerFor(ctx context.Context, beneficiaryID, academicYear string) (*GradeLedger, error)
	Save(ctx context.Context, ledger *GradeLedger) error
}
