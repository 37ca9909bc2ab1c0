package rules

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GradingRules is the validated grading configuration of a program.
type GradingRules struct {
	MinValidate             decimal.Decimal
	Compensation            bool
	EliminationMark         *decimal.Decimal
	BlockingComponents      map[string]struct{}
	ComponentWeights        map[string]map[string]decimal.Decimal
	DefaultComponentWeights map[string]decimal.Decimal
}

// WeightsFor resolves the component weight map for a teaching unit.
// Per-unit weights win over the default map; keys are upper-cased.
// A nil result means no configured weights and callers fall back to
// the weight carried on the evaluation item itself.
func (r GradingRules) WeightsFor(ueCode string) map[string]decimal.Decimal {
	if weights, ok := r.ComponentWeights[strings.ToUpper(ueCode)]; ok {
		return weights
	}
	if len(r.DefaultComponentWeights) > 0 {
		return r.DefaultComponentWeights
	}
	return nil
}

// IsBlocking reports whether a component is an eliminatory component.
func (r GradingRules) IsBlocking(component string) bool {
	_, ok := r.BlockingComponents[strings.ToUpper(component)]
	return ok
}

// TrancheKind classifies a fee installment.
type TrancheKind string

const (
	TrancheInscription TrancheKind = "inscription"
	TrancheScolarite   TrancheKind = "scolarite"
	TrancheAutres      TrancheKind = "autres"
)

// Tranche is one scheduled portion of a program's fees.
// A nil DueDate means the tranche is due immediately.
type Tranche struct {
	Kind    TrancheKind
	Label   string
	Amount  decimal.Decimal
	DueDate *time.Time
}

// DueBy reports whether the tranche is due at the reference date.
func (t Tranche) DueBy(ref time.Time) bool {
	if t.DueDate == nil {
		return true
	}
	return !ref.Before(*t.DueDate)
}

// FeeSchedule is the validated fee schedule of a program for one academic year.
// Tranches are ordered by due date, nil due dates first.
type FeeSchedule struct {
	ProgramCode  string
	AcademicYear string
	Currency     string
	Tranches     []Tranche
}

// Total sums all tranche amounts.
func (s FeeSchedule) Total() decimal.Decimal {
	total := decimal.Zero
	for _, tranche := range s.Tranches {
		total = total.Add(tranche.Amount)
	}
	return total
}
