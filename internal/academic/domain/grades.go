package academic

import (
	"strings"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/rules"
)

// gradeScale is the reference scale every score normalizes to.
var gradeScale = decimal.NewFromInt(20)

// EvaluationItem is one graded component of a teaching unit for one
// student. Score is the raw mark on MaxScore; a zero MaxScore means the
// score is already on the /20 scale.
type EvaluationItem struct {
	Component string
	Score     decimal.Decimal
	MaxScore  decimal.Decimal
	Weight    decimal.Decimal
}

// NormalizedScore returns the score brought to the /20 scale.
func (it EvaluationItem) NormalizedScore() decimal.Decimal {
	if it.MaxScore.IsPositive() && !it.MaxScore.Equal(gradeScale) {
		return it.Score.Mul(gradeScale).Div(it.MaxScore)
	}
	return it.Score
}

// UEResult is the computed outcome of one teaching unit.
type UEResult struct {
	UECode          string
	WeightedAverage decimal.Decimal
	Validated       bool
	Blocked         bool
}

// UnitDecision is the outcome surfaced on transcripts. A blocked unit
// surfaces as failed, never as a distinct terminal state.
type UnitDecision string

const (
	DecisionValidated UnitDecision = "Validée"
	DecisionFailed    UnitDecision = "Ajourné"
)

// Decision maps the result to its transcript decision.
func (r UEResult) Decision() UnitDecision {
	if r.Validated {
		return DecisionValidated
	}
	return DecisionFailed
}

// componentWeight resolves the weight of one component. A configured map
// wins over the weight carried on the item; a configured map missing the
// component yields zero.
func componentWeight(weights map[string]decimal.Decimal, it EvaluationItem) decimal.Decimal {
	if weights == nil {
		return it.Weight
	}
	return weights[strings.ToUpper(strings.TrimSpace(it.Component))]
}

// AggregateUnit computes the weighted average of a teaching unit and
// applies the blocking-component rule. The average is rounded half-up to
// two decimals; a zero weight sum yields a zero average.
func AggregateUnit(ueCode string, items []EvaluationItem, gr rules.GradingRules) UEResult {
	result := UEResult{UECode: ueCode, WeightedAverage: decimal.Zero}

	weights := gr.WeightsFor(ueCode)
	weightSum := decimal.Zero
	weighted := decimal.Zero
	for _, it := range items {
		w := componentWeight(weights, it)
		if w.IsZero() {
			continue
		}
		weighted = weighted.Add(it.NormalizedScore().Mul(w))
		weightSum = weightSum.Add(w)
	}
	if !weightSum.IsZero() {
		result.WeightedAverage = weighted.Div(weightSum).Round(2)
	}

	if gr.EliminationMark != nil {
		for _, it := range items {
			if gr.IsBlocking(it.Component) && it.Score.LessThan(*gr.EliminationMark) {
				result.Blocked = true
				break
			}
		}
	}

	result.Validated = !result.Blocked && result.WeightedAverage.GreaterThanOrEqual(gr.MinValidate)
	return result
}
