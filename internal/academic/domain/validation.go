package academic

import (
	"github.com/shopspring/decimal"

	"campus-ledger/internal/rules"
)

// SemesterResult is the computed outcome of one semester.
type SemesterResult struct {
	Average   decimal.Decimal
	Validated bool
	Units     []UEResult
}

// ValidateSemester derives the semester outcome from its unit results.
// The semester average is the unweighted mean of unit averages. With
// compensation the semester validates on the average alone; without it
// every unit must validate on its own.
func ValidateSemester(units []UEResult, gr rules.GradingRules) SemesterResult {
	result := SemesterResult{Average: decimal.Zero, Units: units}
	if len(units) == 0 {
		return result
	}

	sum := decimal.Zero
	allValidated := true
	for _, u := range units {
		sum = sum.Add(u.WeightedAverage)
		if !u.Validated {
			allValidated = false
		}
	}
	result.Average = sum.Div(decimal.NewFromInt(int64(len(units)))).Round(2)

	if gr.Compensation {
		result.Validated = result.Average.GreaterThanOrEqual(gr.MinValidate)
	} else {
		result.Validated = allValidated
	}
	return result
}

// ValidateYear mirrors the semester decision in the single-term model.
func ValidateYear(semesters []SemesterResult) bool {
	if len(semesters) == 0 {
		return false
	}
	for _, s := range semesters {
		if !s.Validated {
			return false
		}
	}
	return true
}
