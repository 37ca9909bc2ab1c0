package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ProgramConfig is the parsed and validated configuration of one program
// for one academic year.
type ProgramConfig struct {
	Grading GradingRules
	Fees    FeeSchedule
}

type rawProgramConfig struct {
	Program       string           `yaml:"program"`
	AcademicYear  string           `yaml:"academic_year"`
	Currency      string           `yaml:"currency"`
	GradingSystem rawGradingSystem `yaml:"grading_system"`
	Frais         rawFrais         `yaml:"frais"`
}

type rawGradingSystem struct {
	MinValidate             *float64                      `yaml:"min_validate"`
	Compensation            *bool                         `yaml:"compensation"`
	EliminationMark         *float64                      `yaml:"elimination_mark"`
	BlockingComponents      []string                      `yaml:"blocking_components"`
	DefaultComponentWeights map[string]float64            `yaml:"default_component_weights"`
	ComponentWeights        map[string]map[string]float64 `yaml:"component_weights"`
}

type rawFrais struct {
	Inscription rawInscription     `yaml:"inscription"`
	Scolarite   rawScolarite       `yaml:"scolarite"`
	Autres      map[string]float64 `yaml:"autres"`
}

type rawInscription struct {
	Total    float64 `yaml:"total"`
	Echeance string  `yaml:"echeance"`
}

type rawScolarite struct {
	Tranche1  float64  `yaml:"tranche1"`
	Tranche2  float64  `yaml:"tranche2"`
	Tranche3  float64  `yaml:"tranche3"`
	Echeances []string `yaml:"echeances"`
}

// ParseProgramConfig decodes a YAML document into validated rules and fees.
// Malformed documents are rejected here with a ConfigurationError so that
// no calculation ever runs on silently defaulted values.
func ParseProgramConfig(data []byte) (ProgramConfig, error) {
	var raw rawProgramConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ProgramConfig{}, configErr("document", err.Error())
	}
	if raw.Program == "" {
		return ProgramConfig{}, configErr("program", "missing program code")
	}
	if raw.AcademicYear == "" {
		return ProgramConfig{}, configErr("academic_year", "missing academic year")
	}

	grading, err := buildGradingRules(raw.GradingSystem)
	if err != nil {
		return ProgramConfig{}, err
	}
	fees, err := buildFeeSchedule(raw)
	if err != nil {
		return ProgramConfig{}, err
	}
	return ProgramConfig{Grading: grading, Fees: fees}, nil
}

func buildGradingRules(raw rawGradingSystem) (GradingRules, error) {
	if raw.MinValidate == nil {
		return GradingRules{}, configErr("grading_system.min_validate", "missing")
	}
	if *raw.MinValidate <= 0 {
		return GradingRules{}, configErr("grading_system.min_validate", "must be positive")
	}

	rules := GradingRules{
		MinValidate:        decimal.NewFromFloat(*raw.MinValidate),
		Compensation:       true,
		BlockingComponents: make(map[string]struct{}, len(raw.BlockingComponents)),
	}
	if raw.Compensation != nil {
		rules.Compensation = *raw.Compensation
	}
	if raw.EliminationMark != nil {
		mark := decimal.NewFromFloat(*raw.EliminationMark)
		if mark.IsNegative() {
			return GradingRules{}, configErr("grading_system.elimination_mark", "must not be negative")
		}
		rules.EliminationMark = &mark
	}
	for _, component := range raw.BlockingComponents {
		component = strings.ToUpper(strings.TrimSpace(component))
		if component != "" {
			rules.BlockingComponents[component] = struct{}{}
		}
	}

	defaults, err := buildWeightMap("grading_system.default_component_weights", raw.DefaultComponentWeights)
	if err != nil {
		return GradingRules{}, err
	}
	rules.DefaultComponentWeights = defaults

	if len(raw.ComponentWeights) > 0 {
		rules.ComponentWeights = make(map[string]map[string]decimal.Decimal, len(raw.ComponentWeights))
		for ueCode, weights := range raw.ComponentWeights {
			built, err := buildWeightMap("grading_system.component_weights."+ueCode, weights)
			if err != nil {
				return GradingRules{}, err
			}
			rules.ComponentWeights[strings.ToUpper(ueCode)] = built
		}
	}
	return rules, nil
}

func buildWeightMap(field string, raw map[string]float64) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	weights := make(map[string]decimal.Decimal, len(raw))
	for component, weight := range raw {
		if weight < 0 {
			return nil, configErr(field+"."+component, "negative weight")
		}
		weights[strings.ToUpper(component)] = decimal.NewFromFloat(weight)
	}
	return weights, nil
}

func buildFeeSchedule(raw rawProgramConfig) (FeeSchedule, error) {
	currency := raw.Currency
	if currency == "" {
		currency = "XAF"
	}
	schedule := FeeSchedule{
		ProgramCode:  raw.Program,
		AcademicYear: raw.AcademicYear,
		Currency:     currency,
	}

	if raw.Frais.Inscription.Total < 0 {
		return FeeSchedule{}, configErr("frais.inscription.total", "negative amount")
	}
	if raw.Frais.Inscription.Total > 0 {
		due, err := parseOptionalDate("frais.inscription.echeance", raw.Frais.Inscription.Echeance)
		if err != nil {
			return FeeSchedule{}, err
		}
		schedule.Tranches = append(schedule.Tranches, Tranche{
			Kind:    TrancheInscription,
			Label:   "Frais d'inscription",
			Amount:  decimal.NewFromFloat(raw.Frais.Inscription.Total),
			DueDate: due,
		})
	}

	echeances := raw.Frais.Scolarite.Echeances
	if len(echeances) == 0 {
		echeances = defaultTuitionDueDates(raw.AcademicYear)
	}
	amounts := []float64{raw.Frais.Scolarite.Tranche1, raw.Frais.Scolarite.Tranche2, raw.Frais.Scolarite.Tranche3}
	for i, amount := range amounts {
		if amount < 0 {
			return FeeSchedule{}, configErr(fmt.Sprintf("frais.scolarite.tranche%d", i+1), "negative amount")
		}
		if amount == 0 || i >= len(echeances) {
			continue
		}
		due, err := parseOptionalDate(fmt.Sprintf("frais.scolarite.echeances[%d]", i), echeances[i])
		if err != nil {
			return FeeSchedule{}, err
		}
		schedule.Tranches = append(schedule.Tranches, Tranche{
			Kind:    TrancheScolarite,
			Label:   fmt.Sprintf("Scolarité - Tranche %d", i+1),
			Amount:  decimal.NewFromFloat(amount),
			DueDate: due,
		})
	}

	autresKeys := make([]string, 0, len(raw.Frais.Autres))
	for key := range raw.Frais.Autres {
		autresKeys = append(autresKeys, key)
	}
	sort.Strings(autresKeys)
	for _, key := range autresKeys {
		amount := raw.Frais.Autres[key]
		if amount < 0 {
			return FeeSchedule{}, configErr("frais.autres."+key, "negative amount")
		}
		if amount == 0 {
			continue
		}
		// Ancillary fees carry no due date: due immediately.
		schedule.Tranches = append(schedule.Tranches, Tranche{
			Kind:   TrancheAutres,
			Label:  "Autres frais - " + key,
			Amount: decimal.NewFromFloat(amount),
		})
	}

	sortTranches(schedule.Tranches)
	return schedule, nil
}

// sortTranches orders tranches by due date, nil due dates (due immediately) first.
// The sort is stable so same-day tranches keep their configured order.
func sortTranches(tranches []Tranche) {
	sort.SliceStable(tranches, func(i, j int) bool {
		left, right := tranches[i].DueDate, tranches[j].DueDate
		if left == nil {
			return right != nil
		}
		if right == nil {
			return false
		}
		return left.Before(*right)
	})
}

// defaultTuitionDueDates returns the standing institutional due dates when a
// schedule omits them: Oct 30 and Dec 14 of the starting year, Mar 28 of the
// following year.
func defaultTuitionDueDates(academicYear string) []string {
	year := startYear(academicYear)
	return []string{
		fmt.Sprintf("%d-10-30", year),
		fmt.Sprintf("%d-12-14", year),
		fmt.Sprintf("%d-03-28", year+1),
	}
}

func startYear(academicYear string) int {
	head := academicYear
	if idx := strings.IndexAny(academicYear, "-/"); idx > 0 {
		head = academicYear[:idx]
	}
	if year, err := strconv.Atoi(strings.TrimSpace(head)); err == nil && year > 0 {
		return year
	}
	return time.Now().UTC().Year()
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02/01/2006"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return &day, nil
		}
	}
	return nil, configErr(field, "unparseable date "+strconv.Quote(value))
}
