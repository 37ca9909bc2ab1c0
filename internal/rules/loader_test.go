package rules

import (
	"context"
	"errors"
	"testing"
	"time"
)

const sampleConfig = `
program: LMD-INFO
academic_year: "2025-2026"
currency: XAF
grading_system:
  min_validate: 10
  compensation: true
  elimination_mark: 10
  blocking_components: [tp]
  default_component_weights:
    td: 0.3
    exam: 0.7
  component_weights:
    UE-MATH-101:
      td: 0.4
      exam: 0.6
frais:
  inscription:
    total: 50000
    echeance: "2025-09-15"
  scolarite:
    tranche1: 50000
    tranche2: 50000
    tranche3: 40000
    echeances: ["2025-10-30", "2025-12-14", "2026-03-28"]
  autres:
    kit: 15000
`

func TestParseProgramConfig(t *testing.T) {
	cfg, err := ParseProgramConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	grading := cfg.Grading
	if !grading.MinValidate.Equal(dec(t, "10")) {
		t.Fatalf("min_validate = %s", grading.MinValidate)
	}
	if !grading.Compensation {
		t.Fatal("expected compensation enabled")
	}
	if grading.EliminationMark == nil || !grading.EliminationMark.Equal(dec(t, "10")) {
		t.Fatalf("elimination mark = %v", grading.EliminationMark)
	}
	if !grading.IsBlocking("TP") || !grading.IsBlocking("tp") {
		t.Fatal("expected TP to be blocking, case-insensitively")
	}

	weights := grading.WeightsFor("ue-math-101")
	if !weights["TD"].Equal(dec(t, "0.4")) || !weights["EXAM"].Equal(dec(t, "0.6")) {
		t.Fatalf("per-unit weights = %v", weights)
	}
	defaults := grading.WeightsFor("UE-UNKNOWN")
	if !defaults["TD"].Equal(dec(t, "0.3")) || !defaults["EXAM"].Equal(dec(t, "0.7")) {
		t.Fatalf("default weights = %v", defaults)
	}

	fees := cfg.Fees
	if fees.ProgramCode != "LMD-INFO" || fees.AcademicYear != "2025-2026" {
		t.Fatalf("schedule identity = %s %s", fees.ProgramCode, fees.AcademicYear)
	}
	if len(fees.Tranches) != 5 {
		t.Fatalf("expected 5 tranches, got %d", len(fees.Tranches))
	}
	// Ancillary fee has no due date and sorts first.
	if fees.Tranches[0].Kind != TrancheAutres || fees.Tranches[0].DueDate != nil {
		t.Fatalf("first tranche = %+v", fees.Tranches[0])
	}
	for i := 2; i < len(fees.Tranches); i++ {
		prev, cur := fees.Tranches[i-1].DueDate, fees.Tranches[i].DueDate
		if prev != nil && cur != nil && cur.Before(*prev) {
			t.Fatalf("tranches out of due-date order at %d", i)
		}
	}
	if !fees.Total().Equal(dec(t, "205000")) {
		t.Fatalf("total = %s", fees.Total())
	}
}

func TestParseProgramConfigDefaultsTuitionDueDates(t *testing.T) {
	cfg, err := ParseProgramConfig([]byte(`
program: BTS-GC
academic_year: "2025-2026"
grading_system:
  min_validate: 12
frais:
  scolarite:
    tranche1: 60000
    tranche2: 60000
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if len(cfg.Fees.Tranches) != 2 {
		t.Fatalf("expected 2 tranches, got %d", len(cfg.Fees.Tranches))
	}
	first := cfg.Fees.Tranches[0].DueDate
	want := time.Date(2025, time.October, 30, 0, 0, 0, 0, time.UTC)
	if first == nil || !first.Equal(want) {
		t.Fatalf("default first due date = %v, want %s", first, want)
	}
}

func TestParseProgramConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing min_validate", `
program: P1
academic_year: "2025-2026"
grading_system:
  compensation: false
`},
		{"negative weight", `
program: P1
academic_year: "2025-2026"
grading_system:
  min_validate: 10
  default_component_weights:
    td: -0.3
`},
		{"negative tranche", `
program: P1
academic_year: "2025-2026"
grading_system:
  min_validate: 10
frais:
  scolarite:
    tranche1: -100
`},
		{"missing program", `
academic_year: "2025-2026"
grading_system:
  min_validate: 10
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProgramConfig([]byte(tc.doc))
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %T", err)
			}
		})
	}
}

func TestMemoryResolverNotFound(t *testing.T) {
	resolver := NewMemoryResolver()
	_, err := resolver.GradingRules(context.Background(), "LMD-INFO", "2025-2026")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cfg, err := ParseProgramConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	resolver.Register("LMD-INFO", "2025-2026", cfg)
	schedule, err := resolver.FeeSchedule(context.Background(), "LMD-INFO", "2025-2026")
	if err != nil {
		t.Fatalf("fee schedule: %v", err)
	}
	if schedule.Currency != "XAF" {
		t.Fatalf("currency = %s", schedule.Currency)
	}
}
