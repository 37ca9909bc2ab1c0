package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	academic "campus-ledger/internal/academic/domain"
	"campus-ledger/internal/academic/infrastructure/memory"
	"campus-ledger/internal/auth"
	"campus-ledger/internal/rules"
)

type capturePublisher struct{ events []any }

func (p *capturePublisher) Publish(ctx context.Context, event any) error {
	_ = ctx
	p.events = append(p.events, event)
	return nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func testResolver(t *testing.T) rules.Resolver {
	t.Helper()
	elim := dec(t, "10")
	resolver := rules.NewMemoryResolver()
	resolver.Register("AGRO-L1", "2025-2026", rules.ProgramConfig{
		Grading: rules.GradingRules{
			MinValidate:     dec(t, "10"),
			Compensation:    true,
			EliminationMark: &elim,
			BlockingComponents: map[string]struct{}{
				"TP": {},
			},
			DefaultComponentWeights: map[string]decimal.Decimal{
				"TD":   dec(t, "0.3"),
				"EXAM": dec(t, "0.7"),
			},
		},
	})
	return resolver
}

func newService(t *testing.T) (*ValidationService, *capturePublisher) {
	t.Helper()
	publisher := &capturePublisher{}
	svc, err := NewValidationService(memory.NewGradeRepository(), testResolver(t), publisher, nil)
	if err != nil {
		t.Fatalf("NewValidationService: %v", err)
	}
	return svc, publisher
}

func TestRecordGradeComputesUnit(t *testing.T) {
	svc, publisher := newService(t)
	ctx := context.Background()
	scope := auth.NewScope("TEA-1", auth.RoleTeacher).WithTeachingUnits("UE-BIO")

	if _, err := svc.RecordGrade(ctx, scope, RecordGradeCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
		UECode:        "UE-BIO",
		Component:     "TD",
		Score:         dec(t, "8"),
	}); err != nil {
		t.Fatalf("RecordGrade TD: %v", err)
	}
	result, err := svc.RecordGrade(ctx, scope, RecordGradeCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
		UECode:        "ue-bio",
		Component:     "exam",
		Score:         dec(t, "12"),
	})
	if err != nil {
		t.Fatalf("RecordGrade EXAM: %v", err)
	}

	if !result.WeightedAverage.Equal(dec(t, "10.8")) {
		t.Errorf("average = %s, want 10.8", result.WeightedAverage)
	}
	if !result.Validated {
		t.Errorf("unit should validate")
	}

	var closings int
	for _, ev := range publisher.events {
		if closed, ok := ev.(academic.UnitValidationClosed); ok {
			closings++
			if closed.UECode != "UE-BIO" {
				t.Errorf("closing unit = %q, want UE-BIO", closed.UECode)
			}
		}
	}
	if closings != 2 {
		t.Errorf("unit closings = %d, want one per grade write", closings)
	}
}

func TestRecordGradeScopeEnforcement(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cmd := RecordGradeCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
		UECode:        "UE-BIO",
		Component:     "TD",
		Score:         dec(t, "12"),
	}

	outOfScope := auth.NewScope("TEA-1", auth.RoleTeacher).WithTeachingUnits("UE-MATH")
	if _, err := svc.RecordGrade(ctx, outOfScope, cmd); !errors.Is(err, academic.ErrUnitNotCovered) {
		t.Errorf("out-of-scope err = %v, want ErrUnitNotCovered", err)
	}

	student := auth.NewScope("STU-001", auth.RoleStudent)
	if _, err := svc.RecordGrade(ctx, student, cmd); !errors.Is(err, academic.ErrUnitNotCovered) {
		t.Errorf("student err = %v, want ErrUnitNotCovered", err)
	}

	validator := auth.NewScope("VAL-1", auth.RoleValidatorAcad)
	if _, err := svc.RecordGrade(ctx, validator, cmd); err != nil {
		t.Errorf("validator should cover every unit: %v", err)
	}
}

func TestTranscriptSemesterDecision(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	scope := auth.NewScope("VAL-1", auth.RoleValidatorAcad)

	grades := []RecordGradeCommand{
		{UECode: "UE-BIO", Component: "TD", Score: dec(t, "8")},
		{UECode: "UE-BIO", Component: "EXAM", Score: dec(t, "12")},
		{UECode: "UE-MATH", Component: "TD", Score: dec(t, "7")},
		{UECode: "UE-MATH", Component: "EXAM", Score: dec(t, "10")},
	}
	for _, cmd := range grades {
		cmd.BeneficiaryID = "STU-001"
		cmd.ProgramCode = "AGRO-L1"
		cmd.AcademicYear = "2025-2026"
		if _, err := svc.RecordGrade(ctx, scope, cmd); err != nil {
			t.Fatalf("RecordGrade %s/%s: %v", cmd.UECode, cmd.Component, err)
		}
	}

	tr, err := svc.TranscriptFor(ctx, "STU-001", "AGRO-L1", "2025-2026")
	if err != nil {
		t.Fatalf("TranscriptFor: %v", err)
	}
	if len(tr.Units) != 2 {
		t.Fatalf("units = %d, want 2", len(tr.Units))
	}
	// UE-BIO 10.80 validated, UE-MATH 9.10 failed; semester mean 9.95
	// misses the threshold even with compensation.
	if got := tr.Units[0]; got.UECode != "UE-BIO" || !got.WeightedAverage.Equal(dec(t, "10.8")) {
		t.Errorf("UE-BIO = %+v", got)
	}
	if got := tr.Units[1]; got.UECode != "UE-MATH" || !got.WeightedAverage.Equal(dec(t, "9.1")) {
		t.Errorf("UE-MATH = %+v", got)
	}
	if !tr.Semester.Average.Equal(dec(t, "9.95")) {
		t.Errorf("semester average = %s, want 9.95", tr.Semester.Average)
	}
	if tr.Semester.Validated || tr.YearValidated {
		t.Errorf("semester below threshold must not validate")
	}
}

func TestTranscriptBlockedUnitSurfacesAsFailed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	scope := auth.NewScope("VAL-1", auth.RoleValidatorAcad)

	grades := []RecordGradeCommand{
		{UECode: "UE-CHIM", Component: "TP", Score: dec(t, "8")},
		{UECode: "UE-CHIM", Component: "EXAM", Score: dec(t, "16")},
	}
	for _, cmd := range grades {
		cmd.BeneficiaryID = "STU-001"
		cmd.ProgramCode = "AGRO-L1"
		cmd.AcademicYear = "2025-2026"
		if _, err := svc.RecordGrade(ctx, scope, cmd); err != nil {
			t.Fatalf("RecordGrade: %v", err)
		}
	}

	tr, err := svc.TranscriptFor(ctx, "STU-001", "AGRO-L1", "2025-2026")
	if err != nil {
		t.Fatalf("TranscriptFor: %v", err)
	}
	unit := tr.Units[0]
	if !unit.Blocked {
		t.Errorf("TP at 8 under elimination mark 10 should block")
	}
	if unit.Decision() != academic.DecisionFailed {
		t.Errorf("decision = %q, want %q", unit.Decision(), academic.DecisionFailed)
	}
	// TP has no default weight, so the average rests on EXAM alone.
	if !unit.WeightedAverage.Equal(dec(t, "16")) {
		t.Errorf("average = %s, want 16", unit.WeightedAverage)
	}
	if unit.Validated {
		t.Errorf("blocked unit must not validate despite average 16")
	}
}

func TestRecordGradeRejectsOutOfRangeScore(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	scope := auth.NewScope("VAL-1", auth.RoleValidatorAcad)

	_, err := svc.RecordGrade(ctx, scope, RecordGradeCommand{
		BeneficiaryID: "STU-001",
		ProgramCode:   "AGRO-L1",
		AcademicYear:  "2025-2026",
		UECode:        "UE-BIO",
		Component:     "TD",
		Score:         dec(t, "-3"),
	})
	if !errors.Is(err, academic.ErrScoreOutOfRange) {
		t.Errorf("err = %v, want ErrScoreOutOfRange", err)
	}
}
