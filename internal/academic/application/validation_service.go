package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	academic "campus-ledger/internal/academic/domain"
	"campus-ledger/internal/auth"
	"campus-ledger/internal/observability/metrics"
	"campus-ledger/internal/rules"
)

// EventPublisher emits domain events to the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RecordGradeCommand writes one evaluation item.
type RecordGradeCommand struct {
	BeneficiaryID string
	ProgramCode   string
	AcademicYear  string
	UECode        string
	Component     string
	Score         decimal.Decimal
	MaxScore      decimal.Decimal
	Weight        decimal.Decimal
}

// ValidationService records grades and recomputes unit and semester
// outcomes under the program's grading rules.
type ValidationService struct {
	grades    academic.GradeRepository
	resolver  rules.Resolver
	publisher EventPublisher
	clock     Clock
}

// NewValidationService constructs the service.
func NewValidationService(
	grades academic.GradeRepository,
	resolver rules.Resolver,
	publisher EventPublisher,
	clock Clock,
) (*ValidationService, error) {
	if grades == nil {
		return nil, errors.New("validation service: nil grade repository")
	}
	if resolver == nil {
		return nil, errors.New("validation service: nil resolver")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ValidationService{grades: grades, resolver: resolver, publisher: publisher, clock: clock}, nil
}

// RecordGrade writes one item after checking the actor covers the unit,
// then recomputes the unit and publishes its closing decision.
func (s *ValidationService) RecordGrade(ctx context.Context, scope auth.Scope, cmd RecordGradeCommand) (academic.UEResult, error) {
	var result academic.UEResult

	ueCode := strings.ToUpper(strings.TrimSpace(cmd.UECode))
	if ueCode == "" {
		return result, academic.ErrEmptyUnitCode
	}
	if !scope.CoversUnit(ueCode) {
		return result, academic.ErrUnitNotCovered
	}

	started := time.Now()
	result, err := s.recordGrade(ctx, scope, ueCode, cmd)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	metrics.ObserveValidation(outcome, time.Since(started))
	return result, err
}

func (s *ValidationService) recordGrade(ctx context.Context, scope auth.Scope, ueCode string, cmd RecordGradeCommand) (academic.UEResult, error) {
	var result academic.UEResult

	ledger, err := s.grades.LedgerFor(ctx, cmd.BeneficiaryID, cmd.AcademicYear)
	if err != nil {
		return result, err
	}
	item := academic.EvaluationItem{
		Component: strings.ToUpper(strings.TrimSpace(cmd.Component)),
		Score:     cmd.Score,
		MaxScore:  cmd.MaxScore,
		Weight:    cmd.Weight,
	}
	if err := ledger.Record(ueCode, item); err != nil {
		return result, err
	}
	if err := s.grades.Save(ctx, ledger); err != nil {
		return result, err
	}

	gr, err := s.resolver.GradingRules(ctx, cmd.ProgramCode, cmd.AcademicYear)
	if err != nil {
		return result, err
	}
	result = academic.AggregateUnit(ueCode, ledger.Items(ueCode), gr)

	if s.publisher == nil {
		return result, nil
	}
	now := s.clock.Now()
	if err := s.publisher.Publish(ctx, academic.GradeRecorded{
		BeneficiaryID: cmd.BeneficiaryID,
		UECode:        ueCode,
		Component:     item.Component,
		Score:         cmd.Score,
		ActorID:       scope.ActorID,
		OccurredAt:    now,
	}); err != nil {
		return result, err
	}
	if err := s.publisher.Publish(ctx, academic.UnitValidationClosed{
		BeneficiaryID: cmd.BeneficiaryID,
		UECode:        ueCode,
		Average:       result.WeightedAverage,
		Decision:      string(result.Decision()),
		Blocked:       result.Blocked,
		OccurredAt:    now,
	}); err != nil {
		return result, err
	}
	return result, nil
}

// Transcript is the computed academic state of one student year.
type Transcript struct {
	BeneficiaryID string
	AcademicYear  string
	Units         []academic.UEResult
	Semester      academic.SemesterResult
	YearValidated bool
}

// TranscriptFor recomputes every unit and the semester decision.
func (s *ValidationService) TranscriptFor(ctx context.Context, beneficiaryID, programCode, academicYear string) (Transcript, error) {
	tr := Transcript{BeneficiaryID: beneficiaryID, AcademicYear: academicYear}

	ledger, err := s.grades.LedgerFor(ctx, beneficiaryID, academicYear)
	if err != nil {
		return tr, err
	}
	gr, err := s.resolver.GradingRules(ctx, programCode, academicYear)
	if err != nil {
		return tr, err
	}

	codes := ledger.UnitCodes()
	sort.Strings(codes)
	for _, code := range codes {
		tr.Units = append(tr.Units, academic.AggregateUnit(code, ledger.Items(code), gr))
	}
	tr.Semester = academic.ValidateSemester(tr.Units, gr)
	tr.YearValidated = academic.ValidateYear([]academic.SemesterResult{tr.Semester})
	return tr, nil
}
