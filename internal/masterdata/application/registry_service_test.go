package application

import (
	"context"
	"errors"
	"testing"
	"time"

	masterdata "campus-ledger/internal/masterdata/domain"
)

type fakeProgramRepo struct {
	programs map[string]masterdata.Program
}

func (r *fakeProgramRepo) Get(_ context.Context, code string) (*masterdata.Program, error) {
	if p, ok := r.programs[code]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *fakeProgramRepo) Save(_ context.Context, program *masterdata.Program) error {
	if r.programs == nil {
		r.programs = make(map[string]masterdata.Program)
	}
	r.programs[program.Code] = *program
	return nil
}

type fakeStudentRepo struct {
	students map[string]masterdata.Student
}

func (r *fakeStudentRepo) Get(_ context.Context, id string) (*masterdata.Student, error) {
	if s, ok := r.students[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *fakeStudentRepo) ListByProgram(_ context.Context, programCode, academicYear string) ([]masterdata.Student, error) {
	var result []masterdata.Student
	for _, s := range r.students {
		if s.ProgramCode == programCode && s.AcademicYear == academicYear {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *fakeStudentRepo) Save(_ context.Context, student *masterdata.Student) error {
	if r.students == nil {
		r.students = make(map[string]masterdata.Student)
	}
	r.students[student.ID] = *student
	return nil
}

type guardFunc func(ctx context.Context, beneficiaryID string) error

func (f guardFunc) GuardRegistration(ctx context.Context, beneficiaryID string) error {
	return f(ctx, beneficiaryID)
}

func registryFixture(t *testing.T, guard EnrollmentGuard) (*RegistryService, *fakeStudentRepo) {
	t.Helper()
	programs := &fakeProgramRepo{programs: map[string]masterdata.Program{
		"AGRO-L1": {Code: "AGRO-L1", Label: "Licence 1 Agronomie", Level: "L1"},
	}}
	students := &fakeStudentRepo{}
	svc, err := NewRegistryService(programs, students, guard)
	if err != nil {
		t.Fatalf("NewRegistryService: %v", err)
	}
	return svc, students
}

func TestEnrollStudent(t *testing.T) {
	svc, students := registryFixture(t, nil)

	err := svc.EnrollStudent(context.Background(), &masterdata.Student{
		ID:           "ETU-001",
		FullName:     "Awa Diallo",
		ProgramCode:  "AGRO-L1",
		AcademicYear: "2025-2026",
		EnrolledAt:   time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("EnrollStudent: %v", err)
	}
	if _, ok := students.students["ETU-001"]; !ok {
		t.Fatal("student not saved")
	}
}

func TestEnrollStudentUnknownProgram(t *testing.T) {
	svc, _ := registryFixture(t, nil)

	err := svc.EnrollStudent(context.Background(), &masterdata.Student{
		ID:           "ETU-002",
		FullName:     "Moussa Traore",
		ProgramCode:  "DROIT-L1",
		AcademicYear: "2025-2026",
	})
	if err == nil {
		t.Fatal("expected error for unknown program")
	}
}

func TestEnrollStudentBlockedByGuard(t *testing.T) {
	blocked := errors.New("registration blocked")
	svc, students := registryFixture(t, guardFunc(func(_ context.Context, beneficiaryID string) error {
		if beneficiaryID == "ETU-003" {
			return blocked
		}
		return nil
	}))

	err := svc.EnrollStudent(context.Background(), &masterdata.Student{
		ID:           "ETU-003",
		FullName:     "Fatou Ndiaye",
		ProgramCode:  "AGRO-L1",
		AcademicYear: "2025-2026",
	})
	if !errors.Is(err, blocked) {
		t.Fatalf("err = %v, want guard rejection", err)
	}
	if len(students.students) != 0 {
		t.Fatal("blocked student must not be saved")
	}
}

func TestEnrollStudentValidation(t *testing.T) {
	svc, _ := registryFixture(t, nil)

	err := svc.EnrollStudent(context.Background(), &masterdata.Student{
		ID:          "ETU-004",
		ProgramCode: "AGRO-L1",
	})
	if err == nil {
		t.Fatal("expected validation error for incomplete record")
	}
}

func TestCohortListsProgramYear(t *testing.T) {
	svc, _ := registryFixture(t, nil)

	for _, id := range []string{"ETU-010", "ETU-011"} {
		if err := svc.EnrollStudent(context.Background(), &masterdata.Student{
			ID:           id,
			FullName:     "Etudiant " + id,
			ProgramCode:  "AGRO-L1",
			AcademicYear: "2025-2026",
		}); err != nil {
			t.Fatalf("EnrollStudent %s: %v", id, err)
		}
	}

	cohort, err := svc.Cohort(context.Background(), "AGRO-L1", "2025-2026")
	if err != nil {
		t.Fatalf("Cohort: %v", err)
	}
	if len(cohort) != 2 {
		t.Fatalf("cohort size = %d, want 2", len(cohort))
	}
}
