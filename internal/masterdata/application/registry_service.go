package application

import (
	"context"
	"errors"

	masterdata "campus-ledger/internal/masterdata/domain"
)

// EnrollmentGuard rejects enrollment for students whose financial
// status forbids it.
type EnrollmentGuard interface {
	GuardRegistration(ctx context.Context, beneficiaryID string) error
}

// RegistryService provides program and student registry commands.
type RegistryService struct {
	programs masterdata.ProgramRepository
	students masterdata.StudentRepository
	guard    EnrollmentGuard
}

// NewRegistryService constructs a registry service. The guard is
// optional; without one enrollment skips the financial check.
func NewRegistryService(programs masterdata.ProgramRepository, students masterdata.StudentRepository, guard EnrollmentGuard) (*RegistryService, error) {
	if programs == nil {
		return nil, errors.New("registry service: nil program repository")
	}
	if students == nil {
		return nil, errors.New("registry service: nil student repository")
	}
	return &RegistryService{programs: programs, students: students, guard: guard}, nil
}

// UpsertProgram validates and saves a program.
func (s *RegistryService) UpsertProgram(ctx context.Context, program *masterdata.Program) error {
	if program == nil {
		return errors.New("registry service: nil program")
	}
	if err := program.Validate(); err != nil {
		return err
	}
	return s.programs.Save(ctx, program)
}

// EnrollStudent validates the record, checks the program exists and the
// student's financial status allows registration, then saves.
func (s *RegistryService) EnrollStudent(ctx context.Context, student *masterdata.Student) error {
	if student == nil {
		return errors.New("registry service: nil student")
	}
	if err := student.Validate(); err != nil {
		return err
	}
	program, err := s.programs.Get(ctx, student.ProgramCode)
	if err != nil {
		return err
	}
	if program == nil {
		return errors.New("registry service: unknown program " + student.ProgramCode)
	}
	if s.guard != nil {
		if err := s.guard.GuardRegistration(ctx, student.ID); err != nil {
			return err
		}
	}
	return s.students.Save(ctx, student)
}

// Student loads one student record.
func (s *RegistryService) Student(ctx context.Context, id string) (*masterdata.Student, error) {
	return s.students.Get(ctx, id)
}

// Cohort lists the students of one program and year.
func (s *RegistryService) Cohort(ctx context.Context, programCode, academicYear string) ([]masterdata.Student, error) {
	return s.students.ListByProgram(ctx, programCode, academicYear)
}
