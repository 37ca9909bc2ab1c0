package masterdata

import (
	"context"
	"errors"
	"time"
)

// Student is a registered student record.
type Student struct {
	ID           string
	FullName     string
	ProgramCode  string
	AcademicYear string
	Email        string
	EnrolledAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks student invariants.
func (s Student) Validate() error {
	if s.ID == "" {
		return errors.New("student: empty id")
	}
	if s.FullName == "" {
		return errors.New("student: empty full name")
	}
	if s.ProgramCode == "" {
		return errors.New("student: empty program code")
	}
	if s.AcademicYear == "" {
		return errors.New("student: empty academic year")
	}
	return nil
}

// StudentRepository manages student persistence.
type StudentRepository interface {
	Get(ctx context.Context, id string) (*Student, error)
	ListByProgram(ctx context.Context, programCode, academicYear string) ([]Student, error)
	Save(ctx context.Context, student *Student) error
}
