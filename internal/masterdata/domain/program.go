package masterdata

import (
	"context"
	"errors"
	"time"
)

// Program is a degree program offered by the institution.
type Program struct {
	Code       string
	Label      string
	Level      string
	Department string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks program invariants.
func (p Program) Validate() error {
	if p.Code == "" {
		return errors.New("program: empty code")
	}
	if p.Label == "" {
		return errors.New("program: empty label")
	}
	return nil
}

// ProgramRepository manages program persistence.
type ProgramRepository interface {
	Get(ctx context.Context, code string) (*Program, error)
	Save(ctx context.Context, program *Program) error
}
