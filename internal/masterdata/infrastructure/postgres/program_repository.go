package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "campus-ledger/internal/masterdata/domain"
)

const defaultProgramsTable = "programs"

// ProgramRepository is a Postgres implementation for programs.
type ProgramRepository struct {
	db    *sql.DB
	table string
}

// NewProgramRepository constructs a repository.
func NewProgramRepository(db *sql.DB, opts ...ProgramOption) *ProgramRepository {
	repo := &ProgramRepository{db: db, table: defaultProgramsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ProgramOption configures the repository.
type ProgramOption func(*ProgramRepository)

// WithProgramTable overrides the default table name.
func WithProgramTable(table string) ProgramOption {
	return func(repo *ProgramRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a program by code.
func (r *ProgramRepository) Get(ctx context.Context, code string) (*masterdata.Program, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("program repo: nil db")
	}
	if code == "" {
		return nil, errors.New("program repo: empty code")
	}

	query := fmt.Sprintf(`
SELECT code, label, level, department, created_at, updated_at
FROM %s
WHERE code = $1
LIMIT 1`, r.table)

	var program masterdata.Program
	if err := r.db.QueryRowContext(ctx, query, code).Scan(
		&program.Code,
		&program.Label,
		&program.Level,
		&program.Department,
		&program.CreatedAt,
		&program.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	program.CreatedAt = program.CreatedAt.UTC()
	program.UpdatedAt = program.UpdatedAt.UTC()
	return &program, nil
}

// Save upserts a program.
func (r *ProgramRepository) Save(ctx context.Context, program *masterdata.Program) error {
	if r == nil || r.db == nil {
		return errors.New("program repo: nil db")
	}
	if program == nil {
		return errors.New("program repo: nil program")
	}
	if err := program.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	code,
	label,
	level,
	department
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (code)
DO UPDATE SET
	label = EXCLUDED.label,
	level = EXCLUDED.level,
	department = EXCLUDED.department,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		program.Code,
		program.Label,
		program.Level,
		program.Department,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	return nil
}
