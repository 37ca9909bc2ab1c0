package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "campus-ledger/internal/masterdata/domain"
)

const defaultStudentsTable = "students"

// StudentRepository is a Postgres implementation for students.
type StudentRepository struct {
	db    *sql.DB
	table string
}

// NewStudentRepository constructs a repository.
func NewStudentRepository(db *sql.DB, opts ...StudentOption) *StudentRepository {
	repo := &StudentRepository{db: db, table: defaultStudentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StudentOption configures the repository.
type StudentOption func(*StudentRepository)

// WithStudentTable overrides the default table name.
func WithStudentTable(table string) StudentOption {
	return func(repo *StudentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a student by id.
func (r *StudentRepository) Get(ctx context.Context, id string) (*masterdata.Student, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("student repo: nil db")
	}
	if id == "" {
		return nil, errors.New("student repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, full_name, program_code, academic_year, email, enrolled_at, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	student, err := scanStudent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return student, nil
}

// ListByProgram lists the students of one program and academic year.
func (r *StudentRepository) ListByProgram(ctx context.Context, programCode, academicYear string) ([]masterdata.Student, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("student repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, full_name, program_code, academic_year, email, enrolled_at, created_at, updated_at
FROM %s
WHERE program_code = $1 AND academic_year = $2
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, programCode, academicYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *student)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a student.
func (r *StudentRepository) Save(ctx context.Context, student *masterdata.Student) error {
	if r == nil || r.db == nil {
		return errors.New("student repo: nil db")
	}
	if student == nil {
		return errors.New("student repo: nil student")
	}
	if err := student.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	full_name,
	program_code,
	academic_year,
	email,
	enrolled_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	full_name = EXCLUDED.full_name,
	program_code = EXCLUDED.program_code,
	academic_year = EXCLUDED.academic_year,
	email = EXCLUDED.email,
	enrolled_at = EXCLUDED.enrolled_at,
	updated_at = NOW()`, r.table)

	enrolled := student.EnrolledAt
	if enrolled.IsZero() {
		enrolled = time.Now().UTC()
		student.EnrolledAt = enrolled
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		student.ID,
		student.FullName,
		student.ProgramCode,
		student.AcademicYear,
		student.Email,
		enrolled.UTC(),
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	return nil
}

type studentScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row studentScanner) (*masterdata.Student, error) {
	var student masterdata.Student
	var email sql.NullString
	if err := row.Scan(
		&student.ID,
		&student.FullName,
		&student.ProgramCode,
		&student.AcademicYear,
		&email,
		&student.EnrolledAt,
		&student.CreatedAt,
		&student.UpdatedAt,
	); err != nil {
		return nil, err
	}
	student.Email = email.String
	student.EnrolledAt = student.EnrolledAt.UTC()
	student.CreatedAt = student.CreatedAt.UTC()
	student.UpdatedAt = student.UpdatedAt.UTC()
	return &student, nil
}
