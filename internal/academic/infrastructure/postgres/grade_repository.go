package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	academic "campus-ledger/internal/academic/domain"
)

const defaultGradeTable = "evaluation_items"

// GradeRepository is a Postgres store for grade ledgers. One row per
// evaluation item; the ledger is rebuilt on read.
type GradeRepository struct {
	db    *sql.DB
	table string
}

// NewGradeRepository constructs a repository with defaults.
func NewGradeRepository(db *sql.DB, opts ...GradeRepositoryOption) *GradeRepository {
	repo := &GradeRepository{db: db, table: defaultGradeTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// GradeRepositoryOption configures the repository.
type GradeRepositoryOption func(*GradeRepository)

// WithGradeTable overrides the default table.
func WithGradeTable(table string) GradeRepositoryOption {
	return func(repo *GradeRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// LedgerFor rebuilds the ledger of one student year.
func (r *GradeRepository) LedgerFor(ctx context.Context, beneficiaryID, academicYear string) (*academic.GradeLedger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("grade repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT ue_code, component, score, max_score, weight
FROM %s
WHERE beneficiary_id = $1 AND academic_year = $2 AND score IS NOT NULL
ORDER BY ue_code, component, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, beneficiaryID, academicYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ledger := academic.NewGradeLedger(beneficiaryID, academicYear)
	for rows.Next() {
		var (
			ueCode, component            string
			rawScore                     string
			rawMaxScore, rawWeight       sql.NullString
		)
		if err := rows.Scan(&ueCode, &component, &rawScore, &rawMaxScore, &rawWeight); err != nil {
			return nil, err
		}
		it := academic.EvaluationItem{Component: component}
		if it.Score, err = decimal.NewFromString(rawScore); err != nil {
			return nil, fmt.Errorf("grade repo: score of %s/%s: %w", ueCode, component, err)
		}
		if rawMaxScore.Valid && rawMaxScore.String != "" {
			if it.MaxScore, err = decimal.NewFromString(rawMaxScore.String); err != nil {
				return nil, fmt.Errorf("grade repo: max score of %s/%s: %w", ueCode, component, err)
			}
		}
		if rawWeight.Valid && rawWeight.String != "" {
			if it.Weight, err = decimal.NewFromString(rawWeight.String); err != nil {
				return nil, fmt.Errorf("grade repo: weight of %s/%s: %w", ueCode, component, err)
			}
		}
		if err := ledger.Record(ueCode, it); err != nil {
			return nil, err
		}
	}
	return ledger, rows.Err()
}

// Save rewrites the student-year rows in one transaction, so saving the
// same ledger twice leaves the same rows.
func (r *GradeRepository) Save(ctx context.Context, ledger *academic.GradeLedger) error {
	if r == nil || r.db == nil {
		return errors.New("grade repo: nil db")
	}
	if ledger == nil {
		return academic.ErrNilAggregate
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE beneficiary_id = $1 AND academic_year = $2`, r.table)
	insert := fmt.Sprintf(`
INSERT INTO %s (
	beneficiary_id,
	academic_year,
	ue_code,
	component,
	score,
	max_score,
	weight
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, del, ledger.BeneficiaryID(), ledger.AcademicYear()); err != nil {
		return err
	}
	for _, ueCode := range ledger.UnitCodes() {
		for _, it := range ledger.Items(ueCode) {
			_, err := tx.ExecContext(
				ctx,
				insert,
				ledger.BeneficiaryID(),
				ledger.AcademicYear(),
				ueCode,
				it.Component,
				it.Score.String(),
				it.MaxScore.String(),
				it.Weight.String(),
			)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
