package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	grants "campus-ledger/internal/grants/domain"
)

const (
	defaultScholarshipTable = "scholarship_grants"
	defaultDeferralTable    = "deferral_grants"
)

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ScholarshipRepository is a Postgres store for scholarships.
type ScholarshipRepository struct {
	db    *sql.DB
	table string
}

// NewScholarshipRepository constructs a repository with defaults.
func NewScholarshipRepository(db *sql.DB, opts ...ScholarshipRepositoryOption) *ScholarshipRepository {
	repo := &ScholarshipRepository{db: db, table: defaultScholarshipTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ScholarshipRepositoryOption configures the repository.
type ScholarshipRepositoryOption func(*ScholarshipRepository)

// WithScholarshipTable overrides the default table.
func WithScholarshipTable(table string) ScholarshipRepositoryOption {
	return func(repo *ScholarshipRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindByID loads one scholarship.
func (r *ScholarshipRepository) FindByID(ctx context.Context, id string) (*grants.ScholarshipGrant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("scholarship repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, beneficiary_id, granted_by, amount, status, valid_until, granted_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	return scanScholarship(r.db.QueryRowContext(ctx, query, id))
}

// ListByBeneficiary returns all scholarships of one student.
func (r *ScholarshipRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*grants.ScholarshipGrant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("scholarship repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, beneficiary_id, granted_by, amount, status, valid_until, granted_at
FROM %s
WHERE beneficiary_id = $1
ORDER BY granted_at, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*grants.ScholarshipGrant
	for rows.Next() {
		g, err := scanScholarship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScholarship(row rowScanner) (*grants.ScholarshipGrant, error) {
	var (
		id, beneficiaryID, grantedBy, status string
		rawAmount                            string
		validUntil                           sql.NullTime
		grantedAt                            time.Time
	)
	if err := row.Scan(&id, &beneficiaryID, &grantedBy, &rawAmount, &status, &validUntil, &grantedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grants.ErrNotFound
		}
		return nil, err
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, fmt.Errorf("scholarship repo: amount of %s: %w", id, err)
	}
	var until *time.Time
	if validUntil.Valid {
		d := validUntil.Time
		until = &d
	}
	return grants.RehydrateScholarshipGrant(id, beneficiaryID, grantedBy, amount, grants.ScholarshipStatus(status), until, grantedAt), nil
}

// Save upserts the scholarship.
func (r *ScholarshipRepository) Save(ctx context.Context, g *grants.ScholarshipGrant) error {
	if r == nil || r.db == nil {
		return errors.New("scholarship repo: nil db")
	}
	if g == nil {
		return grants.ErrNilAggregate
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	beneficiary_id,
	granted_by,
	amount,
	status,
	valid_until,
	granted_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (id)
DO UPDATE SET
	status = EXCLUDED.status,
	valid_until = EXCLUDED.valid_until,
	updated_at = NOW()`, r.table)

	var until any
	if d := g.ValidUntil(); d != nil {
		until = d.UTC()
	}
	_, err := r.db.ExecContext(
		ctx,
		query,
		g.ID(),
		g.BeneficiaryID(),
		g.GrantedBy(),
		g.Amount().String(),
		string(g.Status()),
		until,
		g.GrantedAt().UTC(),
	)
	if err != nil {
		return err
	}
	g.MarkPersisted()
	return nil
}

// ActiveTotal sums the amounts of active scholarships.
func (r *ScholarshipRepository) ActiveTotal(ctx context.Context, beneficiaryID string) (decimal.Decimal, error) {
	if r == nil || r.db == nil {
		return decimal.Zero, errors.New("scholarship repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(amount), 0)
FROM %s
WHERE beneficiary_id = $1 AND status = 'Active'`, r.table)

	var raw string
	if err := r.db.QueryRowContext(ctx, query, beneficiaryID).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return parseAmount(raw)
}

// DeferralRepository is a Postgres store for deferrals.
type DeferralRepository struct {
	db    *sql.DB
	table string
}

// NewDeferralRepository constructs a repository with defaults.
func NewDeferralRepository(db *sql.DB, opts ...DeferralRepositoryOption) *DeferralRepository {
	repo := &DeferralRepository{db: db, table: defaultDeferralTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DeferralRepositoryOption configures the repository.
type DeferralRepositoryOption func(*DeferralRepository)

// WithDeferralTable overrides the default table.
func WithDeferralTable(table string) DeferralRepositoryOption {
	return func(repo *DeferralRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// FindByID loads one deferral.
func (r *DeferralRepository) FindByID(ctx context.Context, id string) (*grants.DeferralGrant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("deferral repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, beneficiary_id, granted_by, amount, duration_days, status, granted_at, end_date
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	return scanDeferral(r.db.QueryRowContext(ctx, query, id))
}

// ListByBeneficiary returns all deferrals of one student.
func (r *DeferralRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*grants.DeferralGrant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("deferral repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, beneficiary_id, granted_by, amount, duration_days, status, granted_at, end_date
FROM %s
WHERE beneficiary_id = $1
ORDER BY granted_at, id`, r.table)

	rows, err := r.db.QueryContext(ctx, query, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*grants.DeferralGrant
	for rows.Next() {
		g, err := scanDeferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanDeferral(row rowScanner) (*grants.DeferralGrant, error) {
	var (
		id, beneficiaryID, grantedBy, status string
		rawAmount                            string
		durationDays                         int
		grantedAt, endDate                   time.Time
	)
	if err := row.Scan(&id, &beneficiaryID, &grantedBy, &rawAmount, &durationDays, &status, &grantedAt, &endDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grants.ErrNotFound
		}
		return nil, err
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, fmt.Errorf("deferral repo: amount of %s: %w", id, err)
	}
	return grants.RehydrateDeferralGrant(id, beneficiaryID, grantedBy, amount, durationDays, grants.DeferralStatus(status), grantedAt, endDate), nil
}

// Save upserts the deferral.
func (r *DeferralRepository) Save(ctx context.Context, g *grants.DeferralGrant) error {
	if r == nil || r.db == nil {
		return errors.New("deferral repo: nil db")
	}
	if g == nil {
		return grants.ErrNilAggregate
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	beneficiary_id,
	granted_by,
	amount,
	duration_days,
	status,
	granted_at,
	end_date
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (id)
DO UPDATE SET
	status = EXCLUDED.status,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		g.ID(),
		g.BeneficiaryID(),
		g.GrantedBy(),
		g.Amount().String(),
		g.DurationDays(),
		string(g.Status()),
		g.GrantedAt().UTC(),
		g.EndDate().UTC(),
	)
	if err != nil {
		return err
	}
	g.MarkPersisted()
	return nil
}
