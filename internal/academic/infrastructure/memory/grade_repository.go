package memory

import (
	"context"
	"sync"

	academic "campus-ledger/internal/academic/domain"
)

// GradeRepository is an in-memory store for grade ledgers.
type GradeRepository struct {
	mu   sync.RWMutex
	data map[string]*academic.GradeLedger
}

// NewGradeRepository constructs a repository.
func NewGradeRepository() *GradeRepository {
	return &GradeRepository{data: make(map[string]*academic.GradeLedger)}
}

func key(beneficiaryID, academicYear string) string {
	return beneficiaryID + "|" + academicYear
}

// LedgerFor loads the ledger of one student year, empty when absent.
func (r *GradeRepository) LedgerFor(ctx context.Context, beneficiaryID, academicYear string) (*academic.GradeLedger, error) {
	_ = ctx
	r.mu.RLock()
	ledger := r.data[key(beneficiaryID, academicYear)]
	r.mu.RUnlock()
	if ledger == nil {
		return academic.NewGradeLedger(beneficiaryID, academicYear), nil
	}
	return ledger.Clone(), nil
}

// Save persists the ledger (overwrites existing).
func (r *GradeRepository) Save(ctx context.Context, ledger *academic.GradeLedger) error {
	_ = ctx
	if ledger == nil {
		return academic.ErrNilAggregate
	}
	copy := ledger.Clone()
	r.mu.Lock()
	r.data[key(ledger.BeneficiaryID(), ledger.AcademicYear())] = copy
	r.mu.Unlock()
	return nil
}
