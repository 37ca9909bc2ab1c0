package rules

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// Resolver loads program configuration for a program and academic year.
// Implementations never mutate returned values.
type Resolver interface {
	GradingRules(ctx context.Context, programCode, academicYear string) (GradingRules, error)
	FeeSchedule(ctx context.Context, programCode, academicYear string) (FeeSchedule, error)
}

// MemoryResolver is an in-memory resolver used for tests and seeding.
type MemoryResolver struct {
	mu      sync.RWMutex
	configs map[string]ProgramConfig
}

// NewMemoryResolver constructs an empty resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{configs: make(map[string]ProgramConfig)}
}

// Register stores configuration for a program year.
func (r *MemoryResolver) Register(programCode, academicYear string, cfg ProgramConfig) {
	r.mu.Lock()
	r.configs[programCode+"|"+academicYear] = cfg
	r.mu.Unlock()
}

// GradingRules returns the grading rules for a program year.
func (r *MemoryResolver) GradingRules(ctx context.Context, programCode, academicYear string) (GradingRules, error) {
	_ = ctx
	cfg, err := r.lookup(programCode, academicYear)
	if err != nil {
		return GradingRules{}, err
	}
	return cfg.Grading, nil
}

// FeeSchedule returns the fee schedule for a program year.
func (r *MemoryResolver) FeeSchedule(ctx context.Context, programCode, academicYear string) (FeeSchedule, error) {
	_ = ctx
	cfg, err := r.lookup(programCode, academicYear)
	if err != nil {
		return FeeSchedule{}, err
	}
	return cfg.Fees, nil
}

func (r *MemoryResolver) lookup(programCode, academicYear string) (ProgramConfig, error) {
	r.mu.RLock()
	cfg, ok := r.configs[programCode+"|"+academicYear]
	r.mu.RUnlock()
	if !ok {
		return ProgramConfig{}, ErrNotFound
	}
	return cfg, nil
}

// LoadDir parses every *.yaml / *.yml file in dir into a MemoryResolver.
// The first structural error aborts the load.
func LoadDir(dir string) (*MemoryResolver, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	resolver := NewMemoryResolver()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		cfg, err := ParseProgramConfig(data)
		if err != nil {
			return nil, err
		}
		resolver.Register(cfg.Fees.ProgramCode, cfg.Fees.AcademicYear, cfg)
	}
	return resolver, nil
}
