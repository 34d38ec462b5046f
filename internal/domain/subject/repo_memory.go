package subject

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/platform/db"
)

// MemoryRepo is an in-process Repository partitioned by tenant.
type MemoryRepo struct {
	mu      sync.RWMutex
	tenants map[string]map[uuid.UUID]*Subject
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tenants: make(map[string]map[uuid.UUID]*Subject)}
}

func (r *MemoryRepo) Create(ctx context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tid := db.TenantFromContext(ctx)
	p, ok := r.tenants[tid]
	if !ok {
		p = make(map[uuid.UUID]*Subject)
		r.tenants[tid] = p
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, exists := p[s.ID]; exists {
		return fmt.Errorf("%w: %s already exists", ErrValidation, s.ID)
	}
	s.CreatedAt = time.Now().UTC()
	cp := *s
	p[s.ID] = &cp
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.tenants[db.TenantFromContext(ctx)][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}
