package practitioner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/db"
)

type windowKey struct {
	id   uuid.UUID
	date scheduling.Date
}

type memoryTenant struct {
	practitioners map[uuid.UUID]*Practitioner
	windows       map[windowKey][]scheduling.Interval
}

// MemoryRepo is an in-process Repository partitioned by tenant.
type MemoryRepo struct {
	mu      sync.RWMutex
	tenants map[string]*memoryTenant
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tenants: make(map[string]*memoryTenant)}
}

func (r *MemoryRepo) tenant(ctx context.Context, create bool) *memoryTenant {
	tid := db.TenantFromContext(ctx)
	t, ok := r.tenants[tid]
	if !ok && create {
		t = &memoryTenant{
			practitioners: make(map[uuid.UUID]*Practitioner),
			windows:       make(map[windowKey][]scheduling.Interval),
		}
		r.tenants[tid] = t
	}
	return t
}

func clonePractitioner(p *Practitioner) *Practitioner {
	cp := *p
	cp.Breaks = append([]scheduling.Interval{}, p.Breaks...)
	cp.Holidays = append([]scheduling.Date{}, p.Holidays...)
	return &cp
}

func (r *MemoryRepo) Upsert(ctx context.Context, p *Practitioner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tenant(ctx, true)
	if existing, ok := t.practitioners[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = p.UpdatedAt
	}
	t.practitioners[p.ID] = clonePractitioner(p)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t := r.tenant(ctx, false); t != nil {
		if p, ok := t.practitioners[id]; ok {
			return clonePractitioner(p), nil
		}
	}
	return nil, fmt.Errorf("%w: practitioner %s", scheduling.ErrNotFound, id)
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Practitioner, int, error) {
	r.mu.RLock()
	var matched []*Practitioner
	if t := r.tenant(ctx, false); t != nil {
		search := strings.ToLower(f.Search)
		for _, p := range t.practitioners {
			if f.Department != "" && p.Specialization != f.Department {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
				continue
			}
			matched = append(matched, clonePractitioner(p))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	total := len(matched)
	if offset >= total {
		return []*Practitioner{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepo) Departments(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{}
	t := r.tenant(ctx, false)
	if t == nil {
		return out, nil
	}
	seen := make(map[string]bool)
	for _, p := range t.practitioners {
		if p.Specialization == "" || seen[p.Specialization] {
			continue
		}
		seen[p.Specialization] = true
		out = append(out, p.Specialization)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepo) ReplaceWindows(ctx context.Context, id uuid.UUID, date scheduling.Date, windows []scheduling.Interval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tenant(ctx, false)
	if t == nil || t.practitioners[id] == nil {
		return fmt.Errorf("%w: practitioner %s", scheduling.ErrNotFound, id)
	}
	key := windowKey{id: id, date: date}
	if len(windows) == 0 {
		delete(t.windows, key)
		return nil
	}
	t.windows[key] = append([]scheduling.Interval{}, windows...)
	return nil
}

func (r *MemoryRepo) Windows(ctx context.Context, id uuid.UUID, date scheduling.Date) ([]scheduling.Interval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := r.tenant(ctx, false)
	if t == nil {
		return nil, nil
	}
	return append([]scheduling.Interval(nil), t.windows[windowKey{id: id, date: date}]...), nil
}
