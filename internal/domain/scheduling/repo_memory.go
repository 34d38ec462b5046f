package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/platform/db"
)

// MemoryBookingRepo keeps bookings in process, partitioned by tenant. It rejects
// overlapping scheduled bookings itself, mirroring the PostgreSQL exclusion constraint.
type MemoryBookingRepo struct {
	mu      sync.RWMutex
	tenants map[string]map[uuid.UUID]*Booking
}

func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{tenants: make(map[string]map[uuid.UUID]*Booking)}
}

// partition must be called with mu held for writing when create is true.
func (r *MemoryBookingRepo) partition(ctx context.Context, create bool) map[uuid.UUID]*Booking {
	tid := db.TenantFromContext(ctx)
	p, ok := r.tenants[tid]
	if !ok && create {
		p = make(map[uuid.UUID]*Booking)
		r.tenants[tid] = p
	}
	return p
}

func overlapsScheduled(p map[uuid.UUID]*Booking, b *Booking, iv Interval) bool {
	for _, other := range p {
		if other.ID == b.ID || other.Status != StatusScheduled {
			continue
		}
		if other.PractitionerID == b.PractitionerID && other.Date == b.Date && other.Interval().Overlaps(iv) {
			return true
		}
	}
	return false
}

func (r *MemoryBookingRepo) Create(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.partition(ctx, true)
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, exists := p[b.ID]; exists {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if b.Status == StatusScheduled && overlapsScheduled(p, b, b.Interval()) {
		return fmt.Errorf("%w: %s %s overlaps a scheduled booking", ErrSlotConflict, b.Date, b.Interval())
	}
	cp := *b
	p[b.ID] = &cp
	return nil
}

func (r *MemoryBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.partition(ctx, false)[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBookingRepo) ListScheduled(ctx context.Context, practitionerID uuid.UUID, date Date) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, b := range r.partition(ctx, false) {
		if b.PractitionerID == practitionerID && b.Date == date && b.Status == StatusScheduled {
			cp := *b
			out = append(out, &cp)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *MemoryBookingRepo) UpdateInterval(ctx context.Context, id uuid.UUID, iv Interval, updatedAt time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.partition(ctx, false)
	b, ok := p[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	if b.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidStateTransition, id, b.Status)
	}
	if overlapsScheduled(p, b, iv) {
		return nil, fmt.Errorf("%w: %s %s overlaps a scheduled booking", ErrSlotConflict, b.Date, iv)
	}
	b.SetInterval(iv)
	b.UpdatedAt = updatedAt
	cp := *b
	return &cp, nil
}

func (r *MemoryBookingRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string, updatedAt time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.partition(ctx, false)[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	if b.Status != from {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidStateTransition, id, b.Status)
	}
	b.Status = to
	if reason != nil {
		b.CancellationReason = reason
	}
	b.UpdatedAt = updatedAt
	cp := *b
	return &cp, nil
}

func (r *MemoryBookingRepo) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Booking, int, error) {
	r.mu.RLock()
	var matched []*Booking
	for _, b := range r.partition(ctx, false) {
		if f.PractitionerID != uuid.Nil && b.PractitionerID != f.PractitionerID {
			continue
		}
		if f.SubjectID != uuid.Nil && b.SubjectID != f.SubjectID {
			continue
		}
		if f.Date != "" && b.Date != f.Date {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		cp := *b
		matched = append(matched, &cp)
	}
	r.mu.RUnlock()

	sortBookings(matched)
	total := len(matched)
	if offset >= total {
		return []*Booking{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// sortBookings orders by date, then start, then creation.
func sortBookings(bs []*Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Date != bs[j].Date {
			return bs[i].Date < bs[j].Date
		}
		if bs[i].Start != bs[j].Start {
			return bs[i].Start < bs[j].Start
		}
		return bs[i].CreatedAt.Before(bs[j].CreatedAt)
	})
}
