package practitioner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/db"
)

var _ scheduling.ScheduleSource = (*Service)(nil)

// Service owns the practitioner directory and serves schedules to the booking engine.
type Service struct {
	repo        Repository
	defaultSlot int
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, defaultSlot int, logger zerolog.Logger) *Service {
	if defaultSlot <= 0 {
		defaultSlot = scheduling.DefaultSlotSize
	}
	return &Service{
		repo:        repo,
		defaultSlot: defaultSlot,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PutSchedule creates or replaces the practitioner's directory entry and template.
func (s *Service) PutSchedule(ctx context.Context, id uuid.UUID, req ScheduleRequest) (*Practitioner, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner id is required", scheduling.ErrValidation)
	}
	p, err := s.buildPractitioner(id, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("tenant_id", db.TenantFromContext(ctx)).
		Str("practitioner_id", id.String()).
		Str("hours", scheduling.Interval{Start: p.WorkStart, End: p.WorkEnd}.String()).
		Int("slot_size", p.SlotSize).
		Msg("practitioner schedule saved")
	return p, nil
}

func (s *Service) buildPractitioner(id uuid.UUID, req ScheduleRequest) (*Practitioner, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", scheduling.ErrValidation)
	}
	if req.WorkStart == nil || req.WorkEnd == nil {
		return nil, fmt.Errorf("%w: work_start and work_end are required", scheduling.ErrValidation)
	}
	hours := scheduling.Interval{Start: *req.WorkStart, End: *req.WorkEnd}
	if !hours.Valid() {
		return nil, fmt.Errorf("%w: working hours %s are empty or outside the day", scheduling.ErrValidation, hours)
	}

	slot := req.SlotSize
	if slot == 0 {
		slot = s.defaultSlot
	}
	if slot < 1 || slot > int(scheduling.MinutesPerDay) {
		return nil, fmt.Errorf("%w: slot_size must be between 1 and %d", scheduling.ErrValidation, scheduling.MinutesPerDay)
	}

	breaks, err := validateBreaks(hours, req.Breaks)
	if err != nil {
		return nil, err
	}
	holidays, err := normalizeHolidays(req.Holidays)
	if err != nil {
		return nil, err
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	return &Practitioner{
		ID:             id,
		Name:           name,
		Specialization: strings.TrimSpace(req.Specialization),
		WorkStart:      hours.Start,
		WorkEnd:        hours.End,
		SlotSize:       slot,
		Breaks:         breaks,
		Holidays:       holidays,
		IsAvailable:    available,
		UpdatedAt:      s.now(),
	}, nil
}

// validateBreaks requires every break inside working hours and no two breaks to
// overlap. The result is sorted by start.
func validateBreaks(hours scheduling.Interval, breaks []scheduling.Interval) ([]scheduling.Interval, error) {
	out := append([]scheduling.Interval{}, breaks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i, b := range out {
		if !b.Valid() {
			return nil, fmt.Errorf("%w: break %s is empty or outside the day", scheduling.ErrValidation, b)
		}
		if !hours.Contains(b) {
			return nil, fmt.Errorf("%w: break %s is outside working hours %s", scheduling.ErrValidation, b, hours)
		}
		if i > 0 && out[i-1].Overlaps(b) {
			return nil, fmt.Errorf("%w: breaks %s and %s overlap", scheduling.ErrValidation, out[i-1], b)
		}
	}
	return out, nil
}

func normalizeHolidays(in []scheduling.Date) ([]scheduling.Date, error) {
	seen := make(map[scheduling.Date]bool, len(in))
	out := []scheduling.Date{}
	for _, d := range in {
		parsed, err := scheduling.ParseDate(string(d))
		if err != nil {
			return nil, err
		}
		if seen[parsed] {
			continue
		}
		seen[parsed] = true
		out = append(out, parsed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Practitioner, int, error) {
	f.Department = strings.TrimSpace(f.Department)
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f, limit, offset)
}

// Departments returns the distinct, non-empty specializations in the directory.
func (s *Service) Departments(ctx context.Context) ([]string, error) {
	return s.repo.Departments(ctx)
}

// SetAvailability stores the enumerated windows of one date. Those windows replace
// working hours as the slot source for that date; an empty list restores working hours.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, date scheduling.Date, windows []scheduling.Interval) (*DayAvailability, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner id is required", scheduling.ErrValidation)
	}
	if !date.Valid() {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", scheduling.ErrValidation, date)
	}
	seen := make(map[scheduling.Interval]bool, len(windows))
	clean := []scheduling.Interval{}
	for _, w := range windows {
		if !w.Valid() {
			return nil, fmt.Errorf("%w: window %s is empty or outside the day", scheduling.ErrValidation, w)
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		clean = append(clean, w)
	}
	sort.Slice(clean, func(i, j int) bool {
		if clean[i].Start != clean[j].Start {
			return clean[i].Start < clean[j].Start
		}
		return clean[i].End < clean[j].End
	})

	if err := s.repo.ReplaceWindows(ctx, id, date, clean); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("tenant_id", db.TenantFromContext(ctx)).
		Str("practitioner_id", id.String()).
		Str("date", string(date)).
		Int("windows", len(clean)).
		Msg("availability windows saved")
	return &DayAvailability{PractitionerID: id, Date: date, Windows: clean}, nil
}

// GetSchedule assembles the resolver input for one practitioner day.
func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID, date scheduling.Date) (*scheduling.PractitionerSchedule, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	windows, err := s.repo.Windows(ctx, id, date)
	if err != nil {
		return nil, fmt.Errorf("load availability windows: %w", err)
	}
	return p.Schedule(date, windows), nil
}
