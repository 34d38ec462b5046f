package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/lock"
	"github.com/medsched/medsched/internal/platform/telemetry"
)

var tracer = otel.Tracer("github.com/medsched/medsched/internal/domain/scheduling")

const maxReasonLength = 1000

// Service lists free slots and performs booking writes. Book, Reschedule, Cancel and
// Complete run their read-check-write under a lock keyed by tenant, practitioner and
// date, so writes to one practitioner day are totally ordered. Slot listing never
// takes the lock.
type Service struct {
	bookings  BookingRepository
	schedules ScheduleSource
	subjects  SubjectDirectory
	locker    lock.Locker
	metrics   *telemetry.BookingMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithMetrics(m *telemetry.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(bookings BookingRepository, schedules ScheduleSource, subjects SubjectDirectory, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		bookings:  bookings,
		schedules: schedules,
		subjects:  subjects,
		locker:    locker,
		logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -- Reads --

// ListSlots returns the free slots of a practitioner on date.
func (s *Service) ListSlots(ctx context.Context, practitionerID uuid.UUID, date Date) (*SlotListing, error) {
	ctx, span := s.start(ctx, "scheduling.ListSlots", practitionerID, date)
	defer span.End()

	listing, err := s.listSlots(ctx, practitionerID, date)
	s.record(ctx, span, "list_slots", err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots.free", len(listing.Slots)))
	s.metrics.ObserveSlotsListed(len(listing.Slots))
	return listing, nil
}

func (s *Service) listSlots(ctx context.Context, practitionerID uuid.UUID, date Date) (*SlotListing, error) {
	if practitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	}
	if !date.Valid() {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, date)
	}

	sched, err := s.schedules.GetSchedule(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}

	free := Resolve(sched, date)
	if len(free) > 0 {
		booked, err := s.bookings.ListScheduled(ctx, practitionerID, date)
		if err != nil {
			return nil, fmt.Errorf("list scheduled bookings: %w", err)
		}
		free = Filter(free, booked)
	}

	return &SlotListing{
		PractitionerID: practitionerID,
		Date:           date,
		SlotDuration:   sched.EffectiveSlotSize(),
		Slots:          free,
	}, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// SearchBookings lists bookings ordered by date then start.
func (s *Service) SearchBookings(ctx context.Context, f SearchFilter, limit, offset int) ([]*Booking, int, error) {
	if f.Date != "" && !f.Date.Valid() {
		return nil, 0, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, f.Date)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	return s.bookings.Search(ctx, f, limit, offset)
}

// -- Writes --

// Book reserves one interval for a subject. The request's duration defaults to the
// schedule's slot size.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	ctx, span := s.start(ctx, "scheduling.Book", req.PractitionerID, req.Date)
	defer span.End()

	b, err := s.book(ctx, req)
	s.record(ctx, span, "book", err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID.String()))
	s.logger.Info().
		Str("tenant_id", db.TenantFromContext(ctx)).
		Str("booking_id", b.ID.String()).
		Str("practitioner_id", b.PractitionerID.String()).
		Str("date", string(b.Date)).
		Stringer("interval", b.Interval()).
		Msg("booking created")
	return b, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Booking, error) {
	if err := validateBookRequest(&req); err != nil {
		return nil, err
	}

	sched, err := s.schedules.GetSchedule(ctx, req.PractitionerID, req.Date)
	if err != nil {
		return nil, err
	}
	duration := req.Duration
	if duration == 0 {
		duration = sched.EffectiveSlotSize()
	}
	iv, err := requestedInterval(*req.Start, duration)
	if err != nil {
		return nil, err
	}
	if err := admits(sched, req.Date, iv); err != nil {
		return nil, err
	}

	name, err := s.subjects.LookupSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if req.SubjectName != "" {
		name = req.SubjectName
	}

	release, err := s.acquire(ctx, req.PractitionerID, req.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.bookings.ListScheduled(ctx, req.PractitionerID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("list scheduled bookings: %w", err)
	}
	if !free(iv, existing) {
		return nil, fmt.Errorf("%w: %s %s is already booked", ErrSlotConflict, req.Date, iv)
	}

	now := s.now()
	b := &Booking{
		ID:              uuid.New(),
		PractitionerID:  req.PractitionerID,
		SubjectID:       req.SubjectID,
		SubjectName:     name,
		Department:      sched.Department,
		Date:            req.Date,
		Status:          StatusScheduled,
		SessionType:     req.SessionType,
		AppointmentType: req.AppointmentType,
		Reason:          req.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.SetInterval(iv)
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Reschedule moves a scheduled booking to a new start on the same date, keeping its
// id and creation time. The booking's own interval never conflicts with the move.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Booking, error) {
	ctx, span := s.start(ctx, "scheduling.Reschedule", uuid.Nil, "")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))

	b, err := s.reschedule(ctx, id, req)
	s.record(ctx, span, "reschedule", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("tenant_id", db.TenantFromContext(ctx)).
		Str("booking_id", b.ID.String()).
		Str("practitioner_id", b.PractitionerID.String()).
		Str("date", string(b.Date)).
		Stringer("interval", b.Interval()).
		Msg("booking rescheduled")
	return b, nil
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Booking, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	if req.Start == nil {
		return nil, fmt.Errorf("%w: start is required", ErrValidation)
	}
	if req.Duration < 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidStateTransition, id, current.Status)
	}

	sched, err := s.schedules.GetSchedule(ctx, current.PractitionerID, current.Date)
	if err != nil {
		return nil, err
	}
	duration := req.Duration
	if duration == 0 {
		duration = current.Duration
	}
	iv, err := requestedInterval(*req.Start, duration)
	if err != nil {
		return nil, err
	}
	if err := admits(sched, current.Date, iv); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, current.PractitionerID, current.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; a concurrent cancel may have landed.
	current, err = s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidStateTransition, id, current.Status)
	}
	if current.Interval() == iv {
		return current, nil
	}

	existing, err := s.bookings.ListScheduled(ctx, current.PractitionerID, current.Date)
	if err != nil {
		return nil, fmt.Errorf("list scheduled bookings: %w", err)
	}
	others := existing[:0:0]
	for _, b := range existing {
		if b.ID != id {
			others = append(others, b)
		}
	}
	if !free(iv, others) {
		return nil, fmt.Errorf("%w: %s %s is already booked", ErrSlotConflict, current.Date, iv)
	}

	return s.bookings.UpdateInterval(ctx, id, iv, s.now())
}

// Cancel moves a scheduled booking to cancelled. Cancelled bookings stay stored and
// stop constraining availability.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*Booking, error) {
	return s.transition(ctx, "cancel", "scheduling.Cancel", id, StatusCancelled, reason)
}

// Complete records the external completion of a scheduled booking.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, "complete", "scheduling.Complete", id, StatusCompleted, nil)
}

func (s *Service) transition(ctx context.Context, op, spanName string, id uuid.UUID, to Status, reason *string) (*Booking, error) {
	ctx, span := s.start(ctx, spanName, uuid.Nil, "")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))

	b, err := s.doTransition(ctx, id, to, reason)
	s.record(ctx, span, op, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("tenant_id", db.TenantFromContext(ctx)).
		Str("booking_id", b.ID.String()).
		Str("status", string(b.Status)).
		Msg("booking status changed")
	return b, nil
}

func (s *Service) doTransition(ctx context.Context, id uuid.UUID, to Status, reason *string) (*Booking, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidStateTransition, id, current.Status)
	}

	release, err := s.acquire(ctx, current.PractitionerID, current.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.bookings.TransitionStatus(ctx, id, StatusScheduled, to, reason, s.now())
}

// -- helpers --

// acquire takes the practitioner-day lock. A wait that runs out, whether on the
// locker's own bound or the request deadline, surfaces as ErrBusy.
func (s *Service) acquire(ctx context.Context, practitionerID uuid.UUID, date Date) (func(), error) {
	key := lock.Key(db.TenantFromContext(ctx), practitionerID.String(), string(date))
	started := time.Now()
	release, err := s.locker.Acquire(ctx, key)
	s.metrics.ObserveLockWait(s.locker.Backend(), time.Since(started))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrBusy, err)
		}
		return nil, err
	}
	return release, nil
}

func (s *Service) start(ctx context.Context, name string, practitionerID uuid.UUID, date Date) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("tenant.id", db.TenantFromContext(ctx))}
	if practitionerID != uuid.Nil {
		attrs = append(attrs, attribute.String("practitioner.id", practitionerID.String()))
	}
	if date != "" {
		attrs = append(attrs, attribute.String("booking.date", string(date)))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// record counts the outcome of op and reports failures. Domain rejections are
// expected traffic and log at debug; anything else is an infrastructure error.
func (s *Service) record(ctx context.Context, span trace.Span, op string, err error) {
	code := Code(err)
	s.metrics.ObserveOperation(op, code)
	if err == nil {
		return
	}
	span.SetAttributes(attribute.String("error.code", code))
	if code == "internal_error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).
			Str("tenant_id", db.TenantFromContext(ctx)).
			Str("op", op).
			Msg("booking operation failed")
		return
	}
	s.logger.Debug().Err(err).
		Str("tenant_id", db.TenantFromContext(ctx)).
		Str("op", op).
		Str("code", code).
		Msg("booking operation rejected")
}

// normalizeReason trims reason and maps a blank one to nil.
func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > maxReasonLength {
		return nil, fmt.Errorf("%w: reason exceeds %d characters", ErrValidation, maxReasonLength)
	}
	return &trimmed, nil
}

func free(iv Interval, scheduled []*Booking) bool {
	return len(Filter([]CandidateSlot{iv}, scheduled)) == 1
}

func requestedInterval(start Minute, duration int) (Interval, error) {
	if start < 0 || start >= MinutesPerDay {
		return Interval{}, fmt.Errorf("%w: start %s is outside the day", ErrValidation, start)
	}
	if duration <= 0 {
		return Interval{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if duration > int(MinutesPerDay-start) {
		return Interval{}, fmt.Errorf("%w: %s+%dm crosses midnight", ErrValidation, start, duration)
	}
	return Interval{Start: start, End: start + Minute(duration)}, nil
}

func validateBookRequest(req *BookRequest) error {
	if req.PractitionerID == uuid.Nil {
		return fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	}
	if req.SubjectID == uuid.Nil {
		return fmt.Errorf("%w: subject_id is required", ErrValidation)
	}
	if !req.Date.Valid() {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, req.Date)
	}
	if req.Start == nil {
		return fmt.Errorf("%w: start is required", ErrValidation)
	}
	if req.Duration < 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if !req.SessionType.Valid() {
		return fmt.Errorf("%w: session_type must be one of checkup, followup, therapy, consultation", ErrValidation)
	}
	if req.AppointmentType == "" {
		req.AppointmentType = AppointmentManual
	}
	if !req.AppointmentType.Valid() {
		return fmt.Errorf("%w: appointment_type must be manual or virtual", ErrValidation)
	}
	if req.Reason != nil && len(*req.Reason) > maxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrValidation, maxReasonLength)
	}
	return nil
}
