package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository persists bookings. Implementations scope every call to the tenant
// carried by ctx.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// ListScheduled returns the scheduled bookings of one practitioner day.
	ListScheduled(ctx context.Context, practitionerID uuid.UUID, date Date) ([]*Booking, error)
	// UpdateInterval moves a scheduled booking in place. It fails with
	// ErrInvalidStateTransition when the booking is no longer scheduled.
	UpdateInterval(ctx context.Context, id uuid.UUID, iv Interval, updatedAt time.Time) (*Booking, error)
	// TransitionStatus moves a booking from one status to another only if it is
	// currently in from. It fails with ErrNotFound or ErrInvalidStateTransition.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string, updatedAt time.Time) (*Booking, error)
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]*Booking, int, error)
}

// ScheduleSource resolves a practitioner's schedule, with enumerated windows for date
// populated. Unknown practitioners yield ErrNotFound.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, practitionerID uuid.UUID, date Date) (*PractitionerSchedule, error)
}

// SubjectDirectory confirms a subject exists and returns its display name. Unknown
// subjects yield ErrNotFound.
type SubjectDirectory interface {
	LookupSubject(ctx context.Context, id uuid.UUID) (string, error)
}
