//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/lock"
)

const bookingDate scheduling.Date = "2025-03-14"

func bookRequest(t *testing.T, practitionerID, subjectID uuid.UUID, start string, duration int) scheduling.BookRequest {
	t.Helper()
	m := clock(t, start)
	return scheduling.BookRequest{
		PractitionerID: practitionerID,
		SubjectID:      subjectID,
		Date:           bookingDate,
		Start:          &m,
		Duration:       duration,
		SessionType:    scheduling.SessionConsultation,
	}
}

func TestBookingStore_ExclusionConstraint(t *testing.T) {
	tenantID := createTenant(t, "excl")
	s := newStack(unlocked{})

	err := withTenantConn(context.Background(), tenantID, func(ctx context.Context) error {
		practitionerID, subjectID := seed(t, ctx, s)

		first := &scheduling.Booking{
			ID:              uuid.New(),
			PractitionerID:  practitionerID,
			SubjectID:       subjectID,
			Date:            bookingDate,
			Status:          scheduling.StatusScheduled,
			SessionType:     scheduling.SessionCheckup,
			AppointmentType: scheduling.AppointmentManual,
		}
		first.SetInterval(scheduling.Interval{Start: clock(t, "09:00"), End: clock(t, "09:30")})
		if err := s.repo.Create(ctx, first); err != nil {
			t.Fatalf("create first: %v", err)
		}

		overlapping := *first
		overlapping.ID = uuid.New()
		overlapping.SetInterval(scheduling.Interval{Start: clock(t, "09:15"), End: clock(t, "09:45")})
		if err := s.repo.Create(ctx, &overlapping); !errors.Is(err, scheduling.ErrSlotConflict) {
			t.Fatalf("expected ErrSlotConflict, got %v", err)
		}

		touching := *first
		touching.ID = uuid.New()
		touching.SetInterval(scheduling.Interval{Start: clock(t, "09:30"), End: clock(t, "10:00")})
		if err := s.repo.Create(ctx, &touching); err != nil {
			t.Fatalf("touching booking rejected: %v", err)
		}

		// Terminal bookings release their range.
		if _, err := s.repo.TransitionStatus(ctx, first.ID, scheduling.StatusScheduled, scheduling.StatusCancelled, nil, time.Now()); err != nil {
			t.Fatalf("cancel first: %v", err)
		}
		overlapping.ID = uuid.New()
		overlapping.SetInterval(scheduling.Interval{Start: clock(t, "09:00"), End: clock(t, "09:30")})
		if err := s.repo.Create(ctx, &overlapping); err != nil {
			t.Fatalf("rebooking a cancelled range: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBooking_ConcurrentSameSlot(t *testing.T) {
	for _, tc := range []struct {
		name   string
		locker lock.Locker
	}{
		{"memory lock", lock.NewMemory(5 * time.Second)},
		{"store only", unlocked{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tenantID := createTenant(t, "race")
			s := newStack(tc.locker)

			var practitionerID, subjectID uuid.UUID
			if err := withTenantConn(context.Background(), tenantID, func(ctx context.Context) error {
				practitionerID, subjectID = seed(t, ctx, s)
				return nil
			}); err != nil {
				t.Fatal(err)
			}

			const n = 6
			req := bookRequest(t, practitionerID, subjectID, "10:00", 0)
			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = withTenantConn(context.Background(), tenantID, func(ctx context.Context) error {
						_, err := s.bookings.Book(ctx, req)
						return err
					})
				}(i)
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, scheduling.ErrSlotConflict):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			if succeeded != 1 {
				t.Fatalf("expected exactly one booking, got %d", succeeded)
			}
		})
	}
}

func TestBooking_Lifecycle(t *testing.T) {
	tenantID := createTenant(t, "life")
	s := newStack(lock.NewMemory(time.Second))

	err := withTenantConn(context.Background(), tenantID, func(ctx context.Context) error {
		practitionerID, subjectID := seed(t, ctx, s)

		b, err := s.bookings.Book(ctx, bookRequest(t, practitionerID, subjectID, "09:00", 0))
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		if b.SubjectName != "Ada Lovelace" || b.Department != "cardiology" {
			t.Errorf("unexpected denormalized fields: %q %q", b.SubjectName, b.Department)
		}

		listing, err := s.bookings.ListSlots(ctx, practitionerID, bookingDate)
		if err != nil {
			t.Fatalf("list slots: %v", err)
		}
		if len(listing.Slots) != 5 {
			t.Errorf("expected 5 free slots, got %d", len(listing.Slots))
		}

		start := clock(t, "11:00")
		moved, err := s.bookings.Reschedule(ctx, b.ID, scheduling.RescheduleRequest{Start: &start})
		if err != nil {
			t.Fatalf("reschedule: %v", err)
		}
		if moved.Start != start || moved.Duration != 30 {
			t.Errorf("unexpected rescheduled booking: %+v", moved)
		}

		done, err := s.bookings.Complete(ctx, b.ID)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if done.Status != scheduling.StatusCompleted {
			t.Errorf("expected completed, got %s", done.Status)
		}
		if _, err := s.bookings.Cancel(ctx, b.ID, nil); !errors.Is(err, scheduling.ErrInvalidStateTransition) {
			t.Errorf("expected ErrInvalidStateTransition, got %v", err)
		}

		page, total, err := s.bookings.SearchBookings(ctx, scheduling.SearchFilter{PractitionerID: practitionerID}, 10, 0)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 1 || len(page) != 1 || page[0].ID != b.ID {
			t.Errorf("unexpected search result: total=%d page=%d", total, len(page))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBooking_EnumeratedWindows(t *testing.T) {
	tenantID := createTenant(t, "win")
	s := newStack(lock.NewMemory(time.Second))

	err := withTenantConn(context.Background(), tenantID, func(ctx context.Context) error {
		practitionerID, _ := seed(t, ctx, s)

		windows := []scheduling.Interval{
			{Start: clock(t, "14:00"), End: clock(t, "14:30")},
			{Start: clock(t, "09:00"), End: clock(t, "09:30")},
		}
		if _, err := s.practitioners.SetAvailability(ctx, practitionerID, bookingDate, windows); err != nil {
			t.Fatalf("set availability: %v", err)
		}

		listing, err := s.bookings.ListSlots(ctx, practitionerID, bookingDate)
		if err != nil {
			t.Fatalf("list slots: %v", err)
		}
		if len(listing.Slots) != 2 || listing.Slots[0].Start != clock(t, "09:00") {
			t.Errorf("unexpected slots: %v", listing.Slots)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTenantIsolation(t *testing.T) {
	tenantA := createTenant(t, "iso_a")
	tenantB := createTenant(t, "iso_b")
	s := newStack(lock.NewMemory(time.Second))

	var booked *scheduling.Booking
	if err := withTenantConn(context.Background(), tenantA, func(ctx context.Context) error {
		practitionerID, subjectID := seed(t, ctx, s)
		var err error
		booked, err = s.bookings.Book(ctx, bookRequest(t, practitionerID, subjectID, "09:30", 0))
		return err
	}); err != nil {
		t.Fatalf("book in tenant A: %v", err)
	}

	err := withTenantConn(context.Background(), tenantB, func(ctx context.Context) error {
		if _, err := s.bookings.GetBooking(ctx, booked.ID); !errors.Is(err, scheduling.ErrNotFound) {
			t.Errorf("expected ErrNotFound across tenants, got %v", err)
		}
		if _, err := s.bookings.ListSlots(ctx, booked.PractitionerID, bookingDate); !errors.Is(err, scheduling.ErrNotFound) {
			t.Errorf("expected unknown practitioner in tenant B, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
