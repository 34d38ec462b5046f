package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSlotSize is used when a schedule carries no slot size.
const DefaultSlotSize = 30

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type SessionType string

const (
	SessionCheckup      SessionType = "checkup"
	SessionFollowup     SessionType = "followup"
	SessionTherapy      SessionType = "therapy"
	SessionConsultation SessionType = "consultation"
)

func (s SessionType) Valid() bool {
	switch s {
	case SessionCheckup, SessionFollowup, SessionTherapy, SessionConsultation:
		return true
	}
	return false
}

type AppointmentType string

const (
	AppointmentManual  AppointmentType = "manual"
	AppointmentVirtual AppointmentType = "virtual"
)

func (a AppointmentType) Valid() bool {
	return a == AppointmentManual || a == AppointmentVirtual
}

// PractitionerSchedule is the availability template the resolver works from.
type PractitionerSchedule struct {
	PractitionerID uuid.UUID
	Department     string
	WorkingHours   Interval
	SlotSize       int
	Breaks         []Interval
	Holidays       map[Date]bool
	IsAvailable    bool
	// Windows holds legacy enumerated availability. When a date has entries they
	// replace WorkingHours as the window source for that date.
	Windows map[Date][]Interval
}

func (s *PractitionerSchedule) EffectiveSlotSize() int {
	if s.SlotSize <= 0 {
		return DefaultSlotSize
	}
	return s.SlotSize
}

func (s *PractitionerSchedule) IsHoliday(d Date) bool {
	return s.Holidays[d]
}

func (s *PractitionerSchedule) windowsFor(d Date) []Interval {
	if w := s.Windows[d]; len(w) > 0 {
		return w
	}
	return []Interval{s.WorkingHours}
}

// Booking is a reservation of one interval of a practitioner's day.
type Booking struct {
	ID                 uuid.UUID       `json:"id"`
	PractitionerID     uuid.UUID       `json:"practitioner_id"`
	SubjectID          uuid.UUID       `json:"subject_id"`
	SubjectName        string          `json:"subject_name,omitempty"`
	Department         string          `json:"department,omitempty"`
	Date               Date            `json:"date"`
	Start              Minute          `json:"start"`
	End                Minute          `json:"end"`
	Duration           int             `json:"duration"`
	Status             Status          `json:"status"`
	SessionType        SessionType     `json:"session_type"`
	AppointmentType    AppointmentType `json:"appointment_type"`
	Reason             *string         `json:"reason,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// SetInterval replaces the booked range and keeps Duration in step with it.
func (b *Booking) SetInterval(iv Interval) {
	b.Start = iv.Start
	b.End = iv.End
	b.Duration = iv.Duration()
}

// BookRequest is the input to Service.Book. Duration 0 means the schedule's slot size.
type BookRequest struct {
	PractitionerID  uuid.UUID       `json:"practitioner_id"`
	SubjectID       uuid.UUID       `json:"subject_id"`
	Date            Date            `json:"date"`
	Start           *Minute         `json:"start"`
	Duration        int             `json:"duration,omitempty"`
	SessionType     SessionType     `json:"session_type"`
	AppointmentType AppointmentType `json:"appointment_type,omitempty"`
	Reason          *string         `json:"reason,omitempty"`
	SubjectName     string          `json:"subject_name,omitempty"`
}

// RescheduleRequest moves a booking within its date. Duration 0 keeps the current length.
type RescheduleRequest struct {
	Start    *Minute `json:"start"`
	Duration int     `json:"duration,omitempty"`
}

type CancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// SearchFilter narrows booking listings. Zero values are ignored.
type SearchFilter struct {
	PractitionerID uuid.UUID
	SubjectID      uuid.UUID
	Date           Date
	Status         Status
}

// SlotListing is the free-slot view of one practitioner day.
type SlotListing struct {
	PractitionerID uuid.UUID       `json:"practitioner_id"`
	Date           Date            `json:"date"`
	SlotDuration   int             `json:"slot_duration"`
	Slots          []CandidateSlot `json:"slots"`
}
