package practitioner

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/scheduling"
)

// Practitioner is a directory entry together with its daily availability
// template.
type Practitioner struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Specialization string                `json:"specialization"`
	WorkStart      scheduling.Minute     `json:"work_start"`
	WorkEnd        scheduling.Minute     `json:"work_end"`
	SlotSize       int                   `json:"slot_size"`
	Breaks         []scheduling.Interval `json:"breaks"`
	Holidays       []scheduling.Date     `json:"holidays"`
	IsAvailable    bool                  `json:"is_available"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Schedule converts the template into the resolver's input. windows are the
// enumerated windows stored for date, if any.
func (p *Practitioner) Schedule(date scheduling.Date, windows []scheduling.Interval) *scheduling.PractitionerSchedule {
	s := &scheduling.PractitionerSchedule{
		PractitionerID: p.ID,
		Department:     p.Specialization,
		WorkingHours:   scheduling.Interval{Start: p.WorkStart, End: p.WorkEnd},
		SlotSize:       p.SlotSize,
		Breaks:         p.Breaks,
		Holidays:       make(map[scheduling.Date]bool, len(p.Holidays)),
		IsAvailable:    p.IsAvailable,
	}
	for _, h := range p.Holidays {
		s.Holidays[h] = true
	}
	if len(windows) > 0 {
		s.Windows = map[scheduling.Date][]scheduling.Interval{date: windows}
	}
	return s
}

// ScheduleRequest is the body of a schedule upsert. Omitted slot size falls back to
// the configured default; omitted availability means available.
type ScheduleRequest struct {
	Name           string                `json:"name"`
	Specialization string                `json:"specialization"`
	WorkStart      *scheduling.Minute    `json:"work_start"`
	WorkEnd        *scheduling.Minute    `json:"work_end"`
	SlotSize       int                   `json:"slot_size,omitempty"`
	Breaks         []scheduling.Interval `json:"breaks,omitempty"`
	Holidays       []scheduling.Date     `json:"holidays,omitempty"`
	IsAvailable    *bool                 `json:"is_available,omitempty"`
}

// DayAvailability is the set of enumerated windows stored for one date.
type DayAvailability struct {
	PractitionerID uuid.UUID             `json:"practitioner_id"`
	Date           scheduling.Date       `json:"date"`
	Windows        []scheduling.Interval `json:"windows"`
}

// ListFilter narrows directory listings. Search matches name case-insensitively.
type ListFilter struct {
	Department string
	Search     string
}
