package scheduling

import (
	"fmt"
	"sort"
)

// Resolve returns the candidate slots of schedule on date, ordered by start and free
// of duplicates. It never fails: an unavailable practitioner or a holiday yields an
// empty, non-nil slice.
func Resolve(s *PractitionerSchedule, date Date) []CandidateSlot {
	out := []CandidateSlot{}
	if s == nil || !s.IsAvailable || s.IsHoliday(date) {
		return out
	}
	size := Minute(s.EffectiveSlotSize())

	var raw []Interval
	if windows := s.Windows[date]; len(windows) > 0 {
		raw = splitWindows(windows, size)
	} else {
		raw = splitWindow(s.WorkingHours, size)
	}

	for _, c := range raw {
		if overlapsAny(c, s.Breaks) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// splitWindow steps through w in size increments. A trailing remainder shorter than
// size is dropped.
func splitWindow(w Interval, size Minute) []Interval {
	if size <= 0 {
		return nil
	}
	var out []Interval
	for t := w.Start; size <= w.End-t; t += size {
		out = append(out, Interval{Start: t, End: t + size})
	}
	return out
}

// splitWindows splits every enumerated window, then de-duplicates and sorts the result.
func splitWindows(windows []Interval, size Minute) []Interval {
	seen := make(map[Interval]struct{})
	var out []Interval
	for _, w := range windows {
		for _, c := range splitWindow(w, size) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// admits reports whether iv can be booked on date according to the schedule alone,
// ignoring existing bookings. An interval of exactly one slot must be one of the
// resolver's candidates; any other length only has to fit inside a window and clear
// every break.
func admits(s *PractitionerSchedule, date Date, iv Interval) error {
	if !s.IsAvailable {
		return fmt.Errorf("%w: practitioner %s is not available", ErrSlotUnavailable, s.PractitionerID)
	}
	if s.IsHoliday(date) {
		return fmt.Errorf("%w: %s is a holiday", ErrSlotUnavailable, date)
	}

	if iv.Duration() == s.EffectiveSlotSize() {
		for _, c := range Resolve(s, date) {
			if c == iv {
				return nil
			}
		}
		return fmt.Errorf("%w: %s is not a bookable slot on %s", ErrSlotUnavailable, iv, date)
	}

	inside := false
	for _, w := range s.windowsFor(date) {
		if w.Contains(iv) {
			inside = true
			break
		}
	}
	if !inside {
		return fmt.Errorf("%w: %s is outside working hours on %s", ErrSlotUnavailable, iv, date)
	}
	if overlapsAny(iv, s.Breaks) {
		return fmt.Errorf("%w: %s overlaps a break", ErrSlotUnavailable, iv)
	}
	return nil
}
