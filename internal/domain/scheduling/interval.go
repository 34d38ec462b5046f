package scheduling

import "fmt"

// Interval is a half-open [Start, End) range of minutes within one day.
type Interval struct {
	Start Minute `json:"start"`
	End   Minute `json:"end"`
}

// CandidateSlot is a bookable interval produced by Resolve.
type CandidateSlot = Interval

// Overlaps reports whether the two half-open intervals share any minute.
// Touching intervals such as [09:00,09:30) and [09:30,10:00) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

func (i Interval) Duration() int { return int(i.End - i.Start) }

// Valid reports whether the interval is non-empty and stays within one day.
func (i Interval) Valid() bool {
	return i.Start >= 0 && i.Start < i.End && i.End <= MinutesPerDay
}

func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start, i.End)
}

func overlapsAny(iv Interval, set []Interval) bool {
	for _, o := range set {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}
