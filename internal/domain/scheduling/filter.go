package scheduling

import "sort"

// Filter returns the candidates that overlap no scheduled booking. Cancelled and
// completed bookings never constrain. Neither input is modified.
//
// Scheduled intervals are sorted and merged once, O(b log b). Each candidate is then
// probed with a binary search over the disjoint merged set, O(log b), for a total of
// O(c log b + b log b) against the O(c*b) pairwise scan.
func Filter(candidates []CandidateSlot, bookings []*Booking) []CandidateSlot {
	return filterBusy(candidates, mergeBusy(bookings))
}

func filterBusy(candidates []CandidateSlot, busy []Interval) []CandidateSlot {
	out := make([]CandidateSlot, 0, len(candidates))
	for _, c := range candidates {
		if !hitsBusy(c, busy) {
			out = append(out, c)
		}
	}
	return out
}

// mergeBusy collapses scheduled intervals into sorted, disjoint ranges.
func mergeBusy(bookings []*Booking) []Interval {
	busy := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if b == nil || b.Status != StatusScheduled {
			continue
		}
		busy = append(busy, b.Interval())
	}
	if len(busy) < 2 {
		return busy
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	merged := busy[:1]
	for _, iv := range busy[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// hitsBusy relies on busy being sorted and disjoint, so End grows monotonically.
func hitsBusy(c Interval, busy []Interval) bool {
	i := sort.Search(len(busy), func(i int) bool { return busy[i].End > c.Start })
	return i < len(busy) && busy[i].Start < c.End
}
