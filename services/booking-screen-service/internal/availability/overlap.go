package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// BusyInterval is an appointment that already exists on the expert's calendar.
type BusyInterval struct {
	ID    int64
	Label string
	Interval
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether candidate conflicts with any of the existing intervals.
//
// Two intervals conflict when the start of one lies strictly inside the other. Intervals that
// only touch at an endpoint do not conflict, and neither do two intervals with the same start.
// The candidate itself must not be part of existing.
func Overlaps(candidate Interval, existing []Interval) bool {
	for _, e := range existing {
		if startsInside(e.Start, candidate) || startsInside(candidate.Start, e) {
			return true
		}
	}
	return false
}

func startsInside(t time.Time, i Interval) bool {
	return t.After(i.Start) && t.Before(i.End)
}

func Intervals(busy []BusyInterval) []Interval {
	out := make([]Interval, 0, len(busy))
	for _, b := range busy {
		out = append(out, b.Interval)
	}
	return out
}
