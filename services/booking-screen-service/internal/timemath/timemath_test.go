package timemath

import (
	"testing"
	"time"
)

func TestRoundUpToGrid_Properties(t *testing.T) {
	for _, step := range []int{5, 15, 30} {
		for x := -40.0; x <= 130; x += 0.5 {
			got := RoundUpToGrid(x, step)
			if got%step != 0 {
				t.Fatalf("RoundUpToGrid(%v, %d) = %d, not a multiple of step", x, step, got)
			}
			if float64(got) < x {
				t.Fatalf("RoundUpToGrid(%v, %d) = %d, below input", x, step, got)
			}
			if float64(got-step) >= x {
				t.Fatalf("RoundUpToGrid(%v, %d) = %d, not the smallest multiple", x, step, got)
			}
		}
	}
}

func TestRoundDownToGrid(t *testing.T) {
	if got := RoundDownToGrid(29.5, 15); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
	if got := RoundDownToGrid(30, 15); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	if got := RoundDownToGrid(-1, 15); got != -15 {
		t.Fatalf("expected -15, got %d", got)
	}
}

func TestWallClockIsLater_IgnoresDate(t *testing.T) {
	a := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	b := time.Date(2026, 6, 9, 10, 29, 59, 0, time.UTC)
	if !WallClockIsLater(a, b) {
		t.Fatal("expected 10:30:00 to be later than 10:29:59")
	}

	// An earlier date with a later clock still wins: date fields never take part.
	yesterday := time.Date(2026, 1, 27, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 1, 28, 1, 0, 0, 0, time.UTC)
	if !WallClockIsLater(yesterday, today) {
		t.Fatal("naive comparison must ignore the calendar date")
	}

	same := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	if WallClockIsLater(same, same.AddDate(0, 0, 3)) {
		t.Fatal("equal clocks are not later")
	}
}

func TestIsSameCalendarDay(t *testing.T) {
	a := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !IsSameCalendarDay(a, a.Add(23*time.Hour)) {
		t.Fatal("expected same day")
	}
	if IsSameCalendarDay(a, a.AddDate(0, 1, 0)) {
		t.Fatal("different month must not match")
	}
}

func TestIsOlderInDays(t *testing.T) {
	a := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !IsOlderInDays(a, b) {
		t.Fatal("expected 3rd to be older than 4th")
	}
	// Field-wise: the 28th of February is not "older" than the 1st of March.
	feb := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if IsOlderInDays(feb, mar) {
		t.Fatal("day-of-month comparison is expected to miss month rollovers")
	}
}

func TestNaiveAndAttach(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	in := time.Date(2026, 7, 1, 14, 0, 0, 0, london)
	naive := Naive(in)
	if naive.Hour() != 14 || naive.Location() != Floating {
		t.Fatalf("unexpected naive value %v", naive)
	}
	if !Attach(naive, london).Equal(in) {
		t.Fatalf("attach did not restore the instant: %v", Attach(naive, london))
	}
}

func TestEndOfWeek(t *testing.T) {
	wed := time.Date(2026, 1, 28, 15, 0, 0, 0, Floating)
	got := EndOfWeek(wed, time.Sunday)
	want := time.Date(2026, 1, 31, 23, 59, 59, int(999*time.Millisecond), Floating)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	sat := time.Date(2026, 1, 31, 23, 59, 0, 0, Floating)
	if !EndOfWeek(sat, time.Sunday).Equal(want) {
		t.Fatal("saturday belongs to the same week")
	}

	mondayStart := EndOfWeek(wed, time.Monday)
	if mondayStart.Weekday() != time.Sunday {
		t.Fatalf("expected week to end on sunday, got %s", mondayStart.Weekday())
	}
}

func TestParseNaive(t *testing.T) {
	for _, raw := range []string{"2026-01-28T10:15:00", "2026-01-28T10:15", "2026-01-28T10:15:00+09:00"} {
		got, err := ParseNaive(raw)
		if err != nil {
			t.Fatalf("ParseNaive(%q): %v", raw, err)
		}
		if got.Hour() != 10 || got.Minute() != 15 || got.Location() != Floating {
			t.Fatalf("ParseNaive(%q) = %v", raw, got)
		}
	}
	if _, err := ParseNaive("10:15"); err == nil {
		t.Fatal("expected error without a date")
	}
}
