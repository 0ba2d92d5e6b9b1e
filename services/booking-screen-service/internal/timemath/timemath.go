package timemath

import (
	"math"
	"time"
)

// Floating carries naive wall-clock values: times whose fields are meaningful in the
// viewer's selected timezone but which no longer remember that zone.
var Floating = time.FixedZone("floating", 0)

// Naive re-expresses the wall-clock fields of t in the Floating location.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), Floating)
}

// Attach reads the wall-clock fields of a naive value as a time in loc.
func Attach(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// RoundUpToGrid returns the smallest multiple of step that is >= minutes.
func RoundUpToGrid(minutes float64, step int) int {
	if step <= 0 {
		return int(math.Ceil(minutes))
	}
	return int(math.Ceil(minutes/float64(step))) * step
}

// RoundDownToGrid returns the largest multiple of step that is <= minutes.
func RoundDownToGrid(minutes float64, step int) int {
	if step <= 0 {
		return int(math.Floor(minutes))
	}
	return int(math.Floor(minutes/float64(step))) * step
}

// WallClockIsLater reports whether a's hour:minute:second is later than b's.
// The calendar date is ignored.
func WallClockIsLater(a, b time.Time) bool {
	if a.Hour() != b.Hour() {
		return a.Hour() > b.Hour()
	}
	if a.Minute() != b.Minute() {
		return a.Minute() > b.Minute()
	}
	return a.Second() > b.Second()
}

// IsSameCalendarDay compares day, month and year only.
func IsSameCalendarDay(a, b time.Time) bool {
	return a.Day() == b.Day() && a.Month() == b.Month() && a.Year() == b.Year()
}

// IsOlderInDays reports whether a falls on an earlier day-of-month than b while its
// month and year are not later. Field-wise, like IsSameCalendarDay.
func IsOlderInDays(a, b time.Time) bool {
	return a.Day() < b.Day() && a.Year() <= b.Year() && a.Month() <= b.Month()
}

// EndOfWeek returns the last millisecond of the week containing t, in t's location.
func EndOfWeek(t time.Time, weekStartsOn time.Weekday) time.Time {
	diff := (int(t.Weekday()) - int(weekStartsOn) + 7) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-diff, 0, 0, 0, 0, t.Location())
	return start.AddDate(0, 0, 7).Add(-time.Millisecond)
}

// WallClockLayout renders naive values without an offset.
const WallClockLayout = "2006-01-02T15:04:05"

var naiveLayouts = []string{
	WallClockLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseNaive reads a wall-clock datetime. An offset, if present, is dropped without
// conversion.
func ParseNaive(raw string) (time.Time, error) {
	var firstErr error
	for _, layout := range naiveLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return Naive(t), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
