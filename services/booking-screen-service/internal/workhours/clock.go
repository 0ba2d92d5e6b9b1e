package workhours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
)

// Hours is an expert's working day as returned by the experts backend.
type Hours struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

// Window bounds the bookable part of the displayed day. Both ends are naive wall-clock
// values in the viewer's timezone.
type Window struct {
	Min time.Time
	Max time.Time
}

// ParseError reports a working-hours boundary that is not "HH:MM:SS".
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid working hours time %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid working hours time %q", e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Clock struct {
	Now func() time.Time
}

func NewClock() *Clock {
	return &Clock{Now: time.Now}
}

func (c *Clock) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// NowIn returns the current wall clock of timezone as a naive value.
func (c *Clock) NowIn(timezone string) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return timemath.Naive(c.now().In(loc)), nil
}

// ResolveBoundary places an "HH:MM:SS" boundary on today's date in timezone.
func (c *Clock) ResolveBoundary(wall, timezone string) (time.Time, error) {
	h, m, s, err := parseWallClock(wall)
	if err != nil {
		return time.Time{}, err
	}
	today, err := c.NowIn(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(today.Year(), today.Month(), today.Day(), h, m, s, 0, timemath.Floating), nil
}

func (c *Clock) ResolveWindow(hours Hours, timezone string) (Window, error) {
	min, err := c.ResolveBoundary(hours.StartsAt, timezone)
	if err != nil {
		return Window{}, err
	}
	max, err := c.ResolveBoundary(hours.EndsAt, timezone)
	if err != nil {
		return Window{}, err
	}
	return Window{Min: min, Max: max}, nil
}

// LoadLocation resolves an IANA name. An empty name is the process-local zone.
func LoadLocation(timezone string) (*time.Location, error) {
	if strings.TrimSpace(timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return loc, nil
}

func parseWallClock(wall string) (int, int, int, error) {
	parts := strings.Split(strings.TrimSpace(wall), ":")
	if len(parts) != 3 {
		return 0, 0, 0, &ParseError{Value: wall}
	}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, &ParseError{Value: wall, Err: err}
		}
		fields[i] = n
	}
	return fields[0], fields[1], fields[2], nil
}
