package screen

import (
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
)

// Visible is the range of the day grid the calendar should display.
type Visible struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

type Snapshot struct {
	Version         uint64
	ExpertID        int64
	Timezone        string
	ViewDate        time.Time
	Window          workhours.Window
	Visible         Visible
	State           drag.State
	Tracking        bool
	PointerReleases uint64
	Events          []drag.Event
	Candidate       drag.Candidate
	DisplayName     string
	Valid           bool
	Loaded          bool
	Loading         bool
	Booking         bool
	Error           string
	Message         string
}

func (s *Screen) snapshotLocked() Snapshot {
	events := make([]drag.Event, len(s.dragSnap.Events))
	copy(events, s.dragSnap.Events)

	snap := Snapshot{
		Version:         s.version,
		ExpertID:        s.cfg.ExpertID,
		Timezone:        s.tz,
		ViewDate:        s.viewDate,
		Window:          s.window,
		State:           s.dragSnap.State,
		PointerReleases: s.releases,
		Events:          events,
		Candidate:       s.dragSnap.Candidate,
		DisplayName:     s.draft.DisplayName,
		Valid:           s.draft.IsValid(),
		Loaded:          s.loaded,
		Loading:         s.loading,
		Booking:         s.booking,
		Error:           s.errMsg,
		Message:         s.message,
	}
	if s.session != nil {
		snap.Tracking = s.session.State() == drag.Dragging
	}
	if s.loaded {
		if now, err := s.cfg.Clock.NowIn(s.tz); err == nil {
			snap.Visible = visibleHours(s.window, s.viewDate, now)
		}
	}
	return snap
}

// visibleHours hides the part of the day that can no longer be booked: a past day starts
// at the end of working hours, today starts at the current time once work has begun.
func visibleHours(w workhours.Window, viewDate, now time.Time) Visible {
	v := Visible{
		StartHour:   w.Min.Hour(),
		StartMinute: w.Min.Minute(),
		EndHour:     w.Max.Hour(),
		EndMinute:   w.Max.Minute(),
	}
	switch {
	case timemath.IsOlderInDays(viewDate, now):
		v.StartHour = w.Max.Hour()
		v.StartMinute = 0
	case timemath.IsSameCalendarDay(viewDate, now) && w.Min.Before(now):
		v.StartHour = now.Hour()
		v.StartMinute = now.Minute()
	}
	return v
}
