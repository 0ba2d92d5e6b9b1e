package handlers

import (
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/screen"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
)

type eventView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Busy        bool   `json:"busy"`
	Provisional bool   `json:"provisional,omitempty"`
}

type candidateView struct {
	Kind  string `json:"kind"`
	Start string `json:"start"`
	End   string `json:"end"`
	Title string `json:"title"`
}

type windowView struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type visibleView struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

type snapshotView struct {
	Version         uint64         `json:"version"`
	ExpertID        int64          `json:"expert_id"`
	Timezone        string         `json:"timezone"`
	ViewDate        string         `json:"view_date"`
	WorkingHours    *windowView    `json:"working_hours,omitempty"`
	Visible         *visibleView   `json:"visible,omitempty"`
	DragState       string         `json:"drag_state"`
	Tracking        bool           `json:"tracking"`
	PointerReleases uint64         `json:"pointer_releases"`
	Events          []eventView    `json:"events"`
	Candidate       *candidateView `json:"candidate,omitempty"`
	DisplayName     string         `json:"display_name"`
	Valid           bool           `json:"valid"`
	Loaded          bool           `json:"loaded"`
	Loading         bool           `json:"loading"`
	Booking         bool           `json:"booking"`
	Error           string         `json:"error,omitempty"`
	Message         string         `json:"message,omitempty"`
}

func wallClock(t time.Time) string {
	return t.Format(timemath.WallClockLayout)
}

func toSnapshotView(s screen.Snapshot) snapshotView {
	v := snapshotView{
		Version:         s.Version,
		ExpertID:        s.ExpertID,
		Timezone:        s.Timezone,
		ViewDate:        s.ViewDate.Format(time.DateOnly),
		DragState:       s.State.String(),
		Tracking:        s.Tracking,
		PointerReleases: s.PointerReleases,
		Events:          make([]eventView, 0, len(s.Events)),
		DisplayName:     s.DisplayName,
		Valid:           s.Valid,
		Loaded:          s.Loaded,
		Loading:         s.Loading,
		Booking:         s.Booking,
		Error:           s.Error,
		Message:         s.Message,
	}
	if s.Loaded {
		v.WorkingHours = &windowView{Min: wallClock(s.Window.Min), Max: wallClock(s.Window.Max)}
		v.Visible = &visibleView{
			StartHour:   s.Visible.StartHour,
			StartMinute: s.Visible.StartMinute,
			EndHour:     s.Visible.EndHour,
			EndMinute:   s.Visible.EndMinute,
		}
	}
	for _, e := range s.Events {
		v.Events = append(v.Events, eventView{
			ID:          e.ID,
			Title:       e.Label,
			Start:       wallClock(e.Start),
			End:         wallClock(e.End),
			Busy:        e.Busy,
			Provisional: e.Provisional,
		})
	}
	if s.Candidate.Kind != drag.KindNone {
		v.Candidate = &candidateView{
			Kind:  s.Candidate.Kind.String(),
			Start: wallClock(s.Candidate.Start),
			End:   wallClock(s.Candidate.End),
			Title: s.Candidate.Label,
		}
	}
	return v
}
