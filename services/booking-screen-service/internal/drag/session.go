// Package drag turns pointer gestures on the weekly calendar grid into a single candidate
// appointment interval.
//
// A Session is not safe for concurrent use; the owning screen serializes pointer events.
package drag

import (
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/availability"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
)

const (
	DefaultPrecision = 15
	maxDragMinutes   = 60
)

type State int

const (
	Idle State = iota
	Dragging
	Committed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Segment is the grid cell the pointer went down on: its instant and the top of its
// bounding rectangle in client coordinates.
type Segment struct {
	Start time.Time
	Top   float64
}

type Pointer struct {
	Y float64
}

type Config struct {
	Window    workhours.Window
	Busy      []availability.BusyInterval
	Precision int
	// WeekEnd is the last instant of the displayed week; the candidate never grows past it.
	WeekEnd time.Time
	// OnChange receives a snapshot after every transition.
	OnChange func(Snapshot)
	// OnPointerRelease fires once per gesture when the session stops tracking the pointer.
	OnPointerRelease func()
}

type Session struct {
	cfg       Config
	busy      []availability.Interval
	state     State
	candidate Candidate
	segment   Segment
	sub       *Subscription
}

func New(cfg Config) *Session {
	if cfg.Precision <= 0 {
		cfg.Precision = DefaultPrecision
	}
	if cfg.WeekEnd.IsZero() && !cfg.Window.Min.IsZero() {
		cfg.WeekEnd = timemath.EndOfWeek(cfg.Window.Min, time.Sunday)
	}
	busy := make([]availability.BusyInterval, len(cfg.Busy))
	copy(busy, cfg.Busy)
	cfg.Busy = busy
	return &Session{
		cfg:  cfg,
		busy: availability.Intervals(busy),
	}
}

func (s *Session) State() State {
	return s.state
}

// Candidate returns the current candidate, provisional or committed.
func (s *Session) Candidate() Candidate {
	return s.candidate
}

// Committed returns the candidate produced by the last completed gesture.
func (s *Session) Committed() (Candidate, bool) {
	if s.candidate.Kind != KindCommitted {
		return Candidate{}, false
	}
	return s.candidate, true
}

// Begin starts a gesture on seg. Segments outside the working window are ignored and
// Begin reports false without touching the rendered set.
func (s *Session) Begin(seg Segment, down Pointer, label string) bool {
	if !s.withinWindow(seg.Start) {
		return false
	}
	if s.sub != nil {
		s.sub.Release()
	}

	s.segment = seg
	s.candidate = Candidate{
		Kind:  KindProvisional,
		Start: seg.Start,
		End:   seg.Start.Add(s.precision()),
		Label: label,
	}
	s.state = Dragging
	s.sub = newSubscription(s.cfg.OnPointerRelease)

	s.update(down)
	return true
}

// Move grows or shrinks the candidate. It reports false once the gesture is no longer
// tracked, e.g. after an overlap cancelled it.
func (s *Session) Move(p Pointer) bool {
	if s.state != Dragging || !s.sub.Active() {
		return false
	}
	s.update(p)
	return true
}

// Release ends the gesture on pointer-up.
func (s *Session) Release() {
	if s.state != Dragging {
		return
	}
	if s.candidate.Kind != KindNone && s.overlapping() {
		s.cancel()
		return
	}
	s.candidate.Kind = KindCommitted
	s.sub.Release()
	s.settle(Committed)
}

// Cancel drops any candidate, dragged or committed.
func (s *Session) Cancel() {
	if s.state != Dragging && s.candidate.Kind == KindNone {
		return
	}
	s.cancel()
}

func (s *Session) Retitle(label string) {
	if s.candidate.Kind == KindNone {
		return
	}
	s.candidate.Label = label
	s.emit()
}

func (s *Session) Snapshot() Snapshot {
	events := make([]Event, 0, len(s.cfg.Busy)+1)
	for _, b := range s.cfg.Busy {
		events = append(events, Event{
			ID:    b.ID,
			Label: b.Label,
			Start: b.Start,
			End:   b.End,
			Busy:  true,
		})
	}
	if s.candidate.Kind != KindNone {
		events = append(events, Event{
			ID:          int64(len(s.cfg.Busy)),
			Label:       s.candidate.Label,
			Start:       s.candidate.Start,
			End:         s.candidate.End,
			Provisional: s.candidate.Kind == KindProvisional,
		})
	}
	return Snapshot{
		State:     s.state,
		Events:    events,
		Candidate: s.candidate,
	}
}

func (s *Session) update(p Pointer) {
	diff := timemath.RoundUpToGrid((p.Y-s.segment.Top)/2, s.cfg.Precision)
	diff = min(diff, maxDragMinutes)

	end := s.segment.Start.Add(time.Duration(diff) * time.Minute)
	if end.After(s.segment.Start) && end.Before(s.cfg.WeekEnd) {
		s.candidate.End = end
		if s.overlapping() {
			s.cancel()
			return
		}
	}
	s.emit()
}

func (s *Session) cancel() {
	s.candidate = Candidate{}
	if s.sub != nil {
		s.sub.Release()
	}
	s.settle(Cancelled)
}

// settle publishes the terminal state, then returns to Idle.
func (s *Session) settle(terminal State) {
	s.state = terminal
	s.emit()
	s.state = Idle
}

func (s *Session) overlapping() bool {
	return availability.Overlaps(s.candidate.Interval(), s.busy)
}

// withinWindow compares wall clocks only: the segment's date is not considered.
func (s *Session) withinWindow(start time.Time) bool {
	if timemath.WallClockIsLater(s.cfg.Window.Min, start) {
		return false
	}
	return timemath.WallClockIsLater(s.cfg.Window.Max, start)
}

func (s *Session) precision() time.Duration {
	return time.Duration(s.cfg.Precision) * time.Minute
}

func (s *Session) emit() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(s.Snapshot())
	}
}
