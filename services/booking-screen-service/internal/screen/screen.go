// Package screen hosts the state of one booking screen: the expert's working window and
// busy intervals for the viewed timezone, the drag session and the booking draft.
//
// Every change is published as an immutable Snapshot. Methods are safe for concurrent use;
// they are serialized so pointer events are applied one at a time.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/availability"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/draft"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotLoaded         = errors.New("screen data not loaded")
	ErrDraftInvalid      = errors.New("select a time slot and enter a name of at least 7 characters")
	ErrBookingInProgress = errors.New("a booking is already being submitted")
)

// Source provides the data a screen view is built from.
type Source interface {
	WorkingHours(ctx context.Context, expertID int64, timezone string) (workhours.Hours, error)
	BusyIntervals(ctx context.Context, expertID int64, timezone string) ([]availability.BusyInterval, error)
}

// Submitter posts a booking and returns the backend's confirmation message.
type Submitter interface {
	Book(ctx context.Context, req draft.Request) (string, error)
}

// SubmissionError is a booking the backend refused. The draft is kept so the user can
// pick another slot.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return "booking rejected: " + e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

type Config struct {
	ExpertID int64
	// Timezone is the viewer's selected timezone. Empty means the resolved one.
	Timezone string
	// ResolvedTimezone is the system timezone bookings are expressed in.
	ResolvedTimezone string
	Precision        int
	WeekStartsOn     time.Weekday
	Clock            *workhours.Clock
	Source           Source
	Submitter        Submitter
	Logger           *slog.Logger
}

// Receipt describes a submitted booking.
type Receipt struct {
	Request draft.Request
	Message string
}

type Screen struct {
	mu  sync.Mutex
	cfg Config

	tz       string
	viewDate time.Time
	window   workhours.Window
	busy     []availability.BusyInterval
	session  *drag.Session
	dragSnap drag.Snapshot
	draft    draft.Draft

	loaded  bool
	loading bool
	booking bool
	errMsg  string
	message string

	generation uint64
	version    uint64
	releases   uint64

	subs    map[int]func(Snapshot)
	nextSub int
	pending []Snapshot
}

func New(cfg Config) (*Screen, error) {
	if cfg.Source == nil {
		return nil, errors.New("screen: source is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = workhours.NewClock()
	}
	if cfg.Precision <= 0 {
		cfg.Precision = drag.DefaultPrecision
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timezone == "" {
		cfg.Timezone = cfg.ResolvedTimezone
	}
	viewDate, err := cfg.Clock.NowIn(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Screen{
		cfg:      cfg,
		tz:       cfg.Timezone,
		viewDate: viewDate,
		subs:     map[int]func(Snapshot){},
	}, nil
}

// Subscribe registers fn for every published snapshot. fn runs outside the screen lock.
func (s *Screen) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Load fetches working hours and busy intervals for the current timezone and applies both
// in one step. A load that is overtaken by a newer one is dropped.
func (s *Screen) Load(ctx context.Context) error {
	ctx, span := otel.Tracer("booking-screen").Start(ctx, "screen.load")
	defer span.End()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	tz := s.tz
	s.loading = true
	s.publishLocked()
	s.unlockAndDeliver()

	span.SetAttributes(
		attribute.Int64("expert.id", s.cfg.ExpertID),
		attribute.String("screen.timezone", tz),
	)

	hours, busy, err := s.fetch(ctx, tz)

	s.mu.Lock()
	defer s.unlockAndDeliver()
	if gen != s.generation {
		return nil
	}
	s.loading = false
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		s.errMsg = err.Error()
		s.dropViewLocked()
		s.publishLocked()
		return err
	}
	window, err := s.cfg.Clock.ResolveWindow(hours, tz)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "working hours")
		s.errMsg = err.Error()
		s.dropViewLocked()
		s.publishLocked()
		return err
	}

	s.window = window
	s.busy = busy
	s.replaceSessionLocked()
	s.loaded = true
	s.errMsg = ""
	s.publishLocked()
	return nil
}

// ChangeTimezone switches the viewer's timezone and reloads. The previous zone's window and
// busy intervals are dropped first, so no gesture runs against them.
func (s *Screen) ChangeTimezone(ctx context.Context, timezone string) error {
	viewDate, err := s.cfg.Clock.NowIn(timezone)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tz = timezone
	s.viewDate = viewDate
	s.dropViewLocked()
	s.publishLocked()
	s.unlockAndDeliver()
	return s.Load(ctx)
}

// ChangeDay moves the displayed week to the one containing day and reloads.
func (s *Screen) ChangeDay(ctx context.Context, day time.Time) error {
	s.mu.Lock()
	s.viewDate = timemath.Naive(day)
	s.dropViewLocked()
	s.publishLocked()
	s.unlockAndDeliver()
	return s.Load(ctx)
}

// PointerDown starts a gesture. It reports false when the segment is outside the
// working window; that is not an error.
func (s *Screen) PointerDown(seg drag.Segment, p drag.Pointer) (bool, error) {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if err := s.interactiveLocked(); err != nil {
		return false, err
	}
	seg.Start = timemath.Naive(seg.Start)
	return s.session.Begin(seg, p, s.draft.DisplayName), nil
}

func (s *Screen) PointerMove(p drag.Pointer) (bool, error) {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if !s.readyLocked() {
		return false, ErrNotLoaded
	}
	return s.session.Move(p), nil
}

func (s *Screen) PointerUp() error {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if !s.readyLocked() {
		return ErrNotLoaded
	}
	s.session.Release()
	return nil
}

// CancelDrag drops the current selection, dragged or committed.
func (s *Screen) CancelDrag() {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	s.discardSelectionLocked()
	s.publishLocked()
}

// SetDisplayName updates the name typed by the visitor; the selected slot is relabelled.
// The name is frozen while a booking is being submitted.
func (s *Screen) SetDisplayName(name string) error {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if s.booking {
		return ErrBookingInProgress
	}
	s.draft.DisplayName = name
	if s.session != nil && s.session.Candidate().Kind != drag.KindNone {
		s.session.Retitle(name)
		return nil
	}
	s.publishLocked()
	return nil
}

// Book submits the draft. A rejection is returned as *SubmissionError and leaves the draft
// in place; a success reloads the screen, which clears the selection.
func (s *Screen) Book(ctx context.Context) (Receipt, error) {
	ctx, span := otel.Tracer("booking-screen").Start(ctx, "screen.book")
	defer span.End()

	s.mu.Lock()
	if s.booking {
		s.mu.Unlock()
		return Receipt{}, ErrBookingInProgress
	}
	if !s.readyLocked() {
		s.mu.Unlock()
		return Receipt{}, ErrNotLoaded
	}
	if !s.draft.IsValid() {
		s.mu.Unlock()
		return Receipt{}, ErrDraftInvalid
	}
	if s.cfg.Submitter == nil {
		s.mu.Unlock()
		return Receipt{}, errors.New("screen: no submitter configured")
	}
	req, err := s.draft.ToRequest(s.cfg.ExpertID, s.tz, s.cfg.ResolvedTimezone)
	if err != nil {
		s.mu.Unlock()
		return Receipt{}, err
	}
	s.booking = true
	s.publishLocked()
	s.unlockAndDeliver()

	span.SetAttributes(
		attribute.Int64("expert.id", req.ExpertID),
		attribute.Int("booking.duration_minutes", req.DurationMinutes),
	)

	msg, err := s.cfg.Submitter.Book(ctx, req)
	receipt := Receipt{Request: req, Message: msg}

	s.mu.Lock()
	s.booking = false
	if err != nil {
		rejection := &SubmissionError{Message: userMessage(err), Err: err}
		receipt.Message = rejection.Message
		s.errMsg = rejection.Message
		s.publishLocked()
		s.unlockAndDeliver()
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking rejected")
		return receipt, rejection
	}
	s.errMsg = ""
	s.message = msg
	s.publishLocked()
	s.unlockAndDeliver()

	if err := s.Load(ctx); err != nil {
		s.cfg.Logger.Warn("reload after booking failed", "expert_id", req.ExpertID, "err", err)
	}
	return receipt, nil
}

func (s *Screen) fetch(ctx context.Context, tz string) (workhours.Hours, []availability.BusyInterval, error) {
	var (
		hours workhours.Hours
		busy  []availability.BusyInterval
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.cfg.Source.WorkingHours(gctx, s.cfg.ExpertID, tz)
		if err != nil {
			return fmt.Errorf("fetch working hours: %w", err)
		}
		hours = h
		return nil
	})
	g.Go(func() error {
		b, err := s.cfg.Source.BusyIntervals(gctx, s.cfg.ExpertID, tz)
		if err != nil {
			return fmt.Errorf("fetch appointments: %w", err)
		}
		busy = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return workhours.Hours{}, nil, err
	}
	return hours, busy, nil
}

// replaceSessionLocked swaps in a session for the freshly loaded data. The previous
// session is cancelled so its pointer tracking ends; its callbacks are ignored from then on.
func (s *Screen) replaceSessionLocked() {
	old := s.session
	var sess *drag.Session
	sess = drag.New(drag.Config{
		Window:    s.window,
		Busy:      s.busy,
		Precision: s.cfg.Precision,
		WeekEnd:   timemath.EndOfWeek(s.viewDate, s.cfg.WeekStartsOn),
		OnChange: func(snap drag.Snapshot) {
			if s.session != sess {
				return
			}
			s.dragSnap = snap
			s.syncDraftLocked()
			s.publishLocked()
		},
		OnPointerRelease: func() { s.releases++ },
	})
	s.session = sess
	s.dragSnap = sess.Snapshot()
	s.draft.Clear()
	if old != nil {
		old.Cancel()
	}
}

// readyLocked reports whether the installed session was built from the current view's data.
func (s *Screen) readyLocked() bool {
	return s.session != nil && s.loaded && !s.loading
}

// interactiveLocked guards operations that change the selection.
func (s *Screen) interactiveLocked() error {
	if s.booking {
		return ErrBookingInProgress
	}
	if !s.readyLocked() {
		return ErrNotLoaded
	}
	return nil
}

// dropViewLocked forgets the loaded window, busy intervals and session. Gestures are
// refused until the next successful load.
func (s *Screen) dropViewLocked() {
	s.discardSelectionLocked()
	s.session = nil
	s.dragSnap = drag.Snapshot{}
	s.window = workhours.Window{}
	s.busy = nil
	s.loaded = false
}

func (s *Screen) discardSelectionLocked() {
	if s.session != nil {
		s.session.Cancel()
	}
	s.draft.Clear()
}

func (s *Screen) syncDraftLocked() {
	if c, ok := s.session.Committed(); ok {
		s.draft.Candidate = &c
		return
	}
	s.draft.Candidate = nil
}

func (s *Screen) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	s.pending = append(s.pending, s.snapshotLocked())
}

// unlockAndDeliver releases the lock and hands queued snapshots to subscribers.
func (s *Screen) unlockAndDeliver() {
	pending := s.pending
	s.pending = nil
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, snap := range pending {
		for _, fn := range subs {
			fn(snap)
		}
	}
}

func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return err.Error()
}
