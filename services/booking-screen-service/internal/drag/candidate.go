package drag

import (
	"sync"
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/availability"
)

type Kind int

const (
	KindNone Kind = iota
	KindProvisional
	KindCommitted
)

func (k Kind) String() string {
	switch k {
	case KindProvisional:
		return "provisional"
	case KindCommitted:
		return "committed"
	default:
		return "none"
	}
}

type Candidate struct {
	Kind  Kind
	Start time.Time
	End   time.Time
	Label string
}

func (c Candidate) Interval() availability.Interval {
	return availability.Interval{Start: c.Start, End: c.End}
}

// Event is one entry of the rendered calendar.
type Event struct {
	ID          int64
	Label       string
	Start       time.Time
	End         time.Time
	Busy        bool
	Provisional bool
}

type Snapshot struct {
	State     State
	Events    []Event
	Candidate Candidate
}

// Subscription stands for the pointer tracking of one gesture. Release is idempotent.
type Subscription struct {
	once      sync.Once
	released  bool
	onRelease func()
}

func newSubscription(onRelease func()) *Subscription {
	return &Subscription{onRelease: onRelease}
}

func (s *Subscription) Active() bool {
	return s != nil && !s.released
}

func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.released = true
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}
