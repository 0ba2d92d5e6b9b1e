package draft

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
)

// MinNameLength is the shortest display name accepted for a booking.
const MinNameLength = 7

var ErrNoCandidate = errors.New("no committed time slot selected")

// Request is the payload posted to the experts backend.
type Request struct {
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	UserName        string    `json:"user_name"`
	ExpertID        int64     `json:"expert_id"`
	Timezone        string    `json:"timezone,omitempty"`
}

type Draft struct {
	Candidate   *drag.Candidate
	DisplayName string
}

func (d *Draft) IsValid() bool {
	if d == nil || d.Candidate == nil || d.Candidate.Kind != drag.KindCommitted {
		return false
	}
	return utf8.RuneCountInString(d.DisplayName) >= MinNameLength
}

func (d *Draft) Clear() {
	d.Candidate = nil
}

// ToRequest converts the draft into a booking request.
//
// The candidate's start is a naive wall-clock value of viewerTZ. It is re-attached to
// viewerTZ to obtain the instant, which is then expressed in resolvedTZ.
func (d *Draft) ToRequest(expertID int64, viewerTZ, resolvedTZ string) (Request, error) {
	if d == nil || d.Candidate == nil {
		return Request{}, ErrNoCandidate
	}
	viewer, err := workhours.LoadLocation(viewerTZ)
	if err != nil {
		return Request{}, err
	}
	resolved, err := workhours.LoadLocation(resolvedTZ)
	if err != nil {
		return Request{}, err
	}

	start := timemath.Attach(d.Candidate.Start, viewer).In(resolved)
	req := Request{
		StartsAt:        start,
		DurationMinutes: int(d.Candidate.End.Sub(d.Candidate.Start) / time.Minute),
		UserName:        d.DisplayName,
		ExpertID:        expertID,
	}
	if viewerTZ != "" {
		req.Timezone = viewerTZ
	}
	return req, nil
}
