package experts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/availability"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/draft"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Expert struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	JobTitle     string           `json:"job_title"`
	CountryName  string           `json:"country_name"`
	WorkingHours *workhours.Hours `json:"working_hours,omitempty"`
}

type Appointment struct {
	ID       int64  `json:"id"`
	UserName string `json:"user_name"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type message struct {
	Message string `json:"message"`
}

// APIError is a non-2xx answer from the experts backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("experts api: status %d", e.Status)
	}
	return fmt.Sprintf("experts api: status %d: %s", e.Status, e.Message)
}

// UserMessage is the text the backend wants shown to the visitor.
func (e *APIError) UserMessage() string {
	return e.Message
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

func (c *Client) ListExperts(ctx context.Context) ([]Expert, error) {
	var out []Expert
	if err := c.do(ctx, http.MethodGet, "/experts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetExpert(ctx context.Context, id int64) (Expert, error) {
	var out Expert
	if err := c.do(ctx, http.MethodGet, "/experts/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return Expert{}, err
	}
	return out, nil
}

func (c *Client) WorkingHours(ctx context.Context, expertID int64, timezone string) (workhours.Hours, error) {
	var out workhours.Hours
	path := "/experts/" + strconv.FormatInt(expertID, 10) + "/working-hours"
	if err := c.do(ctx, http.MethodGet, path, timezoneQuery(timezone), nil, &out); err != nil {
		return workhours.Hours{}, err
	}
	return out, nil
}

func (c *Client) Appointments(ctx context.Context, expertID int64, timezone string) ([]Appointment, error) {
	var out []Appointment
	path := "/experts/" + strconv.FormatInt(expertID, 10) + "/appointments"
	if err := c.do(ctx, http.MethodGet, path, timezoneQuery(timezone), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BusyIntervals loads the expert's appointments as naive wall-clock intervals of timezone.
func (c *Client) BusyIntervals(ctx context.Context, expertID int64, timezone string) ([]availability.BusyInterval, error) {
	appts, err := c.Appointments(ctx, expertID, timezone)
	if err != nil {
		return nil, err
	}
	loc, err := workhours.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return ToBusy(appts, loc)
}

// Book submits a booking and returns the backend's confirmation message.
func (c *Client) Book(ctx context.Context, req draft.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var out message
	if err := c.do(ctx, http.MethodPost, "/appointments", nil, body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func ToBusy(appts []Appointment, loc *time.Location) ([]availability.BusyInterval, error) {
	out := make([]availability.BusyInterval, 0, len(appts))
	for _, a := range appts {
		start, err := ParseWallClock(a.StartsAt, loc)
		if err != nil {
			return nil, fmt.Errorf("appointment %d starts_at: %w", a.ID, err)
		}
		end, err := ParseWallClock(a.EndsAt, loc)
		if err != nil {
			return nil, fmt.Errorf("appointment %d ends_at: %w", a.ID, err)
		}
		out = append(out, availability.BusyInterval{
			ID:       a.ID,
			Label:    a.UserName,
			Interval: availability.Interval{Start: start, End: end},
		})
	}
	return out, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseWallClock reads an ISO datetime as a naive value of loc. Timestamps carrying an
// offset are converted into loc first; zone-less ones are taken as loc's wall clock.
func ParseWallClock(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return timemath.Naive(t.In(loc)), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, timemath.Floating); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", raw)
}

func timezoneQuery(timezone string) url.Values {
	if timezone == "" {
		return nil
	}
	return url.Values{"timezone": []string{timezone}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var msg message
		if json.Unmarshal(payload, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// MessageOf extracts the user-facing text of a backend rejection.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
