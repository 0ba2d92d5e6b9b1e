package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/draft"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/events"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/experts"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/screen"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/storage"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
)

type memoryLog struct {
	mu   sync.Mutex
	subs []storage.Submission
}

func (m *memoryLog) Record(_ context.Context, s storage.Submission) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, s)
	return "sub-" + s.UserName, nil
}

func (m *memoryLog) ListByExpert(_ context.Context, expertID int64, limit int) ([]storage.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Submission
	for i := len(m.subs) - 1; i >= 0; i-- {
		if m.subs[i].ExpertID != expertID {
			continue
		}
		s := m.subs[i]
		s.ID = "sub-" + s.UserName
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memoryEvents struct {
	mu     sync.Mutex
	events []events.Submission
}

func (m *memoryEvents) Publish(_ context.Context, s events.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, s)
	return nil
}

func newExpertsBackend(t *testing.T, failAppointments *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/experts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Ada Lovelace","job_title":"Analyst","country_name":"UK"}]`))
	})
	mux.HandleFunc("/experts/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"name":"Ada Lovelace"}`))
	})
	mux.HandleFunc("/experts/1/working-hours", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"starts_at":"09:00:00","ends_at":"17:00:00"}`))
	})
	mux.HandleFunc("/experts/1/appointments", func(w http.ResponseWriter, _ *http.Request) {
		if failAppointments.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"appointments unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":5,"user_name":"Grace","starts_at":"2026-01-28T10:00:00","ends_at":"2026-01-28T10:30:00"}]`))
	})
	mux.HandleFunc("/appointments", func(w http.ResponseWriter, r *http.Request) {
		var req draft.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.UserName == "Conflicted" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"The expert is busy at that time"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Appointment booked"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	mux    *http.ServeMux
	log    *memoryLog
	events *memoryEvents

	failAppointments atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{mux: http.NewServeMux(), log: &memoryLog{}, events: &memoryEvents{}}
	client := experts.NewClient(newExpertsBackend(t, &f.failAppointments).URL, time.Second)
	clock := &workhours.Clock{Now: func() time.Time { return time.Date(2026, 1, 28, 8, 0, 0, 0, time.UTC) }}

	factory := func(expertID int64, timezone string) (*screen.Screen, error) {
		return screen.New(screen.Config{
			ExpertID:         expertID,
			Timezone:         timezone,
			ResolvedTimezone: "UTC",
			Clock:            clock,
			Source:           client,
			Submitter:        client,
			Logger:           logger,
		})
	}
	h := NewScreenHandler(screen.NewRegistry(time.Hour, logger), client, factory, logger, Options{
		Submissions: f.log,
		Events:      f.events,
	})
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *fixture) openScreen(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/screens", map[string]any{"expert_id": 1, "timezone": "UTC"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create screen: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[screenResponse](t, rec)
	if !resp.Snapshot.Loaded || len(resp.Snapshot.Events) != 1 || resp.Snapshot.WorkingHours == nil {
		t.Fatalf("expected loaded screen, got %+v", resp.Snapshot)
	}
	if resp.Snapshot.WorkingHours.Min != "2026-01-28T09:00:00" {
		t.Fatalf("unexpected working hours %+v", resp.Snapshot.WorkingHours)
	}
	return resp.ScreenID
}

func (f *fixture) selectSlot(t *testing.T, id, start string, mins float64) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{
		"screen_id": id, "type": "down", "segment_start": start, "segment_top": 100, "y": 100,
	})
	if rec.Code != http.StatusOK || !decode[pointerResponse](t, rec).Accepted {
		t.Fatalf("pointer down: %d %s", rec.Code, rec.Body.String())
	}
	f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{"screen_id": id, "type": "move", "y": 100 + 2*mins})
	rec = f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{"screen_id": id, "type": "up"})
	if rec.Code != http.StatusOK {
		t.Fatalf("pointer up: %d %s", rec.Code, rec.Body.String())
	}
}

func TestExperts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/experts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	if list := decode[[]experts.Expert](t, rec); len(list) != 1 || list[0].Name != "Ada Lovelace" {
		t.Fatalf("unexpected list %+v", list)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/experts/detail?id=1", nil); rec.Code != http.StatusOK {
		t.Fatalf("detail: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/experts/detail?id=2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/experts/detail?id=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/experts", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestScreenBookingFlow(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	f.selectSlot(t, id, "2026-01-28T11:00:00", 30)

	rec := f.do(t, http.MethodPost, "/api/v1/screens/book", map[string]any{"screen_id": id})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("booking without a name should be refused, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/screens/name", map[string]any{"screen_id": id, "name": "Roberta"})
	snap := decode[screenResponse](t, rec).Snapshot
	if !snap.Valid || snap.Candidate == nil || snap.Candidate.End != "2026-01-28T11:30:00" {
		t.Fatalf("expected a bookable 30 minute slot, got %+v", snap)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/screens/book", map[string]any{"screen_id": id})
	if rec.Code != http.StatusOK {
		t.Fatalf("book: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[bookResponse](t, rec)
	if resp.Message != "Appointment booked" || resp.SubmissionID != "sub-Roberta" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Snapshot.Candidate != nil || resp.Snapshot.Valid {
		t.Fatalf("selection should be cleared after booking: %+v", resp.Snapshot)
	}

	if len(f.log.subs) != 1 || !f.log.subs[0].Accepted || f.log.subs[0].DurationMinutes != 30 {
		t.Fatalf("unexpected recorded submissions %+v", f.log.subs)
	}
	if len(f.events.events) != 1 || f.events.events[0].SubmissionID != "sub-Roberta" {
		t.Fatalf("unexpected events %+v", f.events.events)
	}
}

func TestScreenBookingRejected(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	f.do(t, http.MethodPost, "/api/v1/screens/name", map[string]any{"screen_id": id, "name": "Conflicted"})
	f.selectSlot(t, id, "2026-01-28T12:00:00", 15)

	rec := f.do(t, http.MethodPost, "/api/v1/screens/book", map[string]any{"screen_id": id})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[bookResponse](t, rec)
	if resp.Message != "The expert is busy at that time" || resp.Snapshot.Error != resp.Message {
		t.Fatalf("unexpected rejection %+v", resp)
	}
	if !resp.Snapshot.Valid || resp.Snapshot.Booking {
		t.Fatalf("draft should be kept for a retry: %+v", resp.Snapshot)
	}
	if len(f.events.events) != 1 || f.events.events[0].Accepted {
		t.Fatalf("expected a rejected event, got %+v", f.events.events)
	}
}

func TestPointerOverlapCancels(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{
		"screen_id": id, "type": "down", "segment_start": "2026-01-28T10:15:00", "segment_top": 100, "y": 100,
	})
	rec := f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{"screen_id": id, "type": "move", "y": 150})
	resp := decode[pointerResponse](t, rec)
	if resp.Snapshot.Candidate != nil || resp.Snapshot.Tracking || len(resp.Snapshot.Events) != 1 {
		t.Fatalf("overlapping drag should be cancelled: %+v", resp.Snapshot)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{
		"screen_id": id, "type": "down", "segment_start": "2026-01-28T18:00:00", "segment_top": 100, "y": 100,
	})
	if decode[pointerResponse](t, rec).Accepted {
		t.Fatal("a start after working hours is ignored")
	}
}

func TestScreenRequestValidation(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	cases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"bad timezone on create", "/api/v1/screens", map[string]any{"expert_id": 1, "timezone": "Mars/Olympus"}, http.StatusBadRequest},
		{"missing expert", "/api/v1/screens", map[string]any{"timezone": "UTC"}, http.StatusBadRequest},
		{"unknown screen", "/api/v1/screens/name", map[string]any{"screen_id": "nope", "name": "x"}, http.StatusNotFound},
		{"bad pointer type", "/api/v1/screens/pointer", map[string]any{"screen_id": id, "type": "hover"}, http.StatusBadRequest},
		{"bad segment start", "/api/v1/screens/pointer", map[string]any{"screen_id": id, "type": "down", "segment_start": "noon"}, http.StatusBadRequest},
		{"bad timezone change", "/api/v1/screens/timezone", map[string]any{"screen_id": id, "timezone": "Nowhere/Land"}, http.StatusBadRequest},
		{"bad day", "/api/v1/screens/day", map[string]any{"screen_id": id, "date": "28/01/2026"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := f.do(t, http.MethodPost, tc.path, tc.body); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/screens/name", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken json, got %d", rec.Code)
	}
}

func TestScreenTimezoneDayAndClose(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	rec := f.do(t, http.MethodPost, "/api/v1/screens/timezone", map[string]any{"screen_id": id, "timezone": "Asia/Tokyo"})
	snap := decode[screenResponse](t, rec).Snapshot
	if rec.Code != http.StatusOK || snap.Timezone != "Asia/Tokyo" {
		t.Fatalf("timezone change: %d %+v", rec.Code, snap)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/screens/day", map[string]any{"screen_id": id, "date": "2026-02-03"})
	snap = decode[screenResponse](t, rec).Snapshot
	if snap.ViewDate != "2026-02-03" {
		t.Fatalf("unexpected view date %q", snap.ViewDate)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/screens/snapshot?screen_id="+id, nil); rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/screens/close", map[string]any{"screen_id": id}); rec.Code != http.StatusNoContent {
		t.Fatalf("close: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/screens/snapshot?screen_id="+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("closed screen should be gone, got %d", rec.Code)
	}
}

func TestListSubmissions(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	f.do(t, http.MethodPost, "/api/v1/screens/name", map[string]any{"screen_id": id, "name": "Conflicted"})
	f.selectSlot(t, id, "2026-01-28T12:00:00", 15)
	f.do(t, http.MethodPost, "/api/v1/screens/book", map[string]any{"screen_id": id})

	f.do(t, http.MethodPost, "/api/v1/screens/name", map[string]any{"screen_id": id, "name": "Roberta"})
	if rec := f.do(t, http.MethodPost, "/api/v1/screens/book", map[string]any{"screen_id": id}); rec.Code != http.StatusOK {
		t.Fatalf("book: %d %s", rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, "/api/v1/screens/submissions?expert_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	list := decode[[]submissionView](t, rec)
	if len(list) != 2 || list[0].UserName != "Roberta" || !list[0].Accepted || list[1].Accepted {
		t.Fatalf("expected newest attempt first, got %+v", list)
	}
	if list[0].StartsAt != "2026-01-28T12:00:00Z" || list[0].DurationMinutes != 15 {
		t.Fatalf("unexpected submission %+v", list[0])
	}

	rec = f.do(t, http.MethodGet, "/api/v1/screens/submissions?expert_id=1&limit=1", nil)
	if list := decode[[]submissionView](t, rec); len(list) != 1 {
		t.Fatalf("limit ignored: %+v", list)
	}
	for _, q := range []string{"", "?expert_id=abc", "?expert_id=1&limit=-2"} {
		if rec := f.do(t, http.MethodGet, "/api/v1/screens/submissions"+q, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestPointerRefusedWhileReloadFails(t *testing.T) {
	f := newFixture(t)
	id := f.openScreen(t)

	f.selectSlot(t, id, "2026-01-28T11:00:00", 30)
	f.failAppointments.Store(true)
	rec := f.do(t, http.MethodPost, "/api/v1/screens/timezone", map[string]any{"screen_id": id, "timezone": "Asia/Tokyo"})
	snap := decode[screenResponse](t, rec).Snapshot
	if snap.Loaded || snap.Candidate != nil || len(snap.Events) != 0 {
		t.Fatalf("failed reload must not keep the previous view: %+v", snap)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/screens/pointer", map[string]any{
		"screen_id": id, "type": "down", "segment_start": "2026-01-28T14:00:00", "segment_top": 100, "y": 100,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before a successful reload, got %d %s", rec.Code, rec.Body.String())
	}
	f.do(t, http.MethodPost, "/api/v1/screens/name", map[string]any{"screen_id": id, "name": "Roberta"})
	if rec := f.do(t, http.MethodPost, "/api/v1/screens/book", map[string]any{"screen_id": id}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for book, got %d", rec.Code)
	}
}
