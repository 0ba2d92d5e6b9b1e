package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/expertbook/libs/otel"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/events"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/experts"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/screen"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/storage"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
)

// ScreenFactory builds a screen for an expert seen from timezone.
type ScreenFactory func(expertID int64, timezone string) (*screen.Screen, error)

type SubmissionLog interface {
	Record(ctx context.Context, s storage.Submission) (string, error)
	ListByExpert(ctx context.Context, expertID int64, limit int) ([]storage.Submission, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, s events.Submission) error
}

type Options struct {
	// Submissions and Events are optional.
	Submissions SubmissionLog
	Events      EventPublisher
}

type ScreenHandler struct {
	registry  *screen.Registry
	directory experts.Directory
	newScreen ScreenFactory
	logger    *slog.Logger
	opts      Options
}

func NewScreenHandler(registry *screen.Registry, directory experts.Directory, factory ScreenFactory, logger *slog.Logger, opts Options) *ScreenHandler {
	return &ScreenHandler{
		registry:  registry,
		directory: directory,
		newScreen: factory,
		logger:    logger,
		opts:      opts,
	}
}

func (h *ScreenHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/experts", h.ListExperts)
	mux.HandleFunc("/api/v1/experts/detail", h.ExpertDetail)
	mux.HandleFunc("/api/v1/screens", h.Create)
	mux.HandleFunc("/api/v1/screens/snapshot", h.Snapshot)
	mux.HandleFunc("/api/v1/screens/timezone", h.Timezone)
	mux.HandleFunc("/api/v1/screens/day", h.Day)
	mux.HandleFunc("/api/v1/screens/pointer", h.Pointer)
	mux.HandleFunc("/api/v1/screens/name", h.Name)
	mux.HandleFunc("/api/v1/screens/book", h.Book)
	mux.HandleFunc("/api/v1/screens/close", h.Close)
	mux.HandleFunc("/api/v1/screens/submissions", h.Submissions)
}

type createScreenRequest struct {
	ExpertID int64  `json:"expert_id"`
	Timezone string `json:"timezone"`
}

type screenResponse struct {
	ScreenID string       `json:"screen_id"`
	Snapshot snapshotView `json:"snapshot"`
}

type timezoneRequest struct {
	ScreenID string `json:"screen_id"`
	Timezone string `json:"timezone"`
}

type dayRequest struct {
	ScreenID string `json:"screen_id"`
	Date     string `json:"date"`
}

type pointerRequest struct {
	ScreenID     string  `json:"screen_id"`
	Type         string  `json:"type"`
	SegmentStart string  `json:"segment_start"`
	SegmentTop   float64 `json:"segment_top"`
	Y            float64 `json:"y"`
}

type pointerResponse struct {
	Accepted bool         `json:"accepted"`
	Snapshot snapshotView `json:"snapshot"`
}

type nameRequest struct {
	ScreenID string `json:"screen_id"`
	Name     string `json:"name"`
}

type screenIDRequest struct {
	ScreenID string `json:"screen_id"`
}

type bookResponse struct {
	Message      string       `json:"message"`
	SubmissionID string       `json:"submission_id,omitempty"`
	Snapshot     snapshotView `json:"snapshot"`
}

func (h *ScreenHandler) ListExperts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := h.directory.ListExperts(r.Context())
	if err != nil {
		h.logger.Error("list experts failed", "err", err)
		http.Error(w, "experts service unavailable", http.StatusBadGateway)
		return
	}
	if list == nil {
		list = []experts.Expert{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ScreenHandler) ExpertDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	expert, err := h.directory.GetExpert(r.Context(), id)
	if err != nil {
		var apiErr *experts.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			http.Error(w, "expert not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get expert failed", "expert_id", id, "err", err)
		http.Error(w, "experts service unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, expert)
}

func (h *ScreenHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.ExpertID <= 0 {
		http.Error(w, "missing expert_id", http.StatusBadRequest)
		return
	}
	if _, err := workhours.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	s, err := h.newScreen(req.ExpertID, req.Timezone)
	if err != nil {
		h.logger.Error("create screen failed", "expert_id", req.ExpertID, "err", err)
		http.Error(w, "failed to create screen", http.StatusInternalServerError)
		return
	}
	id := h.registry.Add(s)
	// A failed load is reported in the snapshot; the visitor can retry by reloading.
	if err := s.Load(r.Context()); err != nil {
		h.logger.Warn("screen load failed", "screen_id", id, "expert_id", req.ExpertID, "err", err)
	}
	writeJSON(w, http.StatusCreated, screenResponse{ScreenID: id, Snapshot: toSnapshotView(s.Snapshot())})
}

func (h *ScreenHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("screen_id")
	s, ok := h.registry.Get(id)
	if !ok {
		http.Error(w, "screen not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, screenResponse{ScreenID: id, Snapshot: toSnapshotView(s.Snapshot())})
}

func (h *ScreenHandler) Timezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	s, ok := h.decodeForScreen(w, r, &req, func() string { return req.ScreenID })
	if !ok {
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if _, err := workhours.LoadLocation(req.Timezone); err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}
	if err := s.ChangeTimezone(r.Context(), req.Timezone); err != nil {
		h.logger.Warn("screen reload failed", "screen_id", req.ScreenID, "timezone", req.Timezone, "err", err)
	}
	writeJSON(w, http.StatusOK, screenResponse{ScreenID: req.ScreenID, Snapshot: toSnapshotView(s.Snapshot())})
}

func (h *ScreenHandler) Day(w http.ResponseWriter, r *http.Request) {
	var req dayRequest
	s, ok := h.decodeForScreen(w, r, &req, func() string { return req.ScreenID })
	if !ok {
		return
	}
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if err := s.ChangeDay(r.Context(), day); err != nil {
		h.logger.Warn("screen reload failed", "screen_id", req.ScreenID, "err", err)
	}
	writeJSON(w, http.StatusOK, screenResponse{ScreenID: req.ScreenID, Snapshot: toSnapshotView(s.Snapshot())})
}

func (h *ScreenHandler) Pointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	s, ok := h.decodeForScreen(w, r, &req, func() string { return req.ScreenID })
	if !ok {
		return
	}

	var (
		accepted bool
		err      error
	)
	switch req.Type {
	case "down":
		start, perr := timemath.ParseNaive(strings.TrimSpace(req.SegmentStart))
		if perr != nil {
			http.Error(w, "invalid segment_start", http.StatusBadRequest)
			return
		}
		accepted, err = s.PointerDown(drag.Segment{Start: start, Top: req.SegmentTop}, drag.Pointer{Y: req.Y})
	case "move":
		accepted, err = s.PointerMove(drag.Pointer{Y: req.Y})
	case "up":
		err = s.PointerUp()
		accepted = err == nil
	default:
		http.Error(w, "type must be down, move or up", http.StatusBadRequest)
		return
	}
	if errors.Is(err, screen.ErrNotLoaded) || errors.Is(err, screen.ErrBookingInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "pointer event failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pointerResponse{Accepted: accepted, Snapshot: toSnapshotView(s.Snapshot())})
}

func (h *ScreenHandler) Name(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	s, ok := h.decodeForScreen(w, r, &req, func() string { return req.ScreenID })
	if !ok {
		return
	}
	if err := s.SetDisplayName(req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, screenResponse{ScreenID: req.ScreenID, Snapshot: toSnapshotView(s.Snapshot())})
}

func (h *ScreenHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req screenIDRequest
	s, ok := h.decodeForScreen(w, r, &req, func() string { return req.ScreenID })
	if !ok {
		return
	}

	ctx := r.Context()
	receipt, err := s.Book(ctx)
	var rejection *screen.SubmissionError
	switch {
	case errors.Is(err, screen.ErrDraftInvalid):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, screen.ErrBookingInProgress), errors.Is(err, screen.ErrNotLoaded):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil && !errors.As(err, &rejection):
		h.logger.Error("book failed", "screen_id", req.ScreenID, "err", err)
		http.Error(w, "booking failed", http.StatusInternalServerError)
		return
	}

	submissionID := h.recordSubmission(ctx, req.ScreenID, receipt, rejection == nil)
	resp := bookResponse{
		Message:      receipt.Message,
		SubmissionID: submissionID,
		Snapshot:     toSnapshotView(s.Snapshot()),
	}
	if rejection != nil {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ScreenHandler) Close(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req screenIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if !h.registry.Remove(req.ScreenID) {
		http.Error(w, "screen not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submissionView struct {
	ID              string `json:"id"`
	ScreenID        string `json:"screen_id"`
	ExpertID        int64  `json:"expert_id"`
	UserName        string `json:"user_name"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Timezone        string `json:"timezone"`
	Accepted        bool   `json:"accepted"`
	Message         string `json:"message"`
	CreatedAt       string `json:"created_at"`
}

// Submissions lists the latest booking attempts recorded for an expert.
func (h *ScreenHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.Submissions == nil {
		http.Error(w, "submission log not configured", http.StatusNotImplemented)
		return
	}
	expertID, err := strconv.ParseInt(r.URL.Query().Get("expert_id"), 10, 64)
	if err != nil || expertID <= 0 {
		http.Error(w, "expert_id is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	subs, err := h.opts.Submissions.ListByExpert(r.Context(), expertID, limit)
	if err != nil {
		h.logger.Error("list submissions failed", "expert_id", expertID, "err", err)
		http.Error(w, "failed to list submissions", http.StatusInternalServerError)
		return
	}
	out := make([]submissionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, submissionView{
			ID:              s.ID,
			ScreenID:        s.ScreenID,
			ExpertID:        s.ExpertID,
			UserName:        s.UserName,
			StartsAt:        s.StartsAt.UTC().Format(time.RFC3339),
			DurationMinutes: s.DurationMinutes,
			Timezone:        s.Timezone,
			Accepted:        s.Accepted,
			Message:         s.Message,
			CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// recordSubmission logs and announces a booking attempt. Failures are logged only; the
// visitor's outcome does not depend on them.
func (h *ScreenHandler) recordSubmission(ctx context.Context, screenID string, receipt screen.Receipt, accepted bool) string {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	sub := storage.Submission{
		ScreenID:        screenID,
		ExpertID:        receipt.Request.ExpertID,
		UserName:        receipt.Request.UserName,
		StartsAt:        receipt.Request.StartsAt,
		DurationMinutes: receipt.Request.DurationMinutes,
		Timezone:        receipt.Request.Timezone,
		Accepted:        accepted,
		Message:         receipt.Message,
		Traceparent:     traceparent,
		Tracestate:      tracestate,
	}

	if h.opts.Submissions != nil {
		id, err := h.opts.Submissions.Record(ctx, sub)
		if err != nil {
			h.logger.Error("record submission failed", "screen_id", screenID, "err", err)
		} else {
			sub.ID = id
		}
	}
	if h.opts.Events != nil {
		err := h.opts.Events.Publish(ctx, events.Submission{
			SubmissionID:    sub.ID,
			ScreenID:        screenID,
			ExpertID:        sub.ExpertID,
			UserName:        sub.UserName,
			StartsAt:        sub.StartsAt,
			DurationMinutes: sub.DurationMinutes,
			Timezone:        sub.Timezone,
			Accepted:        accepted,
			Message:         sub.Message,
		})
		if err != nil {
			h.logger.Error("publish submission failed", "screen_id", screenID, "err", err)
		}
	}
	return sub.ID
}

// decodeForScreen enforces POST, decodes the body into dst and resolves the screen id.
func (h *ScreenHandler) decodeForScreen(w http.ResponseWriter, r *http.Request, dst any, screenID func() string) (*screen.Screen, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return nil, false
	}
	s, ok := h.registry.Get(screenID())
	if !ok {
		http.Error(w, "screen not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
