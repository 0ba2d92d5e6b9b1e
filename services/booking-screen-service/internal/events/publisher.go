// Package events announces booking submissions on Kafka.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/expertbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const (
	TopicSubmissionAccepted = "booking.submission.accepted.v1"
	TopicSubmissionRejected = "booking.submission.rejected.v1"
)

// Submission is the payload of both submission topics.
type Submission struct {
	SubmissionID    string    `json:"submission_id"`
	ScreenID        string    `json:"screen_id"`
	ExpertID        int64     `json:"expert_id"`
	UserName        string    `json:"user_name"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone,omitempty"`
	Accepted        bool      `json:"accepted"`
	Message         string    `json:"message,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (s Submission) Topic() string {
	if s.Accepted {
		return TopicSubmissionAccepted
	}
	return TopicSubmissionRejected
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher returns nil when no brokers are configured; a nil Publisher drops events.
func NewPublisher(brokers []string, logger *slog.Logger) *Publisher {
	if len(brokers) == 0 {
		if logger != nil {
			logger.Warn("submission events disabled (no kafka brokers configured)")
		}
		return nil
	}
	return newPublisher(kafkax.NewWriter(brokers), logger)
}

func newPublisher(w messageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, s Submission) error {
	if p == nil {
		return nil
	}
	if s.SubmissionID == "" {
		s.SubmissionID = uuid.NewString()
	}
	if s.OccurredAt.IsZero() {
		s.OccurredAt = p.now().UTC()
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: s.Topic(),
		Key:   []byte(strconv.FormatInt(s.ExpertID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(s.SubmissionID)},
			{Key: "event_type", Value: []byte(s.Topic())},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish submission event failed", "topic", msg.Topic, "expert_id", s.ExpertID, "err", err)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
