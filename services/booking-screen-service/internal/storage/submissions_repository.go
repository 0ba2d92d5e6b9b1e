package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/expertbook/libs/db"
)

// Submission is one booking attempt made from a screen, accepted or not.
type Submission struct {
	ID              string
	ScreenID        string
	ExpertID        int64
	UserName        string
	StartsAt        time.Time
	DurationMinutes int
	Timezone        string
	Accepted        bool
	Message         string
	Traceparent     string
	Tracestate      string
	CreatedAt       time.Time
}

type SubmissionRepository struct {
	pool *db.Pool
}

func NewSubmissionRepository(pool *db.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS booking_submissions (
	id               UUID PRIMARY KEY,
	screen_id        TEXT NOT NULL,
	expert_id        BIGINT NOT NULL,
	user_name        TEXT NOT NULL,
	starts_at        TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL,
	timezone         TEXT NOT NULL DEFAULT '',
	accepted         BOOLEAN NOT NULL,
	message          TEXT NOT NULL DEFAULT '',
	traceparent      TEXT NOT NULL DEFAULT '',
	tracestate       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS booking_submissions_expert_idx
	ON booking_submissions (expert_id, created_at DESC);
`

func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Record stores s and returns its id. An empty ID is assigned a new uuid.
func (r *SubmissionRepository) Record(ctx context.Context, s Submission) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_submissions
			(id, screen_id, expert_id, user_name, starts_at, duration_minutes, timezone, accepted, message, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.ScreenID, s.ExpertID, s.UserName, s.StartsAt, s.DurationMinutes, s.Timezone,
		s.Accepted, s.Message, s.Traceparent, s.Tracestate)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

func (r *SubmissionRepository) ListByExpert(ctx context.Context, expertID int64, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, screen_id, expert_id, user_name, starts_at, duration_minutes, timezone,
			accepted, message, traceparent, tracestate, created_at
		FROM booking_submissions
		WHERE expert_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, expertID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(
			&s.ID,
			&s.ScreenID,
			&s.ExpertID,
			&s.UserName,
			&s.StartsAt,
			&s.DurationMinutes,
			&s.Timezone,
			&s.Accepted,
			&s.Message,
			&s.Traceparent,
			&s.Tracestate,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
