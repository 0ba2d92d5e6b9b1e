package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/md-rashed-zaman/expertbook/libs/db"
)

// Runs against a real Postgres when TEST_DATABASE_URL is set.
func TestSubmissionRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.Options{MaxConns: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pool.Close()

	repo := NewSubmissionRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	expertID := time.Now().UnixNano()
	start := time.Date(2026, 1, 28, 14, 0, 0, 0, time.UTC)
	id, err := repo.Record(ctx, Submission{
		ScreenID:        "screen-1",
		ExpertID:        expertID,
		UserName:        "Roberta",
		StartsAt:        start,
		DurationMinutes: 30,
		Timezone:        "Europe/London",
		Accepted:        false,
		Message:         "The expert is busy at that time",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	list, err := repo.ListByExpert(ctx, expertID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Accepted || !list[0].StartsAt.Equal(start) {
		t.Fatalf("unexpected submissions %+v", list)
	}
}
