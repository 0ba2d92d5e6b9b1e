package experts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Directory is the read side of the experts backend used by the listing pages.
type Directory interface {
	ListExperts(ctx context.Context) ([]Expert, error)
	GetExpert(ctx context.Context, id int64) (Expert, error)
}

// CachedDirectory is a read-through Redis cache in front of a Directory.
// Redis failures are logged and fall through to the backend.
type CachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedDirectory(next Directory, rdb *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) Directory {
	if rdb == nil {
		return next
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "experts"
	}
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

func (c *CachedDirectory) ListExperts(ctx context.Context) ([]Expert, error) {
	key := c.prefix + ":list"
	var out []Expert
	if c.get(ctx, key, &out) {
		return out, nil
	}
	out, err := c.next.ListExperts(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, out)
	return out, nil
}

func (c *CachedDirectory) GetExpert(ctx context.Context, id int64) (Expert, error) {
	key := c.prefix + ":expert:" + strconv.FormatInt(id, 10)
	var out Expert
	if c.get(ctx, key, &out) {
		return out, nil
	}
	out, err := c.next.GetExpert(ctx, id)
	if err != nil {
		return Expert{}, err
	}
	c.set(ctx, key, out)
	return out, nil
}

func (c *CachedDirectory) get(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("experts cache read failed", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.warn("experts cache entry corrupt", key, err)
		return false
	}
	return true
}

func (c *CachedDirectory) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warn("experts cache write failed", key, err)
	}
}

func (c *CachedDirectory) warn(msg, key string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, "key", key, "err", err)
	}
}
