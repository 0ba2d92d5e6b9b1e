package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/expertbook/libs/config"
	"github.com/md-rashed-zaman/expertbook/libs/kafkax"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
)

type settings struct {
	expertsURL       string
	expertsTimeout   time.Duration
	expertsCacheTTL  time.Duration
	resolvedTimezone string
	precision        int
	weekStartsOn     time.Weekday
	screenIdle       time.Duration

	databaseURL  string
	redisAddr    string
	kafkaBrokers []string

	corsOrigins  []string
	rateLimit    int
	rateWindow   time.Duration
	rateFailOpen bool
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	if s.expertsURL, err = config.RequiredString("EXPERTS_API_URL"); err != nil {
		return s, err
	}
	if s.expertsTimeout, err = config.Duration("EXPERTS_API_TIMEOUT", 5*time.Second); err != nil {
		return s, err
	}
	if s.expertsCacheTTL, err = config.Duration("EXPERTS_CACHE_TTL", time.Minute); err != nil {
		return s, err
	}
	s.resolvedTimezone = config.String("RESOLVED_TIMEZONE", "")
	if _, err := workhours.LoadLocation(s.resolvedTimezone); err != nil {
		return s, fmt.Errorf("RESOLVED_TIMEZONE: %w", err)
	}
	if s.precision, err = config.Int("SLOT_PRECISION_MINUTES", drag.DefaultPrecision); err != nil {
		return s, err
	}
	if s.precision <= 0 || 60%s.precision != 0 {
		return s, fmt.Errorf("SLOT_PRECISION_MINUTES must divide 60 (got %d)", s.precision)
	}
	if s.weekStartsOn, err = parseWeekday(config.String("WEEK_STARTS_ON", "sunday")); err != nil {
		return s, err
	}
	if s.screenIdle, err = config.Duration("SCREEN_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return s, err
	}

	s.databaseURL = config.String("DATABASE_URL", "")
	s.redisAddr = config.String("REDIS_ADDR", "")
	s.kafkaBrokers = kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))

	s.corsOrigins = config.List("CORS_ALLOWED_ORIGINS")
	if s.rateLimit, err = config.Int("RATE_LIMIT_REQUESTS", 600); err != nil {
		return s, err
	}
	if s.rateWindow, err = config.Duration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return s, err
	}
	s.rateFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	return s, nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(raw)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("WEEK_STARTS_ON must be a weekday name (got %q)", raw)
}
