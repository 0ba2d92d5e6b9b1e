package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/expertbook/libs/config"
	"github.com/md-rashed-zaman/expertbook/libs/db"
	"github.com/md-rashed-zaman/expertbook/libs/grpcx"
	"github.com/md-rashed-zaman/expertbook/libs/httpx"
	"github.com/md-rashed-zaman/expertbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/expertbook/libs/otel"
	"github.com/md-rashed-zaman/expertbook/libs/runtime"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/events"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/experts"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/handlers"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/screen"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/storage"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-screen-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)
	settings, err := loadSettings()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck
	opts := handlers.Options{}

	if settings.databaseURL != "" {
		pool, err := db.Open(ctx, settings.databaseURL, db.Options{})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		repo := storage.NewSubmissionRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("db schema setup failed", "err", err)
			panic(err)
		}
		opts.Submissions = repo
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	} else {
		logger.Warn("submission log disabled (DATABASE_URL not set)")
	}

	var rdb *redis.Client
	if settings.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: settings.redisAddr})
		defer rdb.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	if len(settings.kafkaBrokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(settings.kafkaBrokers)})
	}
	if publisher := events.NewPublisher(settings.kafkaBrokers, logger); publisher != nil {
		defer publisher.Close()
		opts.Events = publisher
	}

	client := experts.NewClient(settings.expertsURL, settings.expertsTimeout)
	directory := experts.NewCachedDirectory(client, rdb, settings.expertsCacheTTL, "experts", logger)
	clock := workhours.NewClock()

	factory := func(expertID int64, timezone string) (*screen.Screen, error) {
		return screen.New(screen.Config{
			ExpertID:         expertID,
			Timezone:         timezone,
			ResolvedTimezone: settings.resolvedTimezone,
			Precision:        settings.precision,
			WeekStartsOn:     settings.weekStartsOn,
			Clock:            clock,
			Source:           client,
			Submitter:        client,
			Logger:           logger,
		})
	}
	registry := screen.NewRegistry(settings.screenIdle, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewScreenHandler(registry, directory, factory, logger, opts).Register(mux)

	var limiter httpx.Limiter
	if rdb != nil {
		limiter = httpx.NewRedisLimiter(rdb, settings.rateLimit, settings.rateWindow, "rl:booking-screen")
	} else {
		bucket := httpx.NewTokenBucketLimiter(settings.rateLimit, settings.rateWindow)
		limiter = bucket
		go sweepEvery(ctx, settings.rateWindow, func() { bucket.Sweep() })
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.BrowserPolicy(settings.corsOrigins)),
		httpx.RateLimit(limiter, logger, settings.rateFailOpen),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking-screen")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer := grpcx.NewHealthServer(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		grpcx.WatchReadiness(gctx, healthServer, service, 10*time.Second, checks)
		return nil
	})
	g.Go(func() error {
		return grpcx.Serve(gctx, grpcServer, ":"+grpcPort, logger)
	})
	g.Go(func() error {
		return runtime.ServeHTTP(gctx, srv, logger, 10*time.Second)
	})
	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "err", err)
	}
}

func sweepEvery(ctx context.Context, every time.Duration, sweep func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
