package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"indor_desk/internal/adapters"
	"indor_desk/internal/auth"
	"indor_desk/internal/auth/ratelimit"
	"indor_desk/internal/clients"
	"indor_desk/internal/events"
	apphttp "indor_desk/internal/http"
	"indor_desk/internal/http/router"
	"indor_desk/internal/notification"
	"indor_desk/internal/workflow"
	"indor_desk/migrations"
	"indor_desk/platform/config"
	"indor_desk/platform/db"
	"indor_desk/platform/httpkit"
	"indor_desk/platform/logger"
	"indor_desk/platform/metrics"
	"indor_desk/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if cfg.GetAutoMigrate() {
		var applied int
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			n, err := db.RunMigrations(ctx, cfg, migrations.FS)
			applied = n
			return err
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete", "applied", applied)
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	metricsRegistry := metrics.New()

	loginLimiter, closeLimiter := initLoginLimiter(ctx, cfg, log)
	defer closeLimiter()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	workflowModule := workflow.NewModule(pool, eventBus, val, log, metricsRegistry)
	roadmapReader := adapters.NewClientRoadmapReader(workflowModule.Service())
	clientsModule := clients.NewModule(pool, roadmapReader, eventBus, val, cfg, log)
	authModule := auth.NewModule(pool, cfg, loginLimiter, eventBus, val, log)

	notificationModule := notification.New(log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.SSE().Close()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:          cfg,
		Logger:          log,
		Health:          db.NewPoolAdapter(pool),
		AuthRateLimiter: httpkit.NewIPRateLimiter(rate.Every(time.Second), 10, log),
		Modules: []apphttp.Module{
			authModule,
			workflowModule,
			clientsModule,
			notificationModule,
		},
	}
	if cfg.GetMetricsEnabled() {
		app.Metrics = metricsRegistry
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Streams never finish on their own, so close them before Shutdown waits.
		notificationModule.SSE().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initLoginLimiter(ctx context.Context, cfg config.RateLimitConfig, log *logger.Logger) (ratelimit.Limiter, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; login rate limiting is per process")
		return ratelimit.NewMemoryLimiter(cfg.GetLoginMaxAttempts(), cfg.GetLoginWindow()), func() {}
	}

	limiter, err := ratelimit.NewRedisLimiter(cfg.GetRedisURL(), cfg.GetLoginMaxAttempts(), cfg.GetLoginWindow())
	if err == nil {
		err = limiter.Ping(ctx)
	}
	if err != nil {
		log.Error("redis unavailable; falling back to in-memory login limiter", "error", err)
		if limiter != nil {
			_ = limiter.Close()
		}
		return ratelimit.NewMemoryLimiter(cfg.GetLoginMaxAttempts(), cfg.GetLoginWindow()), func() {}
	}

	log.Info("login rate limiter backed by redis")
	return limiter, func() { _ = limiter.Close() }
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * baseDelay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
