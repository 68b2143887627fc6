package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pwannenmacher/review-flow/internal/auth"
	"github.com/pwannenmacher/review-flow/internal/authz"
	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/database"
	"github.com/pwannenmacher/review-flow/internal/handlers"
	"github.com/pwannenmacher/review-flow/internal/logger"
	"github.com/pwannenmacher/review-flow/internal/middleware"
	"github.com/pwannenmacher/review-flow/internal/notify"
	"github.com/pwannenmacher/review-flow/internal/repository"
	"github.com/pwannenmacher/review-flow/internal/reviewedit"
	"github.com/pwannenmacher/review-flow/internal/scheduler"
	"github.com/pwannenmacher/review-flow/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Setup(logger.Config{Level: cfg.Log.Level, Service: cfg.App.Name, Env: cfg.App.Env})
	slog.Info("Starting review-flow", "env", cfg.App.Env, "version", cfg.App.Version, "log_level", logger.GetLevel(cfg.Log.Level))

	if err := run(cfg); err != nil {
		slog.Error("Server terminated", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("Database connection established", "driver", db.Driver)

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("Database migrations completed")
	}

	sealer, err := newSealer(ctx, &cfg.Vault)
	if err != nil {
		return err
	}

	checker, closeCache := newHierarchyChecker(ctx, db.DB, &cfg.Redis)
	defer closeCache()

	assignments := repository.NewAssignmentRepository(db.DB, sealer)
	responses := repository.NewResponseRepository(db.DB, sealer)
	sagas := repository.NewSagaRepository(db.DB)
	notifier := notify.NewLogNotifier(nil)

	steps := reviewedit.NewSteps(assignments, responses, sagas, sealer, notifier, reviewedit.RetryConfig{
		InitialInterval: cfg.Workflow.SagaRetryBackoff,
		MaxElapsedTime:  cfg.Workflow.SagaRetryMaxTime,
		MaxAttempts:     cfg.Workflow.SagaMaxAttempts,
	})
	dispatcher, stopWorker, err := newDispatcher(cfg, steps)
	if err != nil {
		return err
	}
	defer stopWorker()

	coordinator := reviewedit.NewCoordinator(sagas, sealer, dispatcher)

	svc := service.NewAssignmentService(service.Dependencies{
		Assignments:     assignments,
		Employees:       repository.NewEmployeeRepository(db.DB),
		Feedback:        repository.NewFeedbackRepository(db.DB),
		Guard:           authz.NewGuard(checker),
		ReviewEdits:     coordinator,
		Notifier:        notifier,
		BulkConcurrency: cfg.Workflow.BulkConcurrency,
	})

	tokens := auth.NewService(&cfg.JWT)
	authMw := middleware.NewAuthMiddleware(tokens)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	mux := http.NewServeMux()
	handlers.NewAssignmentHandler(svc).Routes(mux, handlers.NewHistoryHandler(svc), func(next http.Handler) http.Handler {
		// The limiter runs after authentication so that it can key on the caller.
		return authMw.Authenticate(rateLimiter.Limit(next))
	})
	mux.HandleFunc("GET /health", healthHandler(cfg, db))

	handler := middleware.Chain(mux, middleware.SecurityHeaders, middleware.LoggingMiddleware)

	sched := scheduler.NewScheduler(coordinator, &cfg.Scheduler)
	sched.Start()
	defer sched.Stop()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server shutting down")

	shutdownCtx, cancel := getContext(30 * time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}
