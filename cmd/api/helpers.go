package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/database"
	"github.com/pwannenmacher/review-flow/internal/hierarchy"
	"github.com/pwannenmacher/review-flow/internal/logger"
	"github.com/pwannenmacher/review-flow/internal/reviewedit"
	"github.com/pwannenmacher/review-flow/internal/sealing"
)

func getContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// newSealer returns the Vault transit sealer when enabled, plaintext otherwise
func newSealer(ctx context.Context, cfg *config.VaultConfig) (sealing.Sealer, error) {
	if !cfg.Enabled {
		slog.Warn("Vault disabled, answers are stored unencrypted")
		return sealing.Plain{}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sealer, err := sealing.NewVaultSealer(initCtx, sealing.Config{
		Address:      cfg.Address,
		Token:        cfg.Token,
		TransitMount: cfg.TransitMount,
		KeyName:      cfg.KeyName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}
	slog.Info("Vault transit sealing enabled", "address", cfg.Address)
	return sealer, nil
}

// newHierarchyChecker decorates the SQL lookup with the redis cache when enabled.
// An unreachable redis only logs a warning since the cache falls through to SQL.
func newHierarchyChecker(ctx context.Context, db *sql.DB, cfg *config.RedisConfig) (hierarchy.Checker, func()) {
	checker := hierarchy.NewSQLChecker(db)
	if !cfg.Enabled {
		return checker, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis not reachable, hierarchy lookups go to the database", "addr", cfg.Addr, "error", err)
	} else {
		slog.Info("Hierarchy cache enabled", "addr", cfg.Addr, "ttl", cfg.TTL)
	}

	return hierarchy.NewCachedChecker(checker, rdb, cfg.TTL), func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	}
}

// newDispatcher runs review edits on Temporal when enabled and inline otherwise.
// The returned stop function shuts the worker and client down.
func newDispatcher(cfg *config.Config, steps *reviewedit.Steps) (reviewedit.Dispatcher, func(), error) {
	if !cfg.Temporal.Enabled {
		return reviewedit.NewInlineDispatcher(steps), func() {}, nil
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger.Component("temporal")),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	reviewedit.Register(w, steps)
	if err := w.Start(); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("failed to start temporal worker: %w", err)
	}
	slog.Info("Temporal worker started", "host_port", cfg.Temporal.HostPort, "task_queue", cfg.Temporal.TaskQueue)

	return reviewedit.NewTemporalDispatcher(c, cfg.Temporal.TaskQueue, cfg.Workflow.SagaMaxAttempts), func() {
		w.Stop()
		c.Close()
	}, nil
}

func healthHandler(cfg *config.Config, db *database.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(); err != nil {
			slog.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "database": "error"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "version": cfg.App.Version})
	}
}
