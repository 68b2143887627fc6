package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pwannenmacher/review-flow/internal/config"
)

// sagaBatchSize bounds the sagas resumed per run
const sagaBatchSize = 100

// SagaResumer dispatches review edits that were left unfinished
type SagaResumer interface {
	ResumePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	resumer  SagaResumer
	config   *config.SchedulerConfig
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(resumer SagaResumer, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		resumer:  resumer,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"enabled", s.config.Enabled,
		"saga_recovery_interval", s.config.SagaRecoveryEvery,
		"saga_stale_after", s.config.SagaStaleAfter)

	if !s.config.Enabled {
		return
	}

	s.wg.Add(1)
	go s.scheduleIntervalTask(s.config.SagaRecoveryEvery, "saga_recovery", s.resumeSagas)

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

// scheduleIntervalTask runs a task at regular intervals
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func(context.Context)) {
	defer s.wg.Done()
	slog.Info("Starting interval task", "task", taskName, "interval", interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	slog.Debug("Running interval task", "task", taskName)
	task(ctx)

	for {
		select {
		case <-ticker.C:
			slog.Debug("Running interval task", "task", taskName)
			task(ctx)
		case <-s.stopChan:
			return
		}
	}
}

// resumeSagas hands stale review edits back to their dispatcher
func (s *Scheduler) resumeSagas(ctx context.Context) {
	resumed, err := s.resumer.ResumePending(ctx, s.config.SagaStaleAfter, sagaBatchSize)
	if err != nil {
		slog.Error("Failed to resume review edits", "error", err)
		return
	}
	if resumed > 0 {
		slog.Info("Review edits resumed", "count", resumed)
	}
}
