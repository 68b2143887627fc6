package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pwannenmacher/review-flow/internal/config"
)

type countingResumer struct {
	calls     atomic.Int32
	staleSeen atomic.Int64
	err       error
}

func (c *countingResumer) ResumePending(_ context.Context, staleAfter time.Duration, limit int) (int, error) {
	c.calls.Add(1)
	c.staleSeen.Store(int64(staleAfter))
	if limit != sagaBatchSize {
		return 0, errors.New("unexpected limit")
	}
	return 1, c.err
}

func TestSchedulerRunsSagaRecovery(t *testing.T) {
	resumer := &countingResumer{}
	s := NewScheduler(resumer, &config.SchedulerConfig{
		Enabled:           true,
		SagaRecoveryEvery: 10 * time.Millisecond,
		SagaStaleAfter:    time.Minute,
	})
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for resumer.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if got := resumer.calls.Load(); got < 3 {
		t.Fatalf("Expected at least 3 recovery runs, got %d", got)
	}
	if got := time.Duration(resumer.staleSeen.Load()); got != time.Minute {
		t.Errorf("Expected stale threshold of 1m, got %v", got)
	}

	after := resumer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if resumer.calls.Load() != after {
		t.Error("Expected no runs after Stop")
	}
}

func TestSchedulerDisabled(t *testing.T) {
	resumer := &countingResumer{}
	s := NewScheduler(resumer, &config.SchedulerConfig{Enabled: false, SagaRecoveryEvery: time.Millisecond})
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if resumer.calls.Load() != 0 {
		t.Errorf("Expected no runs while disabled, got %d", resumer.calls.Load())
	}
}

func TestSchedulerSurvivesResumeErrors(t *testing.T) {
	resumer := &countingResumer{err: errors.New("database unavailable")}
	s := NewScheduler(resumer, &config.SchedulerConfig{Enabled: true, SagaRecoveryEvery: 5 * time.Millisecond})
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for resumer.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if resumer.calls.Load() < 2 {
		t.Errorf("Expected the task to keep running after an error")
	}
}
