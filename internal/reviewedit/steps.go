// Package reviewedit coordinates answers the manager edits during the review
// meeting. An edit touches two records: the audit fact on the assignment and
// the answer value on the response. A persistent saga row drives both writes
// so an interrupted edit can be resumed.
package reviewedit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/models"
	"github.com/pwannenmacher/review-flow/internal/notify"
	"github.com/pwannenmacher/review-flow/internal/response"
	"github.com/pwannenmacher/review-flow/internal/sealing"
)

var (
	ErrSagaClosed   = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeReviewEditClosed, "review edit is already closed")
	ErrAuditMissing = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeReviewEditClosed, "review edit has not been audited")
)

// AssignmentStore loads and stores assignments with optimistic concurrency
type AssignmentStore interface {
	Load(ctx context.Context, id string) (*assignment.Assignment, error)
	Store(ctx context.Context, a *assignment.Assignment, expectedVersion int64) error
}

// ResponseStore loads and stores response records with optimistic concurrency
type ResponseStore interface {
	Load(ctx context.Context, assignmentID string) (*response.Response, error)
	Store(ctx context.Context, r *response.Response, expectedVersion int64) error
}

// SagaStore persists saga progress
type SagaStore interface {
	Create(ctx context.Context, s *models.ReviewEditSaga) error
	Get(ctx context.Context, editID string) (*models.ReviewEditSaga, error)
	UpdateStatus(ctx context.Context, editID string, status models.SagaStatus, lastError string) error
	RecordFailure(ctx context.Context, editID string, status models.SagaStatus, lastError string) error
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.ReviewEditSaga, error)
}

// RetryConfig bounds the retries of a single step
type RetryConfig struct {
	// InitialInterval is the first wait after a version conflict
	InitialInterval time.Duration
	// MaxElapsedTime caps the time spent retrying conflicts within one step
	MaxElapsedTime time.Duration
	// MaxAttempts is the number of failed runs after which a saga is given up
	MaxAttempts int
}

// DefaultRetryConfig mirrors the configuration defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 50 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
		MaxAttempts:     5,
	}
}

// Steps implements the saga steps. Every step is idempotent: it checks the
// edit id on the target record before mutating it.
type Steps struct {
	assignments AssignmentStore
	responses   ResponseStore
	sagas       SagaStore
	sealer      sealing.Sealer
	notifier    notify.Notifier
	retry       RetryConfig
}

// NewSteps creates the saga steps. A nil sealer stores answers in plaintext
// and a nil notifier drops failure notifications.
func NewSteps(assignments AssignmentStore, responses ResponseStore, sagas SagaStore, sealer sealing.Sealer, notifier notify.Notifier, retry RetryConfig) *Steps {
	if sealer == nil {
		sealer = sealing.Plain{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	return &Steps{
		assignments: assignments,
		responses:   responses,
		sagas:       sagas,
		sealer:      sealer,
		notifier:    notifier,
		retry:       retry,
	}
}

// RecordAudit writes the audit fact onto the assignment and moves the saga
// to audited. It runs before the answer value is written.
func (s *Steps) RecordAudit(ctx context.Context, editID string) error {
	saga, err := s.sagas.Get(ctx, editID)
	if err != nil {
		return err
	}
	switch saga.Status {
	case models.SagaAudited, models.SagaCompleted:
		return nil
	case models.SagaFailed:
		return ErrSagaClosed.With("review edit %s has failed", editID)
	}

	role, err := assignment.ParseParticipant(saga.OriginalRole)
	if err != nil {
		return err
	}
	answer, err := s.openAnswer(ctx, saga)
	if err != nil {
		return err
	}

	err = s.retryConflicts(ctx, func() error {
		a, err := s.assignments.Load(ctx, saga.AssignmentID)
		if err != nil {
			return err
		}
		if a.HasReviewEdit(editID) {
			return nil
		}
		if err := a.EditAnswerAsManagerDuringReview(editID, saga.SectionID, saga.QuestionID, role, answer, saga.EditorID); err != nil {
			return err
		}
		return s.assignments.Store(ctx, a, a.PersistedVersion())
	})
	if err != nil {
		return err
	}
	return s.sagas.UpdateStatus(ctx, editID, models.SagaAudited, "")
}

// ApplyAnswer writes the edited answer onto the response record
func (s *Steps) ApplyAnswer(ctx context.Context, editID string) error {
	saga, err := s.sagas.Get(ctx, editID)
	if err != nil {
		return err
	}
	switch saga.Status {
	case models.SagaCompleted:
		return nil
	case models.SagaFailed:
		return ErrSagaClosed.With("review edit %s has failed", editID)
	case models.SagaPending:
		return ErrAuditMissing.With("review edit %s has not been audited", editID)
	}

	role, err := assignment.ParseParticipant(saga.OriginalRole)
	if err != nil {
		return err
	}
	answer, err := s.openAnswer(ctx, saga)
	if err != nil {
		return err
	}

	return s.retryConflicts(ctx, func() error {
		r, err := s.responses.Load(ctx, saga.AssignmentID)
		if err != nil {
			return err
		}
		if r.HasAppliedEdit(editID) {
			return nil
		}
		expected := r.Version
		if err := r.ApplyReviewEdit(editID, saga.SectionID, saga.QuestionID, role, answer, saga.EditorID); err != nil {
			return err
		}
		return s.responses.Store(ctx, r, expected)
	})
}

// Complete closes the saga
func (s *Steps) Complete(ctx context.Context, editID string) error {
	saga, err := s.sagas.Get(ctx, editID)
	if err != nil {
		return err
	}
	switch saga.Status {
	case models.SagaCompleted:
		return nil
	case models.SagaFailed:
		return ErrSagaClosed.With("review edit %s has failed", editID)
	case models.SagaPending:
		return ErrAuditMissing.With("review edit %s has not been audited", editID)
	}
	if err := s.sagas.UpdateStatus(ctx, editID, models.SagaCompleted, ""); err != nil {
		return err
	}
	slog.Info("Review edit completed", "edit_id", editID, "assignment_id", saga.AssignmentID)
	return nil
}

// Fail marks the saga failed and notifies about it
func (s *Steps) Fail(ctx context.Context, editID string, cause error) error {
	saga, err := s.sagas.Get(ctx, editID)
	if err != nil {
		return err
	}
	if saga.Status.IsTerminal() {
		return nil
	}
	if err := s.sagas.RecordFailure(ctx, editID, models.SagaFailed, cause.Error()); err != nil {
		return err
	}
	slog.Warn("Review edit failed", "edit_id", editID, "assignment_id", saga.AssignmentID, "error", cause)

	if err := s.notifier.Notify(ctx, notify.Notification{
		Kind:         notify.KindReviewEditFailed,
		AssignmentID: saga.AssignmentID,
		By:           saga.EditorID,
		Reason:       apperrors.PublicMessage(cause),
	}); err != nil {
		slog.Error("Failed to send notification", "edit_id", editID, "error", err)
	}
	return nil
}

// Run executes all steps in order. Business rule failures and exhausted
// attempts mark the saga failed; other failures leave it for recovery.
func (s *Steps) Run(ctx context.Context, editID string) error {
	for _, step := range []func(context.Context, string) error{s.RecordAudit, s.ApplyAnswer, s.Complete} {
		if err := step(ctx, editID); err != nil {
			return s.handleFailure(ctx, editID, err)
		}
	}
	return nil
}

func (s *Steps) handleFailure(ctx context.Context, editID string, cause error) error {
	if apperrors.CodeOf(cause) == apperrors.CodeSagaNotFound {
		return cause
	}
	if !apperrors.Retryable(cause) {
		if err := s.Fail(ctx, editID, cause); err != nil {
			slog.Error("Failed to mark review edit failed", "edit_id", editID, "error", err)
		}
		return cause
	}

	saga, err := s.sagas.Get(ctx, editID)
	if err != nil {
		return cause
	}
	if saga.Attempts+1 >= s.retry.MaxAttempts {
		if err := s.Fail(ctx, editID, cause); err != nil {
			slog.Error("Failed to mark review edit failed", "edit_id", editID, "error", err)
		}
		return cause
	}
	if err := s.sagas.RecordFailure(ctx, editID, saga.Status, cause.Error()); err != nil {
		slog.Error("Failed to record review edit attempt", "edit_id", editID, "error", err)
	}
	return cause
}

// retryConflicts reruns op while it fails with a version conflict
func (s *Steps) retryConflicts(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if s.retry.InitialInterval > 0 {
		b.InitialInterval = s.retry.InitialInterval
	}
	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if s.retry.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(s.retry.MaxElapsedTime))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !apperrors.IsKind(err, apperrors.KindConflict) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (s *Steps) openAnswer(ctx context.Context, saga *models.ReviewEditSaga) (string, error) {
	raw, err := s.sealer.Open(ctx, []byte(saga.Answer), saga.AssignmentID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternal, "failed to open review edit answer", err)
	}
	return string(raw), nil
}
