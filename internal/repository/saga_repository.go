package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pwannenmacher/review-flow/internal/models"
)

// SagaRepository persists review edit sagas
type SagaRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSagaRepository creates a new saga repository
func NewSagaRepository(db *sql.DB) *SagaRepository {
	return &SagaRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new saga in status pending. A second saga with the same
// edit id fails with a conflict.
func (r *SagaRepository) Create(ctx context.Context, s *models.ReviewEditSaga) error {
	now := r.now()
	s.Status = models.SagaPending
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
		INSERT INTO review_edit_sagas
			(edit_id, assignment_id, section_id, question_id, original_role, editor_id, answer, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, '', $9, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.EditID, s.AssignmentID, s.SectionID, s.QuestionID, s.OriginalRole, s.EditorID,
		s.Answer, string(s.Status), now,
	)
	if isUniqueViolation(err) {
		return ErrVersionConflict.With("review edit %s already exists", s.EditID)
	}
	if err != nil {
		return infra("failed to create review edit", err)
	}
	return nil
}

// Get retrieves a saga by edit id
func (r *SagaRepository) Get(ctx context.Context, editID string) (*models.ReviewEditSaga, error) {
	query := `
		SELECT edit_id, assignment_id, section_id, question_id, original_role, editor_id, answer,
		       status, attempts, last_error, created_at, updated_at
		FROM review_edit_sagas
		WHERE edit_id = $1
	`
	s, err := scanSaga(r.db.QueryRowContext(ctx, query, editID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSagaNotFound.With("review edit %s not found", editID)
	}
	if err != nil {
		return nil, infra("failed to load review edit", err)
	}
	return s, nil
}

// UpdateStatus records the progress of a saga
func (r *SagaRepository) UpdateStatus(ctx context.Context, editID string, status models.SagaStatus, lastError string) error {
	query := `
		UPDATE review_edit_sagas
		SET status = $1, last_error = $2, updated_at = $3
		WHERE edit_id = $4
	`
	return r.update(ctx, editID, query, string(status), lastError, r.now(), editID)
}

// RecordFailure sets the status after a failed run and counts the attempt
func (r *SagaRepository) RecordFailure(ctx context.Context, editID string, status models.SagaStatus, lastError string) error {
	query := `
		UPDATE review_edit_sagas
		SET status = $1, last_error = $2, attempts = attempts + 1, updated_at = $3
		WHERE edit_id = $4
	`
	return r.update(ctx, editID, query, string(status), lastError, r.now(), editID)
}

func (r *SagaRepository) update(ctx context.Context, editID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return infra("failed to update review edit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return infra("failed to read affected rows", err)
	}
	if n == 0 {
		return ErrSagaNotFound.With("review edit %s not found", editID)
	}
	return nil
}

// ListStale returns unfinished sagas last touched before cutoff, oldest first
func (r *SagaRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.ReviewEditSaga, error) {
	query := `
		SELECT edit_id, assignment_id, section_id, question_id, original_role, editor_id, answer,
		       status, attempts, last_error, created_at, updated_at
		FROM review_edit_sagas
		WHERE status IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, string(models.SagaPending), string(models.SagaAudited), cutoff.UTC(), limit)
	if err != nil {
		return nil, infra("failed to list stale review edits", err)
	}
	defer rows.Close()

	var sagas []*models.ReviewEditSaga
	for rows.Next() {
		s, err := scanSaga(rows)
		if err != nil {
			return nil, infra("failed to scan review edit", err)
		}
		sagas = append(sagas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, infra("failed to iterate review edits", err)
	}
	return sagas, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSaga(row rowScanner) (*models.ReviewEditSaga, error) {
	var (
		s      models.ReviewEditSaga
		status string
	)
	err := row.Scan(
		&s.EditID,
		&s.AssignmentID,
		&s.SectionID,
		&s.QuestionID,
		&s.OriginalRole,
		&s.EditorID,
		&s.Answer,
		&status,
		&s.Attempts,
		&s.LastError,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = models.SagaStatus(status)
	return &s, nil
}
