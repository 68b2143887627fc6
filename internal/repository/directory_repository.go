package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pwannenmacher/review-flow/internal/models"
)

// EmployeeRepository handles database operations for the employee directory
type EmployeeRepository struct {
	db *sql.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Upsert creates or replaces an employee
func (r *EmployeeRepository) Upsert(ctx context.Context, e *models.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, manager_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, manager_id = excluded.manager_id
	`
	if _, err := r.db.ExecContext(ctx, query, e.ID, e.Name, e.Email, e.ManagerID); err != nil {
		return infra("failed to upsert employee", err)
	}
	return nil
}

// GetByID retrieves an employee
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	var (
		e       models.Employee
		manager sql.NullString
	)
	query := `SELECT id, name, email, manager_id FROM employees WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Name, &e.Email, &manager)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmployeeNotFound.With("employee %s not found", id)
	}
	if err != nil {
		return nil, infra("failed to load employee", err)
	}
	if manager.Valid {
		e.ManagerID = &manager.String
	}
	return &e, nil
}

// FeedbackRepository handles database operations for feedback records
type FeedbackRepository struct {
	db *sql.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create inserts a feedback record
func (r *FeedbackRepository) Create(ctx context.Context, f *models.FeedbackRecord) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO feedback_records (id, employee_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, f.ID, f.EmployeeID, f.AuthorID, f.Content, f.CreatedAt.UTC()); err != nil {
		return infra("failed to create feedback record", err)
	}
	return nil
}

// GetByID retrieves a feedback record including soft-deleted ones
func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*models.FeedbackRecord, error) {
	var (
		f       models.FeedbackRecord
		deleted sql.NullTime
	)
	query := `SELECT id, employee_id, author_id, content, created_at, deleted_at FROM feedback_records WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&f.ID, &f.EmployeeID, &f.AuthorID, &f.Content, &f.CreatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedbackNotFound.With("feedback record %s not found", id)
	}
	if err != nil {
		return nil, infra("failed to load feedback record", err)
	}
	if deleted.Valid {
		f.DeletedAt = &deleted.Time
	}
	return &f, nil
}

// SoftDelete marks a feedback record as deleted
func (r *FeedbackRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE feedback_records SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return infra("failed to delete feedback record", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFeedbackNotFound.With("feedback record %s not found", id)
	}
	return nil
}
