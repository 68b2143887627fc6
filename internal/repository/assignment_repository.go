package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/sealing"
)

// AssignmentRepository stores the assignment snapshot together with its
// event log. Store is a compare-and-swap on the version.
type AssignmentRepository struct {
	db     *sql.DB
	sealer sealing.Sealer
	now    func() time.Time
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, sealer sealing.Sealer) *AssignmentRepository {
	if sealer == nil {
		sealer = sealing.Plain{}
	}
	return &AssignmentRepository{
		db:     db,
		sealer: sealer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load reads the current snapshot of an assignment
func (r *AssignmentRepository) Load(ctx context.Context, id string) (*assignment.Assignment, error) {
	var sealed string
	query := `SELECT snapshot FROM assignments WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound.With("assignment %s not found", id)
	}
	if err != nil {
		return nil, infra("failed to load assignment", err)
	}

	raw, err := r.sealer.Open(ctx, []byte(sealed), id)
	if err != nil {
		return nil, infra("failed to open assignment snapshot", err)
	}
	var st assignment.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, infra("failed to decode assignment snapshot", err)
	}
	return assignment.FromSnapshot(st), nil
}

// Store persists the pending events of a and its new snapshot. It fails with
// a conflict when the stored version is not expectedVersion. An
// expectedVersion of 0 inserts a new assignment.
func (r *AssignmentRepository) Store(ctx context.Context, a *assignment.Assignment, expectedVersion int64) error {
	events := a.PendingEvents()
	if len(events) == 0 {
		return nil
	}

	st := a.Snapshot()
	raw, err := json.Marshal(st)
	if err != nil {
		return infra("failed to encode assignment snapshot", err)
	}
	snapshot, err := r.sealer.Seal(ctx, raw, st.ID)
	if err != nil {
		return infra("failed to seal assignment snapshot", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return infra("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := r.now()
	if expectedVersion == 0 {
		query := `
			INSERT INTO assignments (id, template_id, employee_id, workflow_state, version, is_locked, is_withdrawn, snapshot, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		`
		_, err := tx.ExecContext(ctx, query,
			st.ID, st.TemplateID, st.EmployeeID, string(st.WorkflowState), st.Version,
			st.IsLocked, st.IsWithdrawn, string(snapshot), now,
		)
		if isUniqueViolation(err) {
			return ErrVersionConflict.With("assignment %s already exists", st.ID)
		}
		if err != nil {
			return infra("failed to insert assignment", err)
		}
	} else {
		query := `
			UPDATE assignments
			SET workflow_state = $1, version = $2, is_locked = $3, is_withdrawn = $4, snapshot = $5, updated_at = $6
			WHERE id = $7 AND version = $8
		`
		res, err := tx.ExecContext(ctx, query,
			string(st.WorkflowState), st.Version, st.IsLocked, st.IsWithdrawn, string(snapshot), now,
			st.ID, expectedVersion,
		)
		if err != nil {
			return infra("failed to update assignment", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return infra("failed to read affected rows", err)
		}
		if n == 0 {
			return r.missingOrConflict(ctx, tx, st.ID, expectedVersion)
		}
	}

	insert := `
		INSERT INTO assignment_events (id, assignment_id, version, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, e := range events {
		data, err := assignment.EncodeEventData(e.Data)
		if err != nil {
			return infra("failed to encode event", err)
		}
		payload, err := r.sealer.Seal(ctx, data, st.ID)
		if err != nil {
			return infra("failed to seal event", err)
		}
		_, err = tx.ExecContext(ctx, insert, e.ID, st.ID, e.Version, e.Type, string(payload), e.OccurredAt.UTC())
		if isUniqueViolation(err) {
			return ErrVersionConflict.With("event version %d of assignment %s already stored", e.Version, st.ID)
		}
		if err != nil {
			return infra("failed to insert event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return infra("failed to commit assignment", err)
	}
	a.MarkCommitted()
	return nil
}

func (r *AssignmentRepository) missingOrConflict(ctx context.Context, tx *sql.Tx, id string, expected int64) error {
	var current int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM assignments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAssignmentNotFound.With("assignment %s not found", id)
	}
	if err != nil {
		return infra("failed to read assignment version", err)
	}
	return ErrVersionConflict.With("expected version %d but assignment %s is at version %d", expected, id, current)
}

// Events returns the full event history of an assignment in version order
func (r *AssignmentRepository) Events(ctx context.Context, id string) ([]assignment.Event, error) {
	query := `
		SELECT id, version, event_type, payload, occurred_at
		FROM assignment_events
		WHERE assignment_id = $1
		ORDER BY version ASC
	`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, infra("failed to query events", err)
	}
	defer rows.Close()

	var events []assignment.Event
	for rows.Next() {
		var (
			e       assignment.Event
			payload string
		)
		if err := rows.Scan(&e.ID, &e.Version, &e.Type, &payload, &e.OccurredAt); err != nil {
			return nil, infra("failed to scan event", err)
		}
		raw, err := r.sealer.Open(ctx, []byte(payload), id)
		if err != nil {
			return nil, infra("failed to open event", err)
		}
		e.Data, err = assignment.DecodeEventData(e.Type, raw)
		if err != nil {
			return nil, infra(fmt.Sprintf("failed to decode event %s", e.ID), err)
		}
		e.AssignmentID = id
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra("failed to iterate events", err)
	}
	if len(events) == 0 {
		return nil, ErrAssignmentNotFound.With("assignment %s has no events", id)
	}
	return events, nil
}

// Replay rebuilds an assignment from its event log
func (r *AssignmentRepository) Replay(ctx context.Context, id string) (*assignment.Assignment, error) {
	events, err := r.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := assignment.Replay(id, events)
	if err != nil {
		return nil, infra("failed to replay assignment", err)
	}
	return a, nil
}

// ListByEmployee returns the ids of an employee's assignments, newest first
func (r *AssignmentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]string, error) {
	query := `SELECT id FROM assignments WHERE employee_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, infra("failed to list assignments", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, infra("failed to scan assignment id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, infra("failed to iterate assignments", err)
	}
	return ids, nil
}
