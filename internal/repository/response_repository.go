package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/pwannenmacher/review-flow/internal/response"
	"github.com/pwannenmacher/review-flow/internal/sealing"
)

// responsePayload is the stored form of a response
type responsePayload struct {
	Answers      []response.Answer `json:"answers"`
	AppliedEdits []string          `json:"applied_edits"`
}

// ResponseRepository handles database operations for response records
type ResponseRepository struct {
	db     *sql.DB
	sealer sealing.Sealer
	now    func() time.Time
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db *sql.DB, sealer sealing.Sealer) *ResponseRepository {
	if sealer == nil {
		sealer = sealing.Plain{}
	}
	return &ResponseRepository{
		db:     db,
		sealer: sealer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load returns the response of an assignment. A response that was never
// stored is returned empty at version 0.
func (r *ResponseRepository) Load(ctx context.Context, assignmentID string) (*response.Response, error) {
	var (
		version int64
		sealed  string
	)
	query := `SELECT version, payload FROM responses WHERE assignment_id = $1`
	err := r.db.QueryRowContext(ctx, query, assignmentID).Scan(&version, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return response.New(assignmentID), nil
	}
	if err != nil {
		return nil, infra("failed to load response", err)
	}

	raw, err := r.sealer.Open(ctx, []byte(sealed), assignmentID)
	if err != nil {
		return nil, infra("failed to open response", err)
	}
	var p responsePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, infra("failed to decode response", err)
	}
	return response.Restore(assignmentID, version, p.Answers, p.AppliedEdits), nil
}

// Store writes the response if the stored version still equals
// expectedVersion
func (r *ResponseRepository) Store(ctx context.Context, resp *response.Response, expectedVersion int64) error {
	if resp.Version == expectedVersion {
		return nil
	}

	raw, err := json.Marshal(responsePayload{Answers: resp.Answers, AppliedEdits: resp.AppliedEdits})
	if err != nil {
		return infra("failed to encode response", err)
	}
	sealed, err := r.sealer.Seal(ctx, raw, resp.AssignmentID)
	if err != nil {
		return infra("failed to seal response", err)
	}

	now := r.now()
	if expectedVersion == 0 {
		query := `INSERT INTO responses (assignment_id, version, payload, updated_at) VALUES ($1, $2, $3, $4)`
		_, err := r.db.ExecContext(ctx, query, resp.AssignmentID, resp.Version, string(sealed), now)
		if isUniqueViolation(err) {
			return ErrVersionConflict.With("response of assignment %s was created concurrently", resp.AssignmentID)
		}
		if err != nil {
			return infra("failed to insert response", err)
		}
		return nil
	}

	query := `
		UPDATE responses SET version = $1, payload = $2, updated_at = $3
		WHERE assignment_id = $4 AND version = $5
	`
	res, err := r.db.ExecContext(ctx, query, resp.Version, string(sealed), now, resp.AssignmentID, expectedVersion)
	if err != nil {
		return infra("failed to update response", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return infra("failed to read affected rows", err)
	}
	if n == 0 {
		return ErrVersionConflict.With("response of assignment %s is no longer at version %d", resp.AssignmentID, expectedVersion)
	}
	return nil
}
