package reviewedit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/models"
	"github.com/pwannenmacher/review-flow/internal/sealing"
)

var ErrRequestInvalid = apperrors.New(apperrors.KindValidation, apperrors.CodeValidationFailed, "invalid review edit")

// Request describes an answer edited during the review meeting
type Request struct {
	EditID       string
	AssignmentID string
	SectionID    string
	QuestionID   string
	OriginalRole assignment.Participant
	Answer       string
	EditorID     string
}

// Dispatcher runs the steps of a saga that has been persisted
type Dispatcher interface {
	Dispatch(ctx context.Context, editID string) error
}

// InlineDispatcher runs the saga in the calling goroutine
type InlineDispatcher struct {
	steps *Steps
}

// NewInlineDispatcher creates a dispatcher running steps in process
func NewInlineDispatcher(steps *Steps) *InlineDispatcher {
	return &InlineDispatcher{steps: steps}
}

// Dispatch runs all steps and returns the first failure
func (d *InlineDispatcher) Dispatch(ctx context.Context, editID string) error {
	return d.steps.Run(ctx, editID)
}

// Coordinator starts review edits and resumes the ones left unfinished
type Coordinator struct {
	sagas      SagaStore
	sealer     sealing.Sealer
	dispatcher Dispatcher
}

// NewCoordinator creates a new coordinator
func NewCoordinator(sagas SagaStore, sealer sealing.Sealer, dispatcher Dispatcher) *Coordinator {
	if sealer == nil {
		sealer = sealing.Plain{}
	}
	return &Coordinator{sagas: sagas, sealer: sealer, dispatcher: dispatcher}
}

// Begin persists the saga for req and hands it to the dispatcher. The saga
// row exists before any record is touched, so a crash after Begin returns is
// recovered by ResumePending.
func (c *Coordinator) Begin(ctx context.Context, req Request) (*models.ReviewEditSaga, error) {
	if strings.TrimSpace(req.AssignmentID) == "" || strings.TrimSpace(req.QuestionID) == "" {
		return nil, ErrRequestInvalid.With("assignment id and question id are required")
	}
	if !req.OriginalRole.Valid() {
		return nil, ErrRequestInvalid.With("unknown original role %q", req.OriginalRole)
	}
	if req.EditID == "" {
		req.EditID = uuid.New().String()
	}

	sealed, err := c.sealer.Seal(ctx, []byte(req.Answer), req.AssignmentID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternal, "failed to seal review edit answer", err)
	}

	saga := &models.ReviewEditSaga{
		EditID:       req.EditID,
		AssignmentID: req.AssignmentID,
		SectionID:    req.SectionID,
		QuestionID:   req.QuestionID,
		OriginalRole: string(req.OriginalRole),
		EditorID:     req.EditorID,
		Answer:       string(sealed),
	}
	if err := c.sagas.Create(ctx, saga); err != nil {
		return nil, err
	}
	slog.Info("Review edit started", "edit_id", saga.EditID, "assignment_id", saga.AssignmentID)

	if err := c.dispatcher.Dispatch(ctx, saga.EditID); err != nil {
		return saga, err
	}
	return c.sagas.Get(ctx, saga.EditID)
}

// Status returns the saga for editID
func (c *Coordinator) Status(ctx context.Context, editID string) (*models.ReviewEditSaga, error) {
	return c.sagas.Get(ctx, editID)
}

// ResumePending dispatches unfinished sagas not touched within staleAfter.
// It returns the number of sagas dispatched successfully.
func (c *Coordinator) ResumePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	stale, err := c.sagas.ListStale(ctx, time.Now().UTC().Add(-staleAfter), limit)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, saga := range stale {
		if err := ctx.Err(); err != nil {
			return resumed, err
		}
		if err := c.dispatcher.Dispatch(ctx, saga.EditID); err != nil {
			slog.Warn("Failed to resume review edit",
				"edit_id", saga.EditID,
				"status", string(saga.Status),
				"attempts", saga.Attempts,
				"error", err,
			)
			continue
		}
		resumed++
	}
	if len(stale) > 0 {
		slog.Info("Resumed review edits", "found", len(stale), "resumed", resumed)
	}
	return resumed, nil
}
