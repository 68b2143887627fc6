package reviewedit

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	sdkworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
)

// WorkflowInput is the argument of ReviewEditWorkflow
type WorkflowInput struct {
	EditID      string
	MaxAttempts int32
}

// ReviewEditWorkflow drives a review edit through its steps. Activities are
// retried by Temporal; business rule failures are not retried and mark the
// saga failed.
func ReviewEditWorkflow(ctx workflow.Context, in WorkflowInput) error {
	if in.EditID == "" {
		return temporal.NewNonRetryableApplicationError("edit id is required", string(apperrors.CodeValidationFailed), nil)
	}
	attempts := in.MaxAttempts
	if attempts <= 0 {
		attempts = int32(DefaultRetryConfig().MaxAttempts)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    attempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	for _, step := range []any{a.RecordAudit, a.ApplyAnswer, a.Complete} {
		err := workflow.ExecuteActivity(ctx, step, in.EditID).Get(ctx, nil)
		if err == nil {
			continue
		}
		workflow.GetLogger(ctx).Warn("Review edit step failed", "edit_id", in.EditID, "error", err)
		if failErr := workflow.ExecuteActivity(ctx, a.MarkFailed, in.EditID, err.Error()).Get(ctx, nil); failErr != nil {
			workflow.GetLogger(ctx).Error("Failed to mark review edit failed", "edit_id", in.EditID, "error", failErr)
		}
		return err
	}
	return nil
}

// Activities exposes the saga steps to a Temporal worker
type Activities struct {
	steps *Steps
}

// NewActivities creates the activity set backed by steps
func NewActivities(steps *Steps) *Activities {
	return &Activities{steps: steps}
}

// RecordAudit writes the audit fact on the assignment
func (a *Activities) RecordAudit(ctx context.Context, editID string) error {
	return toActivityError(a.steps.RecordAudit(ctx, editID))
}

// ApplyAnswer writes the answer value on the response record
func (a *Activities) ApplyAnswer(ctx context.Context, editID string) error {
	return toActivityError(a.steps.ApplyAnswer(ctx, editID))
}

// Complete closes the saga
func (a *Activities) Complete(ctx context.Context, editID string) error {
	return toActivityError(a.steps.Complete(ctx, editID))
}

// MarkFailed closes the saga as failed
func (a *Activities) MarkFailed(ctx context.Context, editID, reason string) error {
	return a.steps.Fail(ctx, editID, errors.New(reason))
}

// toActivityError keeps conflicts and infrastructure failures retryable and
// stops Temporal from retrying everything else
func toActivityError(err error) error {
	if err == nil || apperrors.Retryable(err) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(
		apperrors.PublicMessage(err),
		string(apperrors.CodeOf(err)),
		err,
	)
}

// Register registers the workflow and its activities with a worker
func Register(w sdkworker.Worker, steps *Steps) {
	w.RegisterWorkflow(ReviewEditWorkflow)
	w.RegisterActivity(NewActivities(steps))
}

// TemporalDispatcher starts one workflow execution per saga
type TemporalDispatcher struct {
	client      client.Client
	taskQueue   string
	maxAttempts int32
}

// NewTemporalDispatcher creates a dispatcher that starts workflows on taskQueue
func NewTemporalDispatcher(c client.Client, taskQueue string, maxAttempts int) *TemporalDispatcher {
	return &TemporalDispatcher{client: c, taskQueue: taskQueue, maxAttempts: int32(maxAttempts)}
}

// WorkflowID returns the workflow id used for editID
func WorkflowID(editID string) string {
	return fmt.Sprintf("review-edit-%s", editID)
}

// Dispatch starts the workflow for editID. Starting a saga whose workflow is
// still running attaches to that run.
func (d *TemporalDispatcher) Dispatch(ctx context.Context, editID string) error {
	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(editID),
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}
	if _, err := d.client.ExecuteWorkflow(ctx, opts, ReviewEditWorkflow, WorkflowInput{EditID: editID, MaxAttempts: d.maxAttempts}); err != nil {
		return apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternal, "failed to start review edit workflow", err)
	}
	return nil
}
