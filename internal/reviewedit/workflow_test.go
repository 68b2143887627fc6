package reviewedit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/models"
)

func newWorkflowEnv(t *testing.T, f *fixture) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ReviewEditWorkflow)
	env.RegisterActivity(NewActivities(f.steps))
	return env
}

func TestReviewEditWorkflowCompletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	f.createSaga(t, editRequest("asg-1"))

	env := newWorkflowEnv(t, f)
	env.ExecuteWorkflow(ReviewEditWorkflow, WorkflowInput{EditID: "edit-1", MaxAttempts: 2})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	ctx := context.Background()
	saga, err := f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.Status)

	r, err := f.responses.Load(ctx, "asg-1")
	require.NoError(t, err)
	ans, ok := r.Answer("q-1", assignment.Employee)
	require.True(t, ok)
	assert.Equal(t, "clarified in the meeting", ans.Value)
}

func TestReviewEditWorkflowBusinessFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", false)
	f.createSaga(t, editRequest("asg-1"))

	env := newWorkflowEnv(t, f)
	env.ExecuteWorkflow(ReviewEditWorkflow, WorkflowInput{EditID: "edit-1", MaxAttempts: 5})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, string(apperrors.CodeInvalidWorkflowTransition), appErr.Type())
	assert.True(t, appErr.NonRetryable())

	saga, err := f.sagas.Get(context.Background(), "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaFailed, saga.Status)
	assert.Equal(t, 1, saga.Attempts, "only the failure was recorded")
	require.Len(t, f.notifier.sent, 1)
}

func TestReviewEditWorkflowRejectsEmptyInput(t *testing.T) {
	f := newFixture(t)
	env := newWorkflowEnv(t, f)
	env.ExecuteWorkflow(ReviewEditWorkflow, WorkflowInput{})

	require.True(t, env.IsWorkflowCompleted())
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, env.GetWorkflowError(), &appErr)
	assert.Equal(t, string(apperrors.CodeValidationFailed), appErr.Type())
}

func TestToActivityError(t *testing.T) {
	assert.NoError(t, toActivityError(nil))

	conflict := apperrors.New(apperrors.KindConflict, apperrors.CodeVersionConflict, "stale")
	assert.Same(t, conflict, toActivityError(conflict))

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, toActivityError(assignment.ErrLocked), &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, string(apperrors.CodeAssignmentLocked), appErr.Type())
}
