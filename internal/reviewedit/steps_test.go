package reviewedit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/models"
	"github.com/pwannenmacher/review-flow/internal/notify"
	"github.com/pwannenmacher/review-flow/internal/repository"
	"github.com/pwannenmacher/review-flow/internal/response"
	"github.com/pwannenmacher/review-flow/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// prefixSealer marks sealed values so tests can tell them apart
type prefixSealer struct{}

func (prefixSealer) Seal(_ context.Context, plaintext []byte, aad string) ([]byte, error) {
	return []byte("sealed:" + aad + ":" + string(plaintext)), nil
}

func (prefixSealer) Open(_ context.Context, sealed []byte, aad string) ([]byte, error) {
	return []byte(strings.TrimPrefix(string(sealed), "sealed:"+aad+":")), nil
}

// flakyAssignments fails the first stores with a configured error
type flakyAssignments struct {
	AssignmentStore
	failures int
	err      error
}

func (f *flakyAssignments) Store(ctx context.Context, a *assignment.Assignment, expectedVersion int64) error {
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return f.AssignmentStore.Store(ctx, a, expectedVersion)
}

// flakyResponses fails the first response stores with a configured error
type flakyResponses struct {
	ResponseStore
	failures int
	err      error
}

func (f *flakyResponses) Store(ctx context.Context, r *response.Response, expectedVersion int64) error {
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return f.ResponseStore.Store(ctx, r, expectedVersion)
}

type fixture struct {
	assignments *repository.AssignmentRepository
	responses   *repository.ResponseRepository
	sagas       *repository.SagaRepository
	notifier    *recordingNotifier
	steps       *Steps
	coordinator *Coordinator
}

func fastRetry() RetryConfig {
	return RetryConfig{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second, MaxAttempts: 3}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &fixture{
		assignments: repository.NewAssignmentRepository(db, nil),
		responses:   repository.NewResponseRepository(db, nil),
		sagas:       repository.NewSagaRepository(db),
		notifier:    &recordingNotifier{},
	}
	f.steps = NewSteps(f.assignments, f.responses, f.sagas, prefixSealer{}, f.notifier, fastRetry())
	f.coordinator = NewCoordinator(f.sagas, prefixSealer{}, NewInlineDispatcher(f.steps))
	return f
}

// seed stores an assignment and the employee's original answer. When
// review is true the assignment is moved into the review meeting.
func (f *fixture) seed(t *testing.T, id string, review bool) {
	t.Helper()
	ctx := context.Background()
	a, err := assignment.Create(assignment.CreateParams{
		ID:           id,
		TemplateID:   "tpl-1",
		EmployeeID:   "emp-1",
		EmployeeName: "Alex Doe",
		AssignedBy:   "hr-1",
	})
	require.NoError(t, err)
	require.NoError(t, a.StartInitialization("mgr-1", ""))
	if review {
		require.NoError(t, a.CompleteWork(assignment.Employee, "emp-1"))
		require.NoError(t, a.CompleteWork(assignment.Manager, "mgr-1"))
		require.NoError(t, a.InitiateReview("mgr-1"))
	}
	require.NoError(t, f.assignments.Store(ctx, a, 0))

	r, err := f.responses.Load(ctx, id)
	require.NoError(t, err)
	require.NoError(t, r.SaveAnswer("s-1", "q-1", assignment.Employee, "original", "emp-1"))
	require.NoError(t, f.responses.Store(ctx, r, 0))
}

func editRequest(assignmentID string) Request {
	return Request{
		EditID:       "edit-1",
		AssignmentID: assignmentID,
		SectionID:    "s-1",
		QuestionID:   "q-1",
		OriginalRole: assignment.Employee,
		Answer:       "clarified in the meeting",
		EditorID:     "mgr-1",
	}
}

func (f *fixture) createSaga(t *testing.T, req Request) {
	t.Helper()
	sealed, err := prefixSealer{}.Seal(context.Background(), []byte(req.Answer), req.AssignmentID)
	require.NoError(t, err)
	require.NoError(t, f.sagas.Create(context.Background(), &models.ReviewEditSaga{
		EditID:       req.EditID,
		AssignmentID: req.AssignmentID,
		SectionID:    req.SectionID,
		QuestionID:   req.QuestionID,
		OriginalRole: string(req.OriginalRole),
		EditorID:     req.EditorID,
		Answer:       string(sealed),
	}))
}

func TestInlineReviewEditCompletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	ctx := context.Background()

	saga, err := f.coordinator.Begin(ctx, editRequest("asg-1"))
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.Status)
	assert.Equal(t, "sealed:asg-1:clarified in the meeting", saga.Answer, "answer is stored sealed")

	a, err := f.assignments.Load(ctx, "asg-1")
	require.NoError(t, err)
	assert.True(t, a.HasReviewEdit("edit-1"))
	edits := a.Snapshot().ReviewEdits
	require.Len(t, edits, 1)
	assert.Equal(t, assignment.AnswerDigest("clarified in the meeting"), edits[0].AnswerDigest)

	r, err := f.responses.Load(ctx, "asg-1")
	require.NoError(t, err)
	ans, ok := r.Answer("q-1", assignment.Employee)
	require.True(t, ok)
	assert.Equal(t, "clarified in the meeting", ans.Value)
	assert.Equal(t, "edit-1", ans.EditID)
	assert.Empty(t, f.notifier.sent)
}

func TestBeginGeneratesEditID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)

	req := editRequest("asg-1")
	req.EditID = ""
	saga, err := f.coordinator.Begin(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, saga.EditID)
}

func TestBeginRejectsDuplicateEdit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	ctx := context.Background()

	_, err := f.coordinator.Begin(ctx, editRequest("asg-1"))
	require.NoError(t, err)

	_, err = f.coordinator.Begin(ctx, editRequest("asg-1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestBeginValidatesRequest(t *testing.T) {
	f := newFixture(t)

	req := editRequest("asg-1")
	req.OriginalRole = "Reviewer"
	_, err := f.coordinator.Begin(context.Background(), req)
	assert.ErrorIs(t, err, ErrRequestInvalid)

	req = editRequest("")
	_, err = f.coordinator.Begin(context.Background(), req)
	assert.ErrorIs(t, err, ErrRequestInvalid)
}

func TestEditOutsideReviewFailsSaga(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", false)
	ctx := context.Background()

	_, err := f.coordinator.Begin(ctx, editRequest("asg-1"))
	require.ErrorIs(t, err, assignment.ErrInvalidTransition)
	assert.Equal(t, apperrors.KindBusinessRule, apperrors.KindOf(err))

	saga, err := f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaFailed, saga.Status)
	assert.NotEmpty(t, saga.LastError)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.KindReviewEditFailed, f.notifier.sent[0].Kind)
	assert.Equal(t, "asg-1", f.notifier.sent[0].AssignmentID)

	r, err := f.responses.Load(ctx, "asg-1")
	require.NoError(t, err)
	ans, _ := r.Answer("q-1", assignment.Employee)
	assert.Equal(t, "original", ans.Value, "no answer is written without an audit fact")

	assert.ErrorIs(t, f.steps.RecordAudit(ctx, "edit-1"), ErrSagaClosed)
}

func TestStepsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	f.createSaga(t, editRequest("asg-1"))
	ctx := context.Background()

	assert.ErrorIs(t, f.steps.ApplyAnswer(ctx, "edit-1"), ErrAuditMissing)
	assert.ErrorIs(t, f.steps.Complete(ctx, "edit-1"), ErrAuditMissing)

	require.NoError(t, f.steps.RecordAudit(ctx, "edit-1"))
	before, err := f.assignments.Load(ctx, "asg-1")
	require.NoError(t, err)
	require.NoError(t, f.steps.RecordAudit(ctx, "edit-1"))
	after, err := f.assignments.Load(ctx, "asg-1")
	require.NoError(t, err)
	assert.Equal(t, before.Version(), after.Version())

	require.NoError(t, f.steps.ApplyAnswer(ctx, "edit-1"))
	r1, err := f.responses.Load(ctx, "asg-1")
	require.NoError(t, err)
	require.NoError(t, f.steps.ApplyAnswer(ctx, "edit-1"))
	r2, err := f.responses.Load(ctx, "asg-1")
	require.NoError(t, err)
	assert.Equal(t, r1.Version, r2.Version)

	require.NoError(t, f.steps.Complete(ctx, "edit-1"))
	require.NoError(t, f.steps.Complete(ctx, "edit-1"))
	saga, err := f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.Status)
}

func TestRecordAuditSkipsWhenAuditAlreadyStored(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	ctx := context.Background()

	// the audit fact was committed but the saga row was never advanced
	a, err := f.assignments.Load(ctx, "asg-1")
	require.NoError(t, err)
	require.NoError(t, a.EditAnswerAsManagerDuringReview("edit-1", "s-1", "q-1", assignment.Employee, "clarified in the meeting", "mgr-1"))
	require.NoError(t, f.assignments.Store(ctx, a, a.PersistedVersion()))
	f.createSaga(t, editRequest("asg-1"))

	require.NoError(t, f.steps.Run(ctx, "edit-1"))
	saga, err := f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.Status)
}

func TestResumePendingFinishesInterruptedEdit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	f.createSaga(t, editRequest("asg-1"))
	ctx := context.Background()

	// crash after the audit step
	require.NoError(t, f.steps.RecordAudit(ctx, "edit-1"))

	resumed, err := f.coordinator.ResumePending(ctx, -time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	saga, err := f.coordinator.Status(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.Status)

	resumed, err = f.coordinator.ResumePending(ctx, -time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, resumed)
}

func TestVersionConflictsAreRetried(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	f.createSaga(t, editRequest("asg-1"))
	flaky := &flakyAssignments{AssignmentStore: f.assignments, failures: 2, err: repository.ErrVersionConflict}
	steps := NewSteps(flaky, f.responses, f.sagas, prefixSealer{}, f.notifier, fastRetry())

	require.NoError(t, steps.Run(context.Background(), "edit-1"))
	assert.Zero(t, flaky.failures)

	saga, err := f.sagas.Get(context.Background(), "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.Status)
}

func TestInfrastructureFailureLeavesSagaForRecovery(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	f.createSaga(t, editRequest("asg-1"))
	ctx := context.Background()
	outage := apperrors.New(apperrors.KindInfrastructure, apperrors.CodeInternal, "database unavailable")
	flaky := &flakyAssignments{AssignmentStore: f.assignments, failures: 10, err: outage}
	steps := NewSteps(flaky, f.responses, f.sagas, prefixSealer{}, f.notifier, fastRetry())

	require.Error(t, steps.Run(ctx, "edit-1"))
	saga, err := f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaPending, saga.Status)
	assert.Equal(t, 1, saga.Attempts)
	assert.Contains(t, saga.LastError, "database unavailable")

	require.Error(t, steps.Run(ctx, "edit-1"))
	require.Error(t, steps.Run(ctx, "edit-1"))
	saga, err = f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaFailed, saga.Status, "gives up after the configured attempts")
	require.Len(t, f.notifier.sent, 1)
}

func TestAuditedSagaGetsEveryAttempt(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "asg-1", true)
	f.createSaga(t, editRequest("asg-1"))
	ctx := context.Background()
	outage := apperrors.New(apperrors.KindInfrastructure, apperrors.CodeInternal, "database unavailable")
	flaky := &flakyResponses{ResponseStore: f.responses, failures: 10, err: outage}
	steps := NewSteps(f.assignments, flaky, f.sagas, prefixSealer{}, f.notifier, fastRetry())

	for run := 1; run < fastRetry().MaxAttempts; run++ {
		require.Error(t, steps.Run(ctx, "edit-1"))
		saga, err := f.sagas.Get(ctx, "edit-1")
		require.NoError(t, err)
		assert.Equal(t, models.SagaAudited, saga.Status, "run %d", run)
		assert.Equal(t, run, saga.Attempts, "reaching audited is not an attempt")
	}

	require.Error(t, steps.Run(ctx, "edit-1"))
	saga, err := f.sagas.Get(ctx, "edit-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaFailed, saga.Status)
	assert.Equal(t, fastRetry().MaxAttempts, saga.Attempts)
	require.Len(t, f.notifier.sent, 1)
}

func TestRunUnknownSaga(t *testing.T) {
	f := newFixture(t)
	err := f.steps.Run(context.Background(), "edit-404")
	assert.ErrorIs(t, err, repository.ErrSagaNotFound)
}
