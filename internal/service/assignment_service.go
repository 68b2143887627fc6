package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/assignment"
	"github.com/pwannenmacher/review-flow/internal/authz"
	"github.com/pwannenmacher/review-flow/internal/identity"
	"github.com/pwannenmacher/review-flow/internal/models"
	"github.com/pwannenmacher/review-flow/internal/notify"
	"github.com/pwannenmacher/review-flow/internal/reviewedit"
	"github.com/pwannenmacher/review-flow/pkg/validator"
)

// AssignmentRepository loads and stores assignments
type AssignmentRepository interface {
	Load(ctx context.Context, id string) (*assignment.Assignment, error)
	Store(ctx context.Context, a *assignment.Assignment, expectedVersion int64) error
	ListByEmployee(ctx context.Context, employeeID string) ([]string, error)
}

// PredecessorGoalReader loads a predecessor questionnaire read-only
type PredecessorGoalReader interface {
	Load(ctx context.Context, id string) (*assignment.Assignment, error)
}

// EmployeeDirectory resolves employees
type EmployeeDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Employee, error)
}

// FeedbackReader resolves feedback records
type FeedbackReader interface {
	GetByID(ctx context.Context, id string) (*models.FeedbackRecord, error)
}

// Authorizer decides whether a caller may act on an employee's assignment
type Authorizer interface {
	Authorize(ctx context.Context, caller identity.Caller, subjectEmployeeID string, action authz.Action) error
}

// ReviewEditStarter starts the coordinated answer edit and reports its progress
type ReviewEditStarter interface {
	Begin(ctx context.Context, req reviewedit.Request) (*models.ReviewEditSaga, error)
	Status(ctx context.Context, editID string) (*models.ReviewEditSaga, error)
}

// EventReader reads the event history of an assignment
type EventReader interface {
	Events(ctx context.Context, id string) ([]assignment.Event, error)
}

// Dependencies bundles the collaborators of AssignmentService
type Dependencies struct {
	Assignments     AssignmentRepository
	Predecessors    PredecessorGoalReader
	History         EventReader
	Employees       EmployeeDirectory
	Feedback        FeedbackReader
	Guard           Authorizer
	ReviewEdits     ReviewEditStarter
	Notifier        notify.Notifier
	BulkConcurrency int
}

// AssignmentService handles the commands of the questionnaire workflow.
// Every command validates its input, authorizes the caller, mutates the
// loaded assignment and stores it against the version it was loaded at.
type AssignmentService struct {
	assignments     AssignmentRepository
	predecessors    PredecessorGoalReader
	history         EventReader
	employees       EmployeeDirectory
	feedback        FeedbackReader
	guard           Authorizer
	reviewEdits     ReviewEditStarter
	notifier        notify.Notifier
	bulkConcurrency int
	clock           func() time.Time
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(deps Dependencies) *AssignmentService {
	s := &AssignmentService{
		assignments:     deps.Assignments,
		predecessors:    deps.Predecessors,
		history:         deps.History,
		employees:       deps.Employees,
		feedback:        deps.Feedback,
		guard:           deps.Guard,
		reviewEdits:     deps.ReviewEdits,
		notifier:        deps.Notifier,
		bulkConcurrency: deps.BulkConcurrency,
		clock:           func() time.Time { return time.Now().UTC() },
	}
	if s.predecessors == nil {
		s.predecessors = deps.Assignments
	}
	if s.history == nil {
		if r, ok := deps.Assignments.(EventReader); ok {
			s.history = r
		}
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.bulkConcurrency <= 0 {
		s.bulkConcurrency = 8
	}
	return s
}

func callerFrom(ctx context.Context) (identity.Caller, error) {
	caller, ok := identity.CallerFrom(ctx)
	if !ok || caller.EmployeeID == "" {
		return identity.Caller{}, authz.ErrUnauthenticated
	}
	return caller, nil
}

// execute runs fn against the current assignment and stores the outcome.
// A failing fn leaves nothing persisted.
func (s *AssignmentService) execute(
	ctx context.Context,
	cmd any,
	assignmentID string,
	action authz.Action,
	fn func(a *assignment.Assignment, caller identity.Caller) error,
) (assignment.State, error) {
	if err := validator.ValidateStruct(cmd); err != nil {
		return assignment.State{}, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return assignment.State{}, err
	}
	a, err := s.assignments.Load(ctx, assignmentID)
	if err != nil {
		return assignment.State{}, err
	}
	if err := s.guard.Authorize(ctx, caller, a.EmployeeID(), action); err != nil {
		return assignment.State{}, err
	}
	if err := fn(a, caller); err != nil {
		return assignment.State{}, err
	}
	if err := s.assignments.Store(ctx, a, a.PersistedVersion()); err != nil {
		return assignment.State{}, err
	}
	return a.Snapshot(), nil
}

// workAction maps the side of the questionnaire to the permission it needs
func workAction(p assignment.Participant) authz.Action {
	if p == assignment.Manager {
		return authz.ActionManagerWork
	}
	return authz.ActionEmployeeWork
}

func (s *AssignmentService) notify(ctx context.Context, kind notify.Kind, st assignment.State, by, reason string) {
	err := s.notifier.Notify(ctx, notify.Notification{
		Kind:         kind,
		AssignmentID: st.ID,
		EmployeeID:   st.EmployeeID,
		By:           by,
		Reason:       reason,
		At:           s.clock(),
	})
	if err != nil {
		slog.Error("Failed to send notification", "kind", string(kind), "assignment_id", st.ID, "error", err)
	}
}

// GetAssignment returns the current state of an assignment
func (s *AssignmentService) GetAssignment(ctx context.Context, id string) (assignment.State, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return assignment.State{}, err
	}
	a, err := s.assignments.Load(ctx, id)
	if err != nil {
		return assignment.State{}, err
	}
	if err := s.guard.Authorize(ctx, caller, a.EmployeeID(), authz.ActionView); err != nil {
		return assignment.State{}, err
	}
	return a.Snapshot(), nil
}

// ListEmployeeAssignments returns the assignment ids of an employee
func (s *AssignmentService) ListEmployeeAssignments(ctx context.Context, employeeID string) ([]string, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, employeeID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.assignments.ListByEmployee(ctx, employeeID)
}

// AssignmentHistory returns a page of the events recorded for an assignment
func (s *AssignmentService) AssignmentHistory(ctx context.Context, id string, limit, offset int) ([]assignment.Event, error) {
	if _, err := s.GetAssignment(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, apperrors.New(apperrors.KindInfrastructure, apperrors.CodeInternal, "assignment history is not available")
	}
	events, err := s.history.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	if offset >= len(events) {
		return []assignment.Event{}, nil
	}
	end := len(events)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return events[offset:end], nil
}

// ReviewEditStatus reports the progress of a review edit to callers who may
// see the assignment it belongs to
func (s *AssignmentService) ReviewEditStatus(ctx context.Context, editID string) (*models.ReviewEditSaga, error) {
	if _, err := callerFrom(ctx); err != nil {
		return nil, err
	}
	saga, err := s.reviewEdits.Status(ctx, editID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetAssignment(ctx, saga.AssignmentID); err != nil {
		return nil, err
	}
	return saga, nil
}

// CreateAssignment assigns a template to one employee
func (s *AssignmentService) CreateAssignment(ctx context.Context, cmd CreateAssignmentCommand) (assignment.State, error) {
	if err := validator.ValidateStruct(&cmd); err != nil {
		return assignment.State{}, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return assignment.State{}, err
	}
	return s.create(ctx, caller, cmd.TemplateID, cmd.EmployeeID, cmd.DueDate, cmd.Notes)
}

func (s *AssignmentService) create(ctx context.Context, caller identity.Caller, templateID, employeeID string, due *time.Time, notes string) (assignment.State, error) {
	if err := s.guard.Authorize(ctx, caller, employeeID, authz.ActionCreate); err != nil {
		return assignment.State{}, err
	}
	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return assignment.State{}, err
	}

	a, err := assignment.Create(assignment.CreateParams{
		ID:            uuid.New().String(),
		TemplateID:    templateID,
		EmployeeID:    employee.ID,
		EmployeeName:  employee.Name,
		EmployeeEmail: employee.Email,
		DueDate:       due,
		AssignedBy:    caller.EmployeeID,
		Notes:         notes,
	}, assignment.WithClock(s.clock))
	if err != nil {
		return assignment.State{}, err
	}
	if err := s.assignments.Store(ctx, a, 0); err != nil {
		return assignment.State{}, err
	}
	slog.Info("Assignment created", "assignment_id", a.ID(), "employee_id", employeeID, "template_id", templateID)
	return a.Snapshot(), nil
}

// BulkCreateAssignments assigns one template to many employees. Each
// employee succeeds or fails on its own; failures are reported, not raised.
func (s *AssignmentService) BulkCreateAssignments(ctx context.Context, cmd BulkCreateAssignmentsCommand) (*BulkCreateResult, error) {
	if err := validator.ValidateStruct(&cmd); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	created := make([]*assignment.State, len(cmd.EmployeeIDs))
	failed := make([]error, len(cmd.EmployeeIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, employeeID := range cmd.EmployeeIDs {
		g.Go(func() error {
			st, err := s.create(gctx, caller, cmd.TemplateID, employeeID, cmd.DueDate, cmd.Notes)
			if err != nil {
				if apperrors.IsKind(err, apperrors.KindInfrastructure) {
					return err
				}
				failed[i] = err
				return nil
			}
			created[i] = &st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BulkCreateResult{Created: []assignment.State{}, Failures: []BulkFailure{}}
	for i, employeeID := range cmd.EmployeeIDs {
		switch {
		case created[i] != nil:
			result.Created = append(result.Created, *created[i])
		case failed[i] != nil:
			result.Failures = append(result.Failures, BulkFailure{
				EmployeeID: employeeID,
				Error:      apperrors.PublicMessage(failed[i]),
			})
		}
	}
	slog.Info("Bulk assignment finished", "template_id", cmd.TemplateID, "created", len(result.Created), "failed", len(result.Failures))
	return result, nil
}

// StartInitialization begins the initialization phase
func (s *AssignmentService) StartInitialization(ctx context.Context, cmd StartInitializationCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionInitialize, func(a *assignment.Assignment, c identity.Caller) error {
		return a.StartInitialization(c.EmployeeID, cmd.Notes)
	})
}

// AddCustomSection adds a section during initialization
func (s *AssignmentService) AddCustomSection(ctx context.Context, cmd AddCustomSectionCommand) (assignment.State, error) {
	if cmd.SectionID == "" {
		cmd.SectionID = uuid.New().String()
	}
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionInitialize, func(a *assignment.Assignment, c identity.Caller) error {
		return a.AddCustomSection(assignment.CustomSection{
			ID:                   cmd.SectionID,
			Title:                cmd.Title,
			Description:          cmd.Description,
			Order:                cmd.Order,
			Questions:            cmd.Questions,
			ExcludeFromAggregate: true,
		}, c.EmployeeID)
	})
}

// RemoveCustomSection removes a section during initialization
func (s *AssignmentService) RemoveCustomSection(ctx context.Context, cmd RemoveCustomSectionCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionInitialize, func(a *assignment.Assignment, c identity.Caller) error {
		return a.RemoveCustomSection(cmd.SectionID, c.EmployeeID)
	})
}

// StartWork marks a side as started
func (s *AssignmentService) StartWork(ctx context.Context, cmd ParticipantCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		return a.StartWork(cmd.Participant, c.EmployeeID)
	})
}

// CompleteWork marks a side as submitted without a version check
func (s *AssignmentService) CompleteWork(ctx context.Context, cmd ParticipantCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		return a.CompleteWork(cmd.Participant, c.EmployeeID)
	})
}

// SubmitEmployeeQuestionnaire submits the employee side
func (s *AssignmentService) SubmitEmployeeQuestionnaire(ctx context.Context, cmd SubmitCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionEmployeeWork, func(a *assignment.Assignment, c identity.Caller) error {
		return a.SubmitEmployeeQuestionnaire(c.EmployeeID, cmd.ExpectedVersion)
	})
}

// SubmitManagerQuestionnaire submits the manager side
func (s *AssignmentService) SubmitManagerQuestionnaire(ctx context.Context, cmd SubmitCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionManagerWork, func(a *assignment.Assignment, c identity.Caller) error {
		return a.SubmitManagerQuestionnaire(c.EmployeeID, cmd.ExpectedVersion)
	})
}

// InitiateReview starts the review meeting
func (s *AssignmentService) InitiateReview(ctx context.Context, cmd AssignmentCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionReview, func(a *assignment.Assignment, c identity.Caller) error {
		return a.InitiateReview(c.EmployeeID)
	})
}

// FinishReviewMeeting closes the review meeting
func (s *AssignmentService) FinishReviewMeeting(ctx context.Context, cmd FinishReviewMeetingCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionReview, func(a *assignment.Assignment, c identity.Caller) error {
		return a.FinishReviewMeeting(c.EmployeeID, cmd.Summary, cmd.Mode)
	})
}

// ConfirmReviewOutcomeAsEmployee confirms a finished review
func (s *AssignmentService) ConfirmReviewOutcomeAsEmployee(ctx context.Context, cmd ConfirmOutcomeCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionConfirmOutcome, func(a *assignment.Assignment, c identity.Caller) error {
		return a.ConfirmReviewOutcomeAsEmployee(c.EmployeeID, cmd.Comments)
	})
}

// SignOffReviewOutcomeAsEmployee signs off a review awaiting sign-off
func (s *AssignmentService) SignOffReviewOutcomeAsEmployee(ctx context.Context, cmd ConfirmOutcomeCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionConfirmOutcome, func(a *assignment.Assignment, c identity.Caller) error {
		return a.SignOffReviewOutcomeAsEmployee(c.EmployeeID, cmd.Comments)
	})
}

// FinalizeAsManager finalizes and locks the assignment
func (s *AssignmentService) FinalizeAsManager(ctx context.Context, cmd FinalizeCommand) (assignment.State, error) {
	var by string
	st, err := s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionFinalize, func(a *assignment.Assignment, c identity.Caller) error {
		by = c.EmployeeID
		return a.FinalizeAsManager(c.EmployeeID, cmd.ExpectedVersion, cmd.FinalNotes)
	})
	if err != nil {
		return st, err
	}
	s.notify(ctx, notify.KindFinalized, st, by, "")
	return st, nil
}

// ExtendDueDate moves the due date later
func (s *AssignmentService) ExtendDueDate(ctx context.Context, cmd ExtendDueDateCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionExtendDueDate, func(a *assignment.Assignment, c identity.Caller) error {
		return a.ExtendDueDate(cmd.NewDueDate, cmd.Reason, c.EmployeeID)
	})
}

// Withdraw soft-terminates the assignment
func (s *AssignmentService) Withdraw(ctx context.Context, cmd WithdrawCommand) (assignment.State, error) {
	var by string
	st, err := s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionWithdraw, func(a *assignment.Assignment, c identity.Caller) error {
		by = c.EmployeeID
		return a.Withdraw(c.EmployeeID, cmd.Reason)
	})
	if err != nil {
		return st, err
	}
	s.notify(ctx, notify.KindWithdrawn, st, by, cmd.Reason)
	return st, nil
}

// ReopenQuestionnaire rolls the workflow back to an earlier state
func (s *AssignmentService) ReopenQuestionnaire(ctx context.Context, cmd ReopenCommand) (assignment.State, error) {
	var by string
	st, err := s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionReopen, func(a *assignment.Assignment, c identity.Caller) error {
		target, err := assignment.ParseWorkflowState(cmd.TargetState)
		if err != nil {
			return err
		}
		by = c.EmployeeID
		return a.ReopenWorkflow(target, cmd.Reason, c.EmployeeID, c.Role)
	})
	if err != nil {
		return st, err
	}
	s.notify(ctx, notify.KindReopened, st, by, cmd.Reason)
	return st, nil
}

// AddGoal adds a goal for one side
func (s *AssignmentService) AddGoal(ctx context.Context, cmd AddGoalCommand) (assignment.State, error) {
	if cmd.GoalID == "" {
		cmd.GoalID = uuid.New().String()
	}
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		return a.AddGoal(assignment.NewGoal{
			QuestionID:           cmd.QuestionID,
			GoalID:               cmd.GoalID,
			TimeframeFrom:        cmd.TimeframeFrom,
			TimeframeTo:          cmd.TimeframeTo,
			ObjectiveDescription: cmd.ObjectiveDescription,
			MeasurementMetric:    cmd.MeasurementMetric,
			WeightingPercentage:  cmd.WeightingPercentage,
		}, cmd.Participant, c.EmployeeID)
	})
}

// ModifyGoal changes a goal partially
func (s *AssignmentService) ModifyGoal(ctx context.Context, cmd ModifyGoalCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		return a.ModifyGoal(cmd.GoalID, cmd.Changes, cmd.Participant, cmd.ChangeReason, c.EmployeeID)
	})
}

// DeleteGoal removes a goal
func (s *AssignmentService) DeleteGoal(ctx context.Context, cmd DeleteGoalCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		return a.DeleteGoal(cmd.GoalID, cmd.Participant, c.EmployeeID)
	})
}

// loadPredecessor returns a predecessor that is finalized and belongs to
// the same employee
func (s *AssignmentService) loadPredecessor(ctx context.Context, predecessorID, employeeID string) (*assignment.Assignment, error) {
	p, err := s.predecessors.Load(ctx, predecessorID)
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, assignment.ErrPredecessorInvalid.With("predecessor questionnaire %s does not exist", predecessorID)
	}
	if err != nil {
		return nil, err
	}
	if p.EmployeeID() != employeeID {
		return nil, assignment.ErrPredecessorInvalid.With("predecessor questionnaire belongs to another employee")
	}
	if p.WorkflowState() != assignment.StateFinalized {
		return nil, assignment.ErrPredecessorInvalid.With("predecessor questionnaire is not finalized")
	}
	return p, nil
}

// LinkPredecessor links a finalized questionnaire of the same employee
func (s *AssignmentService) LinkPredecessor(ctx context.Context, cmd LinkPredecessorCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		if _, err := s.loadPredecessor(ctx, cmd.PredecessorID, a.EmployeeID()); err != nil {
			return err
		}
		return a.LinkPredecessorQuestionnaire(cmd.QuestionID, cmd.PredecessorID, cmd.Participant, c.EmployeeID)
	})
}

// RatePredecessorGoal rates a goal of the linked predecessor. The goal is
// copied from the predecessor at rating time.
func (s *AssignmentService) RatePredecessorGoal(ctx context.Context, cmd RatePredecessorGoalCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		if linked, ok := a.LinkedPredecessor(cmd.QuestionID); !ok || linked != cmd.SourceAssignmentID {
			return assignment.ErrPredecessorNotLinked.With("question %s is not linked to %s", cmd.QuestionID, cmd.SourceAssignmentID)
		}
		p, err := s.loadPredecessor(ctx, cmd.SourceAssignmentID, a.EmployeeID())
		if err != nil {
			return err
		}
		goal, ok := p.FindGoal(cmd.SourceGoalID)
		if !ok {
			return assignment.ErrGoalNotFound.With("goal %s not found in predecessor questionnaire", cmd.SourceGoalID)
		}
		snapshot, err := p.PredecessorGoalData(goal.QuestionID, goal.GoalID)
		if err != nil {
			return err
		}
		return a.RatePredecessorGoal(
			cmd.QuestionID, cmd.SourceAssignmentID, cmd.SourceGoalID,
			snapshot, cmd.Participant, cmd.DegreeOfAchievement, cmd.Justification, c.EmployeeID,
		)
	})
}

// ModifyPredecessorGoalRating changes a rating of the same side
func (s *AssignmentService) ModifyPredecessorGoalRating(ctx context.Context, cmd ModifyPredecessorGoalRatingCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, workAction(cmd.Participant), func(a *assignment.Assignment, c identity.Caller) error {
		return a.ModifyPredecessorGoalRating(cmd.QuestionID, cmd.SourceGoalID, cmd.Participant, cmd.DegreeOfAchievement, cmd.Justification, cmd.ChangeReason, c.EmployeeID)
	})
}

// EditAnswerDuringReview changes an answer during the review meeting. The
// audit fact and the answer are written by the review edit saga.
func (s *AssignmentService) EditAnswerDuringReview(ctx context.Context, cmd EditAnswerCommand) (*models.ReviewEditSaga, error) {
	if err := validator.ValidateStruct(&cmd); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.assignments.Load(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, caller, a.EmployeeID(), authz.ActionReviewEdit); err != nil {
		return nil, err
	}
	if a.IsWithdrawn() {
		return nil, assignment.ErrWithdrawn
	}
	if a.IsLocked() {
		return nil, assignment.ErrLocked
	}
	if a.WorkflowState() != assignment.StateInReview {
		return nil, assignment.ErrInvalidTransition.With("editing answers is only possible during the review meeting")
	}

	return s.reviewEdits.Begin(ctx, reviewedit.Request{
		EditID:       cmd.EditID,
		AssignmentID: cmd.AssignmentID,
		SectionID:    cmd.SectionID,
		QuestionID:   cmd.QuestionID,
		OriginalRole: cmd.OriginalRole,
		Answer:       cmd.Answer,
		EditorID:     caller.EmployeeID,
	})
}

// AddNote adds a note during the review meeting
func (s *AssignmentService) AddNote(ctx context.Context, cmd AddNoteCommand) (assignment.State, error) {
	if cmd.NoteID == "" {
		cmd.NoteID = uuid.New().String()
	}
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionNotes, func(a *assignment.Assignment, c identity.Caller) error {
		return a.AddInReviewNote(cmd.NoteID, cmd.Content, cmd.SectionID, c.EmployeeID)
	})
}

// UpdateNote replaces the content of a note
func (s *AssignmentService) UpdateNote(ctx context.Context, cmd UpdateNoteCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionNotes, func(a *assignment.Assignment, c identity.Caller) error {
		return a.UpdateInReviewNote(cmd.NoteID, cmd.Content, c.EmployeeID)
	})
}

// DeleteNote removes a note
func (s *AssignmentService) DeleteNote(ctx context.Context, cmd DeleteNoteCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionNotes, func(a *assignment.Assignment, c identity.Caller) error {
		return a.DeleteInReviewNote(cmd.NoteID, c.EmployeeID)
	})
}

// LinkFeedback links a feedback record about the same employee
func (s *AssignmentService) LinkFeedback(ctx context.Context, cmd FeedbackLinkCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionManageFeedback, func(a *assignment.Assignment, c identity.Caller) error {
		f, err := s.feedback.GetByID(ctx, cmd.FeedbackID)
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return assignment.ErrFeedbackInvalid.With("feedback record %s does not exist", cmd.FeedbackID)
		}
		if err != nil {
			return err
		}
		if f.IsDeleted() {
			return assignment.ErrFeedbackInvalid.With("feedback record %s has been deleted", cmd.FeedbackID)
		}
		if f.EmployeeID != a.EmployeeID() {
			return assignment.ErrFeedbackInvalid.With("feedback record is about another employee")
		}
		return a.LinkFeedback(cmd.QuestionID, cmd.FeedbackID, c.EmployeeID)
	})
}

// UnlinkFeedback removes a feedback link
func (s *AssignmentService) UnlinkFeedback(ctx context.Context, cmd FeedbackLinkCommand) (assignment.State, error) {
	return s.execute(ctx, &cmd, cmd.AssignmentID, authz.ActionManageFeedback, func(a *assignment.Assignment, c identity.Caller) error {
		return a.UnlinkFeedback(cmd.QuestionID, cmd.FeedbackID, c.EmployeeID)
	})
}
