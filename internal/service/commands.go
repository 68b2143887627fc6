package service

import (
	"time"

	"github.com/pwannenmacher/review-flow/internal/assignment"
)

// CreateAssignmentCommand assigns a questionnaire template to an employee
type CreateAssignmentCommand struct {
	TemplateID string     `json:"template_id" validate:"required"`
	EmployeeID string     `json:"employee_id" validate:"required"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
}

// BulkCreateAssignmentsCommand assigns one template to many employees
type BulkCreateAssignmentsCommand struct {
	TemplateID  string     `json:"template_id" validate:"required"`
	EmployeeIDs []string   `json:"employee_ids" validate:"required,min=1,max=500,dive,required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Notes       string     `json:"notes,omitempty" validate:"max=2000"`
}

// BulkFailure reports an employee for whom no assignment was created
type BulkFailure struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// BulkCreateResult lists the outcome per employee
type BulkCreateResult struct {
	Created  []assignment.State `json:"created"`
	Failures []BulkFailure      `json:"failures"`
}

// StartInitializationCommand moves an assignment out of Assigned
type StartInitializationCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
}

// AddCustomSectionCommand adds a section during initialization
type AddCustomSectionCommand struct {
	AssignmentID string                      `json:"assignment_id" validate:"required"`
	SectionID    string                      `json:"section_id,omitempty"`
	Title        string                      `json:"title" validate:"required,max=200"`
	Description  string                      `json:"description,omitempty" validate:"max=2000"`
	Order        int                         `json:"order" validate:"min=0"`
	Questions    []assignment.CustomQuestion `json:"questions" validate:"dive"`
}

// RemoveCustomSectionCommand removes a section during initialization
type RemoveCustomSectionCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	SectionID    string `json:"section_id" validate:"required"`
}

// ParticipantCommand addresses one side of the questionnaire
type ParticipantCommand struct {
	AssignmentID string                 `json:"assignment_id" validate:"required"`
	Participant  assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
}

// SubmitCommand submits one side against the version the caller has seen
type SubmitCommand struct {
	AssignmentID    string `json:"assignment_id" validate:"required"`
	ExpectedVersion int64  `json:"expected_version" validate:"required,min=1"`
}

// AssignmentCommand carries nothing but the assignment id
type AssignmentCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
}

// FinishReviewMeetingCommand closes the review meeting
type FinishReviewMeetingCommand struct {
	AssignmentID string                          `json:"assignment_id" validate:"required"`
	Summary      string                          `json:"summary,omitempty" validate:"max=4000"`
	Mode         assignment.ReviewCompletionMode `json:"mode" validate:"required,oneof=ConfirmationByEmployee SignOffByEmployee"`
}

// ConfirmOutcomeCommand is used by both employee confirmation entry points
type ConfirmOutcomeCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	Comments     string `json:"comments,omitempty" validate:"max=4000"`
}

// FinalizeCommand locks the assignment
type FinalizeCommand struct {
	AssignmentID    string `json:"assignment_id" validate:"required"`
	ExpectedVersion int64  `json:"expected_version" validate:"required,min=1"`
	FinalNotes      string `json:"final_notes,omitempty" validate:"max=4000"`
}

// ExtendDueDateCommand moves the due date
type ExtendDueDateCommand struct {
	AssignmentID string    `json:"assignment_id" validate:"required"`
	NewDueDate   time.Time `json:"new_due_date" validate:"required"`
	Reason       string    `json:"reason" validate:"required,max=2000"`
}

// WithdrawCommand soft-terminates an assignment
type WithdrawCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=2000"`
}

// ReopenCommand rolls the workflow back to an earlier state
type ReopenCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	TargetState  string `json:"target_state" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=2000"`
}

// AddGoalCommand adds a goal to a goal question
type AddGoalCommand struct {
	AssignmentID         string                 `json:"assignment_id" validate:"required"`
	Participant          assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
	QuestionID           string                 `json:"question_id" validate:"required"`
	GoalID               string                 `json:"goal_id,omitempty"`
	TimeframeFrom        time.Time              `json:"timeframe_from" validate:"required"`
	TimeframeTo          time.Time              `json:"timeframe_to" validate:"required,gtfield=TimeframeFrom"`
	ObjectiveDescription string                 `json:"objective_description" validate:"required,max=2000"`
	MeasurementMetric    string                 `json:"measurement_metric,omitempty" validate:"max=2000"`
	WeightingPercentage  float64                `json:"weighting_percentage" validate:"min=0,max=100"`
}

// ModifyGoalCommand changes a goal partially
type ModifyGoalCommand struct {
	AssignmentID string                 `json:"assignment_id" validate:"required"`
	Participant  assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
	GoalID       string                 `json:"goal_id" validate:"required"`
	Changes      assignment.GoalChanges `json:"changes"`
	ChangeReason string                 `json:"change_reason" validate:"required,max=2000"`
}

// DeleteGoalCommand removes a goal
type DeleteGoalCommand struct {
	AssignmentID string                 `json:"assignment_id" validate:"required"`
	Participant  assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
	GoalID       string                 `json:"goal_id" validate:"required"`
}

// LinkPredecessorCommand links a finalized questionnaire to a goal question
type LinkPredecessorCommand struct {
	AssignmentID  string                 `json:"assignment_id" validate:"required"`
	Participant   assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
	QuestionID    string                 `json:"question_id" validate:"required"`
	PredecessorID string                 `json:"predecessor_id" validate:"required,nefield=AssignmentID"`
}

// RatePredecessorGoalCommand rates a goal of the linked predecessor
type RatePredecessorGoalCommand struct {
	AssignmentID        string                 `json:"assignment_id" validate:"required"`
	Participant         assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
	QuestionID          string                 `json:"question_id" validate:"required"`
	SourceAssignmentID  string                 `json:"source_assignment_id" validate:"required"`
	SourceGoalID        string                 `json:"source_goal_id" validate:"required"`
	DegreeOfAchievement int                    `json:"degree_of_achievement" validate:"min=0,max=100"`
	Justification       string                 `json:"justification" validate:"required,max=4000"`
}

// ModifyPredecessorGoalRatingCommand changes an existing rating
type ModifyPredecessorGoalRatingCommand struct {
	AssignmentID        string                 `json:"assignment_id" validate:"required"`
	Participant         assignment.Participant `json:"participant" validate:"required,oneof=Employee Manager"`
	QuestionID          string                 `json:"question_id" validate:"required"`
	SourceGoalID        string                 `json:"source_goal_id" validate:"required"`
	DegreeOfAchievement *int                   `json:"degree_of_achievement,omitempty" validate:"omitempty,min=0,max=100"`
	Justification       *string                `json:"justification,omitempty" validate:"omitempty,max=4000"`
	ChangeReason        string                 `json:"change_reason" validate:"required,max=2000"`
}

// EditAnswerCommand changes an answer during the review meeting
type EditAnswerCommand struct {
	AssignmentID string                 `json:"assignment_id" validate:"required"`
	EditID       string                 `json:"edit_id,omitempty"`
	SectionID    string                 `json:"section_id,omitempty"`
	QuestionID   string                 `json:"question_id" validate:"required"`
	OriginalRole assignment.Participant `json:"original_role" validate:"required,oneof=Employee Manager"`
	Answer       string                 `json:"answer" validate:"max=20000"`
}

// AddNoteCommand adds a note during the review meeting
type AddNoteCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	NoteID       string `json:"note_id,omitempty"`
	SectionID    string `json:"section_id,omitempty"`
	Content      string `json:"content" validate:"required"`
}

// UpdateNoteCommand replaces the content of a note
type UpdateNoteCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	NoteID       string `json:"note_id" validate:"required"`
	Content      string `json:"content" validate:"required"`
}

// DeleteNoteCommand removes a note
type DeleteNoteCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	NoteID       string `json:"note_id" validate:"required"`
}

// FeedbackLinkCommand links or unlinks a feedback record
type FeedbackLinkCommand struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	QuestionID   string `json:"question_id" validate:"required"`
	FeedbackID   string `json:"feedback_id" validate:"required"`
}
