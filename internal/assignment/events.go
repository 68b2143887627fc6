package assignment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pwannenmacher/review-flow/internal/identity"
)

// EventData is the payload of a domain event
type EventData interface {
	EventType() string
}

// Event is one persisted fact about an assignment. Version is the aggregate
// version after the event was applied.
type Event struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	Type         string    `json:"type"`
	Version      int64     `json:"version"`
	OccurredAt   time.Time `json:"occurred_at"`
	Data         EventData `json:"-"`
}

const (
	EventAssignmentCreated             = "AssignmentCreated"
	EventInitializationStarted         = "InitializationStarted"
	EventCustomSectionAdded            = "CustomSectionAdded"
	EventCustomSectionRemoved          = "CustomSectionRemoved"
	EventWorkStarted                   = "WorkStarted"
	EventWorkCompleted                 = "WorkCompleted"
	EventReviewInitiated               = "ReviewInitiated"
	EventReviewMeetingFinished         = "ReviewMeetingFinished"
	EventReviewOutcomeConfirmed        = "ReviewOutcomeConfirmed"
	EventFinalized                     = "Finalized"
	EventDueDateExtended               = "DueDateExtended"
	EventWithdrawn                     = "Withdrawn"
	EventReopened                      = "Reopened"
	EventGoalAdded                     = "GoalAdded"
	EventGoalModified                  = "GoalModified"
	EventGoalDeleted                   = "GoalDeleted"
	EventPredecessorLinked             = "PredecessorLinked"
	EventPredecessorGoalRated          = "PredecessorGoalRated"
	EventPredecessorGoalRatingModified = "PredecessorGoalRatingModified"
	EventNoteAdded                     = "NoteAdded"
	EventNoteUpdated                   = "NoteUpdated"
	EventNoteDeleted                   = "NoteDeleted"
	EventReviewAnswerEdited            = "ReviewAnswerEdited"
	EventFeedbackLinked                = "FeedbackLinked"
	EventFeedbackUnlinked              = "FeedbackUnlinked"
)

type AssignmentCreated struct {
	TemplateID    string     `json:"template_id"`
	EmployeeID    string     `json:"employee_id"`
	EmployeeName  string     `json:"employee_name"`
	EmployeeEmail string     `json:"employee_email"`
	AssignedBy    string     `json:"assigned_by,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

type InitializationStarted struct {
	By    string `json:"by"`
	Notes string `json:"notes,omitempty"`
}

type CustomSectionAdded struct {
	Section CustomSection `json:"section"`
}

type CustomSectionRemoved struct {
	SectionID string `json:"section_id"`
	By        string `json:"by"`
}

type WorkStarted struct {
	Participant Participant `json:"participant"`
	By          string      `json:"by"`
}

type WorkCompleted struct {
	Participant Participant `json:"participant"`
	By          string      `json:"by"`
}

type ReviewInitiated struct {
	By string `json:"by"`
}

type ReviewMeetingFinished struct {
	By      string               `json:"by"`
	Summary string               `json:"summary"`
	Mode    ReviewCompletionMode `json:"mode"`
}

// ReviewOutcomeConfirmed is raised by both employee entry points; Path
// tells them apart.
type ReviewOutcomeConfirmed struct {
	By       string           `json:"by"`
	Comments string           `json:"comments,omitempty"`
	Path     ConfirmationPath `json:"path"`
}

type Finalized struct {
	By         string `json:"by"`
	FinalNotes string `json:"final_notes,omitempty"`
}

type DueDateExtended struct {
	Old    *time.Time `json:"old,omitempty"`
	New    time.Time  `json:"new"`
	Reason string     `json:"reason"`
	By     string     `json:"by"`
}

type Withdrawn struct {
	By     string        `json:"by"`
	Reason string        `json:"reason"`
	From   WorkflowState `json:"from"`
}

type Reopened struct {
	From   WorkflowState `json:"from"`
	To     WorkflowState `json:"to"`
	Reason string        `json:"reason"`
	By     string        `json:"by"`
	Role   identity.Role `json:"role"`
}

type GoalAdded struct {
	Goal Goal `json:"goal"`
}

type GoalModified struct {
	GoalID      string      `json:"goal_id"`
	Changes     GoalChanges `json:"changes"`
	Participant Participant `json:"participant"`
	Reason      string      `json:"reason"`
	By          string      `json:"by"`
}

type GoalDeleted struct {
	GoalID      string      `json:"goal_id"`
	Participant Participant `json:"participant"`
	By          string      `json:"by"`
}

type PredecessorLinked struct {
	QuestionID    string      `json:"question_id"`
	PredecessorID string      `json:"predecessor_id"`
	Participant   Participant `json:"participant"`
	By            string      `json:"by"`
}

type PredecessorGoalRated struct {
	Rating PredecessorGoalRating `json:"rating"`
}

type PredecessorGoalRatingModified struct {
	QuestionID    string      `json:"question_id,omitempty"`
	SourceGoalID  string      `json:"source_goal_id"`
	Participant   Participant `json:"participant"`
	Degree        *int        `json:"degree,omitempty"`
	Justification *string     `json:"justification,omitempty"`
	Reason        string      `json:"reason"`
	By            string      `json:"by"`
}

type NoteAdded struct {
	Note InReviewNote `json:"note"`
}

type NoteUpdated struct {
	NoteID  string `json:"note_id"`
	Content string `json:"content"`
	By      string `json:"by"`
}

type NoteDeleted struct {
	NoteID string `json:"note_id"`
	By     string `json:"by"`
}

type ReviewAnswerEdited struct {
	Record ReviewEditRecord `json:"record"`
}

type FeedbackLinked struct {
	QuestionID string `json:"question_id"`
	FeedbackID string `json:"feedback_id"`
	By         string `json:"by"`
}

type FeedbackUnlinked struct {
	QuestionID string `json:"question_id"`
	FeedbackID string `json:"feedback_id"`
	By         string `json:"by"`
}

func (AssignmentCreated) EventType() string             { return EventAssignmentCreated }
func (InitializationStarted) EventType() string         { return EventInitializationStarted }
func (CustomSectionAdded) EventType() string            { return EventCustomSectionAdded }
func (CustomSectionRemoved) EventType() string          { return EventCustomSectionRemoved }
func (WorkStarted) EventType() string                   { return EventWorkStarted }
func (WorkCompleted) EventType() string                 { return EventWorkCompleted }
func (ReviewInitiated) EventType() string               { return EventReviewInitiated }
func (ReviewMeetingFinished) EventType() string         { return EventReviewMeetingFinished }
func (ReviewOutcomeConfirmed) EventType() string        { return EventReviewOutcomeConfirmed }
func (Finalized) EventType() string                     { return EventFinalized }
func (DueDateExtended) EventType() string               { return EventDueDateExtended }
func (Withdrawn) EventType() string                     { return EventWithdrawn }
func (Reopened) EventType() string                      { return EventReopened }
func (GoalAdded) EventType() string                     { return EventGoalAdded }
func (GoalModified) EventType() string                  { return EventGoalModified }
func (GoalDeleted) EventType() string                   { return EventGoalDeleted }
func (PredecessorLinked) EventType() string             { return EventPredecessorLinked }
func (PredecessorGoalRated) EventType() string          { return EventPredecessorGoalRated }
func (PredecessorGoalRatingModified) EventType() string { return EventPredecessorGoalRatingModified }
func (NoteAdded) EventType() string                     { return EventNoteAdded }
func (NoteUpdated) EventType() string                   { return EventNoteUpdated }
func (NoteDeleted) EventType() string                   { return EventNoteDeleted }
func (ReviewAnswerEdited) EventType() string            { return EventReviewAnswerEdited }
func (FeedbackLinked) EventType() string                { return EventFeedbackLinked }
func (FeedbackUnlinked) EventType() string              { return EventFeedbackUnlinked }

var eventFactories = map[string]func() EventData{
	EventAssignmentCreated:             func() EventData { return &AssignmentCreated{} },
	EventInitializationStarted:         func() EventData { return &InitializationStarted{} },
	EventCustomSectionAdded:            func() EventData { return &CustomSectionAdded{} },
	EventCustomSectionRemoved:          func() EventData { return &CustomSectionRemoved{} },
	EventWorkStarted:                   func() EventData { return &WorkStarted{} },
	EventWorkCompleted:                 func() EventData { return &WorkCompleted{} },
	EventReviewInitiated:               func() EventData { return &ReviewInitiated{} },
	EventReviewMeetingFinished:         func() EventData { return &ReviewMeetingFinished{} },
	EventReviewOutcomeConfirmed:        func() EventData { return &ReviewOutcomeConfirmed{} },
	EventFinalized:                     func() EventData { return &Finalized{} },
	EventDueDateExtended:               func() EventData { return &DueDateExtended{} },
	EventWithdrawn:                     func() EventData { return &Withdrawn{} },
	EventReopened:                      func() EventData { return &Reopened{} },
	EventGoalAdded:                     func() EventData { return &GoalAdded{} },
	EventGoalModified:                  func() EventData { return &GoalModified{} },
	EventGoalDeleted:                   func() EventData { return &GoalDeleted{} },
	EventPredecessorLinked:             func() EventData { return &PredecessorLinked{} },
	EventPredecessorGoalRated:          func() EventData { return &PredecessorGoalRated{} },
	EventPredecessorGoalRatingModified: func() EventData { return &PredecessorGoalRatingModified{} },
	EventNoteAdded:                     func() EventData { return &NoteAdded{} },
	EventNoteUpdated:                   func() EventData { return &NoteUpdated{} },
	EventNoteDeleted:                   func() EventData { return &NoteDeleted{} },
	EventReviewAnswerEdited:            func() EventData { return &ReviewAnswerEdited{} },
	EventFeedbackLinked:                func() EventData { return &FeedbackLinked{} },
	EventFeedbackUnlinked:              func() EventData { return &FeedbackUnlinked{} },
}

// EncodeEventData serializes an event payload
func EncodeEventData(data EventData) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", data.EventType(), err)
	}
	return b, nil
}

// DecodeEventData restores the payload of an event of the given type
func DecodeEventData(eventType string, raw []byte) (EventData, error) {
	factory, ok := eventFactories[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	ptr := factory()
	if err := json.Unmarshal(raw, ptr); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}
	return derefEventData(ptr), nil
}

// derefEventData turns the decoded pointer back into the value type the
// aggregate raises so apply can switch on value types only.
func derefEventData(d EventData) EventData {
	switch v := d.(type) {
	case *AssignmentCreated:
		return *v
	case *InitializationStarted:
		return *v
	case *CustomSectionAdded:
		return *v
	case *CustomSectionRemoved:
		return *v
	case *WorkStarted:
		return *v
	case *WorkCompleted:
		return *v
	case *ReviewInitiated:
		return *v
	case *ReviewMeetingFinished:
		return *v
	case *ReviewOutcomeConfirmed:
		return *v
	case *Finalized:
		return *v
	case *DueDateExtended:
		return *v
	case *Withdrawn:
		return *v
	case *Reopened:
		return *v
	case *GoalAdded:
		return *v
	case *GoalModified:
		return *v
	case *GoalDeleted:
		return *v
	case *PredecessorLinked:
		return *v
	case *PredecessorGoalRated:
		return *v
	case *PredecessorGoalRatingModified:
		return *v
	case *NoteAdded:
		return *v
	case *NoteUpdated:
		return *v
	case *NoteDeleted:
		return *v
	case *ReviewAnswerEdited:
		return *v
	case *FeedbackLinked:
		return *v
	case *FeedbackUnlinked:
		return *v
	default:
		return d
	}
}
