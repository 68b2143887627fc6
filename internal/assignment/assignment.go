// Package assignment implements the questionnaire assignment aggregate: the
// review workflow state machine together with the goals, predecessor ratings,
// notes, feedback links and review-edit audit trail it owns.
//
// Every successful command raises exactly one event, applies it and bumps
// Version by one. Commands validate completely before raising, so a failed
// command leaves the aggregate untouched. The aggregate performs no I/O and
// knows nothing about authorization.
package assignment

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// State is the full, serializable state of an assignment
type State struct {
	ID            string        `json:"id"`
	TemplateID    string        `json:"template_id"`
	EmployeeID    string        `json:"employee_id"`
	EmployeeName  string        `json:"employee_name"`
	EmployeeEmail string        `json:"employee_email"`
	AssignedBy    string        `json:"assigned_by,omitempty"`
	AssignNotes   string        `json:"assign_notes,omitempty"`
	WorkflowState WorkflowState `json:"workflow_state"`
	Version       int64         `json:"version"`
	IsLocked      bool          `json:"is_locked"`
	IsWithdrawn   bool          `json:"is_withdrawn"`

	AssignedDate  time.Time  `json:"assigned_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`

	InitializedAt       *time.Time `json:"initialized_at,omitempty"`
	InitializedBy       string     `json:"initialized_by,omitempty"`
	InitializationNotes string     `json:"initialization_notes,omitempty"`

	EmployeeStartedAt   *time.Time `json:"employee_started_at,omitempty"`
	ManagerStartedAt    *time.Time `json:"manager_started_at,omitempty"`
	EmployeeSubmittedAt *time.Time `json:"employee_submitted_at,omitempty"`
	EmployeeSubmittedBy string     `json:"employee_submitted_by,omitempty"`
	ManagerSubmittedAt  *time.Time `json:"manager_submitted_at,omitempty"`
	ManagerSubmittedBy  string     `json:"manager_submitted_by,omitempty"`

	ReviewInitiatedAt *time.Time           `json:"review_initiated_at,omitempty"`
	ReviewInitiatedBy string               `json:"review_initiated_by,omitempty"`
	ReviewFinishedAt  *time.Time           `json:"review_finished_at,omitempty"`
	ReviewFinishedBy  string               `json:"review_finished_by,omitempty"`
	ReviewSummary     string               `json:"review_summary,omitempty"`
	CompletionMode    ReviewCompletionMode `json:"completion_mode,omitempty"`

	EmployeeConfirmedAt *time.Time       `json:"employee_confirmed_at,omitempty"`
	EmployeeConfirmedBy string           `json:"employee_confirmed_by,omitempty"`
	EmployeeComments    string           `json:"employee_comments,omitempty"`
	ConfirmationPath    ConfirmationPath `json:"confirmation_path,omitempty"`

	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	FinalizedBy string     `json:"finalized_by,omitempty"`
	FinalNotes  string     `json:"final_notes,omitempty"`

	WithdrawnAt      *time.Time    `json:"withdrawn_at,omitempty"`
	WithdrawnBy      string        `json:"withdrawn_by,omitempty"`
	WithdrawalReason string        `json:"withdrawal_reason,omitempty"`
	WithdrawnFrom    WorkflowState `json:"withdrawn_from,omitempty"`

	CustomSections     []CustomSection         `json:"custom_sections"`
	Goals              []Goal                  `json:"goals"`
	PredecessorLinks   map[string]string       `json:"predecessor_links"`
	PredecessorRatings []PredecessorGoalRating `json:"predecessor_ratings"`
	Notes              []InReviewNote          `json:"in_review_notes"`
	FeedbackLinks      map[string][]string     `json:"feedback_links"`
	ReviewEdits        []ReviewEditRecord      `json:"review_edits"`
	ReopenHistory      []ReopenRecord          `json:"reopen_history"`
	DueDateExtensions  []DueDateExtension      `json:"due_date_extensions"`
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	c := s
	c.DueDate = cloneTime(s.DueDate)
	c.CompletedDate = cloneTime(s.CompletedDate)
	c.InitializedAt = cloneTime(s.InitializedAt)
	c.EmployeeStartedAt = cloneTime(s.EmployeeStartedAt)
	c.ManagerStartedAt = cloneTime(s.ManagerStartedAt)
	c.EmployeeSubmittedAt = cloneTime(s.EmployeeSubmittedAt)
	c.ManagerSubmittedAt = cloneTime(s.ManagerSubmittedAt)
	c.ReviewInitiatedAt = cloneTime(s.ReviewInitiatedAt)
	c.ReviewFinishedAt = cloneTime(s.ReviewFinishedAt)
	c.EmployeeConfirmedAt = cloneTime(s.EmployeeConfirmedAt)
	c.FinalizedAt = cloneTime(s.FinalizedAt)
	c.WithdrawnAt = cloneTime(s.WithdrawnAt)

	c.CustomSections = make([]CustomSection, len(s.CustomSections))
	for i, sec := range s.CustomSections {
		sec.Questions = append([]CustomQuestion(nil), sec.Questions...)
		c.CustomSections[i] = sec
	}
	c.Goals = make([]Goal, len(s.Goals))
	for i, g := range s.Goals {
		g.ModifiedAt = cloneTime(g.ModifiedAt)
		c.Goals[i] = g
	}
	c.PredecessorLinks = make(map[string]string, len(s.PredecessorLinks))
	for k, v := range s.PredecessorLinks {
		c.PredecessorLinks[k] = v
	}
	c.PredecessorRatings = make([]PredecessorGoalRating, len(s.PredecessorRatings))
	for i, r := range s.PredecessorRatings {
		r.ModifiedAt = cloneTime(r.ModifiedAt)
		c.PredecessorRatings[i] = r
	}
	c.Notes = make([]InReviewNote, len(s.Notes))
	for i, n := range s.Notes {
		n.UpdatedAt = cloneTime(n.UpdatedAt)
		c.Notes[i] = n
	}
	c.FeedbackLinks = make(map[string][]string, len(s.FeedbackLinks))
	for k, v := range s.FeedbackLinks {
		c.FeedbackLinks[k] = append([]string(nil), v...)
	}
	c.ReviewEdits = append(make([]ReviewEditRecord, 0, len(s.ReviewEdits)), s.ReviewEdits...)
	c.ReopenHistory = append(make([]ReopenRecord, 0, len(s.ReopenHistory)), s.ReopenHistory...)
	c.DueDateExtensions = make([]DueDateExtension, len(s.DueDateExtensions))
	for i, d := range s.DueDateExtensions {
		d.Old = cloneTime(d.Old)
		c.DueDateExtensions[i] = d
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// Assignment is the questionnaire assignment aggregate root
type Assignment struct {
	st      State
	pending []Event
	now     func() time.Time
}

// Option configures an Assignment
type Option func(*Assignment)

// WithClock overrides the clock used to timestamp events
func WithClock(now func() time.Time) Option {
	return func(a *Assignment) {
		a.now = now
	}
}

func newAssignment(opts []Option) *Assignment {
	a := &Assignment{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateParams holds the data for a new assignment
type CreateParams struct {
	ID            string
	TemplateID    string
	EmployeeID    string
	EmployeeName  string
	EmployeeEmail string
	DueDate       *time.Time
	AssignedBy    string
	Notes         string
}

// Create starts a new assignment in state Assigned at version 1
func Create(p CreateParams, opts ...Option) (*Assignment, error) {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return nil, ErrInvalidAssignment.With("assignment id is required")
	case strings.TrimSpace(p.TemplateID) == "":
		return nil, ErrInvalidAssignment.With("template id is required")
	case strings.TrimSpace(p.EmployeeID) == "":
		return nil, ErrInvalidAssignment.With("employee id is required")
	case strings.TrimSpace(p.EmployeeName) == "":
		return nil, ErrInvalidAssignment.With("employee name is required")
	}

	a := newAssignment(opts)
	a.st.ID = p.ID
	if p.DueDate != nil && !p.DueDate.After(a.now()) {
		return nil, ErrDueDateInvalid.With("due date must lie in the future")
	}

	a.raise(AssignmentCreated{
		TemplateID:    p.TemplateID,
		EmployeeID:    p.EmployeeID,
		EmployeeName:  p.EmployeeName,
		EmployeeEmail: p.EmployeeEmail,
		AssignedBy:    p.AssignedBy,
		DueDate:       cloneTime(p.DueDate),
		Notes:         p.Notes,
	})
	return a, nil
}

// Replay rebuilds an assignment from its full event history
func Replay(id string, events []Event, opts ...Option) (*Assignment, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events for assignment %s", id)
	}
	if _, ok := events[0].Data.(AssignmentCreated); !ok {
		return nil, fmt.Errorf("first event of assignment %s is %s, want %s", id, events[0].Type, EventAssignmentCreated)
	}

	a := newAssignment(opts)
	a.st.ID = id
	for _, e := range events {
		if e.Version != a.st.Version+1 {
			return nil, fmt.Errorf("event %s has version %d, want %d", e.ID, e.Version, a.st.Version+1)
		}
		a.apply(e)
	}
	return a, nil
}

// FromSnapshot restores an assignment from a stored state
func FromSnapshot(s State, opts ...Option) *Assignment {
	a := newAssignment(opts)
	a.st = s.Clone()
	return a
}

// Snapshot returns a deep copy of the current state
func (a *Assignment) Snapshot() State {
	return a.st.Clone()
}

// PendingEvents returns events raised since load or the last MarkCommitted
func (a *Assignment) PendingEvents() []Event {
	return append([]Event(nil), a.pending...)
}

// MarkCommitted clears the pending events after a successful store
func (a *Assignment) MarkCommitted() {
	a.pending = nil
}

// PersistedVersion is the version the aggregate had before its pending events
func (a *Assignment) PersistedVersion() int64 {
	return a.st.Version - int64(len(a.pending))
}

func (a *Assignment) ID() string                   { return a.st.ID }
func (a *Assignment) Version() int64               { return a.st.Version }
func (a *Assignment) EmployeeID() string           { return a.st.EmployeeID }
func (a *Assignment) WorkflowState() WorkflowState { return a.st.WorkflowState }
func (a *Assignment) IsLocked() bool               { return a.st.IsLocked }
func (a *Assignment) IsWithdrawn() bool            { return a.st.IsWithdrawn }

func (a *Assignment) raise(data EventData) {
	e := Event{
		ID:           ulid.Make().String(),
		AssignmentID: a.st.ID,
		Type:         data.EventType(),
		Version:      a.st.Version + 1,
		OccurredAt:   a.now(),
		Data:         data,
	}
	a.apply(e)
	a.pending = append(a.pending, e)
}

// ensureMutable rejects commands on withdrawn or locked assignments.
// Withdrawal is checked first since it is the more specific terminal state.
func (a *Assignment) ensureMutable() error {
	if a.st.IsWithdrawn {
		return ErrWithdrawn
	}
	if a.st.IsLocked {
		return ErrLocked
	}
	return nil
}

func (a *Assignment) checkVersion(expected int64) error {
	if expected != a.st.Version {
		return ErrVersionConflict.With("expected version %d but assignment is at version %d", expected, a.st.Version)
	}
	return nil
}
