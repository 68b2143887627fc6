// Package response holds the answer values of a questionnaire assignment.
// It is stored separately from the assignment so answers can be sealed and
// edited without touching the workflow history.
package response

import (
	"slices"
	"strings"
	"time"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/assignment"
)

var (
	ErrAnswerInvalid = apperrors.New(apperrors.KindValidation, apperrors.CodeValidationFailed, "invalid answer")
	ErrEditApplied   = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeReviewEditDuplicate, "review edit already applied")
	ErrNotFound      = apperrors.New(apperrors.KindNotFound, apperrors.CodeResponseNotFound, "response not found")
)

// Answer is the value one side gave to a question
type Answer struct {
	SectionID  string                 `json:"section_id"`
	QuestionID string                 `json:"question_id"`
	Role       assignment.Participant `json:"role"`
	Value      string                 `json:"value"`
	UpdatedBy  string                 `json:"updated_by"`
	UpdatedAt  time.Time              `json:"updated_at"`
	EditID     string                 `json:"edit_id,omitempty"`
}

// Response is the answer record of an assignment. Version increases by one
// per mutation and is used for compare-and-swap on store.
type Response struct {
	AssignmentID string   `json:"assignment_id"`
	Version      int64    `json:"version"`
	Answers      []Answer `json:"answers"`
	AppliedEdits []string `json:"applied_edits"`

	now func() time.Time
}

// Option configures a Response
type Option func(*Response)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Response) {
		r.now = now
	}
}

// New returns an empty response at version 0
func New(assignmentID string, opts ...Option) *Response {
	r := &Response{AssignmentID: assignmentID}
	r.init(opts)
	return r
}

// Restore rebuilds a response read from storage
func Restore(assignmentID string, version int64, answers []Answer, appliedEdits []string, opts ...Option) *Response {
	r := &Response{
		AssignmentID: assignmentID,
		Version:      version,
		Answers:      slices.Clone(answers),
		AppliedEdits: slices.Clone(appliedEdits),
	}
	r.init(opts)
	return r
}

func (r *Response) init(opts []Option) {
	r.now = func() time.Time { return time.Now().UTC() }
	for _, opt := range opts {
		opt(r)
	}
}

// SaveAnswer sets the answer of one side to a question
func (r *Response) SaveAnswer(sectionID, questionID string, role assignment.Participant, value, by string) error {
	if err := validateKey(questionID, role); err != nil {
		return err
	}
	r.put(Answer{SectionID: sectionID, QuestionID: questionID, Role: role, Value: value, UpdatedBy: by})
	return nil
}

// ApplyReviewEdit writes an answer changed during the review meeting. Each
// edit id is applied at most once.
func (r *Response) ApplyReviewEdit(editID, sectionID, questionID string, role assignment.Participant, value, by string) error {
	if strings.TrimSpace(editID) == "" {
		return ErrAnswerInvalid.With("edit id is required")
	}
	if err := validateKey(questionID, role); err != nil {
		return err
	}
	if r.HasAppliedEdit(editID) {
		return ErrEditApplied.With("review edit %s already applied", editID)
	}
	r.put(Answer{SectionID: sectionID, QuestionID: questionID, Role: role, Value: value, UpdatedBy: by, EditID: editID})
	r.AppliedEdits = append(r.AppliedEdits, editID)
	return nil
}

// HasAppliedEdit reports whether editID was already written
func (r *Response) HasAppliedEdit(editID string) bool {
	return slices.Contains(r.AppliedEdits, editID)
}

// Answer returns the answer of role to a question
func (r *Response) Answer(questionID string, role assignment.Participant) (Answer, bool) {
	i := r.index(questionID, role)
	if i < 0 {
		return Answer{}, false
	}
	return r.Answers[i], true
}

func (r *Response) put(a Answer) {
	a.UpdatedAt = r.now()
	if i := r.index(a.QuestionID, a.Role); i >= 0 {
		r.Answers[i] = a
	} else {
		r.Answers = append(r.Answers, a)
	}
	r.Version++
}

func (r *Response) index(questionID string, role assignment.Participant) int {
	return slices.IndexFunc(r.Answers, func(a Answer) bool {
		return a.QuestionID == questionID && a.Role == role
	})
}

func validateKey(questionID string, role assignment.Participant) error {
	if strings.TrimSpace(questionID) == "" {
		return ErrAnswerInvalid.With("question id is required")
	}
	if !role.Valid() {
		return ErrAnswerInvalid.With("unknown role %q", role)
	}
	return nil
}
