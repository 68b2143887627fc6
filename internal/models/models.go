package models

import (
	"time"
)

// Employee is a row of the reporting hierarchy
type Employee struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Email     string  `json:"email" db:"email"`
	ManagerID *string `json:"manager_id,omitempty" db:"manager_id"`
}

// FeedbackRecord is an external feedback entry that can be linked to a question
type FeedbackRecord struct {
	ID         string     `json:"id" db:"id"`
	EmployeeID string     `json:"employee_id" db:"employee_id"`
	AuthorID   string     `json:"author_id" db:"author_id"`
	Content    string     `json:"content" db:"content"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports whether the record was soft-deleted
func (f *FeedbackRecord) IsDeleted() bool {
	return f.DeletedAt != nil
}

// SagaStatus is the progress of a review edit
type SagaStatus string

const (
	SagaPending   SagaStatus = "pending"
	SagaAudited   SagaStatus = "audited"
	SagaCompleted SagaStatus = "completed"
	SagaFailed    SagaStatus = "failed"
)

// IsTerminal reports whether no further step runs
func (s SagaStatus) IsTerminal() bool {
	return s == SagaCompleted || s == SagaFailed
}

// ReviewEditSaga tracks an answer edited during the review meeting across
// the assignment audit and the response write. Answer holds the sealed value.
type ReviewEditSaga struct {
	EditID       string     `json:"edit_id" db:"edit_id"`
	AssignmentID string     `json:"assignment_id" db:"assignment_id"`
	SectionID    string     `json:"section_id" db:"section_id"`
	QuestionID   string     `json:"question_id" db:"question_id"`
	OriginalRole string     `json:"original_role" db:"original_role"`
	EditorID     string     `json:"editor_id" db:"editor_id"`
	Answer       string     `json:"-" db:"answer"`
	Status       SagaStatus `json:"status" db:"status"`
	Attempts     int        `json:"attempts" db:"attempts"`
	LastError    string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
