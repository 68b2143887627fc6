package assignment

import (
	"time"

	"github.com/pwannenmacher/review-flow/internal/identity"
)

// Goal is a performance goal owned by the assignment
type Goal struct {
	GoalID               string      `json:"goal_id"`
	QuestionID           string      `json:"question_id"`
	ObjectiveDescription string      `json:"objective_description"`
	MeasurementMetric    string      `json:"measurement_metric"`
	TimeframeFrom        time.Time   `json:"timeframe_from"`
	TimeframeTo          time.Time   `json:"timeframe_to"`
	WeightingPercentage  float64     `json:"weighting_percentage"`
	AddedByRole          Participant `json:"added_by_role"`
	AddedByEmployeeID    string      `json:"added_by_employee_id"`
	AddedAt              time.Time   `json:"added_at"`
	ModifiedAt           *time.Time  `json:"modified_at,omitempty"`
	ModifiedByRole       Participant `json:"modified_by_role,omitempty"`
	ModifiedByEmployeeID string      `json:"modified_by_employee_id,omitempty"`
	LastChangeReason     string      `json:"last_change_reason,omitempty"`
}

// Snapshot captures the descriptive fields of the goal
func (g Goal) Snapshot() GoalSnapshot {
	return GoalSnapshot{
		ObjectiveDescription: g.ObjectiveDescription,
		MeasurementMetric:    g.MeasurementMetric,
		TimeframeFrom:        g.TimeframeFrom,
		TimeframeTo:          g.TimeframeTo,
		WeightingPercentage:  g.WeightingPercentage,
		AddedByRole:          g.AddedByRole,
	}
}

// GoalChanges is a partial update; nil fields are left unchanged
type GoalChanges struct {
	TimeframeFrom        *time.Time `json:"timeframe_from,omitempty"`
	TimeframeTo          *time.Time `json:"timeframe_to,omitempty"`
	ObjectiveDescription *string    `json:"objective_description,omitempty"`
	MeasurementMetric    *string    `json:"measurement_metric,omitempty"`
	WeightingPercentage  *float64   `json:"weighting_percentage,omitempty"`
}

// Empty reports whether no field is set
func (c GoalChanges) Empty() bool {
	return c.TimeframeFrom == nil && c.TimeframeTo == nil && c.ObjectiveDescription == nil &&
		c.MeasurementMetric == nil && c.WeightingPercentage == nil
}

func (c GoalChanges) applyTo(g *Goal) {
	if c.TimeframeFrom != nil {
		g.TimeframeFrom = *c.TimeframeFrom
	}
	if c.TimeframeTo != nil {
		g.TimeframeTo = *c.TimeframeTo
	}
	if c.ObjectiveDescription != nil {
		g.ObjectiveDescription = *c.ObjectiveDescription
	}
	if c.MeasurementMetric != nil {
		g.MeasurementMetric = *c.MeasurementMetric
	}
	if c.WeightingPercentage != nil {
		g.WeightingPercentage = *c.WeightingPercentage
	}
}

// GoalSnapshot is a copy of a predecessor goal taken at rating time
type GoalSnapshot struct {
	ObjectiveDescription string      `json:"objective_description"`
	MeasurementMetric    string      `json:"measurement_metric"`
	TimeframeFrom        time.Time   `json:"timeframe_from"`
	TimeframeTo          time.Time   `json:"timeframe_to"`
	WeightingPercentage  float64     `json:"weighting_percentage"`
	AddedByRole          Participant `json:"added_by_role"`
}

// PredecessorGoalRating rates a goal of a linked predecessor questionnaire
type PredecessorGoalRating struct {
	QuestionID          string       `json:"question_id"`
	SourceAssignmentID  string       `json:"source_assignment_id"`
	SourceGoalID        string       `json:"source_goal_id"`
	Snapshot            GoalSnapshot `json:"snapshot"`
	DegreeOfAchievement int          `json:"degree_of_achievement"`
	Justification       string       `json:"justification"`
	RatedByRole         Participant  `json:"rated_by_role"`
	RatedByEmployeeID   string       `json:"rated_by_employee_id"`
	RatedAt             time.Time    `json:"rated_at"`
	ModifiedAt          *time.Time   `json:"modified_at,omitempty"`
	LastChangeReason    string       `json:"last_change_reason,omitempty"`
}

// InReviewNote is a free-text annotation written during the review meeting
type InReviewNote struct {
	ID               string     `json:"id"`
	Content          string     `json:"content"`
	SectionID        string     `json:"section_id,omitempty"`
	AuthorEmployeeID string     `json:"author_employee_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	UpdatedBy        string     `json:"updated_by,omitempty"`
}

// CustomSection is a questionnaire section added during initialization
type CustomSection struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	Description          string           `json:"description,omitempty"`
	Order                int              `json:"order"`
	Questions            []CustomQuestion `json:"questions"`
	ExcludeFromAggregate bool             `json:"exclude_from_aggregate"`
	AddedBy              string           `json:"added_by"`
	AddedAt              time.Time        `json:"added_at"`
}

// CustomQuestion belongs to a CustomSection
type CustomQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// ReviewEditRecord is the audit fact for an answer changed during review.
// The answer itself lives in the response record; only its digest is kept.
type ReviewEditRecord struct {
	EditID       string      `json:"edit_id"`
	SectionID    string      `json:"section_id"`
	QuestionID   string      `json:"question_id"`
	OriginalRole Participant `json:"original_role"`
	EditedBy     string      `json:"edited_by"`
	EditedAt     time.Time   `json:"edited_at"`
	AnswerDigest string      `json:"answer_digest"`
}

// ReopenRecord documents a rollback of the workflow
type ReopenRecord struct {
	From   WorkflowState `json:"from"`
	To     WorkflowState `json:"to"`
	Reason string        `json:"reason"`
	By     string        `json:"by"`
	Role   identity.Role `json:"role"`
	At     time.Time     `json:"at"`
}

// DueDateExtension documents a change of the due date
type DueDateExtension struct {
	Old    *time.Time `json:"old,omitempty"`
	New    time.Time  `json:"new"`
	Reason string     `json:"reason"`
	By     string     `json:"by"`
	At     time.Time  `json:"at"`
}
