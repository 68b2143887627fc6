package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	employeeID = "emp-1"
	managerID  = "mgr-1"
	hrID       = "hr-1"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// tickingClock returns a clock that advances one minute per call
func tickingClock() func() time.Time {
	now := baseTime
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func newTestAssignment(t *testing.T) *Assignment {
	t.Helper()
	a, err := Create(CreateParams{
		ID:            "asg-1",
		TemplateID:    "tpl-2026",
		EmployeeID:    employeeID,
		EmployeeName:  "Alex Doe",
		EmployeeEmail: "alex@example.com",
		AssignedBy:    hrID,
	}, WithClock(tickingClock()))
	require.NoError(t, err)
	return a
}

func initialized(t *testing.T) *Assignment {
	t.Helper()
	a := newTestAssignment(t)
	require.NoError(t, a.StartInitialization(managerID, "kickoff"))
	return a
}

func bothSubmitted(t *testing.T) *Assignment {
	t.Helper()
	a := initialized(t)
	require.NoError(t, a.CompleteWork(Employee, employeeID))
	require.NoError(t, a.CompleteWork(Manager, managerID))
	require.Equal(t, StateBothSubmitted, a.WorkflowState())
	return a
}

func inReview(t *testing.T) *Assignment {
	t.Helper()
	a := bothSubmitted(t)
	require.NoError(t, a.InitiateReview(managerID))
	return a
}

func confirmed(t *testing.T) *Assignment {
	t.Helper()
	a := inReview(t)
	require.NoError(t, a.FinishReviewMeeting(managerID, "good year", ModeConfirmationByEmployee))
	require.NoError(t, a.ConfirmReviewOutcomeAsEmployee(employeeID, "agreed"))
	return a
}

func finalized(t *testing.T) *Assignment {
	t.Helper()
	a := confirmed(t)
	require.NoError(t, a.FinalizeAsManager(managerID, a.Version(), "done"))
	return a
}

func withdrawn(t *testing.T) *Assignment {
	t.Helper()
	a := initialized(t)
	require.NoError(t, a.Withdraw(hrID, "employee left the company"))
	return a
}

func sampleGoal(id string, weighting float64) NewGoal {
	return NewGoal{
		QuestionID:           "q-goals",
		GoalID:               id,
		TimeframeFrom:        baseTime,
		TimeframeTo:          baseTime.AddDate(0, 6, 0),
		ObjectiveDescription: "Ship the billing rewrite",
		MeasurementMetric:    "Rollout complete",
		WeightingPercentage:  weighting,
	}
}
