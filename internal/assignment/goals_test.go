package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func employeeWorking(t *testing.T) *Assignment {
	t.Helper()
	a := initialized(t)
	require.NoError(t, a.StartWork(Employee, employeeID))
	return a
}

func TestAddGoalWithZeroWeightingThenSubmit(t *testing.T) {
	a := employeeWorking(t)

	require.NoError(t, a.AddGoal(sampleGoal("g-1", 0), Employee, employeeID))
	g, ok := a.FindGoal("g-1")
	require.True(t, ok)
	assert.Equal(t, 0.0, g.WeightingPercentage)
	assert.Equal(t, Employee, g.AddedByRole)
	assert.Equal(t, employeeID, g.AddedByEmployeeID)

	stale := a.Version() - 1
	assert.ErrorIs(t, a.SubmitEmployeeQuestionnaire(employeeID, stale), ErrVersionConflict)
	require.NoError(t, a.SubmitEmployeeQuestionnaire(employeeID, a.Version()))
	assert.Equal(t, StateEmployeeSubmitted, a.WorkflowState())
}

func TestGoalWeightingBounds(t *testing.T) {
	for _, w := range []float64{-0.01, -5, 100.5, 250} {
		a := employeeWorking(t)
		err := a.AddGoal(sampleGoal("g-1", w), Employee, employeeID)
		assert.ErrorIs(t, err, ErrWeightingRange, "weighting %v", w)
	}

	a := employeeWorking(t)
	require.NoError(t, a.AddGoal(sampleGoal("g-0", 0), Employee, employeeID))
	require.NoError(t, a.AddGoal(sampleGoal("g-100", 100), Employee, employeeID))

	tooHigh := 101.0
	assert.ErrorIs(t, a.ModifyGoal("g-0", GoalChanges{WeightingPercentage: &tooHigh}, Employee, "rebalance", employeeID), ErrWeightingRange)
	negative := -1.0
	assert.ErrorIs(t, a.ModifyGoal("g-0", GoalChanges{WeightingPercentage: &negative}, Employee, "rebalance", employeeID), ErrWeightingRange)

	g, _ := a.FindGoal("g-0")
	assert.Equal(t, 0.0, g.WeightingPercentage, "failed modify leaves goal untouched")
}

func TestGoalSumIsNotEnforced(t *testing.T) {
	a := employeeWorking(t)
	require.NoError(t, a.AddGoal(sampleGoal("g-1", 80), Employee, employeeID))
	require.NoError(t, a.AddGoal(sampleGoal("g-2", 80), Employee, employeeID))
	assert.Len(t, a.Goals("q-goals"), 2)
}

func TestAddGoalPhaseRules(t *testing.T) {
	a := initialized(t)
	assert.ErrorIs(t, a.AddGoal(sampleGoal("g-1", 10), Employee, employeeID), ErrInvalidTransition, "not started")

	require.NoError(t, a.StartWork(Employee, employeeID))
	assert.ErrorIs(t, a.AddGoal(sampleGoal("g-1", 10), Manager, managerID), ErrInvalidTransition, "manager not started")
	require.NoError(t, a.AddGoal(sampleGoal("g-1", 10), Employee, employeeID))
	assert.ErrorIs(t, a.AddGoal(sampleGoal("g-1", 10), Employee, employeeID), ErrGoalAlreadyExists)

	require.NoError(t, a.CompleteWork(Employee, employeeID))
	assert.ErrorIs(t, a.AddGoal(sampleGoal("g-2", 10), Employee, employeeID), ErrInvalidTransition, "already submitted")

	r := inReview(t)
	require.NoError(t, r.AddGoal(sampleGoal("g-r", 10), Manager, managerID))
	require.NoError(t, r.AddGoal(sampleGoal("g-r2", 10), Employee, employeeID))
}

func TestAddGoalValidation(t *testing.T) {
	a := employeeWorking(t)

	noObjective := sampleGoal("g-1", 10)
	noObjective.ObjectiveDescription = " "
	assert.ErrorIs(t, a.AddGoal(noObjective, Employee, employeeID), ErrGoalInvalid)

	backwards := sampleGoal("g-1", 10)
	backwards.TimeframeTo = backwards.TimeframeFrom.AddDate(0, -1, 0)
	assert.ErrorIs(t, a.AddGoal(backwards, Employee, employeeID), ErrGoalInvalid)

	noID := sampleGoal("", 10)
	assert.ErrorIs(t, a.AddGoal(noID, Employee, employeeID), ErrGoalInvalid)
}

func TestModifyGoal(t *testing.T) {
	a := employeeWorking(t)
	require.NoError(t, a.AddGoal(sampleGoal("g-1", 10), Employee, employeeID))

	objective := "Ship billing v2"
	weight := 40.0
	assert.ErrorIs(t, a.ModifyGoal("g-1", GoalChanges{ObjectiveDescription: &objective}, Employee, "", employeeID), ErrReasonRequired)
	assert.ErrorIs(t, a.ModifyGoal("g-404", GoalChanges{ObjectiveDescription: &objective}, Employee, "typo", employeeID), ErrGoalNotFound)
	assert.ErrorIs(t, a.ModifyGoal("g-1", GoalChanges{}, Employee, "typo", employeeID), ErrGoalInvalid)

	require.NoError(t, a.ModifyGoal("g-1", GoalChanges{ObjectiveDescription: &objective, WeightingPercentage: &weight}, Employee, "scope changed", employeeID))

	g, ok := a.FindGoal("g-1")
	require.True(t, ok)
	assert.Equal(t, objective, g.ObjectiveDescription)
	assert.Equal(t, 40.0, g.WeightingPercentage)
	assert.Equal(t, "Rollout complete", g.MeasurementMetric, "unset fields are unchanged")
	assert.Equal(t, "scope changed", g.LastChangeReason)
	assert.Equal(t, Employee, g.ModifiedByRole)
	require.NotNil(t, g.ModifiedAt)
}

func TestGoalOwnershipBeforeReview(t *testing.T) {
	a := initialized(t)
	require.NoError(t, a.StartWork(Employee, employeeID))
	require.NoError(t, a.StartWork(Manager, managerID))
	require.NoError(t, a.AddGoal(sampleGoal("g-emp", 10), Employee, employeeID))

	assert.ErrorIs(t, a.DeleteGoal("g-emp", Manager, managerID), ErrInvalidTransition)
	require.NoError(t, a.DeleteGoal("g-emp", Employee, employeeID))
	assert.ErrorIs(t, a.DeleteGoal("g-emp", Employee, employeeID), ErrGoalNotFound)
}

func TestDeleteGoalOutsidePermittedStates(t *testing.T) {
	a := employeeWorking(t)
	require.NoError(t, a.AddGoal(sampleGoal("g-1", 10), Employee, employeeID))
	require.NoError(t, a.CompleteWork(Employee, employeeID))
	require.NoError(t, a.CompleteWork(Manager, managerID))

	err := a.DeleteGoal("g-1", Employee, employeeID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, ok := a.FindGoal("g-1")
	assert.True(t, ok)
}

func predecessorWithGoal(t *testing.T) *Assignment {
	t.Helper()
	p, err := Create(CreateParams{
		ID:           "asg-2025",
		TemplateID:   "tpl-2025",
		EmployeeID:   employeeID,
		EmployeeName: "Alex Doe",
	}, WithClock(tickingClock()))
	require.NoError(t, err)
	require.NoError(t, p.StartInitialization(managerID, ""))
	require.NoError(t, p.StartWork(Employee, employeeID))
	require.NoError(t, p.AddGoal(sampleGoal("old-goal", 30), Employee, employeeID))
	return p
}

func TestPredecessorGoalData(t *testing.T) {
	p := predecessorWithGoal(t)

	snap, err := p.PredecessorGoalData("q-goals", "old-goal")
	require.NoError(t, err)
	assert.Equal(t, "Ship the billing rewrite", snap.ObjectiveDescription)
	assert.Equal(t, Employee, snap.AddedByRole)
	assert.Equal(t, 30.0, snap.WeightingPercentage)

	_, err = p.PredecessorGoalData("q-other", "old-goal")
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

func TestLinkPredecessor(t *testing.T) {
	a := employeeWorking(t)

	assert.ErrorIs(t, a.LinkPredecessorQuestionnaire("q-goals", a.ID(), Employee, employeeID), ErrPredecessorInvalid)
	require.NoError(t, a.LinkPredecessorQuestionnaire("q-goals", "asg-2025", Employee, employeeID))
	assert.ErrorIs(t, a.LinkPredecessorQuestionnaire("q-goals", "asg-2025", Employee, employeeID), ErrPredecessorInvalid, "same predecessor twice")

	id, ok := a.LinkedPredecessor("q-goals")
	require.True(t, ok)
	assert.Equal(t, "asg-2025", id)
}

func TestPredecessorRatingIndependence(t *testing.T) {
	p := predecessorWithGoal(t)
	snap, err := p.PredecessorGoalData("q-goals", "old-goal")
	require.NoError(t, err)

	a := initialized(t)
	require.NoError(t, a.StartWork(Employee, employeeID))
	require.NoError(t, a.StartWork(Manager, managerID))
	require.NoError(t, a.LinkPredecessorQuestionnaire("q-goals", p.ID(), Employee, employeeID))

	require.NoError(t, a.RatePredecessorGoal("q-goals", p.ID(), "old-goal", snap, Employee, 80, "mostly done", employeeID))
	require.NoError(t, a.RatePredecessorGoal("q-goals", p.ID(), "old-goal", snap, Manager, 60, "partially done", managerID))
	assert.ErrorIs(t, a.RatePredecessorGoal("q-goals", p.ID(), "old-goal", snap, Employee, 90, "again", employeeID), ErrRatingExists)

	ratings := a.Ratings("old-goal")
	require.Len(t, ratings, 2)
	byRole := map[Participant]PredecessorGoalRating{}
	for _, r := range ratings {
		byRole[r.RatedByRole] = r
	}
	assert.Equal(t, 80, byRole[Employee].DegreeOfAchievement)
	assert.Equal(t, 60, byRole[Manager].DegreeOfAchievement)

	degree := 70
	require.NoError(t, a.ModifyPredecessorGoalRating("q-goals", "old-goal", Manager, &degree, nil, "after discussion", managerID))
	for _, r := range a.Ratings("old-goal") {
		if r.RatedByRole == Employee {
			assert.Equal(t, 80, r.DegreeOfAchievement, "employee rating untouched")
		} else {
			assert.Equal(t, 70, r.DegreeOfAchievement)
			assert.Equal(t, "partially done", r.Justification)
			assert.Equal(t, "after discussion", r.LastChangeReason)
		}
	}
}

func TestRatingSnapshotSurvivesSourceChange(t *testing.T) {
	p := predecessorWithGoal(t)
	snap, err := p.PredecessorGoalData("q-goals", "old-goal")
	require.NoError(t, err)

	a := employeeWorking(t)
	require.NoError(t, a.LinkPredecessorQuestionnaire("q-goals", p.ID(), Employee, employeeID))
	require.NoError(t, a.RatePredecessorGoal("q-goals", p.ID(), "old-goal", snap, Employee, 50, "halfway", employeeID))

	changed := "Something else entirely"
	require.NoError(t, p.ModifyGoal("old-goal", GoalChanges{ObjectiveDescription: &changed}, Employee, "rewrite", employeeID))

	assert.Equal(t, "Ship the billing rewrite", a.Ratings("old-goal")[0].Snapshot.ObjectiveDescription)
}

func TestRatePredecessorGoalValidation(t *testing.T) {
	a := employeeWorking(t)
	snap := GoalSnapshot{ObjectiveDescription: "x"}

	assert.ErrorIs(t, a.RatePredecessorGoal("q-goals", "asg-2025", "old-goal", snap, Employee, 50, "j", employeeID), ErrPredecessorNotLinked)

	require.NoError(t, a.LinkPredecessorQuestionnaire("q-goals", "asg-2025", Employee, employeeID))
	assert.ErrorIs(t, a.RatePredecessorGoal("q-goals", "asg-other", "old-goal", snap, Employee, 50, "j", employeeID), ErrPredecessorNotLinked)
	assert.ErrorIs(t, a.RatePredecessorGoal("q-goals", "asg-2025", "old-goal", snap, Employee, 101, "j", employeeID), ErrRatingInvalid)
	assert.ErrorIs(t, a.RatePredecessorGoal("q-goals", "asg-2025", "old-goal", snap, Employee, 50, " ", employeeID), ErrRatingInvalid)

	degree := 10
	assert.ErrorIs(t, a.ModifyPredecessorGoalRating("q-goals", "old-goal", Employee, &degree, nil, "why", employeeID), ErrRatingNotFound)
}

func TestModifyRatingIsScopedToQuestion(t *testing.T) {
	a := employeeWorking(t)
	snap := GoalSnapshot{ObjectiveDescription: "x"}
	for _, q := range []string{"q-a", "q-b"} {
		require.NoError(t, a.LinkPredecessorQuestionnaire(q, "asg-2025", Employee, employeeID))
		require.NoError(t, a.RatePredecessorGoal(q, "asg-2025", "old-goal", snap, Employee, 10, "barely started", employeeID))
	}

	degree := 90
	require.NoError(t, a.ModifyPredecessorGoalRating("q-b", "old-goal", Employee, &degree, nil, "recounted", employeeID))

	byQuestion := map[string]int{}
	for _, r := range a.Ratings("old-goal") {
		byQuestion[r.QuestionID] = r.DegreeOfAchievement
	}
	assert.Equal(t, map[string]int{"q-a": 10, "q-b": 90}, byQuestion)

	assert.ErrorIs(t, a.ModifyPredecessorGoalRating("q-c", "old-goal", Employee, &degree, nil, "recounted", employeeID), ErrRatingNotFound)
	assert.ErrorIs(t, a.ModifyPredecessorGoalRating("", "old-goal", Employee, &degree, nil, "recounted", employeeID), ErrRatingInvalid)

	replayed, err := Replay(a.ID(), a.PendingEvents())
	require.NoError(t, err)
	assert.Equal(t, a.Snapshot().PredecessorRatings, replayed.Snapshot().PredecessorRatings)
}

func TestRelinkDropsRatingsOfOldPredecessor(t *testing.T) {
	a := employeeWorking(t)
	require.NoError(t, a.LinkPredecessorQuestionnaire("q-goals", "asg-2024", Employee, employeeID))
	require.NoError(t, a.RatePredecessorGoal("q-goals", "asg-2024", "g-old", GoalSnapshot{}, Employee, 50, "ok", employeeID))

	require.NoError(t, a.LinkPredecessorQuestionnaire("q-goals", "asg-2025", Employee, employeeID))
	assert.Empty(t, a.Ratings("g-old"))
}
