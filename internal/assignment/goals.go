package assignment

import (
	"math"
	"strings"
	"time"
)

// NewGoal describes a goal to add
type NewGoal struct {
	QuestionID           string
	GoalID               string
	TimeframeFrom        time.Time
	TimeframeTo          time.Time
	ObjectiveDescription string
	MeasurementMetric    string
	WeightingPercentage  float64
}

// canEditGoals reports whether participant p may touch goals right now:
// while p is working on its side, or by either side during the review meeting.
func (a *Assignment) canEditGoals(p Participant) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if !p.Valid() {
		return ErrInvalidTransition.With("unknown participant %q", p)
	}
	if a.st.WorkflowState == StateInReview {
		return nil
	}
	if a.st.WorkflowState.IsPreReview() && a.hasStarted(p) && !a.hasSubmitted(p) {
		return nil
	}
	return ErrInvalidTransition.With("%s cannot change goals in state %s", strings.ToLower(string(p)), a.st.WorkflowState)
}

func validateWeighting(w float64) error {
	if math.IsNaN(w) || w < 0 || w > 100 {
		return ErrWeightingRange.With("weighting %.2f is outside 0..100", w)
	}
	return nil
}

func validateGoalShape(objective string, from, to time.Time, weighting float64) error {
	if strings.TrimSpace(objective) == "" {
		return ErrGoalInvalid.With("objective description is required")
	}
	if from.IsZero() || to.IsZero() {
		return ErrGoalInvalid.With("timeframe is required")
	}
	if to.Before(from) {
		return ErrGoalInvalid.With("timeframe end must not be before its start")
	}
	return validateWeighting(weighting)
}

// AddGoal adds a goal to a question. A weighting of 0 is allowed and can be
// set later during the review.
func (a *Assignment) AddGoal(g NewGoal, p Participant, by string) error {
	if err := a.canEditGoals(p); err != nil {
		return err
	}
	if strings.TrimSpace(g.QuestionID) == "" || strings.TrimSpace(g.GoalID) == "" {
		return ErrGoalInvalid.With("question id and goal id are required")
	}
	if err := validateGoalShape(g.ObjectiveDescription, g.TimeframeFrom, g.TimeframeTo, g.WeightingPercentage); err != nil {
		return err
	}
	if a.goalIndex(g.GoalID) >= 0 {
		return ErrGoalAlreadyExists.With("goal %s already exists", g.GoalID)
	}

	a.raise(GoalAdded{Goal: Goal{
		GoalID:               g.GoalID,
		QuestionID:           g.QuestionID,
		ObjectiveDescription: strings.TrimSpace(g.ObjectiveDescription),
		MeasurementMetric:    strings.TrimSpace(g.MeasurementMetric),
		TimeframeFrom:        g.TimeframeFrom,
		TimeframeTo:          g.TimeframeTo,
		WeightingPercentage:  g.WeightingPercentage,
		AddedByRole:          p,
		AddedByEmployeeID:    by,
	}})
	return nil
}

// ModifyGoal applies a partial update to a goal
func (a *Assignment) ModifyGoal(goalID string, changes GoalChanges, p Participant, changeReason, by string) error {
	if err := a.canEditGoals(p); err != nil {
		return err
	}
	changeReason = strings.TrimSpace(changeReason)
	if changeReason == "" {
		return ErrReasonRequired.With("a change reason is required to modify a goal")
	}
	i := a.goalIndex(goalID)
	if i < 0 {
		return ErrGoalNotFound.With("goal %s not found", goalID)
	}
	if err := a.checkGoalOwnership(a.st.Goals[i], p); err != nil {
		return err
	}
	if changes.Empty() {
		return ErrGoalInvalid.With("no changes given")
	}

	merged := a.st.Goals[i]
	changes.applyTo(&merged)
	if err := validateGoalShape(merged.ObjectiveDescription, merged.TimeframeFrom, merged.TimeframeTo, merged.WeightingPercentage); err != nil {
		return err
	}

	a.raise(GoalModified{GoalID: goalID, Changes: changes, Participant: p, Reason: changeReason, By: by})
	return nil
}

// DeleteGoal removes a goal
func (a *Assignment) DeleteGoal(goalID string, p Participant, by string) error {
	if err := a.canEditGoals(p); err != nil {
		return err
	}
	i := a.goalIndex(goalID)
	if i < 0 {
		return ErrGoalNotFound.With("goal %s not found", goalID)
	}
	if err := a.checkGoalOwnership(a.st.Goals[i], p); err != nil {
		return err
	}
	a.raise(GoalDeleted{GoalID: goalID, Participant: p, By: by})
	return nil
}

// checkGoalOwnership limits each side to its own goals before the review
// meeting; during the meeting both sides work on all goals.
func (a *Assignment) checkGoalOwnership(g Goal, p Participant) error {
	if a.st.WorkflowState == StateInReview || g.AddedByRole == p {
		return nil
	}
	return ErrInvalidTransition.With("goal %s was added by the %s", g.GoalID, strings.ToLower(string(g.AddedByRole)))
}

// FindGoal returns a goal by id
func (a *Assignment) FindGoal(goalID string) (Goal, bool) {
	i := a.goalIndex(goalID)
	if i < 0 {
		return Goal{}, false
	}
	g := a.st.Goals[i]
	g.ModifiedAt = cloneTime(g.ModifiedAt)
	return g, true
}

// Goals returns the goals of a question in insertion order
func (a *Assignment) Goals(questionID string) []Goal {
	var out []Goal
	for _, g := range a.st.Goals {
		if g.QuestionID == questionID {
			g.ModifiedAt = cloneTime(g.ModifiedAt)
			out = append(out, g)
		}
	}
	return out
}

// PredecessorGoalData returns the snapshot of one of this assignment's goals
// for rating in a successor questionnaire.
func (a *Assignment) PredecessorGoalData(questionID, goalID string) (GoalSnapshot, error) {
	g, ok := a.FindGoal(goalID)
	if !ok || (questionID != "" && g.QuestionID != questionID) {
		return GoalSnapshot{}, ErrGoalNotFound.With("goal %s not found for question %s", goalID, questionID)
	}
	return g.Snapshot(), nil
}

// LinkPredecessorQuestionnaire points a question at an earlier assignment
// whose goals will be rated. Linking to a different predecessor replaces the
// link and drops ratings taken against the old one.
func (a *Assignment) LinkPredecessorQuestionnaire(questionID, predecessorID string, p Participant, by string) error {
	if err := a.canEditGoals(p); err != nil {
		return err
	}
	if strings.TrimSpace(questionID) == "" || strings.TrimSpace(predecessorID) == "" {
		return ErrPredecessorInvalid.With("question id and predecessor id are required")
	}
	if predecessorID == a.st.ID {
		return ErrPredecessorInvalid.With("an assignment cannot be its own predecessor")
	}
	if current, ok := a.st.PredecessorLinks[questionID]; ok && current == predecessorID {
		return ErrPredecessorInvalid.With("question %s is already linked to %s", questionID, predecessorID)
	}
	a.raise(PredecessorLinked{QuestionID: questionID, PredecessorID: predecessorID, Participant: p, By: by})
	return nil
}

// LinkedPredecessor returns the predecessor linked to a question
func (a *Assignment) LinkedPredecessor(questionID string) (string, bool) {
	id, ok := a.st.PredecessorLinks[questionID]
	return id, ok
}

// RatePredecessorGoal records how far a predecessor goal was achieved.
// Employee and manager ratings are kept independently.
func (a *Assignment) RatePredecessorGoal(
	questionID, sourceAssignmentID, sourceGoalID string,
	snapshot GoalSnapshot,
	p Participant,
	degree int,
	justification, by string,
) error {
	if err := a.canEditGoals(p); err != nil {
		return err
	}
	linked, ok := a.st.PredecessorLinks[questionID]
	if !ok || linked != sourceAssignmentID {
		return ErrPredecessorNotLinked.With("question %s is not linked to %s", questionID, sourceAssignmentID)
	}
	if strings.TrimSpace(sourceGoalID) == "" {
		return ErrRatingInvalid.With("source goal id is required")
	}
	if degree < 0 || degree > 100 {
		return ErrRatingInvalid.With("degree of achievement %d is outside 0..100", degree)
	}
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return ErrRatingInvalid.With("a justification is required")
	}
	for _, r := range a.st.PredecessorRatings {
		if r.QuestionID == questionID && r.SourceGoalID == sourceGoalID && r.RatedByRole == p {
			return ErrRatingExists.With("%s already rated goal %s", strings.ToLower(string(p)), sourceGoalID)
		}
	}

	a.raise(PredecessorGoalRated{Rating: PredecessorGoalRating{
		QuestionID:          questionID,
		SourceAssignmentID:  sourceAssignmentID,
		SourceGoalID:        sourceGoalID,
		Snapshot:            snapshot,
		DegreeOfAchievement: degree,
		Justification:       justification,
		RatedByRole:         p,
		RatedByEmployeeID:   by,
	}})
	return nil
}

// ModifyPredecessorGoalRating changes the rating of the same side. A rating
// is addressed by question, source goal and side.
func (a *Assignment) ModifyPredecessorGoalRating(questionID, sourceGoalID string, p Participant, degree *int, justification *string, changeReason, by string) error {
	if err := a.canEditGoals(p); err != nil {
		return err
	}
	changeReason = strings.TrimSpace(changeReason)
	if changeReason == "" {
		return ErrReasonRequired.With("a change reason is required to modify a rating")
	}
	if strings.TrimSpace(questionID) == "" {
		return ErrRatingInvalid.With("question id is required")
	}
	if a.ratingIndex(questionID, sourceGoalID, p) < 0 {
		return ErrRatingNotFound.With("no %s rating for goal %s on question %s", strings.ToLower(string(p)), sourceGoalID, questionID)
	}
	if degree == nil && justification == nil {
		return ErrRatingInvalid.With("no changes given")
	}
	if degree != nil && (*degree < 0 || *degree > 100) {
		return ErrRatingInvalid.With("degree of achievement %d is outside 0..100", *degree)
	}
	if justification != nil {
		j := strings.TrimSpace(*justification)
		if j == "" {
			return ErrRatingInvalid.With("a justification is required")
		}
		justification = &j
	}
	a.raise(PredecessorGoalRatingModified{
		QuestionID:    questionID,
		SourceGoalID:  sourceGoalID,
		Participant:   p,
		Degree:        degree,
		Justification: justification,
		Reason:        changeReason,
		By:            by,
	})
	return nil
}

// Ratings returns the predecessor ratings for a source goal
func (a *Assignment) Ratings(sourceGoalID string) []PredecessorGoalRating {
	var out []PredecessorGoalRating
	for _, r := range a.st.PredecessorRatings {
		if r.SourceGoalID == sourceGoalID {
			r.ModifiedAt = cloneTime(r.ModifiedAt)
			out = append(out, r)
		}
	}
	return out
}
