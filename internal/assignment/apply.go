package assignment

import "slices"

// apply mutates state from an event. It never fails: every check happens
// before the event is raised, and replayed history is trusted.
func (a *Assignment) apply(e Event) {
	s := &a.st
	at := e.OccurredAt

	switch d := e.Data.(type) {
	case AssignmentCreated:
		s.TemplateID = d.TemplateID
		s.EmployeeID = d.EmployeeID
		s.EmployeeName = d.EmployeeName
		s.EmployeeEmail = d.EmployeeEmail
		s.AssignedBy = d.AssignedBy
		s.AssignNotes = d.Notes
		s.DueDate = cloneTime(d.DueDate)
		s.AssignedDate = at
		s.WorkflowState = StateAssigned
		s.PredecessorLinks = map[string]string{}
		s.FeedbackLinks = map[string][]string{}

	case InitializationStarted:
		s.WorkflowState = StateInitialized
		s.InitializedAt = timePtr(at)
		s.InitializedBy = d.By
		s.InitializationNotes = d.Notes

	case CustomSectionAdded:
		sec := d.Section
		sec.ExcludeFromAggregate = true
		sec.AddedAt = at
		s.CustomSections = append(s.CustomSections, sec)

	case CustomSectionRemoved:
		s.CustomSections = slices.DeleteFunc(s.CustomSections, func(c CustomSection) bool {
			return c.ID == d.SectionID
		})

	case WorkStarted:
		if d.Participant == Employee {
			s.EmployeeStartedAt = timePtr(at)
		} else {
			s.ManagerStartedAt = timePtr(at)
		}
		s.WorkflowState = a.progressState()

	case WorkCompleted:
		if d.Participant == Employee {
			if s.EmployeeStartedAt == nil {
				s.EmployeeStartedAt = timePtr(at)
			}
			s.EmployeeSubmittedAt = timePtr(at)
			s.EmployeeSubmittedBy = d.By
		} else {
			if s.ManagerStartedAt == nil {
				s.ManagerStartedAt = timePtr(at)
			}
			s.ManagerSubmittedAt = timePtr(at)
			s.ManagerSubmittedBy = d.By
		}
		s.WorkflowState = a.progressState()

	case ReviewInitiated:
		s.WorkflowState = StateInReview
		s.ReviewInitiatedAt = timePtr(at)
		s.ReviewInitiatedBy = d.By

	case ReviewMeetingFinished:
		target, _ := d.Mode.target()
		s.WorkflowState = target
		s.ReviewFinishedAt = timePtr(at)
		s.ReviewFinishedBy = d.By
		s.ReviewSummary = d.Summary
		s.CompletionMode = d.Mode

	case ReviewOutcomeConfirmed:
		s.WorkflowState = StateEmployeeReviewConfirmed
		s.EmployeeConfirmedAt = timePtr(at)
		s.EmployeeConfirmedBy = d.By
		s.EmployeeComments = d.Comments
		s.ConfirmationPath = d.Path

	case Finalized:
		s.WorkflowState = StateFinalized
		s.IsLocked = true
		s.FinalizedAt = timePtr(at)
		s.FinalizedBy = d.By
		s.FinalNotes = d.FinalNotes
		s.CompletedDate = timePtr(at)

	case DueDateExtended:
		s.DueDateExtensions = append(s.DueDateExtensions, DueDateExtension{
			Old:    cloneTime(d.Old),
			New:    d.New,
			Reason: d.Reason,
			By:     d.By,
			At:     at,
		})
		s.DueDate = timePtr(d.New)

	case Withdrawn:
		s.WithdrawnFrom = d.From
		s.WorkflowState = StateWithdrawn
		s.IsWithdrawn = true
		s.WithdrawnAt = timePtr(at)
		s.WithdrawnBy = d.By
		s.WithdrawalReason = d.Reason

	case Reopened:
		a.resetProgressFor(d.To)
		s.WorkflowState = d.To
		s.ReopenHistory = append(s.ReopenHistory, ReopenRecord{
			From:   d.From,
			To:     d.To,
			Reason: d.Reason,
			By:     d.By,
			Role:   d.Role,
			At:     at,
		})

	case GoalAdded:
		g := d.Goal
		g.AddedAt = at
		s.Goals = append(s.Goals, g)

	case GoalModified:
		if i := a.goalIndex(d.GoalID); i >= 0 {
			g := &s.Goals[i]
			d.Changes.applyTo(g)
			g.ModifiedAt = timePtr(at)
			g.ModifiedByRole = d.Participant
			g.ModifiedByEmployeeID = d.By
			g.LastChangeReason = d.Reason
		}

	case GoalDeleted:
		s.Goals = slices.DeleteFunc(s.Goals, func(g Goal) bool { return g.GoalID == d.GoalID })

	case PredecessorLinked:
		if s.PredecessorLinks == nil {
			s.PredecessorLinks = map[string]string{}
		}
		s.PredecessorLinks[d.QuestionID] = d.PredecessorID
		// ratings taken against a replaced predecessor no longer apply
		s.PredecessorRatings = slices.DeleteFunc(s.PredecessorRatings, func(r PredecessorGoalRating) bool {
			return r.QuestionID == d.QuestionID && r.SourceAssignmentID != d.PredecessorID
		})

	case PredecessorGoalRated:
		r := d.Rating
		r.RatedAt = at
		s.PredecessorRatings = append(s.PredecessorRatings, r)

	case PredecessorGoalRatingModified:
		if i := a.ratingIndex(d.QuestionID, d.SourceGoalID, d.Participant); i >= 0 {
			r := &s.PredecessorRatings[i]
			if d.Degree != nil {
				r.DegreeOfAchievement = *d.Degree
			}
			if d.Justification != nil {
				r.Justification = *d.Justification
			}
			r.ModifiedAt = timePtr(at)
			r.LastChangeReason = d.Reason
		}

	case NoteAdded:
		n := d.Note
		n.CreatedAt = at
		s.Notes = append(s.Notes, n)

	case NoteUpdated:
		if i := a.noteIndex(d.NoteID); i >= 0 {
			s.Notes[i].Content = d.Content
			s.Notes[i].UpdatedAt = timePtr(at)
			s.Notes[i].UpdatedBy = d.By
		}

	case NoteDeleted:
		s.Notes = slices.DeleteFunc(s.Notes, func(n InReviewNote) bool { return n.ID == d.NoteID })

	case ReviewAnswerEdited:
		rec := d.Record
		rec.EditedAt = at
		s.ReviewEdits = append(s.ReviewEdits, rec)

	case FeedbackLinked:
		if s.FeedbackLinks == nil {
			s.FeedbackLinks = map[string][]string{}
		}
		s.FeedbackLinks[d.QuestionID] = append(s.FeedbackLinks[d.QuestionID], d.FeedbackID)

	case FeedbackUnlinked:
		ids := slices.DeleteFunc(s.FeedbackLinks[d.QuestionID], func(id string) bool { return id == d.FeedbackID })
		if len(ids) == 0 {
			delete(s.FeedbackLinks, d.QuestionID)
		} else {
			s.FeedbackLinks[d.QuestionID] = ids
		}
	}

	s.Version = e.Version
}

func (a *Assignment) progressState() WorkflowState {
	s := &a.st
	return deriveProgressState(
		s.EmployeeStartedAt != nil, s.EmployeeSubmittedAt != nil,
		s.ManagerStartedAt != nil, s.ManagerSubmittedAt != nil,
	)
}

// resetProgressFor clears progress recorded after target so the derived
// flags agree with the state the workflow is reopened to.
func (a *Assignment) resetProgressFor(target WorkflowState) {
	s := &a.st

	clearReview := func() {
		s.ReviewInitiatedAt, s.ReviewInitiatedBy = nil, ""
	}
	clearMeeting := func() {
		s.ReviewFinishedAt, s.ReviewFinishedBy, s.ReviewSummary, s.CompletionMode = nil, "", "", ""
		s.EmployeeConfirmedAt, s.EmployeeConfirmedBy, s.EmployeeComments, s.ConfirmationPath = nil, "", "", ""
	}
	clearSubmissions := func() {
		s.EmployeeSubmittedAt, s.EmployeeSubmittedBy = nil, ""
		s.ManagerSubmittedAt, s.ManagerSubmittedBy = nil, ""
	}

	clearMeeting()
	if target == StateInReview {
		return
	}
	clearReview()
	clearSubmissions()

	switch target {
	case StateInitialized:
		s.EmployeeStartedAt, s.ManagerStartedAt = nil, nil
	case StateEmployeeInProgress:
		s.ManagerStartedAt = nil
	case StateManagerInProgress:
		s.EmployeeStartedAt = nil
	}
}

func (a *Assignment) goalIndex(goalID string) int {
	return slices.IndexFunc(a.st.Goals, func(g Goal) bool { return g.GoalID == goalID })
}

// ratingIndex finds a rating by question, source goal and side. Events
// recorded without a question match the first rating of the goal.
func (a *Assignment) ratingIndex(questionID, sourceGoalID string, p Participant) int {
	return slices.IndexFunc(a.st.PredecessorRatings, func(r PredecessorGoalRating) bool {
		return (questionID == "" || r.QuestionID == questionID) && r.SourceGoalID == sourceGoalID && r.RatedByRole == p
	})
}

func (a *Assignment) noteIndex(noteID string) int {
	return slices.IndexFunc(a.st.Notes, func(n InReviewNote) bool { return n.ID == noteID })
}
