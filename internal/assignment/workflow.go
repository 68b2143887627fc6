package assignment

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pwannenmacher/review-flow/internal/identity"
)

// MinReopenReasonLength is the minimum rune count of a trimmed reopen reason
const MinReopenReasonLength = 10

// StartInitialization moves a freshly assigned questionnaire to Initialized
func (a *Assignment) StartInitialization(by, notes string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != StateAssigned {
		return ErrInvalidTransition.With("cannot start initialization in state %s", a.st.WorkflowState)
	}
	a.raise(InitializationStarted{By: by, Notes: strings.TrimSpace(notes)})
	return nil
}

// AddCustomSection adds a section that is excluded from aggregate reporting
func (a *Assignment) AddCustomSection(section CustomSection, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != StateInitialized {
		return ErrInvalidTransition.With("custom sections can only be added during initialization")
	}
	if strings.TrimSpace(section.ID) == "" || strings.TrimSpace(section.Title) == "" {
		return ErrSectionInvalid.With("section id and title are required")
	}
	for _, existing := range a.st.CustomSections {
		if existing.ID == section.ID {
			return ErrSectionInvalid.With("section %s already exists", section.ID)
		}
	}
	seen := make(map[string]bool, len(section.Questions))
	for _, q := range section.Questions {
		if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Text) == "" {
			return ErrSectionInvalid.With("every question needs an id and a text")
		}
		if seen[q.ID] {
			return ErrSectionInvalid.With("duplicate question %s", q.ID)
		}
		seen[q.ID] = true
	}

	section.Questions = append([]CustomQuestion(nil), section.Questions...)
	section.AddedBy = by
	a.raise(CustomSectionAdded{Section: section})
	return nil
}

// RemoveCustomSection removes a section added during initialization
func (a *Assignment) RemoveCustomSection(sectionID, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != StateInitialized {
		return ErrInvalidTransition.With("custom sections can only be removed during initialization")
	}
	found := false
	for _, s := range a.st.CustomSections {
		if s.ID == sectionID {
			found = true
			break
		}
	}
	if !found {
		return ErrSectionInvalid.With("section %s not found", sectionID)
	}
	a.raise(CustomSectionRemoved{SectionID: sectionID, By: by})
	return nil
}

// StartWork marks that a participant began filling in the questionnaire
func (a *Assignment) StartWork(p Participant, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if !p.Valid() {
		return ErrInvalidTransition.With("unknown participant %q", p)
	}
	if !a.st.WorkflowState.IsPreReview() {
		return ErrInvalidTransition.With("cannot start work in state %s", a.st.WorkflowState)
	}
	if a.hasStarted(p) || a.hasSubmitted(p) {
		return ErrInvalidTransition.With("%s has already started work", strings.ToLower(string(p)))
	}
	a.raise(WorkStarted{Participant: p, By: by})
	return nil
}

// CompleteWork submits a participant's side without a version check. The
// Submit* commands wrap it with optimistic concurrency.
func (a *Assignment) CompleteWork(p Participant, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if !p.Valid() {
		return ErrInvalidTransition.With("unknown participant %q", p)
	}
	if !a.st.WorkflowState.IsPreReview() {
		return ErrInvalidTransition.With("cannot submit in state %s", a.st.WorkflowState)
	}
	if a.hasSubmitted(p) {
		return ErrInvalidTransition.With("%s questionnaire already submitted", strings.ToLower(string(p)))
	}
	a.raise(WorkCompleted{Participant: p, By: by})
	return nil
}

// SubmitEmployeeQuestionnaire submits the employee side
func (a *Assignment) SubmitEmployeeQuestionnaire(by string, expectedVersion int64) error {
	return a.submit(Employee, by, expectedVersion)
}

// SubmitManagerQuestionnaire submits the manager side
func (a *Assignment) SubmitManagerQuestionnaire(by string, expectedVersion int64) error {
	return a.submit(Manager, by, expectedVersion)
}

func (a *Assignment) submit(p Participant, by string, expectedVersion int64) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if err := a.checkVersion(expectedVersion); err != nil {
		return err
	}
	return a.CompleteWork(p, by)
}

// InitiateReview starts the review meeting once both sides submitted
func (a *Assignment) InitiateReview(by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != StateBothSubmitted {
		if a.st.WorkflowState.IsPreReview() {
			var missing []string
			if !a.hasSubmitted(Employee) {
				missing = append(missing, "employee")
			}
			if !a.hasSubmitted(Manager) {
				missing = append(missing, "manager")
			}
			return ErrInvalidTransition.With("cannot initiate review: %s submission missing", strings.Join(missing, " and "))
		}
		return ErrInvalidTransition.With("cannot initiate review in state %s", a.st.WorkflowState)
	}
	a.raise(ReviewInitiated{By: by})
	return nil
}

// FinishReviewMeeting closes the review meeting. The mode decides whether
// the employee confirms (ReviewFinished) or signs off (AwaitingEmployeeSignOff).
func (a *Assignment) FinishReviewMeeting(by, summary string, mode ReviewCompletionMode) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != StateInReview {
		return ErrInvalidTransition.With("cannot finish review meeting in state %s", a.st.WorkflowState)
	}
	if _, ok := mode.target(); !ok {
		return ErrInvalidTransition.With("unknown review completion mode %q", mode)
	}
	a.raise(ReviewMeetingFinished{By: by, Summary: strings.TrimSpace(summary), Mode: mode})
	return nil
}

// ConfirmReviewOutcomeAsEmployee confirms a finished review
func (a *Assignment) ConfirmReviewOutcomeAsEmployee(by, comments string) error {
	return a.confirmOutcome(StateReviewFinished, PathConfirmation, by, comments)
}

// SignOffReviewOutcomeAsEmployee signs off a review awaiting sign-off
func (a *Assignment) SignOffReviewOutcomeAsEmployee(by, comments string) error {
	return a.confirmOutcome(StateAwaitingEmployeeSignOff, PathSignOff, by, comments)
}

// confirmOutcome is the single edge into EmployeeReviewConfirmed
func (a *Assignment) confirmOutcome(from WorkflowState, path ConfirmationPath, by, comments string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if a.st.WorkflowState != from {
		return ErrInvalidTransition.With("cannot confirm review outcome via %s in state %s", strings.ToLower(string(path)), a.st.WorkflowState)
	}
	a.raise(ReviewOutcomeConfirmed{By: by, Comments: strings.TrimSpace(comments), Path: path})
	return nil
}

// FinalizeAsManager finalizes and permanently locks the assignment
func (a *Assignment) FinalizeAsManager(by string, expectedVersion int64, finalNotes string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if err := a.checkVersion(expectedVersion); err != nil {
		return err
	}
	if a.st.WorkflowState != StateEmployeeReviewConfirmed {
		return ErrInvalidTransition.With("cannot finalize in state %s", a.st.WorkflowState)
	}
	a.raise(Finalized{By: by, FinalNotes: strings.TrimSpace(finalNotes)})
	return nil
}

// ExtendDueDate moves the due date later
func (a *Assignment) ExtendDueDate(newDate time.Time, reason, by string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired.With("a reason is required to extend the due date")
	}
	if !newDate.After(a.st.AssignedDate) {
		return ErrDueDateInvalid.With("due date must be after the assigned date")
	}
	if a.st.DueDate != nil && !newDate.After(*a.st.DueDate) {
		return ErrDueDateInvalid.With("new due date must be later than the current due date")
	}
	a.raise(DueDateExtended{Old: cloneTime(a.st.DueDate), New: newDate, Reason: reason, By: by})
	return nil
}

// Withdraw terminates the assignment. Nothing can be changed afterwards.
func (a *Assignment) Withdraw(by, reason string) error {
	if err := a.ensureMutable(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired.With("a reason is required to withdraw")
	}
	a.raise(Withdrawn{By: by, Reason: reason, From: a.st.WorkflowState})
	return nil
}

// ReopenWorkflow rolls the workflow back to an earlier state. Whether the
// caller may reopen this employee's assignment is decided before this call.
func (a *Assignment) ReopenWorkflow(target WorkflowState, reason, by string, role identity.Role) error {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinReopenReasonLength {
		return ErrReasonTooShort
	}
	if err := a.ensureMutable(); err != nil {
		return err
	}
	if !target.IsReopenTarget() {
		return ErrInvalidTransition.With("cannot reopen to state %s", target)
	}
	if !target.Before(a.st.WorkflowState) {
		return ErrInvalidTransition.With("cannot reopen from %s to %s: target must be an earlier state", a.st.WorkflowState, target)
	}
	if p, ok := a.missingProgress(target); ok {
		return ErrInvalidTransition.With("cannot reopen to %s: %s never started work", target, strings.ToLower(string(p)))
	}
	a.raise(Reopened{From: a.st.WorkflowState, To: target, Reason: reason, By: by, Role: role})
	return nil
}

// missingProgress reports a participant whose progress target requires but
// who never started. A reopen only removes progress, it never invents it.
func (a *Assignment) missingProgress(target WorkflowState) (Participant, bool) {
	switch target {
	case StateEmployeeInProgress:
		if !a.hasStarted(Employee) {
			return Employee, true
		}
	case StateManagerInProgress:
		if !a.hasStarted(Manager) {
			return Manager, true
		}
	case StateBothInProgress:
		for _, p := range []Participant{Employee, Manager} {
			if !a.hasStarted(p) {
				return p, true
			}
		}
	}
	return "", false
}

func (a *Assignment) hasStarted(p Participant) bool {
	if p == Employee {
		return a.st.EmployeeStartedAt != nil
	}
	return a.st.ManagerStartedAt != nil
}

func (a *Assignment) hasSubmitted(p Participant) bool {
	if p == Employee {
		return a.st.EmployeeSubmittedAt != nil
	}
	return a.st.ManagerSubmittedAt != nil
}
