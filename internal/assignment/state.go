package assignment

// WorkflowState is a named phase of the review lifecycle
type WorkflowState string

const (
	StateAssigned                WorkflowState = "Assigned"
	StateInitialized             WorkflowState = "Initialized"
	StateEmployeeInProgress      WorkflowState = "EmployeeInProgress"
	StateManagerInProgress       WorkflowState = "ManagerInProgress"
	StateBothInProgress          WorkflowState = "BothInProgress"
	StateEmployeeSubmitted       WorkflowState = "EmployeeSubmitted"
	StateManagerSubmitted        WorkflowState = "ManagerSubmitted"
	StateBothSubmitted           WorkflowState = "BothSubmitted"
	StateInReview                WorkflowState = "InReview"
	StateReviewFinished          WorkflowState = "ReviewFinished"
	StateAwaitingEmployeeSignOff WorkflowState = "AwaitingEmployeeSignOff"
	StateEmployeeReviewConfirmed WorkflowState = "EmployeeReviewConfirmed"
	StateFinalized               WorkflowState = "Finalized"
	StateWithdrawn               WorkflowState = "Withdrawn"
)

// canonical order; Withdrawn is deliberately absent
var stateOrder = []WorkflowState{
	StateAssigned,
	StateInitialized,
	StateEmployeeInProgress,
	StateManagerInProgress,
	StateBothInProgress,
	StateEmployeeSubmitted,
	StateManagerSubmitted,
	StateBothSubmitted,
	StateInReview,
	StateReviewFinished,
	StateAwaitingEmployeeSignOff,
	StateEmployeeReviewConfirmed,
	StateFinalized,
}

var stateRank = func() map[WorkflowState]int {
	m := make(map[WorkflowState]int, len(stateOrder))
	for i, s := range stateOrder {
		m[s] = i
	}
	return m
}()

// reopenTargets lists the states a reopen may move back to
var reopenTargets = map[WorkflowState]bool{
	StateInitialized:        true,
	StateEmployeeInProgress: true,
	StateManagerInProgress:  true,
	StateBothInProgress:     true,
	StateInReview:           true,
}

// Rank returns the position of s in the canonical order, or -1 for
// Withdrawn and unknown states.
func (s WorkflowState) Rank() int {
	if r, ok := stateRank[s]; ok {
		return r
	}
	return -1
}

// Before reports whether s strictly precedes other in the canonical order
func (s WorkflowState) Before(other WorkflowState) bool {
	rs, ro := s.Rank(), other.Rank()
	return rs >= 0 && ro >= 0 && rs < ro
}

// IsPreReview reports whether s lies within Initialized..BothSubmitted
func (s WorkflowState) IsPreReview() bool {
	r := s.Rank()
	return r >= stateRank[StateInitialized] && r <= stateRank[StateBothSubmitted]
}

// IsReopenTarget reports whether a reopen may land on s
func (s WorkflowState) IsReopenTarget() bool {
	return reopenTargets[s]
}

// Valid reports whether s is a known state
func (s WorkflowState) Valid() bool {
	return s == StateWithdrawn || s.Rank() >= 0
}

// ParseWorkflowState converts a name to a WorkflowState
func ParseWorkflowState(name string) (WorkflowState, error) {
	s := WorkflowState(name)
	if !s.Valid() {
		return "", ErrInvalidAssignment.With("unknown workflow state %q", name)
	}
	return s, nil
}

// Participant identifies the side of a questionnaire
type Participant string

const (
	Employee Participant = "Employee"
	Manager  Participant = "Manager"
)

// Valid reports whether p is Employee or Manager
func (p Participant) Valid() bool {
	return p == Employee || p == Manager
}

// ParseParticipant converts a name to a Participant
func ParseParticipant(name string) (Participant, error) {
	p := Participant(name)
	if !p.Valid() {
		return "", ErrInvalidAssignment.With("unknown participant %q", name)
	}
	return p, nil
}

// ReviewCompletionMode decides where FinishReviewMeeting leads
type ReviewCompletionMode string

const (
	// ModeConfirmationByEmployee moves to ReviewFinished
	ModeConfirmationByEmployee ReviewCompletionMode = "ConfirmationByEmployee"
	// ModeSignOffByEmployee moves to AwaitingEmployeeSignOff
	ModeSignOffByEmployee ReviewCompletionMode = "SignOffByEmployee"
)

func (m ReviewCompletionMode) target() (WorkflowState, bool) {
	switch m {
	case ModeConfirmationByEmployee:
		return StateReviewFinished, true
	case ModeSignOffByEmployee:
		return StateAwaitingEmployeeSignOff, true
	default:
		return "", false
	}
}

// ConfirmationPath records which entry point confirmed the review outcome
type ConfirmationPath string

const (
	PathConfirmation ConfirmationPath = "Confirmation"
	PathSignOff      ConfirmationPath = "SignOff"
)

// deriveProgressState computes the pre-review state from participant flags
func deriveProgressState(employeeStarted, employeeSubmitted, managerStarted, managerSubmitted bool) WorkflowState {
	switch {
	case employeeSubmitted && managerSubmitted:
		return StateBothSubmitted
	case employeeSubmitted:
		return StateEmployeeSubmitted
	case managerSubmitted:
		return StateManagerSubmitted
	case employeeStarted && managerStarted:
		return StateBothInProgress
	case employeeStarted:
		return StateEmployeeInProgress
	case managerStarted:
		return StateManagerInProgress
	default:
		return StateInitialized
	}
}
