package assignment

import "github.com/pwannenmacher/review-flow/internal/apperrors"

// Sentinels raised by the aggregate. Callers compare with errors.Is; the
// returned errors usually carry a more specific message.
var (
	ErrInvalidTransition = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeInvalidWorkflowTransition, "invalid workflow transition")
	ErrLocked            = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeAssignmentLocked, "assignment is finalized and locked")
	ErrWithdrawn         = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeAssignmentWithdrawn, "assignment has been withdrawn")
	ErrVersionConflict   = apperrors.New(apperrors.KindConflict, apperrors.CodeVersionConflict, "assignment was modified concurrently")
	ErrReasonTooShort    = apperrors.New(apperrors.KindValidation, apperrors.CodeReopenReasonTooShort, "reopen reason must be at least 10 characters")
	ErrReasonRequired    = apperrors.New(apperrors.KindValidation, apperrors.CodeReasonRequired, "a reason is required")
	ErrDueDateInvalid    = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeDueDateInvalid, "invalid due date")

	ErrGoalNotFound      = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeGoalNotFound, "goal not found")
	ErrGoalAlreadyExists = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeGoalAlreadyExists, "goal already exists")
	ErrGoalInvalid       = apperrors.New(apperrors.KindValidation, apperrors.CodeGoalInvalid, "invalid goal")
	ErrWeightingRange    = apperrors.New(apperrors.KindValidation, apperrors.CodeWeightingOutOfRange, "weighting must be between 0 and 100")

	ErrPredecessorInvalid   = apperrors.New(apperrors.KindBusinessRule, apperrors.CodePredecessorInvalid, "invalid predecessor questionnaire")
	ErrPredecessorNotLinked = apperrors.New(apperrors.KindBusinessRule, apperrors.CodePredecessorNotLinked, "predecessor questionnaire is not linked")
	ErrRatingExists         = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeRatingAlreadyExists, "predecessor goal already rated")
	ErrRatingNotFound       = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeRatingNotFound, "predecessor goal rating not found")
	ErrRatingInvalid        = apperrors.New(apperrors.KindValidation, apperrors.CodeRatingInvalid, "invalid predecessor goal rating")

	ErrNoteNotFound = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeNoteNotFound, "note not found")
	ErrNoteInvalid  = apperrors.New(apperrors.KindValidation, apperrors.CodeNoteInvalid, "invalid note")

	ErrSectionInvalid    = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeSectionInvalid, "invalid custom section")
	ErrFeedbackInvalid   = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeFeedbackInvalid, "invalid feedback link")
	ErrDuplicateEdit     = apperrors.New(apperrors.KindBusinessRule, apperrors.CodeReviewEditDuplicate, "review edit already recorded")
	ErrInvalidAssignment = apperrors.New(apperrors.KindValidation, apperrors.CodeValidationFailed, "invalid assignment")
)
