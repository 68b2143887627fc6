// Package apperrors provides typed errors whose kind decides the status class
// a caller reports (business rule, conflict, authorization, not found, infrastructure).
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that must pick a status code
type Kind int

const (
	// KindInfrastructure is the zero value so unclassified errors map to 500
	KindInfrastructure Kind = iota
	KindValidation
	KindBusinessRule
	KindConflict
	KindUnauthorized
	KindForbidden
	KindNotFound
)

// String returns the kind name used in logs and Temporal error types
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindBusinessRule:
		return "BusinessRule"
	case KindConflict:
		return "Conflict"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	default:
		return "Infrastructure"
	}
}

// Code is a machine-readable error code
type Code string

const (
	CodeValidationFailed          Code = "VALIDATION_FAILED"
	CodeInvalidWorkflowTransition Code = "INVALID_WORKFLOW_TRANSITION"
	CodeAssignmentLocked          Code = "ASSIGNMENT_LOCKED"
	CodeAssignmentWithdrawn       Code = "ASSIGNMENT_WITHDRAWN"
	CodeAssignmentNotFound        Code = "ASSIGNMENT_NOT_FOUND"
	CodeResponseNotFound          Code = "RESPONSE_NOT_FOUND"
	CodeVersionConflict           Code = "VERSION_CONFLICT"
	CodeReopenReasonTooShort      Code = "REOPEN_REASON_TOO_SHORT"
	CodeGoalNotFound              Code = "GOAL_NOT_FOUND"
	CodeGoalAlreadyExists         Code = "GOAL_ALREADY_EXISTS"
	CodeGoalInvalid               Code = "GOAL_INVALID"
	CodeWeightingOutOfRange       Code = "WEIGHTING_OUT_OF_RANGE"
	CodePredecessorInvalid        Code = "PREDECESSOR_INVALID"
	CodePredecessorNotLinked      Code = "PREDECESSOR_NOT_LINKED"
	CodeRatingAlreadyExists       Code = "RATING_ALREADY_EXISTS"
	CodeRatingNotFound            Code = "RATING_NOT_FOUND"
	CodeRatingInvalid             Code = "RATING_INVALID"
	CodeNoteNotFound              Code = "NOTE_NOT_FOUND"
	CodeNoteInvalid               Code = "NOTE_INVALID"
	CodeSectionInvalid            Code = "CUSTOM_SECTION_INVALID"
	CodeFeedbackInvalid           Code = "FEEDBACK_INVALID"
	CodeReviewEditDuplicate       Code = "REVIEW_EDIT_DUPLICATE"
	CodeReviewEditClosed          Code = "REVIEW_EDIT_CLOSED"
	CodeDueDateInvalid            Code = "DUE_DATE_INVALID"
	CodeReasonRequired            Code = "REASON_REQUIRED"
	CodeSagaNotFound              Code = "SAGA_NOT_FOUND"
	CodeUnauthenticated           Code = "UNAUTHENTICATED"
	CodePermissionDenied          Code = "PERMISSION_DENIED"
	CodeInternal                  Code = "INTERNAL"
)

// Error is the typed error carried across the core
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

// New creates an error of the given kind
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf creates an error with a formatted message
func Newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and code to an underlying error
func Wrap(kind Kind, code Code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so sentinels compare equal to errors built with a
// more specific message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// With returns a copy of e carrying a more specific message
func (e *Error) With(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, defaulting to KindInfrastructure
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInfrastructure
}

// CodeOf returns the code of err or CodeInternal for unclassified errors
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status class collaborators depend on
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation, KindBusinessRule:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client. Infrastructure
// details are never exposed.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInfrastructure {
		return appErr.Message
	}
	return "internal server error"
}

// Retryable reports whether a caller may retry the operation unchanged
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindInfrastructure:
		return true
	default:
		return false
	}
}
