package repository

import (
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
)

var (
	ErrAssignmentNotFound = apperrors.New(apperrors.KindNotFound, apperrors.CodeAssignmentNotFound, "assignment not found")
	ErrVersionConflict    = apperrors.New(apperrors.KindConflict, apperrors.CodeVersionConflict, "record was modified concurrently")
	ErrSagaNotFound       = apperrors.New(apperrors.KindNotFound, apperrors.CodeSagaNotFound, "review edit not found")
	ErrFeedbackNotFound   = apperrors.New(apperrors.KindNotFound, apperrors.CodeFeedbackInvalid, "feedback record not found")
	ErrEmployeeNotFound   = apperrors.New(apperrors.KindNotFound, apperrors.CodeValidationFailed, "employee not found")
)

// isUniqueViolation detects duplicate keys on both supported drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// infra wraps a driver error as an infrastructure failure
func infra(message string, err error) error {
	return apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternal, message, err)
}
