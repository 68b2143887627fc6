// Package authz decides whether a caller may act on an employee's
// questionnaire. The decision runs before the assignment is touched.
package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/identity"
)

// Action is a permission checked by the guard
type Action string

const (
	// employee-role actions
	ActionView           Action = "view"
	ActionEmployeeWork   Action = "employee_work"
	ActionConfirmOutcome Action = "confirm_outcome"

	// team-management actions
	ActionCreate         Action = "create"
	ActionInitialize     Action = "initialize"
	ActionManagerWork    Action = "manager_work"
	ActionReview         Action = "review"
	ActionNotes          Action = "notes"
	ActionReviewEdit     Action = "review_edit"
	ActionFinalize       Action = "finalize"
	ActionExtendDueDate  Action = "extend_due_date"
	ActionWithdraw       Action = "withdraw"
	ActionReopen         Action = "reopen"
	ActionManageFeedback Action = "manage_feedback"
)

var employeeActions = map[Action]bool{
	ActionView:           true,
	ActionEmployeeWork:   true,
	ActionConfirmOutcome: true,
}

var teamActions = map[Action]bool{
	ActionView:           true,
	ActionCreate:         true,
	ActionInitialize:     true,
	ActionManagerWork:    true,
	ActionReview:         true,
	ActionNotes:          true,
	ActionReviewEdit:     true,
	ActionFinalize:       true,
	ActionExtendDueDate:  true,
	ActionWithdraw:       true,
	ActionReopen:         true,
	ActionManageFeedback: true,
}

var (
	ErrForbidden       = apperrors.New(apperrors.KindForbidden, apperrors.CodePermissionDenied, "you are not permitted to perform this action")
	ErrUnauthenticated = apperrors.New(apperrors.KindUnauthorized, apperrors.CodeUnauthenticated, "authentication required")
)

// Decision is the outcome of Decide
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Reason: reason} }

// Decide is the pure authorization rule. inTeam tells whether the subject
// reports to the caller, directly or indirectly.
func Decide(caller identity.Caller, subjectEmployeeID string, action Action, inTeam bool) Decision {
	if caller.EmployeeID == "" {
		return deny("no caller")
	}
	if caller.Role.IsElevated() {
		return allow("elevated role")
	}

	own := caller.EmployeeID == subjectEmployeeID
	switch caller.Role {
	case identity.RoleEmployee:
		if own && employeeActions[action] {
			return allow("own assignment")
		}
		return deny("employees act on their own assignment only")
	case identity.RoleTeamLead:
		if own && employeeActions[action] {
			return allow("own assignment")
		}
		if !own && inTeam && teamActions[action] {
			return allow("subject in reporting line")
		}
		return deny("subject outside reporting line")
	default:
		return deny(fmt.Sprintf("unknown role %q", caller.Role))
	}
}

// needsHierarchy reports whether the decision depends on the reporting line
func needsHierarchy(caller identity.Caller, subjectEmployeeID string, action Action) bool {
	return caller.Role == identity.RoleTeamLead && caller.EmployeeID != subjectEmployeeID && teamActions[action]
}

// HierarchyChecker answers whether an employee reports to a manager
type HierarchyChecker interface {
	IsInHierarchy(ctx context.Context, managerID, employeeID string) (bool, error)
}

// Guard evaluates Decide, loading the reporting line only when needed
type Guard struct {
	hierarchy HierarchyChecker
	logger    *slog.Logger
}

// NewGuard creates a guard
func NewGuard(hierarchy HierarchyChecker) *Guard {
	return &Guard{hierarchy: hierarchy, logger: slog.Default().With("component", "authz")}
}

// Authorize returns nil when caller may perform action on the subject's
// assignment. Denials carry a fixed message.
func (g *Guard) Authorize(ctx context.Context, caller identity.Caller, subjectEmployeeID string, action Action) error {
	if caller.EmployeeID == "" {
		return ErrUnauthenticated
	}

	inTeam := false
	if needsHierarchy(caller, subjectEmployeeID, action) {
		ok, err := g.hierarchy.IsInHierarchy(ctx, caller.EmployeeID, subjectEmployeeID)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInfrastructure, apperrors.CodeInternal, "hierarchy lookup failed", err)
		}
		inTeam = ok
	}

	d := Decide(caller, subjectEmployeeID, action, inTeam)
	if !d.Allowed {
		g.logger.Warn("Access denied",
			"caller", caller.EmployeeID,
			"role", caller.Role,
			"subject", subjectEmployeeID,
			"action", action,
			"reason", d.Reason,
		)
		return ErrForbidden
	}
	return nil
}
