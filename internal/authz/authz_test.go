package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwannenmacher/review-flow/internal/apperrors"
	"github.com/pwannenmacher/review-flow/internal/identity"
)

type fakeHierarchy struct {
	reports map[string][]string
	calls   int
	err     error
}

func (f *fakeHierarchy) IsInHierarchy(_ context.Context, managerID, employeeID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.reports[managerID] {
		if id == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func TestDecide(t *testing.T) {
	employee := identity.Caller{EmployeeID: "emp-1", Role: identity.RoleEmployee}
	lead := identity.Caller{EmployeeID: "lead-1", Role: identity.RoleTeamLead}
	hr := identity.Caller{EmployeeID: "hr-1", Role: identity.RoleHR}

	tests := []struct {
		name    string
		caller  identity.Caller
		subject string
		action  Action
		inTeam  bool
		allowed bool
	}{
		{"employee views own", employee, "emp-1", ActionView, false, true},
		{"employee works on own", employee, "emp-1", ActionEmployeeWork, false, true},
		{"employee confirms own outcome", employee, "emp-1", ActionConfirmOutcome, false, true},
		{"employee cannot finalize own", employee, "emp-1", ActionFinalize, false, false},
		{"employee cannot view others", employee, "emp-2", ActionView, false, false},
		{"lead reopens team member", lead, "emp-1", ActionReopen, true, true},
		{"lead cannot reopen outside team", lead, "emp-9", ActionReopen, false, false},
		{"lead cannot do employee work for team member", lead, "emp-1", ActionEmployeeWork, true, false},
		{"lead works on own as employee", lead, "lead-1", ActionEmployeeWork, false, true},
		{"lead cannot finalize own", lead, "lead-1", ActionFinalize, false, false},
		{"hr reopens anyone", hr, "emp-9", ActionReopen, false, true},
		{"admin withdraws anyone", identity.Caller{EmployeeID: "adm", Role: identity.RoleAdmin}, "emp-9", ActionWithdraw, false, true},
		{"unknown role", identity.Caller{EmployeeID: "x", Role: "Guest"}, "x", ActionView, false, false},
		{"missing caller", identity.Caller{}, "emp-1", ActionView, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.caller, tt.subject, tt.action, tt.inTeam)
			assert.Equal(t, tt.allowed, d.Allowed, d.Reason)
		})
	}
}

func TestGuardTeamLeadReopenOutsideHierarchy(t *testing.T) {
	h := &fakeHierarchy{reports: map[string][]string{"lead-1": {"emp-1"}}}
	g := NewGuard(h)
	lead := identity.Caller{EmployeeID: "lead-1", Role: identity.RoleTeamLead}

	require.NoError(t, g.Authorize(context.Background(), lead, "emp-1", ActionReopen))

	err := g.Authorize(context.Background(), lead, "emp-9", ActionReopen)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, "you are not permitted to perform this action", err.Error())
}

func TestGuardSkipsHierarchyWhenNotNeeded(t *testing.T) {
	h := &fakeHierarchy{}
	g := NewGuard(h)

	require.NoError(t, g.Authorize(context.Background(), identity.Caller{EmployeeID: "hr-1", Role: identity.RoleHR}, "emp-1", ActionFinalize))
	require.NoError(t, g.Authorize(context.Background(), identity.Caller{EmployeeID: "emp-1", Role: identity.RoleEmployee}, "emp-1", ActionView))
	assert.Zero(t, h.calls)
}

func TestGuardUnauthenticated(t *testing.T) {
	g := NewGuard(&fakeHierarchy{})
	err := g.Authorize(context.Background(), identity.Caller{}, "emp-1", ActionView)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestGuardHierarchyFailureIsInfrastructure(t *testing.T) {
	g := NewGuard(&fakeHierarchy{err: errors.New("connection refused")})
	lead := identity.Caller{EmployeeID: "lead-1", Role: identity.RoleTeamLead}

	err := g.Authorize(context.Background(), lead, "emp-1", ActionReview)
	assert.Equal(t, apperrors.KindInfrastructure, apperrors.KindOf(err))
	assert.Equal(t, "internal server error", apperrors.PublicMessage(err))
}
