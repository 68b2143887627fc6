package identity

import (
	"context"
	"strings"
)

// Role is an application role of an authenticated caller
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleTeamLead Role = "TeamLead"
	RoleHR       Role = "HR"
	RoleHRLead   Role = "HRLead"
	RoleAdmin    Role = "Admin"
)

// ParseRole converts a role name (case-insensitive) to a Role
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "employee":
		return RoleEmployee, true
	case "teamlead", "team_lead":
		return RoleTeamLead, true
	case "hr":
		return RoleHR, true
	case "hrlead", "hr_lead":
		return RoleHRLead, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsElevated reports whether the role has organisation-wide access
func (r Role) IsElevated() bool {
	return r == RoleHR || r == RoleHRLead || r == RoleAdmin
}

// Caller is the authenticated principal issuing a command
type Caller struct {
	EmployeeID string `json:"employee_id"`
	Role       Role   `json:"role"`
}

type contextKey struct{}

// WithCaller stores the caller in ctx
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// CallerFrom retrieves the caller from ctx
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}
