// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Role names understood by the back-office.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSupervisor = "supervisor"
	RoleAttendant  = "attendant"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID    string
	Role      string
	StationID string // empty for admins without a home station
}

// IsAdmin reports whether the user holds the admin role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetStationID returns the user's station or empty string.
func GetStationID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.StationID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.Role == role
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleSupervisor, RoleAttendant:
		return true
	}
	return false
}
