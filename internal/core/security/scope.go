// Package security provides authorization and access control.
package security

import (
	"context"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
)

// Policy is the single capability check injected into domain services.
// Station scoping and role gates are decided here, not per handler.
type Policy interface {
	// RequireUser returns the acting user or UNAUTHORIZED.
	RequireUser(ctx context.Context) (*appctx.UserContext, error)

	// RequireStationAccess fails with FORBIDDEN unless the user may act on stationID.
	RequireStationAccess(ctx context.Context, stationID string) error

	// RequireVarianceApproval fails unless the user may move variance notifications.
	RequireVarianceApproval(ctx context.Context, stationID string) error

	// RequireAdmin fails unless the user is an admin.
	RequireAdmin(ctx context.Context) error
}

// AccessScope defines the boundaries of data visibility for the current request.
type AccessScope struct {
	UserID    string
	Role      string
	StationID string
}

// NewAccessScope creates AccessScope from context.
func NewAccessScope(ctx context.Context) *AccessScope {
	user := appctx.GetUser(ctx)
	if user == nil {
		return &AccessScope{}
	}
	return &AccessScope{
		UserID:    user.UserID,
		Role:      user.Role,
		StationID: user.StationID,
	}
}

// IsAdmin reports whether the scope bypasses station filtering.
func (s *AccessScope) IsAdmin() bool {
	return s.Role == appctx.RoleAdmin
}

// CanAccessStation mirrors has_station_access: admins always, others only their own station.
func (s *AccessScope) CanAccessStation(stationID string) bool {
	if s.UserID == "" {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	return s.StationID != "" && s.StationID == stationID
}

// CanApproveVariances is true for admin and manager.
func (s *AccessScope) CanApproveVariances() bool {
	return s.Role == appctx.RoleAdmin || s.Role == appctx.RoleManager
}

// FilterStation narrows a requested station filter to what the scope may see.
// Non-admins are always pinned to their own station.
func (s *AccessScope) FilterStation(requested string) (string, error) {
	if s.UserID == "" {
		return "", apperror.NewUnauthorized("Authentication required")
	}
	if s.IsAdmin() {
		return requested, nil
	}
	if s.StationID == "" || (requested != "" && requested != s.StationID) {
		return "", apperror.NewForbidden("Access denied to station").
			WithDetail("station_id", requested)
	}
	return s.StationID, nil
}

// StationFilter resolves the station a list query may use for the user in ctx.
// A nil result means all stations (admins only).
func StationFilter(ctx context.Context, requested *id.ID) (*id.ID, error) {
	req := ""
	if requested != nil {
		req = requested.String()
	}
	station, err := NewAccessScope(ctx).FilterStation(req)
	if err != nil {
		return nil, err
	}
	if station == "" {
		return nil, nil
	}
	sid, err := id.ParseField("station_id", station)
	if err != nil {
		return nil, err
	}
	return &sid, nil
}

// StationPolicy is the default Policy backed by the request's UserContext.
type StationPolicy struct{}

// NewStationPolicy creates the default policy.
func NewStationPolicy() *StationPolicy {
	return &StationPolicy{}
}

func (StationPolicy) RequireUser(ctx context.Context) (*appctx.UserContext, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return nil, apperror.NewUnauthorized("Authentication required")
	}
	return user, nil
}

func (p StationPolicy) RequireStationAccess(ctx context.Context, stationID string) error {
	if _, err := p.RequireUser(ctx); err != nil {
		return err
	}
	if !NewAccessScope(ctx).CanAccessStation(stationID) {
		return apperror.NewForbidden("Access denied to station").
			WithDetail("station_id", stationID)
	}
	return nil
}

func (p StationPolicy) RequireVarianceApproval(ctx context.Context, stationID string) error {
	if err := p.RequireStationAccess(ctx, stationID); err != nil {
		return err
	}
	if !NewAccessScope(ctx).CanApproveVariances() {
		return apperror.NewForbidden("Only admin or manager may update variance investigations")
	}
	return nil
}

func (p StationPolicy) RequireAdmin(ctx context.Context) error {
	if _, err := p.RequireUser(ctx); err != nil {
		return err
	}
	if !NewAccessScope(ctx).IsAdmin() {
		return apperror.NewForbidden("Admin role required")
	}
	return nil
}

var _ Policy = StationPolicy{}
