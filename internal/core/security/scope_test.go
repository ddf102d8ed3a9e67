package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
)

func ctxWith(role, station string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    "u-1",
		Role:      role,
		StationID: station,
	})
}

func TestCanAccessStation(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		station string
		target  string
		want    bool
	}{
		{"admin any station", appctx.RoleAdmin, "", "st-2", true},
		{"manager own station", appctx.RoleManager, "st-1", "st-1", true},
		{"manager other station", appctx.RoleManager, "st-1", "st-2", false},
		{"attendant without station", appctx.RoleAttendant, "", "st-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := NewAccessScope(ctxWith(tt.role, tt.station))
			assert.Equal(t, tt.want, scope.CanAccessStation(tt.target))
		})
	}
}

func TestStationPolicy(t *testing.T) {
	p := NewStationPolicy()

	t.Run("no user is unauthorized", func(t *testing.T) {
		err := p.RequireStationAccess(context.Background(), "st-1")
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	})

	t.Run("station mismatch is forbidden", func(t *testing.T) {
		err := p.RequireStationAccess(ctxWith(appctx.RoleSupervisor, "st-1"), "st-2")
		assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	})

	t.Run("supervisor cannot approve variances", func(t *testing.T) {
		err := p.RequireVarianceApproval(ctxWith(appctx.RoleSupervisor, "st-1"), "st-1")
		assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	})

	t.Run("manager approves on own station", func(t *testing.T) {
		assert.NoError(t, p.RequireVarianceApproval(ctxWith(appctx.RoleManager, "st-1"), "st-1"))
	})

	t.Run("admin only", func(t *testing.T) {
		assert.Error(t, p.RequireAdmin(ctxWith(appctx.RoleManager, "st-1")))
		assert.NoError(t, p.RequireAdmin(ctxWith(appctx.RoleAdmin, "")))
	})
}

func TestFilterStation(t *testing.T) {
	got, err := NewAccessScope(ctxWith(appctx.RoleManager, "st-1")).FilterStation("")
	require.NoError(t, err)
	assert.Equal(t, "st-1", got)

	_, err = NewAccessScope(ctxWith(appctx.RoleManager, "st-1")).FilterStation("st-9")
	assert.Error(t, err)

	got, err = NewAccessScope(ctxWith(appctx.RoleAdmin, "")).FilterStation("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
