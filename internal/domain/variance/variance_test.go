package variance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/variance"
	"fuelstation/internal/testutil/fixture"
)

func TestThresholds_Classify(t *testing.T) {
	th := variance.DefaultThresholds()
	tests := []struct {
		pct  string
		want variance.Severity
	}{
		{"0", variance.SeverityNone},
		{"1.9999", variance.SeverityNone},
		{"2", variance.SeverityLow},
		{"-2.5", variance.SeverityLow},
		{"3", variance.SeverityMedium},
		{"4.9999", variance.SeverityMedium},
		{"-5", variance.SeverityHigh},
		{"9.9999", variance.SeverityHigh},
		{"10", variance.SeverityCritical},
		{"-37.5", variance.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Classify(fixture.Dec(tt.pct)))
		})
	}
}

func TestCanTransition(t *testing.T) {
	statuses := []variance.Status{variance.StatusOpen, variance.StatusInvestigating, variance.StatusResolved}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, from != to, variance.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, variance.CanTransition(variance.StatusOpen, "closed"))
}

func notify(t *testing.T, env *fixture.Env, pct string) *variance.Notification {
	t.Helper()
	var n *variance.Notification
	err := env.Store.RunInTransaction(env.As(appctx.RoleAdmin), func(ctx context.Context) error {
		var err error
		n, err = env.Variance.Notify(ctx, variance.NotifyInput{
			TankID:             env.Tank.ID,
			Date:               env.Day,
			ReconciliationID:   id.New(),
			VariancePercentage: fixture.Dec(pct),
			VolumeVariance:     fixture.Dec(pct).Mul(fixture.Dec("10")),
		})
		return err
	})
	require.NoError(t, err)
	return n
}

func TestNotify_BelowThresholdDoesNothing(t *testing.T) {
	env := fixture.New()
	assert.Nil(t, notify(t, env, "1.5"))
	assert.Empty(t, env.Store.Notifications())
}

func TestNotify_UpdatesUnresolvedInPlace(t *testing.T) {
	env := fixture.New()
	first := notify(t, env, "-3.2")
	require.NotNil(t, first)
	assert.Equal(t, variance.SeverityMedium, first.Severity)
	assert.True(t, first.VarianceMagnitude.Equal(fixture.Dec("32")))

	second := notify(t, env, "6")
	assert.Equal(t, first.ID, second.ID)

	notes := env.Store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, variance.SeverityHigh, notes[0].Severity)
	assert.Equal(t, variance.StatusOpen, notes[0].Status)
}

func TestTransition_Workflow(t *testing.T) {
	env := fixture.New()
	n := notify(t, env, "12")
	manager := env.As(appctx.RoleManager)

	got, err := env.Variance.Transition(manager, n.ID, variance.StatusInvestigating, "")
	require.NoError(t, err)
	assert.Equal(t, variance.StatusInvestigating, got.Status)

	_, err = env.Variance.Transition(manager, n.ID, variance.StatusInvestigating, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	_, err = env.Variance.Transition(manager, n.ID, variance.StatusResolved, "   ")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	got, err = env.Variance.Transition(manager, n.ID, variance.StatusResolved, "Delivery short-dropped by supplier")
	require.NoError(t, err)
	assert.Equal(t, variance.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedByUserID)
	assert.Equal(t, "user-manager", *got.ResolvedByUserID)
	assert.NotNil(t, got.ResolvedAt)

	got, err = env.Variance.Transition(env.As(appctx.RoleAdmin), n.ID, variance.StatusOpen, "")
	require.NoError(t, err)
	assert.Nil(t, got.ResolvedByUserID)
	assert.Nil(t, got.ResolvedAt)
}

func TestTransition_RequiresApprover(t *testing.T) {
	env := fixture.New()
	n := notify(t, env, "12")

	for _, role := range []string{appctx.RoleAttendant, appctx.RoleSupervisor} {
		_, err := env.Variance.Transition(env.As(role), n.ID, variance.StatusInvestigating, "")
		assert.True(t, apperror.HasCode(err, apperror.CodeForbidden), role)
	}
	_, err := env.Variance.Transition(env.Stranger(), n.ID, variance.StatusInvestigating, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	got, err := env.Variance.Get(env.As(appctx.RoleAttendant), n.ID)
	require.NoError(t, err)
	assert.Equal(t, variance.StatusOpen, got.Status)
}

func TestList_FiltersByStatus(t *testing.T) {
	env := fixture.New()
	n := notify(t, env, "12")
	_, err := env.Variance.Transition(env.As(appctx.RoleManager), n.ID, variance.StatusInvestigating, "")
	require.NoError(t, err)

	open := variance.StatusOpen
	list, err := env.Variance.List(env.As(appctx.RoleManager), variance.Filter{Status: &open})
	require.NoError(t, err)
	assert.Empty(t, list)

	investigating := variance.StatusInvestigating
	list, err = env.Variance.List(env.As(appctx.RoleManager), variance.Filter{Status: &investigating})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
