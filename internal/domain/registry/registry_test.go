package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/testutil/fixture"
)

func TestFuelType_Valid(t *testing.T) {
	assert.True(t, registry.FuelDiesel.Valid())
	assert.True(t, registry.FuelJetA1.Valid())
	assert.False(t, registry.FuelType("whale_oil").Valid())
}

func TestTank_ExceedsCapacity(t *testing.T) {
	tank := registry.Tank{CapacityLiters: fixture.Dec("10000")}
	assert.False(t, tank.ExceedsCapacity(fixture.Dec("10000")))
	assert.True(t, tank.ExceedsCapacity(fixture.Dec("10000.01")))
}

func TestService_TankForUser(t *testing.T) {
	env := fixture.New()

	tank, err := env.Registry.TankForUser(env.As(appctx.RoleAttendant), env.Tank.ID)
	require.NoError(t, err)
	assert.Equal(t, env.Station.ID, tank.StationID)

	_, err = env.Registry.TankForUser(env.Stranger(), env.Tank.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, err = env.Registry.TankForUser(env.As(appctx.RoleAdmin), id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_MeterForUser(t *testing.T) {
	env := fixture.New()

	meter, tank, err := env.Registry.MeterForUser(env.As(appctx.RoleSupervisor), env.Meter.ID)
	require.NoError(t, err)
	assert.Equal(t, env.Meter.ID, meter.ID)
	assert.Equal(t, env.Tank.ID, tank.ID)
}

func TestService_ListTanks(t *testing.T) {
	env := fixture.New()
	other := env.Store.AddStation(registry.Station{Name: "Jinja Road", Code: "JIN-01"})
	env.Store.AddTank(registry.Tank{StationID: other.ID, TankNumber: "T1", FuelType: registry.FuelPetrol, CapacityLiters: fixture.Dec("20000")})

	all, err := env.Registry.ListTanks(env.As(appctx.RoleAdmin), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := env.Registry.ListTanks(env.As(appctx.RoleManager), nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, env.Tank.ID, mine[0].ID)

	_, err = env.Registry.ListTanks(env.As(appctx.RoleManager), &other.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}
