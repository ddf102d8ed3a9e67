package station_repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/registry"
)

func TestRegistryRepo_ListTanksQuery(t *testing.T) {
	repo := NewRegistryRepo(nil)
	station := id.New()

	tests := []struct {
		name     string
		filter   registry.TankFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "All",
			filter:  registry.TankFilter{},
			wantSQL: "SELECT id, station_id, tank_number, fuel_type, capacity_liters, current_volume_liters, created_at, updated_at FROM tanks ORDER BY station_id, tank_number",
		},
		{
			name:     "Station",
			filter:   registry.TankFilter{StationID: &station},
			wantSQL:  "SELECT id, station_id, tank_number, fuel_type, capacity_liters, current_volume_liters, created_at, updated_at FROM tanks WHERE station_id = $1 ORDER BY station_id, tank_number",
			wantArgs: []any{station.String()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listTanksQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, len(tt.wantArgs), len(args))
			for i := range tt.wantArgs {
				assert.Equal(t, tt.wantArgs[i], args[i])
			}
		})
	}
}

func TestRegistryRepo_AddVolumeQuery(t *testing.T) {
	repo := NewRegistryRepo(nil)
	tank := id.New()

	sql, args, err := repo.addVolumeQuery(tank, decimal.NewFromInt(3000)).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE tanks SET current_volume_liters = current_volume_liters + $1, updated_at = now() WHERE id = $2 RETURNING current_volume_liters", sql)
	require.Len(t, args, 2)
	assert.True(t, decimal.NewFromInt(3000).Equal(args[0].(decimal.Decimal)))
	assert.Equal(t, tank.String(), args[1])
}

func TestPriceRepo_ActiveQuery(t *testing.T) {
	repo := NewPriceRepo(nil)
	station := id.New()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.activeQuery(station, registry.FuelDiesel, day).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM fuel_prices WHERE")
	assert.Contains(t, sql, "effective_from <= $4")
	assert.Contains(t, sql, "(effective_to IS NULL OR effective_to > $5)")
	assert.Contains(t, sql, "ORDER BY effective_from DESC LIMIT 1")
	require.Len(t, args, 5)
	assert.Equal(t, day, args[3])
	assert.Equal(t, day, args[4])
}
