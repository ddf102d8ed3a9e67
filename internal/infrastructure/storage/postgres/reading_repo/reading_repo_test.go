package reading_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/delivery"
)

var day = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func TestReadingRepo_MeterReadingForUpdate(t *testing.T) {
	repo := NewReadingRepo(nil)
	meter := id.New()

	sql, args, err := repo.meterReadingQuery(meter, day).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, meter_id, reading_date, opening_reading_liters, closing_reading_liters, recorded_by_user_id, closed_at, created_at, updated_at FROM meter_readings WHERE meter_id = $1 AND reading_date = $2 FOR UPDATE", sql)
	require.Len(t, args, 2)
	assert.Equal(t, meter.String(), args[0])
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), args[1])
}

func TestReadingRepo_ListMeterReadingsQuery(t *testing.T) {
	repo := NewReadingRepo(nil)
	tank := id.New()

	tests := []struct {
		name       string
		activeOnly bool
		wantWhere  string
		wantArgs   int
	}{
		{"All", false, "WHERE m.tank_id = $1 AND mr.reading_date = $2 ORDER BY", 2},
		{"ActiveOnly", true, "WHERE m.tank_id = $1 AND mr.reading_date = $2 AND m.is_active = $3 ORDER BY", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listMeterReadingsQuery(tank, day, tt.activeOnly).ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, "m.is_active AS meter_active")
			assert.Contains(t, sql, "JOIN meters m ON m.id = mr.meter_id")
			assert.Contains(t, sql, tt.wantWhere)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestDeliveryRepo_ListQuery(t *testing.T) {
	repo := NewDeliveryRepo(nil)
	station := id.New()
	from := day.AddDate(0, 0, -7)

	sql, args, err := repo.listQuery(delivery.Filter{StationID: &station, From: &from}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM deliveries d JOIN tanks t ON t.id = d.tank_id WHERE t.station_id = $1 AND d.delivery_date >= $2")
	assert.Contains(t, sql, "ORDER BY d.delivery_date, d.created_at")
	require.Len(t, args, 2)
	assert.Equal(t, station.String(), args[0])
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), args[1])
}

func TestDeliveryRepo_SumQuery(t *testing.T) {
	repo := NewDeliveryRepo(nil)

	sql, _, err := repo.sumQuery(id.New(), day).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COALESCE(SUM(volume_liters), 0) FROM deliveries WHERE delivery_date = $1 AND tank_id = $2", sql)
}
