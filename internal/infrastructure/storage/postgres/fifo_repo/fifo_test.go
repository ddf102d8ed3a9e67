package fifo_repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/fifo"
)

func TestFIFORepo_OpenLayersLockQuery(t *testing.T) {
	repo := NewFIFORepo(nil)
	tank := id.New()

	sql, args, err := repo.layersQuery(tank, false).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, tank_id, layer_sequence, delivery_id, delivery_date, original_volume_liters, remaining_volume_liters, cost_per_liter_ugx, is_exhausted, created_at, updated_at FROM fifo_layers WHERE tank_id = $1 AND is_exhausted = $2 ORDER BY layer_sequence, id FOR UPDATE", sql)
	assert.Equal(t, []any{tank.String(), false}, args)
}

func TestFIFORepo_ListLayersIncludeExhausted(t *testing.T) {
	repo := NewFIFORepo(nil)

	sql, args, err := repo.layersQuery(id.New(), true).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "is_exhausted =")
	assert.Len(t, args, 1)
}

func TestFIFORepo_UpdateRemainingQueries(t *testing.T) {
	repo := NewFIFORepo(nil)
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	layers := []fifo.Layer{
		{ID: id.New(), RemainingVolumeLiters: decimal.Zero, IsExhausted: true},
		{ID: id.New(), RemainingVolumeLiters: decimal.NewFromInt(1500)},
	}

	queries, err := repo.updateRemainingQueries(layers, now)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, "UPDATE fifo_layers SET remaining_volume_liters = $1, is_exhausted = $2, updated_at = $3 WHERE id = $4", queries[0].SQL)
	assert.Equal(t, true, queries[0].Args[1])
	assert.Equal(t, layers[1].ID.String(), queries[1].Args[3])
	assert.Equal(t, int64(1), queries[1].ExpectRows)
}

func TestFIFORepo_ConsumptionQuery(t *testing.T) {
	repo := NewFIFORepo(nil)
	station := id.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   fifo.ConsumptionFilter
		contains []string
		absent   []string
		args     int
	}{
		{
			name:     "ByReconciliation",
			filter:   fifo.ConsumptionFilter{ReconciliationID: &station},
			contains: []string{"WHERE c.reconciliation_id = $1", "ORDER BY c.created_at, l.layer_sequence"},
			absent:   []string{"daily_reconciliations", "JOIN tanks"},
			args:     1,
		},
		{
			name:     "StationAndRange",
			filter:   fifo.ConsumptionFilter{StationID: &station, From: &from, To: &to, Limit: 50},
			contains: []string{"JOIN tanks t ON t.id = c.tank_id", "JOIN daily_reconciliations dr", "dr.reconciliation_date >= $2", "dr.reconciliation_date <= $3", "LIMIT 50"},
			args:     3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.consumptionQuery(tt.filter).ToSql()
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, sql, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, sql, s)
			}
			assert.Len(t, args, tt.args)
		})
	}
}
