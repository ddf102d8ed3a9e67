package reconciliation_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/variance"
)

var (
	from = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

func TestReconciliationRepo_GapsQuery(t *testing.T) {
	repo := NewReconciliationRepo(nil)
	station := id.New()

	tests := []struct {
		name    string
		station *id.ID
		args    int
		extra   string
	}{
		{"AllStations", nil, 2, ""},
		{"OneStation", &station, 3, "t.station_id = $3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.gapsQuery(tt.station, from, to).ToSql()
			require.NoError(t, err)

			assert.Contains(t, sql, "LEFT JOIN daily_reconciliations r ON r.tank_id = d.tank_id AND r.reconciliation_date = d.reading_date")
			assert.Contains(t, sql, "LEFT JOIN reconciliation_faults f ON f.tank_id = d.tank_id AND f.fault_date = d.reading_date")
			assert.Contains(t, sql, "WHERE d.evening_dip_liters > 0 AND r.id IS NULL AND d.reading_date >= $1 AND d.reading_date <= $2")
			assert.Contains(t, sql, tt.extra)
			assert.Len(t, args, tt.args)
		})
	}
}

func TestReconciliationRepo_SaveFaultUpserts(t *testing.T) {
	repo := NewReconciliationRepo(nil)
	f := &reconciliation.Fault{ID: id.New(), TankID: id.New(), FaultDate: from, Kind: "fifo_shortfall", Message: "short"}

	sql, args, err := repo.saveFaultQuery(f).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO reconciliation_faults")
	assert.Contains(t, sql, "ON CONFLICT (tank_id, fault_date) DO UPDATE SET kind = EXCLUDED.kind")
	assert.Len(t, args, len(faultColumns))
}

func TestReconciliationRepo_ListQuery(t *testing.T) {
	repo := NewReconciliationRepo(nil)
	tank := id.New()

	sql, args, err := repo.listQuery(reconciliation.Filter{TankID: &tank, From: &from, To: &to, Limit: 10}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE tank_id = $1 AND reconciliation_date >= $2 AND reconciliation_date <= $3 ORDER BY reconciliation_date, tank_id LIMIT 10")
	assert.Equal(t, []any{tank.String(), from, to}, args)
}

func TestReconciliationRepo_JournalQuery(t *testing.T) {
	repo := NewReconciliationRepo(nil)
	recID := id.New()

	sql, args, err := repo.journalQuery(recID, "JV-2026-00003").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE daily_reconciliations SET journal_number = $1 WHERE id = $2", sql)
	assert.Equal(t, []any{"JV-2026-00003", recID.String()}, args)
}

func TestVarianceRepo_LatestQuery(t *testing.T) {
	repo := NewVarianceRepo(nil)
	tank := id.New()

	sql, args, err := repo.latestQuery(tank, from, variance.TypeVolumeVariance).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE notification_date = $1 AND notification_type = $2 AND tank_id = $3")
	assert.Contains(t, sql, "ORDER BY created_at DESC LIMIT 1 FOR UPDATE")
	assert.Equal(t, []any{from, variance.TypeVolumeVariance, tank.String()}, args)
}

func TestVarianceRepo_ListQuery(t *testing.T) {
	repo := NewVarianceRepo(nil)
	station := id.New()
	status := variance.StatusOpen

	sql, args, err := repo.listQuery(variance.Filter{StationID: &station, Status: &status}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM variance_notifications n JOIN tanks t ON t.id = n.tank_id WHERE t.station_id = $1 AND n.status = $2")
	assert.Equal(t, []any{station.String(), status}, args)
}

func TestVarianceRepo_UpdateQuery(t *testing.T) {
	repo := NewVarianceRepo(nil)
	n := &variance.Notification{ID: id.New(), Status: variance.StatusResolved}

	sql, args, err := repo.updateQuery(n).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE variance_notifications SET reconciliation_id = $1")
	assert.Contains(t, sql, "WHERE id = $10")
	assert.Equal(t, n.ID.String(), args[9])
}
