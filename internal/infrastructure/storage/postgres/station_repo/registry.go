// Package station_repo provides PostgreSQL repositories for station reference data and prices.
package station_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const (
	stationsTable = "stations"
	tanksTable    = "tanks"
	metersTable   = "meters"
)

var (
	stationColumns = postgres.ExtractDBColumns[registry.Station]()
	tankColumns    = postgres.ExtractDBColumns[registry.Tank]()
	meterColumns   = postgres.ExtractDBColumns[registry.Meter]()
)

// RegistryRepo implements registry.Repository.
type RegistryRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewRegistryRepo creates a new registry repository.
func NewRegistryRepo(txm *postgres.TxManager) *RegistryRepo {
	return &RegistryRepo{txm: txm, builder: postgres.Builder()}
}

var _ registry.Repository = (*RegistryRepo)(nil)

func (r *RegistryRepo) GetStation(ctx context.Context, stationID id.ID) (*registry.Station, error) {
	q := r.builder.Select(stationColumns...).From(stationsTable).Where(squirrel.Eq{"id": stationID})
	return postgres.Get[registry.Station](ctx, r.txm.GetQuerier(ctx), q, "station", stationID)
}

func (r *RegistryRepo) GetTank(ctx context.Context, tankID id.ID) (*registry.Tank, error) {
	return postgres.Get[registry.Tank](ctx, r.txm.GetQuerier(ctx), r.tankQuery(tankID), "tank", tankID)
}

func (r *RegistryRepo) tankQuery(tankID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(tankColumns...).From(tanksTable).Where(squirrel.Eq{"id": tankID})
}

func (r *RegistryRepo) listTanksQuery(filter registry.TankFilter) squirrel.SelectBuilder {
	q := r.builder.Select(tankColumns...).From(tanksTable).OrderBy("station_id", "tank_number")
	if filter.StationID != nil {
		q = q.Where(squirrel.Eq{"station_id": *filter.StationID})
	}
	return q
}

func (r *RegistryRepo) ListTanks(ctx context.Context, filter registry.TankFilter) ([]registry.Tank, error) {
	tanks, err := postgres.Select[registry.Tank](ctx, r.txm.GetQuerier(ctx), r.listTanksQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list tanks: %w", err)
	}
	return tanks, nil
}

func (r *RegistryRepo) GetMeter(ctx context.Context, meterID id.ID) (*registry.Meter, error) {
	q := r.builder.Select(meterColumns...).From(metersTable).Where(squirrel.Eq{"id": meterID})
	return postgres.Get[registry.Meter](ctx, r.txm.GetQuerier(ctx), q, "meter", meterID)
}

func (r *RegistryRepo) ListMeters(ctx context.Context, tankID id.ID) ([]registry.Meter, error) {
	q := r.builder.Select(meterColumns...).From(metersTable).
		Where(squirrel.Eq{"tank_id": tankID}).
		OrderBy("meter_number")
	meters, err := postgres.Select[registry.Meter](ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return nil, fmt.Errorf("list meters: %w", err)
	}
	return meters, nil
}

func (r *RegistryRepo) UpdateTankVolume(ctx context.Context, tankID id.ID, volume decimal.Decimal) error {
	q := r.builder.Update(tanksTable).
		Set("current_volume_liters", volume).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": tankID})
	return postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), q, "tank", tankID)
}

func (r *RegistryRepo) addVolumeQuery(tankID id.ID, delta decimal.Decimal) squirrel.UpdateBuilder {
	return r.builder.Update(tanksTable).
		Set("current_volume_liters", squirrel.Expr("current_volume_liters + ?", delta)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": tankID}).
		Suffix("RETURNING current_volume_liters")
}

func (r *RegistryRepo) AddTankVolume(ctx context.Context, tankID id.ID, delta decimal.Decimal) (decimal.Decimal, error) {
	sql, args, err := r.addVolumeQuery(tankID, delta).ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build update: %w", err)
	}
	var volume decimal.Decimal
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &volume, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return decimal.Zero, apperror.NewNotFound("tank", tankID)
		}
		return decimal.Zero, fmt.Errorf("add tank volume: %w", err)
	}
	return volume, nil
}

func (r *RegistryRepo) UpdateMeterReading(ctx context.Context, meterID id.ID, reading decimal.Decimal) error {
	q := r.builder.Update(metersTable).
		Set("current_reading_liters", reading).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": meterID})
	return postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), q, "meter", meterID)
}

// CreateStation inserts a station. Used by the seed command.
func (r *RegistryRepo) CreateStation(ctx context.Context, s *registry.Station) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	q := r.builder.Insert(stationsTable).SetMap(postgres.InsertMap(s, stationColumns))
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	return postgres.MapError(err, "station", "code", s.Code)
}

// CreateTank inserts a tank. Used by the seed command.
func (r *RegistryRepo) CreateTank(ctx context.Context, t *registry.Tank) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	q := r.builder.Insert(tanksTable).SetMap(postgres.InsertMap(t, tankColumns))
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	return postgres.MapError(err, "tank", "tank_number", t.TankNumber)
}

// CreateMeter inserts a meter. Used by the seed command.
func (r *RegistryRepo) CreateMeter(ctx context.Context, m *registry.Meter) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	q := r.builder.Insert(metersTable).SetMap(postgres.InsertMap(m, meterColumns))
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	return postgres.MapError(err, "meter", "meter_number", m.MeterNumber)
}
