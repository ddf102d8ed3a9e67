// Package reading_repo provides PostgreSQL repositories for dip and meter readings and deliveries.
package reading_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const (
	meterReadingsTable = "meter_readings"
	dailyReadingsTable = "daily_readings"
)

var (
	meterReadingColumns = postgres.ExtractDBColumns[readings.MeterReading]("meter_active")
	dailyReadingColumns = postgres.ExtractDBColumns[readings.DailyReading]()
)

// ReadingRepo implements readings.Repository.
type ReadingRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewReadingRepo creates a new reading repository.
func NewReadingRepo(txm *postgres.TxManager) *ReadingRepo {
	return &ReadingRepo{txm: txm, builder: postgres.Builder()}
}

var _ readings.Repository = (*ReadingRepo)(nil)

func (r *ReadingRepo) meterReadingQuery(meterID id.ID, date time.Time) squirrel.SelectBuilder {
	return r.builder.Select(meterReadingColumns...).From(meterReadingsTable).
		Where(squirrel.Eq{"meter_id": meterID, "reading_date": types.DateOnly(date)})
}

func (r *ReadingRepo) GetMeterReading(ctx context.Context, meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	return postgres.Get[readings.MeterReading](ctx, r.txm.GetQuerier(ctx),
		r.meterReadingQuery(meterID, date), "meter reading", meterID)
}

func (r *ReadingRepo) GetMeterReadingForUpdate(ctx context.Context, meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	return postgres.Get[readings.MeterReading](ctx, r.txm.GetQuerier(ctx),
		r.meterReadingQuery(meterID, date).Suffix("FOR UPDATE"), "meter reading", meterID)
}

func (r *ReadingRepo) LatestMeterReadingBefore(ctx context.Context, meterID id.ID, date time.Time) (*readings.MeterReading, error) {
	q := r.builder.Select(meterReadingColumns...).From(meterReadingsTable).
		Where(squirrel.Eq{"meter_id": meterID}).
		Where(squirrel.Lt{"reading_date": types.DateOnly(date)}).
		OrderBy("reading_date DESC").
		Limit(1)
	return postgres.Get[readings.MeterReading](ctx, r.txm.GetQuerier(ctx), q, "meter reading", meterID)
}

func (r *ReadingRepo) CreateMeterReading(ctx context.Context, m *readings.MeterReading) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	q := r.builder.Insert(meterReadingsTable).SetMap(postgres.InsertMap(m, meterReadingColumns))
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return postgres.MapError(fmt.Errorf("insert meter reading: %w", err), "meter reading", "date", types.FormatDate(m.ReadingDate))
	}
	return nil
}

func (r *ReadingRepo) CloseMeterReading(ctx context.Context, readingID id.ID, closing decimal.Decimal, closedAt time.Time) error {
	q := r.builder.Update(meterReadingsTable).
		Set("closing_reading_liters", closing).
		Set("closed_at", closedAt).
		Set("updated_at", closedAt).
		Where(squirrel.Eq{"id": readingID})
	return postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), q, "meter reading", readingID)
}

func (r *ReadingRepo) listMeterReadingsQuery(tankID id.ID, date time.Time, activeOnly bool) squirrel.SelectBuilder {
	cols := make([]string, 0, len(meterReadingColumns)+1)
	for _, c := range meterReadingColumns {
		cols = append(cols, "mr."+c)
	}
	cols = append(cols, "m.is_active AS meter_active")

	q := r.builder.Select(strings.Join(cols, ", ")).
		From(meterReadingsTable + " mr").
		Join(metersJoin).
		Where(squirrel.Eq{"m.tank_id": tankID, "mr.reading_date": types.DateOnly(date)}).
		OrderBy("m.meter_number")
	if activeOnly {
		q = q.Where(squirrel.Eq{"m.is_active": true})
	}
	return q
}

const metersJoin = "meters m ON m.id = mr.meter_id"

func (r *ReadingRepo) ListMeterReadings(ctx context.Context, tankID id.ID, date time.Time, activeOnly bool) ([]readings.MeterReading, error) {
	rows, err := postgres.Select[readings.MeterReading](ctx, r.txm.GetQuerier(ctx), r.listMeterReadingsQuery(tankID, date, activeOnly))
	if err != nil {
		return nil, fmt.Errorf("list meter readings: %w", err)
	}
	return rows, nil
}

func (r *ReadingRepo) dailyReadingQuery(tankID id.ID, date time.Time) squirrel.SelectBuilder {
	return r.builder.Select(dailyReadingColumns...).From(dailyReadingsTable).
		Where(squirrel.Eq{"tank_id": tankID, "reading_date": types.DateOnly(date)})
}

func (r *ReadingRepo) GetDailyReading(ctx context.Context, tankID id.ID, date time.Time) (*readings.DailyReading, error) {
	return postgres.Get[readings.DailyReading](ctx, r.txm.GetQuerier(ctx),
		r.dailyReadingQuery(tankID, date), "daily reading", tankID)
}

func (r *ReadingRepo) GetDailyReadingForUpdate(ctx context.Context, tankID id.ID, date time.Time) (*readings.DailyReading, error) {
	return postgres.Get[readings.DailyReading](ctx, r.txm.GetQuerier(ctx),
		r.dailyReadingQuery(tankID, date).Suffix("FOR UPDATE"), "daily reading", tankID)
}

func (r *ReadingRepo) CreateDailyReading(ctx context.Context, d *readings.DailyReading) error {
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	q := r.builder.Insert(dailyReadingsTable).SetMap(postgres.InsertMap(d, dailyReadingColumns))
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return postgres.MapError(fmt.Errorf("insert daily reading: %w", err), "daily reading", "date", types.FormatDate(d.ReadingDate))
	}
	return nil
}

func (r *ReadingRepo) RecordEveningDip(ctx context.Context, d *readings.DailyReading) error {
	d.UpdatedAt = time.Now().UTC()
	q := r.builder.Update(dailyReadingsTable).
		Set("evening_dip_liters", d.EveningDipLiters).
		Set("evening_water_level_mm", d.EveningWaterLevelMM).
		Set("evening_temperature_celsius", d.EveningTemperatureCelsius).
		Set("updated_at", d.UpdatedAt).
		Where(squirrel.Eq{"id": d.ID})
	return postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), q, "daily reading", d.ID)
}

func (r *ReadingRepo) ListDailyReadings(ctx context.Context, tankID id.ID, from, to time.Time) ([]readings.DailyReading, error) {
	q := r.builder.Select(dailyReadingColumns...).From(dailyReadingsTable).
		Where(squirrel.Eq{"tank_id": tankID}).
		Where(squirrel.GtOrEq{"reading_date": types.DateOnly(from)}).
		Where(squirrel.LtOrEq{"reading_date": types.DateOnly(to)}).
		OrderBy("reading_date")
	rows, err := postgres.Select[readings.DailyReading](ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return nil, fmt.Errorf("list daily readings: %w", err)
	}
	return rows, nil
}
