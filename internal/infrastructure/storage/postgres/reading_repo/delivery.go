package reading_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const deliveriesTable = "deliveries"

var deliveryColumns = postgres.ExtractDBColumns[delivery.Delivery]()

// DeliveryRepo implements delivery.Repository.
type DeliveryRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewDeliveryRepo creates a new delivery repository.
func NewDeliveryRepo(txm *postgres.TxManager) *DeliveryRepo {
	return &DeliveryRepo{txm: txm, builder: postgres.Builder()}
}

var _ delivery.Repository = (*DeliveryRepo)(nil)

func (r *DeliveryRepo) Create(ctx context.Context, d *delivery.Delivery) error {
	d.CreatedAt = time.Now().UTC()
	q := r.builder.Insert(deliveriesTable).SetMap(postgres.InsertMap(d, deliveryColumns))
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q); err != nil {
		return postgres.MapError(fmt.Errorf("insert delivery: %w", err), "delivery", "id", d.ID.String())
	}
	return nil
}

func (r *DeliveryRepo) sumQuery(tankID id.ID, date time.Time) squirrel.SelectBuilder {
	return r.builder.Select("COALESCE(SUM(volume_liters), 0)").From(deliveriesTable).
		Where(squirrel.Eq{"tank_id": tankID, "delivery_date": types.DateOnly(date)})
}

func (r *DeliveryRepo) SumByTankDate(ctx context.Context, tankID id.ID, date time.Time) (decimal.Decimal, error) {
	sql, args, err := r.sumQuery(tankID, date).ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build query: %w", err)
	}
	var total decimal.Decimal
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &total, sql, args...); err != nil {
		return decimal.Zero, fmt.Errorf("sum deliveries: %w", err)
	}
	return total, nil
}

func (r *DeliveryRepo) listQuery(filter delivery.Filter) squirrel.SelectBuilder {
	cols := make([]string, len(deliveryColumns))
	for i, c := range deliveryColumns {
		cols[i] = "d." + c
	}
	q := r.builder.Select(cols...).From(deliveriesTable + " d").
		Join("tanks t ON t.id = d.tank_id").
		OrderBy("d.delivery_date", "d.created_at")
	if filter.StationID != nil {
		q = q.Where(squirrel.Eq{"t.station_id": *filter.StationID})
	}
	if filter.TankID != nil {
		q = q.Where(squirrel.Eq{"d.tank_id": *filter.TankID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"d.delivery_date": types.DateOnly(*filter.From)})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"d.delivery_date": types.DateOnly(*filter.To)})
	}
	return q
}

func (r *DeliveryRepo) List(ctx context.Context, filter delivery.Filter) ([]delivery.Delivery, error) {
	rows, err := postgres.Select[delivery.Delivery](ctx, r.txm.GetQuerier(ctx), r.listQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return rows, nil
}
