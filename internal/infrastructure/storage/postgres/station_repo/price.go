package station_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const pricesTable = "fuel_prices"

var priceColumns = postgres.ExtractDBColumns[pricing.Price]()

// PriceRepo implements pricing.Repository over fuel_prices.
type PriceRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewPriceRepo creates a new price repository.
func NewPriceRepo(txm *postgres.TxManager) *PriceRepo {
	return &PriceRepo{txm: txm, builder: postgres.Builder()}
}

var _ pricing.Repository = (*PriceRepo)(nil)

func (r *PriceRepo) activeQuery(stationID id.ID, fuel registry.FuelType, asOf time.Time) squirrel.SelectBuilder {
	return r.builder.Select(priceColumns...).From(pricesTable).
		Where(squirrel.Eq{"station_id": stationID, "fuel_type": fuel, "is_active": true}).
		Where(squirrel.LtOrEq{"effective_from": asOf}).
		Where(squirrel.Or{
			squirrel.Eq{"effective_to": nil},
			squirrel.Gt{"effective_to": asOf},
		}).
		OrderBy("effective_from DESC").
		Limit(1)
}

func (r *PriceRepo) FindActive(ctx context.Context, stationID id.ID, fuel registry.FuelType, asOf time.Time) (*pricing.Price, error) {
	q := r.activeQuery(stationID, fuel, asOf)
	return postgres.Get[pricing.Price](ctx, r.txm.GetQuerier(ctx), q, "fuel price", string(fuel))
}

// Create inserts a price row. Used by the seed command.
func (r *PriceRepo) Create(ctx context.Context, p *pricing.Price) error {
	q := r.builder.Insert(pricesTable).SetMap(postgres.InsertMap(p, priceColumns))
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	return postgres.MapError(err, "fuel price", "fuel_type", string(p.FuelType))
}
