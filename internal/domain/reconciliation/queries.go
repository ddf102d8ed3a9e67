package reconciliation

import (
	"context"
	"time"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/fifo"
)

// MaxListRows caps unpaginated list queries.
const MaxListRows = 1000

// Get returns one reconciliation if the user may see its station.
func (e *Engine) Get(ctx context.Context, reconciliationID id.ID) (*DailyReconciliation, error) {
	rec, err := e.Repo.Get(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	if err := e.Policy.RequireStationAccess(ctx, rec.StationID.String()); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByTankDate returns the reconciliation of (tank, date).
func (e *Engine) GetByTankDate(ctx context.Context, tankID id.ID, date time.Time) (*DailyReconciliation, error) {
	if _, err := e.Registry.TankForUser(ctx, tankID); err != nil {
		return nil, err
	}
	return e.Repo.GetByTankDate(ctx, tankID, types.DateOnly(date))
}

// List returns reconciliations visible to the user.
func (e *Engine) List(ctx context.Context, filter Filter) ([]DailyReconciliation, error) {
	station, err := security.StationFilter(ctx, filter.StationID)
	if err != nil {
		return nil, err
	}
	filter.StationID = station
	if filter.TankID != nil {
		if _, err := e.Registry.TankForUser(ctx, *filter.TankID); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > MaxListRows {
		filter.Limit = MaxListRows
	}
	return e.Repo.List(ctx, filter)
}

// Consumption returns FIFO consumption logs visible to the user.
func (e *Engine) Consumption(ctx context.Context, filter fifo.ConsumptionFilter) ([]fifo.ConsumptionLog, error) {
	if filter.ReconciliationID != nil {
		if _, err := e.Get(ctx, *filter.ReconciliationID); err != nil {
			return nil, err
		}
	}
	station, err := security.StationFilter(ctx, filter.StationID)
	if err != nil {
		return nil, err
	}
	filter.StationID = station
	if filter.TankID != nil {
		if _, err := e.Registry.TankForUser(ctx, *filter.TankID); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > MaxListRows {
		filter.Limit = MaxListRows
	}
	return e.FIFO.ListConsumption(ctx, filter)
}

// Layers returns a tank's FIFO layers.
func (e *Engine) Layers(ctx context.Context, tankID id.ID, includeExhausted bool) ([]fifo.Layer, error) {
	if _, err := e.Registry.TankForUser(ctx, tankID); err != nil {
		return nil, err
	}
	return e.FIFO.ListLayers(ctx, tankID, includeExhausted)
}

// Gaps returns days ready for reconciliation or faulty in [from, to].
func (e *Engine) Gaps(ctx context.Context, stationID *id.ID, from, to time.Time) ([]Gap, error) {
	station, err := security.StationFilter(ctx, stationID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListGaps(ctx, station, types.DateOnly(from), types.DateOnly(to))
}
