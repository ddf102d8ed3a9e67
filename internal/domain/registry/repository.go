package registry

import (
	"context"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
)

// Repository reads reference data and maintains the cached running counters.
type Repository interface {
	GetStation(ctx context.Context, stationID id.ID) (*Station, error)
	GetTank(ctx context.Context, tankID id.ID) (*Tank, error)
	ListTanks(ctx context.Context, filter TankFilter) ([]Tank, error)
	GetMeter(ctx context.Context, meterID id.ID) (*Meter, error)
	ListMeters(ctx context.Context, tankID id.ID) ([]Meter, error)

	// UpdateTankVolume overwrites the cached current volume.
	UpdateTankVolume(ctx context.Context, tankID id.ID, volume decimal.Decimal) error

	// AddTankVolume adds delta to the cached current volume and returns the new value.
	AddTankVolume(ctx context.Context, tankID id.ID, delta decimal.Decimal) (decimal.Decimal, error)

	// UpdateMeterReading sets the meter's cumulative counter.
	UpdateMeterReading(ctx context.Context, meterID id.ID, reading decimal.Decimal) error
}

// TankFilter narrows ListTanks.
type TankFilter struct {
	StationID *id.ID
}
