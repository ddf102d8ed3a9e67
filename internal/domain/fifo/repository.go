package fifo

import (
	"context"
	"time"

	"fuelstation/internal/core/id"
)

// Repository persists layers and consumption logs.
type Repository interface {
	// NextSequence returns max(layer_sequence)+1 for the tank.
	NextSequence(ctx context.Context, tankID id.ID) (int64, error)

	CreateLayer(ctx context.Context, layer *Layer) error

	// ListOpenLayersForUpdate locks and returns the tank's non-exhausted layers in sequence order.
	ListOpenLayersForUpdate(ctx context.Context, tankID id.ID) ([]Layer, error)

	// GetLayersForUpdate locks and returns the given layers.
	GetLayersForUpdate(ctx context.Context, layerIDs []id.ID) ([]Layer, error)

	ListLayers(ctx context.Context, tankID id.ID, includeExhausted bool) ([]Layer, error)

	// UpdateRemaining writes remaining volume and exhausted flag for each layer.
	UpdateRemaining(ctx context.Context, layers []Layer) error

	InsertConsumptionLogs(ctx context.Context, logs []ConsumptionLog) error
	ListConsumptionLogs(ctx context.Context, filter ConsumptionFilter) ([]ConsumptionLog, error)
	DeleteConsumptionLogs(ctx context.Context, reconciliationID id.ID) (int64, error)
}

// ConsumptionFilter narrows consumption log queries.
type ConsumptionFilter struct {
	ReconciliationID *id.ID
	StationID        *id.ID
	TankID           *id.ID
	From             *time.Time
	To               *time.Time
	Limit            int
}
