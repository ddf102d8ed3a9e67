// Package fifo maintains per-tank inventory cost layers and consumes them oldest-first.
package fifo

import (
	"bytes"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
)

// Layer is a priced batch of inventory, one per delivery.
type Layer struct {
	ID                    id.ID           `db:"id"`
	TankID                id.ID           `db:"tank_id"`
	LayerSequence         int64           `db:"layer_sequence"`
	DeliveryID            *id.ID          `db:"delivery_id"`
	DeliveryDate          time.Time       `db:"delivery_date"`
	OriginalVolumeLiters  decimal.Decimal `db:"original_volume_liters"`
	RemainingVolumeLiters decimal.Decimal `db:"remaining_volume_liters"`
	CostPerLiterUGX       decimal.Decimal `db:"cost_per_liter_ugx"`
	IsExhausted           bool            `db:"is_exhausted"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

// ConsumptionLog is the append-only trail of one layer draw for a reconciliation.
type ConsumptionLog struct {
	ID                   id.ID           `db:"id"`
	ReconciliationID     id.ID           `db:"reconciliation_id"`
	FIFOLayerID          id.ID           `db:"fifo_layer_id"`
	TankID               id.ID           `db:"tank_id"`
	VolumeConsumedLiters decimal.Decimal `db:"volume_consumed_liters"`
	CostPerLiterUGX      decimal.Decimal `db:"cost_per_liter_ugx"`
	TotalCostUGX         decimal.Decimal `db:"total_cost_ugx"`
	CreatedAt            time.Time       `db:"created_at"`
}

// Draw is one step of a consumption plan.
type Draw struct {
	LayerID         id.ID
	LayerSequence   int64
	Volume          decimal.Decimal
	CostPerLiterUGX decimal.Decimal
	TotalCostUGX    decimal.Decimal
	RemainingAfter  decimal.Decimal
}

// Exhausts reports whether the draw empties its layer.
func (d Draw) Exhausts() bool {
	return d.RemainingAfter.IsZero()
}

// Plan is the ordered result of consuming a volume from a tank's layers.
type Plan struct {
	TankID      id.ID
	Draws       []Draw
	TotalVolume decimal.Decimal
	TotalCost   decimal.Decimal
}

// WeightedCost returns the volume-weighted cost per liter, zero for an empty plan.
func (p Plan) WeightedCost() decimal.Decimal {
	if p.TotalVolume.IsZero() {
		return decimal.Zero
	}
	return p.TotalCost.Div(p.TotalVolume).Round(types.MoneyScale)
}

// SortLayers orders layers by sequence, lower id first on ties.
func SortLayers(layers []Layer) {
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].LayerSequence != layers[j].LayerSequence {
			return layers[i].LayerSequence < layers[j].LayerSequence
		}
		return bytes.Compare(layers[i].ID[:], layers[j].ID[:]) < 0
	})
}

// Available sums remaining volume of non-exhausted layers.
func Available(layers []Layer) decimal.Decimal {
	total := decimal.Zero
	for _, l := range layers {
		if !l.IsExhausted && l.RemainingVolumeLiters.IsPositive() {
			total = total.Add(l.RemainingVolumeLiters)
		}
	}
	return total
}

// PlanConsumption draws needed liters from layers oldest-first.
// It never under-consumes: if the layers cannot cover needed, it fails with a FIFO shortfall
// and returns no plan. The input slice is not modified.
func PlanConsumption(tankID id.ID, layers []Layer, needed decimal.Decimal) (Plan, error) {
	plan := Plan{TankID: tankID, TotalVolume: decimal.Zero, TotalCost: decimal.Zero}
	if needed.IsNegative() {
		return plan, apperror.NewValidation("volume to consume cannot be negative")
	}
	if needed.IsZero() {
		return plan, nil
	}

	ordered := make([]Layer, len(layers))
	copy(ordered, layers)
	SortLayers(ordered)

	available := Available(ordered)
	if available.LessThan(needed) {
		return Plan{}, apperror.NewFIFOShortfall(tankID.String(), needed.String(), available.String())
	}

	remaining := needed
	for _, l := range ordered {
		if remaining.IsZero() {
			break
		}
		if l.IsExhausted || !l.RemainingVolumeLiters.IsPositive() {
			continue
		}

		take := decimal.Min(remaining, l.RemainingVolumeLiters)
		cost := types.RoundMoney(take.Mul(l.CostPerLiterUGX))
		plan.Draws = append(plan.Draws, Draw{
			LayerID:         l.ID,
			LayerSequence:   l.LayerSequence,
			Volume:          take,
			CostPerLiterUGX: l.CostPerLiterUGX,
			TotalCostUGX:    cost,
			RemainingAfter:  l.RemainingVolumeLiters.Sub(take),
		})
		plan.TotalVolume = plan.TotalVolume.Add(take)
		plan.TotalCost = plan.TotalCost.Add(cost)
		remaining = remaining.Sub(take)
	}

	return plan, nil
}
