package fifo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/tx"
	"fuelstation/internal/core/types"
	"fuelstation/pkg/logger"
)

// Service is the FIFO layer ledger. Mutating methods must run inside the caller's transaction.
type Service struct {
	repo   Repository
	locker tx.KeyLocker
}

// NewService creates a new FIFO ledger service.
func NewService(repo Repository, locker tx.KeyLocker) *Service {
	return &Service{repo: repo, locker: locker}
}

// NewLayer describes a layer to append.
type NewLayer struct {
	TankID       id.ID
	DeliveryID   *id.ID
	Volume       decimal.Decimal
	CostPerLiter decimal.Decimal
	DeliveryDate time.Time
}

// LayerKey is the lock key guarding a tank's layer sequence.
func LayerKey(tankID id.ID) string {
	return tx.LayerKey(tankID)
}

// CreateLayer appends a layer with the tank's next sequence; remaining = original = volume.
func (s *Service) CreateLayer(ctx context.Context, in NewLayer) (*Layer, error) {
	if !in.Volume.IsPositive() {
		return nil, apperror.NewValidation("layer volume must be positive")
	}
	if !in.CostPerLiter.IsPositive() {
		return nil, apperror.NewValidation("layer cost per liter must be positive")
	}

	if err := s.locker.LockKey(ctx, LayerKey(in.TankID)); err != nil {
		return nil, fmt.Errorf("lock layer sequence: %w", err)
	}
	seq, err := s.repo.NextSequence(ctx, in.TankID)
	if err != nil {
		return nil, fmt.Errorf("next layer sequence: %w", err)
	}

	layer := &Layer{
		ID:                    id.New(),
		TankID:                in.TankID,
		LayerSequence:         seq,
		DeliveryID:            in.DeliveryID,
		DeliveryDate:          types.DateOnly(in.DeliveryDate),
		OriginalVolumeLiters:  in.Volume,
		RemainingVolumeLiters: in.Volume,
		CostPerLiterUGX:       in.CostPerLiter,
	}
	if err := s.repo.CreateLayer(ctx, layer); err != nil {
		return nil, fmt.Errorf("create layer: %w", err)
	}

	logger.Info(ctx, "fifo layer created",
		"tank_id", in.TankID,
		"layer_sequence", seq,
		"volume", in.Volume.String(),
		"cost_per_liter", in.CostPerLiter.String(),
	)
	return layer, nil
}

// PlanForTank locks the tank's open layers and plans consuming needed liters.
// The locks are held until the enclosing transaction ends.
func (s *Service) PlanForTank(ctx context.Context, tankID id.ID, needed decimal.Decimal) (Plan, error) {
	layers, err := s.repo.ListOpenLayersForUpdate(ctx, tankID)
	if err != nil {
		return Plan{}, fmt.Errorf("lock layers: %w", err)
	}
	return PlanConsumption(tankID, layers, needed)
}

// Apply persists a plan: decrements layers and writes one log per draw.
func (s *Service) Apply(ctx context.Context, reconciliationID id.ID, plan Plan) ([]ConsumptionLog, error) {
	if len(plan.Draws) == 0 {
		return nil, nil
	}

	updated := make([]Layer, 0, len(plan.Draws))
	logs := make([]ConsumptionLog, 0, len(plan.Draws))
	now := time.Now().UTC()
	for _, d := range plan.Draws {
		updated = append(updated, Layer{
			ID:                    d.LayerID,
			TankID:                plan.TankID,
			RemainingVolumeLiters: d.RemainingAfter,
			IsExhausted:           d.Exhausts(),
		})
		logs = append(logs, ConsumptionLog{
			ID:                   id.New(),
			ReconciliationID:     reconciliationID,
			FIFOLayerID:          d.LayerID,
			TankID:               plan.TankID,
			VolumeConsumedLiters: d.Volume,
			CostPerLiterUGX:      d.CostPerLiterUGX,
			TotalCostUGX:         d.TotalCostUGX,
			CreatedAt:            now,
		})
	}

	if err := s.repo.UpdateRemaining(ctx, updated); err != nil {
		return nil, fmt.Errorf("update layers: %w", err)
	}
	if err := s.repo.InsertConsumptionLogs(ctx, logs); err != nil {
		return nil, fmt.Errorf("insert consumption logs: %w", err)
	}
	return logs, nil
}

// Consume plans and applies in one step.
func (s *Service) Consume(ctx context.Context, tankID, reconciliationID id.ID, needed decimal.Decimal) (Plan, []ConsumptionLog, error) {
	plan, err := s.PlanForTank(ctx, tankID, needed)
	if err != nil {
		return Plan{}, nil, err
	}
	logs, err := s.Apply(ctx, reconciliationID, plan)
	if err != nil {
		return Plan{}, nil, err
	}
	return plan, logs, nil
}

// Restore reverses every draw of a reconciliation and deletes its logs.
// A restore that would push a layer above its original volume is an orphaned layer.
func (s *Service) Restore(ctx context.Context, reconciliationID id.ID) (int, error) {
	logs, err := s.repo.ListConsumptionLogs(ctx, ConsumptionFilter{ReconciliationID: &reconciliationID})
	if err != nil {
		return 0, fmt.Errorf("list consumption logs: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	ids := make([]id.ID, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.FIFOLayerID)
	}
	layers, err := s.repo.GetLayersForUpdate(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("lock layers: %w", err)
	}
	byID := make(map[id.ID]*Layer, len(layers))
	for i := range layers {
		byID[layers[i].ID] = &layers[i]
	}

	for _, l := range logs {
		layer, ok := byID[l.FIFOLayerID]
		if !ok {
			return 0, apperror.NewDataIntegrity(apperror.IntegrityOrphanedLayer, "Consumption log references a missing FIFO layer").
				WithDetail("fifo_layer_id", l.FIFOLayerID)
		}
		layer.RemainingVolumeLiters = layer.RemainingVolumeLiters.Add(l.VolumeConsumedLiters)
		if layer.RemainingVolumeLiters.GreaterThan(layer.OriginalVolumeLiters) {
			return 0, apperror.NewDataIntegrity(apperror.IntegrityOrphanedLayer, "Restoring consumption would exceed the layer's original volume").
				WithDetail("fifo_layer_id", layer.ID).
				WithDetail("original", layer.OriginalVolumeLiters.String()).
				WithDetail("restored", layer.RemainingVolumeLiters.String())
		}
		layer.IsExhausted = layer.RemainingVolumeLiters.IsZero()
	}

	if err := s.repo.UpdateRemaining(ctx, layers); err != nil {
		return 0, fmt.Errorf("update layers: %w", err)
	}
	if _, err := s.repo.DeleteConsumptionLogs(ctx, reconciliationID); err != nil {
		return 0, fmt.Errorf("delete consumption logs: %w", err)
	}

	logger.Info(ctx, "fifo consumption restored",
		"reconciliation_id", reconciliationID,
		"layers", len(layers),
	)
	return len(logs), nil
}

// ListLayers returns a tank's layers in sequence order.
func (s *Service) ListLayers(ctx context.Context, tankID id.ID, includeExhausted bool) ([]Layer, error) {
	return s.repo.ListLayers(ctx, tankID, includeExhausted)
}

// ListConsumption returns consumption logs matching filter.
func (s *Service) ListConsumption(ctx context.Context, filter ConsumptionFilter) ([]ConsumptionLog, error) {
	return s.repo.ListConsumptionLogs(ctx, filter)
}
