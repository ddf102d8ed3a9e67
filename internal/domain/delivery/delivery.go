// Package delivery records fuel deliveries and turns each one into a FIFO cost layer.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
	"fuelstation/internal/core/tx"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// Delivery is a received batch of fuel.
type Delivery struct {
	ID                id.ID           `db:"id"`
	TankID            id.ID           `db:"tank_id"`
	DeliveryDate      time.Time       `db:"delivery_date"`
	VolumeLiters      decimal.Decimal `db:"volume_liters"`
	CostPerLiterUGX   decimal.Decimal `db:"cost_per_liter_ugx"`
	SupplierReference string          `db:"supplier_reference"`
	RecordedByUserID  string          `db:"recorded_by_user_id"`
	CreatedAt         time.Time       `db:"created_at"`
}

// Repository persists deliveries.
type Repository interface {
	Create(ctx context.Context, d *Delivery) error
	SumByTankDate(ctx context.Context, tankID id.ID, date time.Time) (decimal.Decimal, error)
	List(ctx context.Context, filter Filter) ([]Delivery, error)
}

// Filter narrows List.
type Filter struct {
	StationID *id.ID
	TankID    *id.ID
	From      *time.Time
	To        *time.Time
}

// ClosedDayChecker tells whether a tank's day is already reconciled.
type ClosedDayChecker interface {
	IsReconciled(ctx context.Context, tankID id.ID, date time.Time) (bool, error)
}

// Input is a delivery intake request.
type Input struct {
	TankID            id.ID
	Volume            decimal.Decimal
	CostPerLiter      decimal.Decimal
	DeliveryDate      time.Time
	SupplierReference string
}

// Result is the stored delivery and the layer created for it.
type Result struct {
	Delivery *Delivery
	Layer    *fifo.Layer
	// OverCapacity is set when the cached tank volume now exceeds capacity.
	OverCapacity bool
}

// Service is the delivery intake adapter.
type Service struct {
	repo     Repository
	registry *registry.Service
	fifo     *fifo.Service
	closed   ClosedDayChecker
	txm      tx.Manager
	keys     tx.KeyLocker
}

// NewService creates a new delivery service.
func NewService(repo Repository, reg *registry.Service, ledger *fifo.Service, closed ClosedDayChecker, txm tx.Manager, keys tx.KeyLocker) *Service {
	return &Service{repo: repo, registry: reg, fifo: ledger, closed: closed, txm: txm, keys: keys}
}

// RecordDelivery stores the delivery, appends its FIFO layer and bumps the cached tank volume.
func (s *Service) RecordDelivery(ctx context.Context, in Input) (*Result, error) {
	if !in.Volume.IsPositive() {
		return nil, apperror.NewValidation("Delivery volume must be greater than zero")
	}
	if !in.CostPerLiter.IsPositive() {
		return nil, apperror.NewValidation("Delivery cost per liter must be greater than zero")
	}
	if in.DeliveryDate.IsZero() {
		return nil, apperror.NewValidation("delivery date is required")
	}
	date := types.DateOnly(in.DeliveryDate)

	tank, err := s.registry.TankForUser(ctx, in.TankID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// The day key is held until commit, so a reconciliation of this day waits for us
		// or has already committed and is seen below.
		if err := s.keys.LockKey(ctx, tx.DayKey(tank.ID, date)); err != nil {
			return fmt.Errorf("lock day: %w", err)
		}
		if s.closed != nil {
			done, err := s.closed.IsReconciled(ctx, tank.ID, date)
			if err != nil {
				return err
			}
			if done {
				return apperror.NewValidation("Delivery date is already reconciled for this tank; reprocess the reconciliation instead").
					WithDetail("date", types.FormatDate(date))
			}
		}

		d := &Delivery{
			ID:                id.New(),
			TankID:            tank.ID,
			DeliveryDate:      date,
			VolumeLiters:      in.Volume,
			CostPerLiterUGX:   in.CostPerLiter,
			SupplierReference: in.SupplierReference,
			RecordedByUserID:  appctx.GetUserID(ctx),
		}
		if err := s.repo.Create(ctx, d); err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}

		layer, err := s.fifo.CreateLayer(ctx, fifo.NewLayer{
			TankID:       tank.ID,
			DeliveryID:   &d.ID,
			Volume:       in.Volume,
			CostPerLiter: in.CostPerLiter,
			DeliveryDate: date,
		})
		if err != nil {
			return err
		}

		volume, err := s.registry.Repo().AddTankVolume(ctx, tank.ID, in.Volume)
		if err != nil {
			return fmt.Errorf("update tank volume: %w", err)
		}
		if tank.ExceedsCapacity(volume) {
			res.OverCapacity = true
			logger.Warn(ctx, "tank volume exceeds capacity after delivery",
				"tank_id", tank.ID,
				"volume", volume.String(),
				"capacity", tank.CapacityLiters.String(),
			)
		}

		res.Delivery = d
		res.Layer = layer
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery recorded",
		"tank_id", tank.ID,
		"delivery_id", res.Delivery.ID,
		"date", types.FormatDate(date),
		"volume", in.Volume.String(),
	)
	return res, nil
}

// List returns deliveries visible to the user.
func (s *Service) List(ctx context.Context, filter Filter) ([]Delivery, error) {
	station, err := security.StationFilter(ctx, filter.StationID)
	if err != nil {
		return nil, err
	}
	filter.StationID = station
	if filter.TankID != nil {
		if _, err := s.registry.TankForUser(ctx, *filter.TankID); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, filter)
}
