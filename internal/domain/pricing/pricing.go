// Package pricing supplies the selling price used for sales revenue.
// Price management lives elsewhere; this package only looks prices up.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// Price is one row of the station price list.
type Price struct {
	ID               id.ID             `db:"id"`
	StationID        id.ID             `db:"station_id"`
	FuelType         registry.FuelType `db:"fuel_type"`
	PricePerLiterUGX decimal.Decimal   `db:"price_per_liter_ugx"`
	EffectiveFrom    time.Time         `db:"effective_from"`
	EffectiveTo      *time.Time        `db:"effective_to"`
	IsActive         bool              `db:"is_active"`
}

// Lookup is the collaborator the reconciliation engine prices sales with.
type Lookup interface {
	CurrentSellingPrice(ctx context.Context, stationID id.ID, fuel registry.FuelType, asOf time.Time) (decimal.Decimal, error)
}

// Repository finds the active price as of a date.
// It returns apperror NOT_FOUND when none applies.
type Repository interface {
	FindActive(ctx context.Context, stationID id.ID, fuel registry.FuelType, asOf time.Time) (*Price, error)
}

// Service adapts a Repository to Lookup and maps failures to dependency errors.
type Service struct {
	repo Repository
}

// NewService creates a price lookup.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var _ Lookup = (*Service)(nil)

// CurrentSellingPrice returns the active price per liter, MISSING_PRICE when none applies.
func (s *Service) CurrentSellingPrice(ctx context.Context, stationID id.ID, fuel registry.FuelType, asOf time.Time) (decimal.Decimal, error) {
	day := types.DateOnly(asOf)
	p, err := s.repo.FindActive(ctx, stationID, fuel, day)
	if apperror.IsNotFound(err) {
		return decimal.Zero, apperror.NewMissingPrice(stationID.String(), string(fuel), types.FormatDate(day))
	}
	if err != nil {
		logger.Warn(ctx, "price lookup failed", "station_id", stationID, "fuel_type", fuel, "error", err)
		return decimal.Zero, apperror.NewDependency("Selling price lookup failed", err)
	}
	if !p.PricePerLiterUGX.IsPositive() {
		return decimal.Zero, apperror.NewMissingPrice(stationID.String(), string(fuel), types.FormatDate(day))
	}
	return p.PricePerLiterUGX, nil
}

// Applies reports whether p is in effect on asOf.
func (p *Price) Applies(asOf time.Time) bool {
	if !p.IsActive || p.EffectiveFrom.After(asOf) {
		return false
	}
	return p.EffectiveTo == nil || p.EffectiveTo.After(asOf)
}
