// Package registry holds the tank and meter reference data the engine consumes.
package registry

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
)

// FuelType is the closed set of products a tank can hold.
type FuelType string

const (
	FuelPetrol        FuelType = "petrol"
	FuelDiesel        FuelType = "diesel"
	FuelKerosene      FuelType = "kerosene"
	FuelPremiumPetrol FuelType = "premium_petrol"
	FuelSuperPetrol   FuelType = "super_petrol"
	FuelUnleaded91    FuelType = "unleaded_91"
	FuelUnleaded95    FuelType = "unleaded_95"
	FuelUnleaded98    FuelType = "unleaded_98"
	FuelE10           FuelType = "e10"
	FuelE85           FuelType = "e85"
	FuelBiodieselB5   FuelType = "biodiesel_b5"
	FuelBiodieselB20  FuelType = "biodiesel_b20"
	FuelULSD          FuelType = "ulsd"
	FuelMarineDiesel  FuelType = "marine_diesel"
	FuelJetA1         FuelType = "jet_a1"
	FuelAvgas         FuelType = "avgas"
	FuelLPG           FuelType = "lpg"
	FuelCNG           FuelType = "cng"
	FuelHeavyFuelOil  FuelType = "heavy_fuel_oil"
	FuelLightFuelOil  FuelType = "light_fuel_oil"
	FuelPowerPetrol   FuelType = "power_petrol"
	FuelPowerDiesel   FuelType = "power_diesel"
)

var fuelTypes = map[FuelType]struct{}{
	FuelPetrol: {}, FuelDiesel: {}, FuelKerosene: {}, FuelPremiumPetrol: {},
	FuelSuperPetrol: {}, FuelUnleaded91: {}, FuelUnleaded95: {}, FuelUnleaded98: {},
	FuelE10: {}, FuelE85: {}, FuelBiodieselB5: {}, FuelBiodieselB20: {},
	FuelULSD: {}, FuelMarineDiesel: {}, FuelJetA1: {}, FuelAvgas: {},
	FuelLPG: {}, FuelCNG: {}, FuelHeavyFuelOil: {}, FuelLightFuelOil: {},
	FuelPowerPetrol: {}, FuelPowerDiesel: {},
}

// Valid reports whether f is a known fuel type.
func (f FuelType) Valid() bool {
	_, ok := fuelTypes[f]
	return ok
}

// Station is the unit of access control.
type Station struct {
	ID        id.ID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Tank is a storage tank at a station.
type Tank struct {
	ID                  id.ID           `db:"id"`
	StationID           id.ID           `db:"station_id"`
	TankNumber          string          `db:"tank_number"`
	FuelType            FuelType        `db:"fuel_type"`
	CapacityLiters      decimal.Decimal `db:"capacity_liters"`
	CurrentVolumeLiters decimal.Decimal `db:"current_volume_liters"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// ExceedsCapacity reports whether v is above the tank's capacity.
func (t *Tank) ExceedsCapacity(v decimal.Decimal) bool {
	return v.GreaterThan(t.CapacityLiters)
}

// Meter is a cumulative dispenser counter bound to one tank.
type Meter struct {
	ID                   id.ID           `db:"id"`
	TankID               id.ID           `db:"tank_id"`
	MeterNumber          string          `db:"meter_number"`
	CurrentReadingLiters decimal.Decimal `db:"current_reading_liters"`
	IsActive             bool            `db:"is_active"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}
