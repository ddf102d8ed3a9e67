// Package readings records the raw morning/evening dip and meter legs of a business day.
package readings

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
)

// MeterReading is one meter's opening and closing counter for a day.
// It is created by the morning leg with Closing == Opening and closed once by the evening leg.
type MeterReading struct {
	ID                   id.ID           `db:"id"`
	MeterID              id.ID           `db:"meter_id"`
	ReadingDate          time.Time       `db:"reading_date"`
	OpeningReadingLiters decimal.Decimal `db:"opening_reading_liters"`
	ClosingReadingLiters decimal.Decimal `db:"closing_reading_liters"`
	RecordedByUserID     string          `db:"recorded_by_user_id"`
	ClosedAt             *time.Time      `db:"closed_at"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`

	// MeterActive is joined from meters when listing by tank.
	MeterActive bool `db:"meter_active"`
}

// IsClosed reports whether the evening leg was recorded.
func (r *MeterReading) IsClosed() bool {
	return r.ClosedAt != nil || !r.ClosingReadingLiters.Equal(r.OpeningReadingLiters)
}

// CheckMetersClosed requires at least one meter reading for the day and no open one.
// A meter left at Closing == Opening would count as zero dispensed.
func CheckMetersClosed(meters []MeterReading) error {
	if len(meters) == 0 {
		return apperror.NewMissingPrerequisite("Meter readings required before evening dip reading")
	}
	for i := range meters {
		if !meters[i].IsClosed() {
			return apperror.NewMissingPrerequisite("Evening meter reading required for every active meter").
				WithDetail("meter_id", meters[i].MeterID)
		}
	}
	return nil
}

// DailyReading is the tank's dip record for a day. EveningDipLiters is zero until recorded.
type DailyReading struct {
	ID                        id.ID            `db:"id"`
	TankID                    id.ID            `db:"tank_id"`
	ReadingDate               time.Time        `db:"reading_date"`
	MorningDipLiters          decimal.Decimal  `db:"morning_dip_liters"`
	EveningDipLiters          decimal.Decimal  `db:"evening_dip_liters"`
	WaterLevelMM              *decimal.Decimal `db:"water_level_mm"`
	TemperatureCelsius        *decimal.Decimal `db:"temperature_celsius"`
	EveningWaterLevelMM       *decimal.Decimal `db:"evening_water_level_mm"`
	EveningTemperatureCelsius *decimal.Decimal `db:"evening_temperature_celsius"`
	RecordedByUserID          string           `db:"recorded_by_user_id"`
	CreatedAt                 time.Time        `db:"created_at"`
	UpdatedAt                 time.Time        `db:"updated_at"`
}

// HasEvening reports whether the evening dip was recorded.
func (d *DailyReading) HasEvening() bool {
	return d.EveningDipLiters.IsPositive()
}

// MorningMeterInput is the morning meter leg.
type MorningMeterInput struct {
	MeterID id.ID
	Date    time.Time
	Opening decimal.Decimal
}

// EveningMeterInput is the evening meter leg.
type EveningMeterInput struct {
	MeterID id.ID
	Date    time.Time
	Closing decimal.Decimal
}

// MorningDipInput is the morning dip leg.
type MorningDipInput struct {
	TankID       id.ID
	Date         time.Time
	MorningDip   decimal.Decimal
	WaterLevelMM *decimal.Decimal
	TemperatureC *decimal.Decimal
}

// EveningDipInput is the evening dip leg.
type EveningDipInput struct {
	TankID       id.ID
	Date         time.Time
	EveningDip   decimal.Decimal
	WaterLevelMM *decimal.Decimal
	TemperatureC *decimal.Decimal
}
