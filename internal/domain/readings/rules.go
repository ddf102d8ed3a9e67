package readings

import (
	"github.com/shopspring/decimal"

	"fuelstation/internal/core/types"
)

// Rules holds the intake sanity bounds.
type Rules struct {
	// MeterCeiling is the largest value a meter counter can show before rolling over.
	MeterCeiling decimal.Decimal
	// MeterResetRatio of the ceiling a previous closing must reach to allow a reset.
	MeterResetRatio decimal.Decimal
	// MeterResetFloor is the opening below which a near-ceiling closing is read as a reset.
	MeterResetFloor decimal.Decimal
	// MaxWaterRiseMM is the largest allowed morning-to-evening water level increase.
	MaxWaterRiseMM decimal.Decimal
	// MaxTemperatureSwingC is the largest allowed morning-to-evening temperature change.
	MaxTemperatureSwingC decimal.Decimal
	// MaxOvernightVariancePct bounds |morning − previous evening| as a percentage of previous evening.
	MaxOvernightVariancePct decimal.Decimal
}

// DefaultRules returns the standard bounds.
func DefaultRules() Rules {
	return Rules{
		MeterCeiling:            types.MustDecimal("9999999.99"),
		MeterResetRatio:         types.MustDecimal("0.95"),
		MeterResetFloor:         decimal.NewFromInt(1000),
		MaxWaterRiseMM:          decimal.NewFromInt(50),
		MaxTemperatureSwingC:    decimal.NewFromInt(20),
		MaxOvernightVariancePct: decimal.NewFromInt(5),
	}
}

// IsMeterReset reports whether going from prevClosing to opening looks like a counter rollover.
func (r Rules) IsMeterReset(prevClosing, opening decimal.Decimal) bool {
	threshold := r.MeterCeiling.Mul(r.MeterResetRatio)
	return prevClosing.GreaterThanOrEqual(threshold) && opening.LessThan(r.MeterResetFloor)
}

// Dispensed returns the liters a closed reading accounts for.
// A closing below the opening counts as a rollover only when it matches IsMeterReset;
// otherwise ok is false.
func (r Rules) Dispensed(m MeterReading) (liters decimal.Decimal, ok bool) {
	opening, closing := m.OpeningReadingLiters, m.ClosingReadingLiters
	if closing.GreaterThanOrEqual(opening) {
		return closing.Sub(opening), true
	}
	if r.IsMeterReset(opening, closing) {
		return closing.Add(r.MeterCeiling.Sub(opening)), true
	}
	return decimal.Zero, false
}

// OvernightVarianceExceeded checks the morning dip against the previous evening.
// The check is skipped when there is no previous evening.
func (r Rules) OvernightVarianceExceeded(prevEvening, morning decimal.Decimal) bool {
	if !prevEvening.IsPositive() {
		return false
	}
	limit := types.PercentOf(prevEvening, r.MaxOvernightVariancePct)
	return morning.Sub(prevEvening).Abs().GreaterThan(limit)
}
