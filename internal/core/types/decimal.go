// Package types provides decimal volume and money helpers shared by the engine.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is an amount in UGX. Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Volume is a quantity of fuel in liters.
type Volume = decimal.Decimal

// Rounding scales of computed figures. Liters round to 2 places inside the
// NUMERIC(12,3) volume columns. UGX matches NUMERIC(15,2) prices and NUMERIC(18,2)
// totals, percentages match NUMERIC(9,4).
const (
	VolumeScale  int32 = 2
	MoneyScale   int32 = 2
	PercentScale int32 = 4
)

// Tolerances used when checking stored figures against their identities.
var (
	// IdentityTolerance bounds the reconciliation arithmetic identities.
	IdentityTolerance = decimal.RequireFromString("0.01")

	// ConsumptionVolumeTolerance bounds sum(log volumes) against dispensed liters.
	ConsumptionVolumeTolerance = decimal.RequireFromString("0.1")

	// ConsumptionCostTolerance bounds sum(log costs) against COGS.
	ConsumptionCostTolerance = decimal.NewFromInt(1)

	// LedgerTolerance bounds sum(debit) against sum(credit).
	LedgerTolerance = decimal.RequireFromString("0.0001")
)

var hundred = decimal.NewFromInt(100)

// MustDecimal parses s, panics on error. Use only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// RoundVolume rounds liters to storage scale.
func RoundVolume(v Volume) Volume {
	return v.Round(VolumeScale)
}

// RoundMoney rounds UGX to storage scale.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// Percentage returns part/whole*100 rounded to PercentScale; zero when whole is zero.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(PercentScale)
}

// PercentOf returns pct% of base.
func PercentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// WithinTolerance reports |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
