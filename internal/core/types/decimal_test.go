package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		part  string
		whole string
		want  string
	}{
		{"small loss", "-20", "4500", "-0.4444"},
		{"critical loss", "-450", "4500", "-10"},
		{"zero denominator", "10", "0", "0"},
		{"margin", "500", "2000", "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentage(MustDecimal(tt.part), MustDecimal(tt.whole))
			assert.True(t, got.Equal(MustDecimal(tt.want)), "got %s", got)
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(MustDecimal("100.00"), MustDecimal("100.01"), IdentityTolerance))
	assert.False(t, WithinTolerance(MustDecimal("100.00"), MustDecimal("100.02"), IdentityTolerance))
	assert.True(t, WithinTolerance(MustDecimal("1200"), MustDecimal("1200.9"), ConsumptionCostTolerance))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, "33.33", RoundVolume(decimal.NewFromInt(100).Div(decimal.NewFromInt(3))).String())
	assert.Equal(t, "1.01", RoundMoney(MustDecimal("1.005")).String())
	assert.Equal(t, "5", PercentOf(MustDecimal("100"), MustDecimal("5")).String())
	assert.True(t, Sum(MustDecimal("1.5"), MustDecimal("2.5")).Equal(decimal.NewFromInt(4)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2026-03-13", FormatDate(PreviousDay(d)))

	_, err = ParseDate("14/03/2026")
	assert.Error(t, err)
}
