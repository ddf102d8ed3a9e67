package reconciliation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/testutil/fixture"
)

func TestCompute(t *testing.T) {
	rec := reconciliation.Compute(reconciliation.Figures{
		Opening:   fixture.Dec("4000"),
		Delivered: fixture.Dec("3000"),
		Dispensed: fixture.Dec("2500"),
		Actual:    fixture.Dec("4480"),
		COGS:      fixture.Dec("9500000"),
		Price:     fixture.Dec("5000"),
	})

	assert.True(t, rec.TheoreticalClosingStockLiters.Equal(fixture.Dec("4500")))
	assert.True(t, rec.VolumeVarianceLiters.Equal(fixture.Dec("-20")))
	assert.True(t, rec.VariancePercentage.Equal(fixture.Dec("-0.4444")))
	assert.True(t, rec.TotalSalesUGX.Equal(fixture.Dec("12500000")))
	assert.True(t, rec.GrossProfitUGX.Equal(fixture.Dec("3000000")))
	assert.True(t, rec.ProfitMarginPercentage.Equal(fixture.Dec("24")))
	require.NoError(t, rec.Verify())
}

func TestCompute_ZeroTheoreticalAndSales(t *testing.T) {
	rec := reconciliation.Compute(reconciliation.Figures{
		Opening:   fixture.Dec("100"),
		Delivered: fixture.Dec("0"),
		Dispensed: fixture.Dec("100"),
		Actual:    fixture.Dec("3"),
		COGS:      fixture.Dec("0"),
		Price:     fixture.Dec("0"),
	})

	assert.True(t, rec.TheoreticalClosingStockLiters.IsZero())
	assert.True(t, rec.VolumeVarianceLiters.Equal(fixture.Dec("3")))
	assert.True(t, rec.VariancePercentage.IsZero())
	assert.True(t, rec.ProfitMarginPercentage.IsZero())
	require.NoError(t, rec.Verify())
}

func TestCompute_RoundsPartsBeforeIdentities(t *testing.T) {
	rec := reconciliation.Compute(reconciliation.Figures{
		Opening:   fixture.Dec("1000.004"),
		Delivered: fixture.Dec("200.006"),
		Dispensed: fixture.Dec("300.333"),
		Actual:    fixture.Dec("899.675"),
		COGS:      fixture.Dec("1234567.891"),
		Price:     fixture.Dec("4999.99"),
	})

	assert.True(t, rec.OpeningStockLiters.Equal(fixture.Dec("1000")))
	assert.True(t, rec.TotalDeliveredLiters.Equal(fixture.Dec("200.01")))
	assert.True(t, rec.TotalDispensedLiters.Equal(fixture.Dec("300.33")))
	assert.True(t, rec.TheoreticalClosingStockLiters.Equal(fixture.Dec("899.68")))
	assert.True(t, rec.TotalCOGSUGX.Equal(fixture.Dec("1234567.89")))
	require.NoError(t, rec.Verify())
}

func TestVerify_DetectsTampering(t *testing.T) {
	rec := reconciliation.Compute(reconciliation.Figures{
		Opening: fixture.Dec("4000"), Delivered: fixture.Dec("0"), Dispensed: fixture.Dec("500"),
		Actual: fixture.Dec("3500"), COGS: fixture.Dec("1"), Price: fixture.Dec("1"),
	})
	rec.TheoreticalClosingStockLiters = fixture.Dec("3499.98")

	err := rec.Verify()
	require.Error(t, err)
	assert.Equal(t, apperror.IntegrityIdentityMismatch, apperror.IntegrityKind(err))

	// One hundredth is within tolerance.
	rec.TheoreticalClosingStockLiters = fixture.Dec("3499.99")
	rec.VolumeVarianceLiters = fixture.Dec("0.01")
	assert.NoError(t, rec.Verify())
}

func TestVerifyConsumption(t *testing.T) {
	rec := reconciliation.DailyReconciliation{
		TotalDispensedLiters: fixture.Dec("120"),
		TotalCOGSUGX:         fixture.Dec("1240"),
	}
	logs := []fifo.ConsumptionLog{
		{VolumeConsumedLiters: fixture.Dec("100"), TotalCostUGX: fixture.Dec("1000")},
		{VolumeConsumedLiters: fixture.Dec("20"), TotalCostUGX: fixture.Dec("240")},
	}
	require.NoError(t, rec.VerifyConsumption(logs))

	logs[1].TotalCostUGX = fixture.Dec("238.5")
	assert.True(t, apperror.IsDataIntegrity(rec.VerifyConsumption(logs)))

	logs[1].TotalCostUGX = fixture.Dec("240")
	logs[1].VolumeConsumedLiters = fixture.Dec("19.8")
	assert.True(t, apperror.IsDataIntegrity(rec.VerifyConsumption(logs)))
}
