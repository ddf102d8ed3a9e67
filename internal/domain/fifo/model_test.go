package fifo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/testutil/fixture"
)

func layer(seq int64, remaining, cost string) fifo.Layer {
	return fifo.Layer{
		ID:                    id.New(),
		LayerSequence:         seq,
		OriginalVolumeLiters:  fixture.Dec(remaining),
		RemainingVolumeLiters: fixture.Dec(remaining),
		CostPerLiterUGX:       fixture.Dec(cost),
	}
}

func TestPlanConsumption_OldestFirst(t *testing.T) {
	tank := id.New()
	l1 := layer(1, "100", "10")
	l2 := layer(2, "50", "12")

	// Out of order on purpose.
	plan, err := fifo.PlanConsumption(tank, []fifo.Layer{l2, l1}, fixture.Dec("120"))
	require.NoError(t, err)
	require.Len(t, plan.Draws, 2)

	assert.Equal(t, l1.ID, plan.Draws[0].LayerID)
	assert.True(t, plan.Draws[0].Volume.Equal(fixture.Dec("100")))
	assert.True(t, plan.Draws[0].TotalCostUGX.Equal(fixture.Dec("1000")))
	assert.True(t, plan.Draws[0].Exhausts())

	assert.Equal(t, l2.ID, plan.Draws[1].LayerID)
	assert.True(t, plan.Draws[1].Volume.Equal(fixture.Dec("20")))
	assert.True(t, plan.Draws[1].TotalCostUGX.Equal(fixture.Dec("240")))
	assert.True(t, plan.Draws[1].RemainingAfter.Equal(fixture.Dec("30")))
	assert.False(t, plan.Draws[1].Exhausts())

	assert.True(t, plan.TotalVolume.Equal(fixture.Dec("120")))
	assert.True(t, plan.TotalCost.Equal(fixture.Dec("1240")))
	assert.True(t, plan.WeightedCost().Equal(fixture.Dec("10.33")))
}

func TestPlanConsumption_TieBreaksOnID(t *testing.T) {
	a := layer(3, "10", "5")
	b := layer(3, "10", "7")
	first, second := a, b
	if string(b.ID[:]) < string(a.ID[:]) {
		first, second = b, a
	}

	plan, err := fifo.PlanConsumption(id.New(), []fifo.Layer{second, first}, fixture.Dec("15"))
	require.NoError(t, err)
	require.Len(t, plan.Draws, 2)
	assert.Equal(t, first.ID, plan.Draws[0].LayerID)
	assert.Equal(t, second.ID, plan.Draws[1].LayerID)
}

func TestPlanConsumption_SkipsExhausted(t *testing.T) {
	dead := layer(1, "0", "9")
	dead.IsExhausted = true
	live := layer(2, "40", "11")

	plan, err := fifo.PlanConsumption(id.New(), []fifo.Layer{dead, live}, fixture.Dec("40"))
	require.NoError(t, err)
	require.Len(t, plan.Draws, 1)
	assert.Equal(t, live.ID, plan.Draws[0].LayerID)
	assert.True(t, plan.Draws[0].Exhausts())
}

func TestPlanConsumption_Shortfall(t *testing.T) {
	tank := id.New()
	layers := []fifo.Layer{layer(1, "100", "10"), layer(2, "50", "12")}

	plan, err := fifo.PlanConsumption(tank, layers, fixture.Dec("150.01"))
	require.Error(t, err)
	assert.True(t, apperror.IsDataIntegrity(err))
	assert.Equal(t, apperror.IntegrityFIFOShortfall, apperror.IntegrityKind(err))
	assert.Empty(t, plan.Draws)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "150", appErr.Details["available_liters"])
	assert.Equal(t, tank.String(), appErr.Details["tank_id"])
}

func TestPlanConsumption_ZeroAndNegative(t *testing.T) {
	layers := []fifo.Layer{layer(1, "100", "10")}

	plan, err := fifo.PlanConsumption(id.New(), layers, fixture.Dec("0"))
	require.NoError(t, err)
	assert.Empty(t, plan.Draws)
	assert.True(t, plan.TotalCost.IsZero())
	assert.True(t, plan.WeightedCost().IsZero())

	_, err = fifo.PlanConsumption(id.New(), layers, fixture.Dec("-1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPlanConsumption_DoesNotMutateInput(t *testing.T) {
	layers := []fifo.Layer{layer(2, "50", "12"), layer(1, "100", "10")}
	firstID := layers[0].ID

	_, err := fifo.PlanConsumption(id.New(), layers, fixture.Dec("120"))
	require.NoError(t, err)
	assert.Equal(t, firstID, layers[0].ID)
	assert.True(t, layers[0].RemainingVolumeLiters.Equal(fixture.Dec("50")))
}

func TestAvailable(t *testing.T) {
	exhausted := layer(1, "5", "1")
	exhausted.IsExhausted = true
	layers := []fifo.Layer{exhausted, layer(2, "10.5", "1"), layer(3, "4.25", "1")}
	assert.True(t, fifo.Available(layers).Equal(fixture.Dec("14.75")))
}
