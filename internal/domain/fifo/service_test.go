package fifo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/testutil/fixture"
	"fuelstation/internal/testutil/memstore"
)

func newLedger() (*memstore.Store, *fifo.Service) {
	s := memstore.New()
	return s, fifo.NewService(s.FIFO(), s)
}

func TestService_CreateLayerAssignsSequence(t *testing.T) {
	s, svc := newLedger()
	ctx := context.Background()
	tank := id.New()

	var layers []*fifo.Layer
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, v := range []string{"100", "200"} {
			l, err := svc.CreateLayer(ctx, fifo.NewLayer{
				TankID:       tank,
				Volume:       fixture.Dec(v),
				CostPerLiter: fixture.Dec("4100"),
				DeliveryDate: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
			})
			if err != nil {
				return err
			}
			layers = append(layers, l)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), layers[0].LayerSequence)
	assert.Equal(t, int64(2), layers[1].LayerSequence)
	assert.True(t, layers[1].RemainingVolumeLiters.Equal(layers[1].OriginalVolumeLiters))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), layers[0].DeliveryDate)
}

func TestService_CreateLayerRejectsNonPositive(t *testing.T) {
	_, svc := newLedger()
	_, err := svc.CreateLayer(context.Background(), fifo.NewLayer{
		TankID: id.New(), Volume: fixture.Dec("0"), CostPerLiter: fixture.Dec("1"),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.CreateLayer(context.Background(), fifo.NewLayer{
		TankID: id.New(), Volume: fixture.Dec("1"), CostPerLiter: fixture.Dec("-1"),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_ConsumeAndRestore(t *testing.T) {
	s, svc := newLedger()
	ctx := context.Background()
	tank := id.New()
	l1 := s.AddLayer(fifo.Layer{TankID: tank, LayerSequence: 1, OriginalVolumeLiters: fixture.Dec("100"), RemainingVolumeLiters: fixture.Dec("100"), CostPerLiterUGX: fixture.Dec("10")})
	l2 := s.AddLayer(fifo.Layer{TankID: tank, LayerSequence: 2, OriginalVolumeLiters: fixture.Dec("50"), RemainingVolumeLiters: fixture.Dec("50"), CostPerLiterUGX: fixture.Dec("12")})
	rec := id.New()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, logs, err := svc.Consume(ctx, tank, rec, fixture.Dec("120"))
		if err != nil {
			return err
		}
		assert.Len(t, logs, 2)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, s.Layer(l1.ID).IsExhausted)
	assert.True(t, s.Layer(l1.ID).RemainingVolumeLiters.IsZero())
	assert.True(t, s.Layer(l2.ID).RemainingVolumeLiters.Equal(fixture.Dec("30")))
	assert.Equal(t, 2, s.LogCount())

	logs, err := svc.ListConsumption(ctx, fifo.ConsumptionFilter{ReconciliationID: &rec})
	require.NoError(t, err)
	total := fixture.Dec("0")
	for _, l := range logs {
		total = total.Add(l.TotalCostUGX)
	}
	assert.True(t, total.Equal(fixture.Dec("1240")))

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := svc.Restore(ctx, rec)
		assert.Equal(t, 2, n)
		return err
	})
	require.NoError(t, err)

	assert.False(t, s.Layer(l1.ID).IsExhausted)
	assert.True(t, s.Layer(l1.ID).RemainingVolumeLiters.Equal(fixture.Dec("100")))
	assert.True(t, s.Layer(l2.ID).RemainingVolumeLiters.Equal(fixture.Dec("50")))
	assert.Zero(t, s.LogCount())
}

func TestService_ShortfallLeavesLayersUntouched(t *testing.T) {
	s, svc := newLedger()
	ctx := context.Background()
	tank := id.New()
	l1 := s.AddLayer(fifo.Layer{TankID: tank, LayerSequence: 1, OriginalVolumeLiters: fixture.Dec("100"), RemainingVolumeLiters: fixture.Dec("100"), CostPerLiterUGX: fixture.Dec("10")})

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, _, err := svc.Consume(ctx, tank, id.New(), fixture.Dec("101"))
		return err
	})
	assert.Equal(t, apperror.IntegrityFIFOShortfall, apperror.IntegrityKind(err))
	assert.True(t, s.Layer(l1.ID).RemainingVolumeLiters.Equal(fixture.Dec("100")))
	assert.Zero(t, s.LogCount())
}

func TestService_RestoreAboveOriginalIsOrphaned(t *testing.T) {
	s, svc := newLedger()
	ctx := context.Background()
	tank := id.New()
	l1 := s.AddLayer(fifo.Layer{TankID: tank, LayerSequence: 1, OriginalVolumeLiters: fixture.Dec("100"), RemainingVolumeLiters: fixture.Dec("100"), CostPerLiterUGX: fixture.Dec("10")})
	rec := id.New()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, _, err := svc.Consume(ctx, tank, rec, fixture.Dec("40"))
		return err
	})
	require.NoError(t, err)

	// Someone topped the layer back up outside the ledger.
	restored := s.Layer(l1.ID)
	restored.RemainingVolumeLiters = fixture.Dec("100")
	s.AddLayer(restored)

	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.Restore(ctx, rec)
		return err
	})
	assert.Equal(t, apperror.IntegrityOrphanedLayer, apperror.IntegrityKind(err))
	assert.Equal(t, 1, s.LogCount())
}

func TestService_RestoreWithoutLogsIsNoop(t *testing.T) {
	s, svc := newLedger()
	err := s.RunInTransaction(context.Background(), func(ctx context.Context) error {
		n, err := svc.Restore(ctx, id.New())
		assert.Zero(t, n)
		return err
	})
	require.NoError(t, err)
}
