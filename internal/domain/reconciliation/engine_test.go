package reconciliation_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/domain/variance"
	"fuelstation/internal/testutil/fixture"
	"fuelstation/internal/testutil/memstore"
)

func TestEngine_EveningDipReconcilesWithinTolerance(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleAttendant)

	res, err := env.EveningDip(ctx, "4480")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)
	rec := res.Reconciliation
	require.NotNil(t, rec)

	assert.True(t, rec.OpeningStockLiters.Equal(fixture.Dec("4000")))
	assert.True(t, rec.TotalDeliveredLiters.Equal(fixture.Dec("3000")))
	assert.True(t, rec.TotalDispensedLiters.Equal(fixture.Dec("2500")))
	assert.True(t, rec.TheoreticalClosingStockLiters.Equal(fixture.Dec("4500")))
	assert.True(t, rec.VolumeVarianceLiters.Equal(fixture.Dec("-20")))
	assert.True(t, rec.VariancePercentage.Equal(fixture.Dec("-0.4444")))
	assert.True(t, rec.TotalCOGSUGX.Equal(fixture.Dec("9500000")))
	assert.True(t, rec.TotalSalesUGX.Equal(fixture.Dec("12500000")))
	assert.True(t, rec.GrossProfitUGX.Equal(fixture.Dec("3000000")))
	assert.Equal(t, env.Station.ID, rec.StationID)
	assert.Equal(t, "user-attendant", rec.ReconciledByUserID)
	require.NotNil(t, rec.JournalNumber)
	assert.True(t, strings.HasPrefix(*rec.JournalNumber, "JV-2026-"))
	stored, err := env.Engine.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.JournalNumber)
	assert.Equal(t, *rec.JournalNumber, *stored.JournalNumber)

	assert.Empty(t, env.Store.Notifications())
	assert.True(t, env.Store.Tank(env.Tank.ID).CurrentVolumeLiters.Equal(fixture.Dec("4480")))

	state, err := env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateReconciled, state)
}

func TestEngine_PostsBalancedLedger(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleManager)

	res, err := env.EveningDip(ctx, "4480")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	entries := env.Store.Entries()
	require.Len(t, entries, 4)
	byAccount := map[ledger.AccountType]ledger.Entry{}
	for _, e := range entries {
		assert.Equal(t, *res.Reconciliation.JournalNumber, e.JournalNumber)
		assert.Equal(t, ledger.ReferenceReconciliation, e.ReferenceTable)
		assert.Equal(t, res.Reconciliation.ID, e.ReferenceID)
		byAccount[e.AccountType] = e
	}
	assert.True(t, byAccount[ledger.AccountCOGS].DebitAmountUGX.Equal(fixture.Dec("9500000")))
	assert.True(t, byAccount[ledger.AccountInventory].CreditAmountUGX.Equal(fixture.Dec("9500000")))
	assert.True(t, byAccount[ledger.AccountCash].DebitAmountUGX.Equal(fixture.Dec("12500000")))
	assert.True(t, byAccount[ledger.AccountRevenue].CreditAmountUGX.Equal(fixture.Dec("12500000")))

	balance, err := env.Ledger.Balance(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.True(t, balance.Balanced)
	assert.True(t, balance.TotalDebit.Equal(fixture.Dec("22000000")))
}

func TestEngine_ConsumesOldestLayerFirst(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleManager)

	res, err := env.EveningDip(ctx, "4480")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	layers, err := env.Engine.Layers(ctx, env.Tank.ID, true)
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.True(t, layers[0].RemainingVolumeLiters.Equal(fixture.Dec("1500")))
	assert.True(t, layers[1].RemainingVolumeLiters.Equal(fixture.Dec("3000")))

	recID := res.Reconciliation.ID
	logs, err := env.Engine.Consumption(ctx, fifo.ConsumptionFilter{ReconciliationID: &recID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, layers[0].ID, logs[0].FIFOLayerID)
	assert.True(t, logs[0].CostPerLiterUGX.Equal(fixture.Dec("3800")))
}

func TestEngine_CriticalVarianceRaisesNotification(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleAttendant)

	res, err := env.EveningDip(ctx, "4050")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)
	assert.True(t, res.Reconciliation.VariancePercentage.Equal(fixture.Dec("-10")))

	notes := env.Store.Notifications()
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, variance.SeverityCritical, n.Severity)
	assert.Equal(t, variance.StatusOpen, n.Status)
	assert.Equal(t, variance.TypeVolumeVariance, n.NotificationType)
	assert.True(t, n.VarianceMagnitude.Equal(fixture.Dec("450")))
	require.NotNil(t, n.ReconciliationID)
	assert.Equal(t, res.Reconciliation.ID, *n.ReconciliationID)
}

func TestEngine_ReconcileIsIdempotent(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleAttendant)

	res, err := env.EveningDip(ctx, "4050")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	again, err := env.Engine.Reconcile(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, res.Reconciliation.ID, again.ID)

	assert.Equal(t, 2, env.Store.ReconciliationCount())
	assert.Len(t, env.Store.Entries(), 4)
	assert.Equal(t, 1, env.Store.LogCount())
	assert.Len(t, env.Store.Notifications(), 1)
}

func TestEngine_ReprocessProducesSameFigures(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)

	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4050")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)
	first := res.Reconciliation

	second, err := env.Engine.Reprocess(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.TotalCOGSUGX.Equal(first.TotalCOGSUGX))
	assert.True(t, second.VariancePercentage.Equal(first.VariancePercentage))
	assert.Equal(t, 2, env.Store.ReconciliationCount())
	assert.Len(t, env.Store.Entries(), 4)
	assert.Equal(t, 1, env.Store.LogCount())

	layers, err := env.FIFO.ListLayers(env.As(appctx.RoleAdmin), env.Tank.ID, true)
	require.NoError(t, err)
	assert.True(t, layers[0].RemainingVolumeLiters.Equal(fixture.Dec("1500")))

	notes := env.Store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, second.ID, *notes[0].ReconciliationID)
}

func TestEngine_ReprocessKeepsResolvedNotification(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)

	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4050")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	n := env.Store.Notifications()[0]
	_, err = env.Variance.Transition(env.As(appctx.RoleManager), n.ID, variance.StatusResolved, "Calibration error on dip stick")
	require.NoError(t, err)

	_, err = env.Engine.Reprocess(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
	require.NoError(t, err)

	notes := env.Store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, variance.StatusResolved, notes[0].Status)
	assert.Equal(t, "Calibration error on dip stick", *notes[0].ResolutionNotes)
}

func TestEngine_ReprocessRequiresAdmin(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	_, err = env.Engine.Reprocess(env.As(appctx.RoleManager), env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	err = env.Engine.Delete(env.As(appctx.RoleManager), env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	assert.Equal(t, 2, env.Store.ReconciliationCount())
}

func TestEngine_FailedPostingRollsBackEverything(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleAttendant)
	aborts := env.Store.Aborts()

	env.Store.FailNext("InsertEntries", errors.New("connection reset"))
	res, err := env.EveningDip(ctx, "4050")
	require.NoError(t, err)
	require.Error(t, res.ReconcileErr)
	assert.Nil(t, res.Reconciliation)

	// The evening dip survives; nothing derived from the reconciliation does.
	assert.True(t, res.Reading.HasEvening())
	assert.Equal(t, aborts+1, env.Store.Aborts())
	assert.Equal(t, 1, env.Store.ReconciliationCount())
	assert.Zero(t, env.Store.LogCount())
	assert.Empty(t, env.Store.Entries())
	assert.Empty(t, env.Store.Notifications())
	assert.True(t, env.Store.Layer(firstLayer(t, env).ID).RemainingVolumeLiters.Equal(fixture.Dec("4000")))

	state, err := env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateReady, state)

	rec, err := env.Engine.Reconcile(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.True(t, rec.VariancePercentage.Equal(fixture.Dec("-10")))
	assert.Len(t, env.Store.Entries(), 4)
}

func TestEngine_MissingPriceLeavesDayReady(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	ctx := env.As(appctx.RoleAttendant)

	env.Store.FailNext("FindActive", apperror.NewNotFound("fuel price", "diesel"))
	res, err := env.EveningDip(ctx, "4480")
	require.NoError(t, err)
	assert.True(t, apperror.HasCode(res.ReconcileErr, apperror.CodeMissingPrice))
	assert.Equal(t, 1, env.Store.ReconciliationCount())

	state, err := env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateReady, state)

	gaps, err := env.Engine.Gaps(ctx, nil, env.Day, env.Day)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.False(t, gaps[0].Faulty)

	rec, err := env.Engine.ProcessManual(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.True(t, rec.TotalSalesUGX.Equal(fixture.Dec("12500000")))
}

func TestEngine_PriceLookupFailureIsDependencyError(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)

	env.Store.FailNext("FindActive", errors.New("price service unavailable"))
	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
	require.NoError(t, err)
	assert.True(t, apperror.HasCode(res.ReconcileErr, apperror.CodeDependency))
}

func TestEngine_ShortfallRecordsFault(t *testing.T) {
	env := fixture.New()
	admin := env.As(appctx.RoleAdmin)
	env.SeedPriorReconciliation("4000")
	env.SeedLayer(1, "200", "3900")

	_, err := env.Readings.RecordMorningDip(admin, readings.MorningDipInput{
		TankID: env.Tank.ID, Date: env.Day, MorningDip: fixture.Dec("4000"),
	})
	require.NoError(t, err)
	_, err = env.Readings.RecordMorningMeterReading(admin, readings.MorningMeterInput{
		MeterID: env.Meter.ID, Date: env.Day, Opening: fixture.Dec("100000"),
	})
	require.NoError(t, err)
	_, err = env.Readings.RecordEveningMeterReading(admin, readings.EveningMeterInput{
		MeterID: env.Meter.ID, Date: env.Day, Closing: fixture.Dec("100500"),
	})
	require.NoError(t, err)

	res, err := env.Engine.RecordEveningDip(admin, env.Readings, readings.EveningDipInput{
		TankID: env.Tank.ID, Date: env.Day, EveningDip: fixture.Dec("3500"),
	})
	require.NoError(t, err)
	assert.Equal(t, apperror.IntegrityFIFOShortfall, apperror.IntegrityKind(res.ReconcileErr))
	assert.Equal(t, 1, env.Store.ReconciliationCount())
	assert.Zero(t, env.Store.LogCount())

	state, err := env.Engine.State(admin, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateFaulty, state)

	gaps, err := env.Engine.Gaps(admin, &env.Station.ID, env.Day, env.Day)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].Faulty)

	// Retry after the missing delivery layer is in place.
	env.SeedLayer(2, "1000", "4000")
	rec, err := env.Engine.ProcessManual(admin, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.True(t, rec.TotalCOGSUGX.Equal(fixture.Dec("1980000")))

	state, err = env.Engine.State(admin, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateReconciled, state)
}

func TestEngine_ProcessManualNeedsReadings(t *testing.T) {
	env := fixture.New()

	_, err := env.Engine.ProcessManual(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrerequisite))

	_, err = env.Engine.ProcessManual(env.As(appctx.RoleManager), env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestEngine_States(t *testing.T) {
	env := fixture.New()
	ctx := env.As(appctx.RoleAdmin)

	state, err := env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateNoReadings, state)

	_, err = env.Readings.RecordMorningDip(ctx, readings.MorningDipInput{
		TankID: env.Tank.ID, Date: env.Day, MorningDip: fixture.Dec("4000"),
	})
	require.NoError(t, err)

	state, err = env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateMorningOnly, state)

	_, err = env.Engine.Reconcile(ctx, env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrerequisite))
}

func TestEngine_StoredRecordFailingIdentitiesIsFaulty(t *testing.T) {
	env := fixture.New()
	rec := env.SeedPriorReconciliation("4000")
	rec.TheoreticalClosingStockLiters = fixture.Dec("3000")
	env.Store.PutReconciliation(rec)

	state, err := env.Engine.State(env.As(appctx.RoleAdmin), env.Tank.ID, rec.ReconciliationDate)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateFaulty, state)
}

func TestEngine_DeleteRestoresLayersAndPostings(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4050")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	require.NoError(t, env.Engine.Delete(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day))

	assert.Equal(t, 1, env.Store.ReconciliationCount())
	assert.Empty(t, env.Store.Entries())
	assert.Empty(t, env.Store.Notifications())
	assert.Zero(t, env.Store.LogCount())
	assert.True(t, env.Store.Layer(firstLayer(t, env).ID).RemainingVolumeLiters.Equal(fixture.Dec("4000")))

	err = env.Engine.Delete(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEngine_StationScoping(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	_, err = env.Engine.Get(env.Stranger(), res.Reconciliation.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, err = env.Engine.Reconcile(env.Stranger(), env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	list, err := env.Engine.List(env.As(appctx.RoleManager), reconciliation.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = env.Engine.List(env.Stranger(), reconciliation.Filter{StationID: &env.Station.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestEngine_DeliveryOnReconciledDayRejected(t *testing.T) {
	env := fixture.New()
	env.Scenario(t)
	res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	_, err = env.Delivery.RecordDelivery(env.As(appctx.RoleManager), deliveryInput(env))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func firstLayer(t *testing.T, env *fixture.Env) fifo.Layer {
	t.Helper()
	layers, err := env.FIFO.ListLayers(env.As(appctx.RoleAdmin), env.Tank.ID, true)
	require.NoError(t, err)
	require.NotEmpty(t, layers)
	return layers[0]
}

func deliveryInput(env *fixture.Env) delivery.Input {
	return delivery.Input{
		TankID:       env.Tank.ID,
		Volume:       fixture.Dec("500"),
		CostPerLiter: fixture.Dec("4100"),
		DeliveryDate: env.Day,
	}
}

func eventTypes(events []reconciliation.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func TestEngine_PublishesEvents(t *testing.T) {
	t.Run("WithinTolerance", func(t *testing.T) {
		env := fixture.New()
		env.Scenario(t)
		res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
		require.NoError(t, err)
		require.NoError(t, res.ReconcileErr)

		events := env.Store.Events()
		require.Equal(t, []string{reconciliation.EventCompleted}, eventTypes(events))
		payload, ok := events[0].Payload.(reconciliation.CompletedPayload)
		require.True(t, ok)
		assert.Equal(t, res.Reconciliation.ID, payload.ReconciliationID)
		assert.Equal(t, "2026-03-10", payload.Date)
		assert.Equal(t, res.Reconciliation.JournalNumber, payload.JournalNumber)
	})

	t.Run("CriticalVariance", func(t *testing.T) {
		env := fixture.New()
		env.Scenario(t)
		res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4050")
		require.NoError(t, err)
		require.NoError(t, res.ReconcileErr)

		events := env.Store.Events()
		require.Equal(t, []string{reconciliation.EventCompleted, reconciliation.EventVarianceRaised}, eventTypes(events))
		payload := events[1].Payload.(reconciliation.VariancePayload)
		assert.Equal(t, variance.SeverityCritical, payload.Severity)
		assert.Equal(t, env.Store.Notifications()[0].ID, events[1].AggregateID)
	})

	t.Run("Reprocess", func(t *testing.T) {
		env := fixture.New()
		env.Scenario(t)
		_, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
		require.NoError(t, err)

		_, err = env.Engine.Reprocess(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
		require.NoError(t, err)
		assert.Equal(t, []string{
			reconciliation.EventCompleted,
			reconciliation.EventReversed,
			reconciliation.EventCompleted,
		}, eventTypes(env.Store.Events()))
	})

	t.Run("PublishFailureRollsBack", func(t *testing.T) {
		env := fixture.New()
		env.Scenario(t)
		env.Store.FailNext("Publish", errors.New("outbox unavailable"))

		res, err := env.EveningDip(env.As(appctx.RoleAttendant), "4480")
		require.NoError(t, err)
		require.Error(t, res.ReconcileErr)
		assert.Empty(t, env.Store.Events())
		assert.Empty(t, env.Store.Entries())
		assert.Equal(t, 1, env.Store.ReconciliationCount())
	})
}

// heldKeys takes store locks and, on the first day key it gets, keeps it until
// another transaction is waiting on the store.
type heldKeys struct {
	store    *memstore.Store
	once     sync.Once
	acquired chan struct{}
	err      error
}

func (h *heldKeys) LockKey(ctx context.Context, key string) error {
	if err := h.store.LockKey(ctx, key); err != nil {
		return err
	}
	if strings.HasPrefix(key, "recon:") {
		h.once.Do(func() {
			close(h.acquired)
			deadline := time.Now().Add(5 * time.Second)
			for h.store.LockWaits() == 0 {
				if time.Now().After(deadline) {
					h.err = errors.New("no transaction waited on the day key")
					return
				}
				time.Sleep(time.Millisecond)
			}
		})
	}
	return h.err
}

func heldEngine(env *fixture.Env) (*reconciliation.Engine, *heldKeys) {
	keys := &heldKeys{store: env.Store, acquired: make(chan struct{})}
	deps := env.Engine.Deps
	deps.Keys = keys
	return reconciliation.NewEngine(deps, reconciliation.Config{Timeout: 10 * time.Second}), keys
}

func readyDay(t *testing.T, env *fixture.Env) {
	t.Helper()
	env.Scenario(t)
	_, err := env.Readings.RecordEveningDip(env.As(appctx.RoleAttendant), readings.EveningDipInput{
		TankID: env.Tank.ID, Date: env.Day, EveningDip: fixture.Dec("4480"),
	})
	require.NoError(t, err)
}

func TestEngine_ConcurrentReconcileRunsOnce(t *testing.T) {
	env := fixture.New()
	readyDay(t, env)
	env.Store.Interleave()
	engine, keys := heldEngine(env)
	ctx := env.As(appctx.RoleAttendant)

	var (
		wg   sync.WaitGroup
		recs [2]*reconciliation.DailyReconciliation
		errs [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs[i], errs[i] = engine.Reconcile(ctx, env.Tank.ID, env.Day)
		}()
	}
	wg.Wait()

	require.NoError(t, keys.err)
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, recs[0].ID, recs[1].ID)
	assert.GreaterOrEqual(t, env.Store.LockWaits(), 1)

	// The seeded prior day plus this one.
	assert.Equal(t, 2, env.Store.ReconciliationCount())
	assert.Len(t, env.Store.Entries(), 4)
	assert.EqualValues(t, 1, env.Store.Sequence("JV_2026"))
	assert.Equal(t, 1, env.Store.LogCount())
	assert.Equal(t, []string{reconciliation.EventCompleted}, eventTypes(env.Store.Events()))
}

func TestEngine_DeliveryWaitsForReconciliation(t *testing.T) {
	env := fixture.New()
	readyDay(t, env)
	env.Store.Interleave()
	engine, keys := heldEngine(env)
	admin := env.As(appctx.RoleAdmin)

	done := make(chan struct{})
	var recErr error
	go func() {
		defer close(done)
		_, recErr = engine.Reconcile(env.As(appctx.RoleAttendant), env.Tank.ID, env.Day)
	}()

	// Blocks on the day key until the reconciliation commits, then sees the closed day.
	<-keys.acquired
	_, err := env.Delivery.RecordDelivery(admin, delivery.Input{
		TankID:       env.Tank.ID,
		Volume:       fixture.Dec("500"),
		CostPerLiter: fixture.Dec("4100"),
		DeliveryDate: env.Day,
	})
	<-done

	require.NoError(t, keys.err)
	require.NoError(t, recErr)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "already reconciled")
	assert.Equal(t, 2, env.Store.ReconciliationCount())
}

func TestEngine_OpenMeterBlocksReconciliation(t *testing.T) {
	env := fixture.New()
	ctx := env.As(appctx.RoleAttendant)
	env.SeedLayer(1, "4000", "3800")

	_, err := env.Readings.RecordMorningMeterReading(ctx, readings.MorningMeterInput{
		MeterID: env.Meter.ID, Date: env.Day, Opening: fixture.Dec("100000"),
	})
	require.NoError(t, err)
	// Dips stored directly, bypassing the evening dip gate.
	env.Store.PutDailyReading(readings.DailyReading{
		TankID:           env.Tank.ID,
		ReadingDate:      env.Day,
		MorningDipLiters: fixture.Dec("4000"),
		EveningDipLiters: fixture.Dec("1500"),
	})

	state, err := env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateMorningOnly, state)

	_, err = env.Engine.Reconcile(ctx, env.Tank.ID, env.Day)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrerequisite))
	assert.Zero(t, env.Store.ReconciliationCount())
	assert.Empty(t, env.Store.Notifications())

	_, err = env.Engine.ProcessManual(env.As(appctx.RoleAdmin), env.Tank.ID, env.Day)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrerequisite))

	_, err = env.Readings.RecordEveningMeterReading(ctx, readings.EveningMeterInput{
		MeterID: env.Meter.ID, Date: env.Day, Closing: fixture.Dec("102500"),
	})
	require.NoError(t, err)
	state, err = env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateReady, state)
}

func TestEngine_MeterLegsRejectedOnReconciledDay(t *testing.T) {
	env := fixture.New()
	ctx := env.As(appctx.RoleAttendant)
	env.SeedPriorReconciliation("4000")
	env.SeedLayer(1, "4000", "3800")

	_, err := env.Readings.RecordMorningDip(ctx, readings.MorningDipInput{
		TankID: env.Tank.ID, Date: env.Day, MorningDip: fixture.Dec("4000"),
	})
	require.NoError(t, err)
	_, err = env.Readings.RecordMorningMeterReading(ctx, readings.MorningMeterInput{
		MeterID: env.Meter.ID, Date: env.Day, Opening: fixture.Dec("100000"),
	})
	require.NoError(t, err)

	res, err := env.EveningDip(ctx, "1500")
	require.Error(t, err, "evening dip with an open meter")
	assert.Nil(t, res)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingPrerequisite))
	assert.Equal(t, 1, env.Store.ReconciliationCount())
	assert.Empty(t, env.Store.Notifications())

	_, err = env.Readings.RecordEveningMeterReading(ctx, readings.EveningMeterInput{
		MeterID: env.Meter.ID, Date: env.Day, Closing: fixture.Dec("102500"),
	})
	require.NoError(t, err)
	res, err = env.EveningDip(ctx, "1500")
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	late := env.Store.AddMeter(registry.Meter{
		TankID: env.Tank.ID, MeterNumber: "M9", CurrentReadingLiters: fixture.Dec("500"), IsActive: true,
	})
	_, err = env.Readings.RecordMorningMeterReading(ctx, readings.MorningMeterInput{
		MeterID: late.ID, Date: env.Day, Opening: fixture.Dec("500"),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	env.Store.PutMeterReading(readings.MeterReading{
		MeterID: late.ID, ReadingDate: env.Day,
		OpeningReadingLiters: fixture.Dec("500"), ClosingReadingLiters: fixture.Dec("500"),
	})
	_, err = env.Readings.RecordEveningMeterReading(ctx, readings.EveningMeterInput{
		MeterID: late.ID, Date: env.Day, Closing: fixture.Dec("900"),
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "already reconciled")

	state, err := env.Engine.State(ctx, env.Tank.ID, env.Day)
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StateReconciled, state)
}
