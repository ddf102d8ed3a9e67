package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
	"fuelstation/internal/core/tx"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/domain/variance"
	"fuelstation/pkg/logger"
)

var tracer = otel.Tracer("fuelstation/reconciliation")

// Locker is a best-effort cross-process lock taken before the database lock.
// Obtain returns a release func; an error means the caller proceeds without it.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// NopLocker never locks.
type NopLocker struct{}

func (NopLocker) Obtain(context.Context, string) (func(), error) { return func() {}, nil }

// Config bounds a reconciliation run.
type Config struct {
	// Timeout bounds the whole reconciliation transaction.
	Timeout time.Duration
}

// Deps are the collaborators of the engine.
type Deps struct {
	Repo       Repository
	Readings   readings.Repository
	Rules      readings.Rules
	Registry   *registry.Service
	Deliveries delivery.Repository
	FIFO       *fifo.Service
	Prices     pricing.Lookup
	Ledger     *ledger.Service
	Variance   *variance.Service
	Policy     security.Policy
	TxManager  tx.Manager
	Keys       tx.KeyLocker
	Locker     Locker
	Events     EventPublisher
}

// Engine orchestrates the daily reconciliation.
type Engine struct {
	Deps
	cfg Config
	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Locker == nil {
		deps.Locker = NopLocker{}
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Engine{Deps: deps, cfg: cfg, now: time.Now}
}

// Key is the serialization key of a (tank, date).
func Key(tankID id.ID, date time.Time) string {
	return tx.DayKey(tankID, date)
}

// State evaluates where (tank, date) is in the daily workflow.
func (e *Engine) State(ctx context.Context, tankID id.ID, date time.Time) (State, error) {
	if _, err := e.Registry.TankForUser(ctx, tankID); err != nil {
		return "", err
	}
	return e.state(ctx, tankID, types.DateOnly(date))
}

func (e *Engine) state(ctx context.Context, tankID id.ID, date time.Time) (State, error) {
	rec, err := e.Repo.GetByTankDate(ctx, tankID, date)
	switch {
	case err == nil:
		if rec.Verify() != nil {
			return StateFaulty, nil
		}
		return StateReconciled, nil
	case !apperror.IsNotFound(err):
		return "", err
	}

	if _, err := e.Repo.GetFault(ctx, tankID, date); err == nil {
		return StateFaulty, nil
	} else if !apperror.IsNotFound(err) {
		return "", err
	}

	reading, err := e.Readings.GetDailyReading(ctx, tankID, date)
	if apperror.IsNotFound(err) {
		return StateNoReadings, nil
	}
	if err != nil {
		return "", err
	}
	if !reading.HasEvening() {
		return StateMorningOnly, nil
	}
	meters, err := e.Readings.ListMeterReadings(ctx, tankID, date, true)
	if err != nil {
		return "", err
	}
	if readings.CheckMetersClosed(meters) != nil {
		return StateMorningOnly, nil
	}
	return StateReady, nil
}

// Reconcile runs the reconciliation of (tank, date). A day that is already reconciled
// is returned unchanged.
func (e *Engine) Reconcile(ctx context.Context, tankID id.ID, date time.Time) (*DailyReconciliation, error) {
	if _, err := e.Policy.RequireUser(ctx); err != nil {
		return nil, err
	}
	tank, err := e.Registry.TankForUser(ctx, tankID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, tank, types.DateOnly(date), false)
}

// ProcessManual is the admin trigger for a gap or faulty day.
func (e *Engine) ProcessManual(ctx context.Context, tankID id.ID, date time.Time) (*DailyReconciliation, error) {
	if err := e.Policy.RequireAdmin(ctx); err != nil {
		logger.Warn(ctx, "manual reconciliation denied", "tank_id", tankID, "error", err)
		return nil, err
	}
	tank, err := e.Registry.TankForUser(ctx, tankID)
	if err != nil {
		return nil, err
	}
	date = types.DateOnly(date)

	state, err := e.state(ctx, tank.ID, date)
	if err != nil {
		return nil, err
	}
	switch state {
	case StateReconciled:
		rec, err := e.Repo.GetByTankDate(ctx, tank.ID, date)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "manual reconciliation skipped, already reconciled",
			"tank_id", tank.ID, "date", types.FormatDate(date), "reconciliation_id", rec.ID)
		return rec, nil
	case StateFaulty:
		if _, err := e.Repo.GetByTankDate(ctx, tank.ID, date); err == nil {
			return e.run(ctx, tank, date, true)
		}
		return e.run(ctx, tank, date, false)
	case StateReady:
		return e.run(ctx, tank, date, false)
	default:
		return nil, apperror.NewMissingPrerequisite("Readings are incomplete for this date").
			WithDetail("state", string(state)).
			WithDetail("date", types.FormatDate(date))
	}
}

// Reprocess reverses the stored reconciliation of (tank, date) and recomputes it
// in the same transaction.
func (e *Engine) Reprocess(ctx context.Context, tankID id.ID, date time.Time) (*DailyReconciliation, error) {
	if err := e.Policy.RequireAdmin(ctx); err != nil {
		logger.Warn(ctx, "reprocess denied", "tank_id", tankID, "error", err)
		return nil, err
	}
	tank, err := e.Registry.TankForUser(ctx, tankID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, tank, types.DateOnly(date), true)
}

// Delete reverses and removes the reconciliation of (tank, date) without recomputing.
func (e *Engine) Delete(ctx context.Context, tankID id.ID, date time.Time) error {
	if err := e.Policy.RequireAdmin(ctx); err != nil {
		logger.Warn(ctx, "reconciliation delete denied", "tank_id", tankID, "error", err)
		return err
	}
	tank, err := e.Registry.TankForUser(ctx, tankID)
	if err != nil {
		return err
	}
	date = types.DateOnly(date)
	key := Key(tank.ID, date)

	release := e.obtain(ctx, key)
	defer release()

	err = e.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.lock(ctx, tank.ID, key); err != nil {
			return err
		}
		rec, err := e.Repo.GetByTankDate(ctx, tank.ID, date)
		if err != nil {
			return err
		}
		return e.reverse(ctx, rec)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "reconciliation deleted", "tank_id", tank.ID, "date", types.FormatDate(date))
	return nil
}

// run executes one reconciliation attempt. With reprocess set, an existing record is
// reversed first; otherwise it is returned as is.
func (e *Engine) run(ctx context.Context, tank *registry.Tank, date time.Time, reprocess bool) (*DailyReconciliation, error) {
	key := Key(tank.ID, date)
	ctx, span := tracer.Start(ctx, "reconciliation.run", trace.WithAttributes(
		attribute.String("tank.id", tank.ID.String()),
		attribute.String("reconciliation.date", types.FormatDate(date)),
		attribute.Bool("reconciliation.reprocess", reprocess),
	))
	defer span.End()

	release := e.obtain(ctx, key)
	defer release()

	tctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var (
		result  *DailyReconciliation
		created bool
	)
	err := e.TxManager.RunInTransaction(tctx, func(ctx context.Context) error {
		if err := e.lock(ctx, tank.ID, key); err != nil {
			return err
		}

		existing, err := e.Repo.GetByTankDate(ctx, tank.ID, date)
		switch {
		case err == nil && !reprocess:
			result = existing
			return nil
		case err == nil:
			if err := e.reverse(ctx, existing); err != nil {
				return err
			}
		case !apperror.IsNotFound(err):
			return err
		}

		rec, err := e.compute(ctx, tank, date)
		if err != nil {
			return err
		}
		result, created = rec, true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, e.fail(ctx, tank, date, err)
	}

	if created {
		logger.Info(ctx, "reconciliation completed",
			"tank_id", tank.ID,
			"date", types.FormatDate(date),
			"reconciliation_id", result.ID,
			"dispensed", result.TotalDispensedLiters.String(),
			"variance_pct", result.VariancePercentage.String(),
			"cogs", result.TotalCOGSUGX.String(),
			"reprocess", reprocess,
		)
	}
	return result, nil
}

// lock takes the day key, then the tank's layer key.
func (e *Engine) lock(ctx context.Context, tankID id.ID, key string) error {
	if err := e.Keys.LockKey(ctx, key); err != nil {
		return fmt.Errorf("lock reconciliation key: %w", err)
	}
	if err := e.Keys.LockKey(ctx, tx.LayerKey(tankID)); err != nil {
		return fmt.Errorf("lock layer sequence: %w", err)
	}
	return nil
}

// compute performs the reconciliation steps inside the caller's transaction.
func (e *Engine) compute(ctx context.Context, tank *registry.Tank, date time.Time) (*DailyReconciliation, error) {
	reading, err := e.Readings.GetDailyReading(ctx, tank.ID, date)
	if apperror.IsNotFound(err) {
		return nil, apperror.NewMissingPrerequisite("Morning and evening dip readings required before reconciliation")
	}
	if err != nil {
		return nil, err
	}
	if !reading.HasEvening() {
		return nil, apperror.NewMissingPrerequisite("Evening dip reading required before reconciliation")
	}
	meters, err := e.Readings.ListMeterReadings(ctx, tank.ID, date, true)
	if err != nil {
		return nil, err
	}
	if err := readings.CheckMetersClosed(meters); err != nil {
		return nil, err
	}

	opening := decimal.Zero
	prev, err := e.Repo.LatestBefore(ctx, tank.ID, date)
	switch {
	case err == nil:
		opening = prev.ActualClosingStockLiters
	case !apperror.IsNotFound(err):
		return nil, err
	}

	delivered, err := e.Deliveries.SumByTankDate(ctx, tank.ID, date)
	if err != nil {
		return nil, fmt.Errorf("sum deliveries: %w", err)
	}

	dispensed := decimal.Zero
	for _, m := range meters {
		liters, ok := e.Rules.Dispensed(m)
		if !ok {
			return nil, apperror.NewDataIntegrity(apperror.IntegrityIdentityMismatch, "Meter closing reading is below opening reading").
				WithDetail("meter_id", m.MeterID).
				WithDetail("opening", m.OpeningReadingLiters.String()).
				WithDetail("closing", m.ClosingReadingLiters.String())
		}
		dispensed = dispensed.Add(liters)
	}
	dispensed = types.RoundVolume(dispensed)

	plan, err := e.FIFO.PlanForTank(ctx, tank.ID, dispensed)
	if err != nil {
		return nil, err
	}

	price, err := e.Prices.CurrentSellingPrice(ctx, tank.StationID, tank.FuelType, date)
	if err != nil {
		return nil, err
	}

	rec := Compute(Figures{
		Opening:   opening,
		Delivered: delivered,
		Dispensed: dispensed,
		Actual:    reading.EveningDipLiters,
		COGS:      plan.TotalCost,
		Price:     price,
	})
	rec.ID = id.New()
	rec.TankID = tank.ID
	rec.StationID = tank.StationID
	rec.ReconciliationDate = date
	rec.ReconciledByUserID = appctx.GetUserID(ctx)
	rec.ReconciledAt = e.now().UTC()

	if err := rec.Verify(); err != nil {
		return nil, err
	}

	if err := e.Repo.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("create reconciliation: %w", err)
	}

	logs, err := e.FIFO.Apply(ctx, rec.ID, plan)
	if err != nil {
		return nil, err
	}
	if err := rec.VerifyConsumption(logs); err != nil {
		return nil, err
	}

	entries, err := e.Ledger.PostReconciliation(ctx, ledger.ReconciliationPosting{
		ReconciliationID: rec.ID,
		StationID:        tank.StationID,
		FuelType:         tank.FuelType,
		Date:             date,
		COGS:             rec.TotalCOGSUGX,
		Sales:            rec.TotalSalesUGX,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		number := entries[0].JournalNumber
		if err := e.Repo.SetJournalNumber(ctx, rec.ID, number); err != nil {
			return nil, fmt.Errorf("link journal: %w", err)
		}
		rec.JournalNumber = &number
	}

	notification, err := e.Variance.Notify(ctx, variance.NotifyInput{
		TankID:             tank.ID,
		Date:               date,
		ReconciliationID:   rec.ID,
		VariancePercentage: rec.VariancePercentage,
		VolumeVariance:     rec.VolumeVarianceLiters,
	})
	if err != nil {
		return nil, err
	}

	if err := e.Registry.Repo().UpdateTankVolume(ctx, tank.ID, rec.ActualClosingStockLiters); err != nil {
		return nil, fmt.Errorf("update tank volume: %w", err)
	}
	if tank.ExceedsCapacity(rec.ActualClosingStockLiters) {
		logger.Warn(ctx, "actual closing stock exceeds tank capacity",
			"tank_id", tank.ID, "closing", rec.ActualClosingStockLiters.String())
	}

	if err := e.Repo.ClearFault(ctx, tank.ID, date); err != nil {
		return nil, fmt.Errorf("clear fault: %w", err)
	}

	if err := e.Events.Publish(ctx, completedEvent(&rec)); err != nil {
		return nil, fmt.Errorf("publish completion: %w", err)
	}
	if notification != nil && notification.Status != variance.StatusResolved {
		if err := e.Events.Publish(ctx, varianceEvent(&rec, notification)); err != nil {
			return nil, fmt.Errorf("publish variance: %w", err)
		}
	}
	return &rec, nil
}

// reverse restores FIFO layers, deletes postings and derived notifications, then the row.
func (e *Engine) reverse(ctx context.Context, rec *DailyReconciliation) error {
	if _, err := e.FIFO.Restore(ctx, rec.ID); err != nil {
		return err
	}
	if _, err := e.Ledger.ReverseReconciliation(ctx, rec.ID); err != nil {
		return err
	}
	if _, err := e.Variance.Retract(ctx, rec.ID); err != nil {
		return fmt.Errorf("retract notifications: %w", err)
	}
	if err := e.Repo.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete reconciliation: %w", err)
	}
	if err := e.Events.Publish(ctx, reversedEvent(rec, appctx.GetUserID(ctx))); err != nil {
		return fmt.Errorf("publish reversal: %w", err)
	}
	logger.Info(ctx, "reconciliation reversed", "reconciliation_id", rec.ID, "tank_id", rec.TankID)
	return nil
}

// fail classifies a failed run. Integrity failures are recorded as a fault in their own
// transaction; timeouts become TIMEOUT_ERROR.
func (e *Engine) fail(ctx context.Context, tank *registry.Tank, date time.Time, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Error(ctx, "reconciliation timed out", "tank_id", tank.ID, "date", types.FormatDate(date), "error", err)
		return apperror.NewTimeout("Reconciliation did not complete in time", err)
	}

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "reconciliation failed", "tank_id", tank.ID, "date", types.FormatDate(date), "error", err)
		return err
	}

	switch {
	case apperror.IsDataIntegrity(err):
		logger.Error(ctx, "reconciliation data integrity failure",
			"tank_id", tank.ID,
			"date", types.FormatDate(date),
			"kind", apperror.IntegrityKind(err),
			"error", err,
		)
		fault := &Fault{
			ID:        id.New(),
			TankID:    tank.ID,
			FaultDate: date,
			Kind:      apperror.IntegrityKind(err),
			Message:   appErr.Message,
			Details:   appErr.Details,
			CreatedAt: e.now().UTC(),
		}
		fctx := context.WithoutCancel(ctx)
		if ferr := e.TxManager.RunInTransaction(fctx, func(ctx context.Context) error {
			return e.Repo.SaveFault(ctx, fault)
		}); ferr != nil {
			logger.Error(ctx, "record reconciliation fault failed", "tank_id", tank.ID, "error", ferr)
		}
	case apperror.IsDependency(err):
		logger.Warn(ctx, "reconciliation dependency failure", "tank_id", tank.ID, "date", types.FormatDate(date), "error", err)
	case appErr.Code == apperror.CodeInternal:
		logger.Error(ctx, "reconciliation failed", "tank_id", tank.ID, "error", err)
	}
	return err
}

// obtain takes the best-effort distributed lock.
func (e *Engine) obtain(ctx context.Context, key string) func() {
	release, err := e.Locker.Obtain(ctx, key)
	if err != nil {
		logger.Debug(ctx, "distributed lock not obtained, relying on database lock", "key", key, "error", err)
		return func() {}
	}
	return release
}

// RecordEveningDip stores the evening dip, then reconciles the day in a separate
// transaction. A reconciliation failure does not undo the stored reading.
func (e *Engine) RecordEveningDip(ctx context.Context, intake *readings.Service, in readings.EveningDipInput) (*EveningDipResult, error) {
	reading, err := intake.RecordEveningDip(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &EveningDipResult{Reading: reading}
	tank, err := e.Registry.TankForUser(ctx, reading.TankID)
	if err != nil {
		res.ReconcileErr = err
		return res, nil
	}
	rec, err := e.run(ctx, tank, reading.ReadingDate, false)
	if err != nil {
		res.ReconcileErr = err
		return res, nil
	}
	res.Reconciliation = rec
	return res, nil
}

// EveningDipResult is the outcome of the evening dip leg.
type EveningDipResult struct {
	Reading        *readings.DailyReading
	Reconciliation *DailyReconciliation
	ReconcileErr   error
}
