package readings

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/tx"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// ClosedDayChecker tells whether a tank's day is already reconciled.
type ClosedDayChecker interface {
	IsReconciled(ctx context.Context, tankID id.ID, date time.Time) (bool, error)
}

// Service validates and stores the four daily reading legs.
// Each operation runs in its own transaction; a validation failure leaves nothing behind.
type Service struct {
	repo     Repository
	registry *registry.Service
	txm      tx.Manager
	keys     tx.KeyLocker
	closed   ClosedDayChecker
	rules    Rules
	now      func() time.Time
}

// NewService creates a new reading intake service.
func NewService(repo Repository, reg *registry.Service, txm tx.Manager, keys tx.KeyLocker, closed ClosedDayChecker, rules Rules) *Service {
	return &Service{
		repo:     repo,
		registry: reg,
		txm:      txm,
		keys:     keys,
		closed:   closed,
		rules:    rules,
		now:      time.Now,
	}
}

// Rules returns the configured bounds.
func (s *Service) Rules() Rules {
	return s.rules
}

// RecordMorningMeterReading opens a meter's day with Closing == Opening.
func (s *Service) RecordMorningMeterReading(ctx context.Context, in MorningMeterInput) (*MeterReading, error) {
	if in.Date.IsZero() {
		return nil, apperror.NewValidation("reading date is required")
	}
	if in.Opening.IsNegative() {
		return nil, apperror.NewValidation("Opening reading cannot be negative")
	}
	date := types.DateOnly(in.Date)

	meter, tank, err := s.registry.MeterForUser(ctx, in.MeterID)
	if err != nil {
		return nil, err
	}
	if !meter.IsActive {
		return nil, apperror.NewValidation("Meter is not active").WithDetail("meter_id", meter.ID)
	}

	reading := &MeterReading{
		ID:                   id.New(),
		MeterID:              meter.ID,
		ReadingDate:          date,
		OpeningReadingLiters: in.Opening,
		ClosingReadingLiters: in.Opening,
		RecordedByUserID:     appctx.GetUserID(ctx),
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockOpenDay(ctx, tank.ID, date); err != nil {
			return err
		}
		if _, err := s.repo.GetMeterReading(ctx, meter.ID, date); err == nil {
			return apperror.NewDuplicate("meter reading", "date", types.FormatDate(date))
		} else if !apperror.IsNotFound(err) {
			return err
		}

		prevClosing := meter.CurrentReadingLiters
		prev, err := s.repo.LatestMeterReadingBefore(ctx, meter.ID, date)
		switch {
		case err == nil:
			prevClosing = prev.ClosingReadingLiters
		case !apperror.IsNotFound(err):
			return err
		}

		if in.Opening.LessThan(prevClosing) && !s.rules.IsMeterReset(prevClosing, in.Opening) {
			return apperror.NewValidation("Opening reading cannot be less than previous closing reading").
				WithDetail("previous_closing", prevClosing.String()).
				WithDetail("opening", in.Opening.String())
		}

		return s.repo.CreateMeterReading(ctx, reading)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "morning meter reading recorded",
		"meter_id", meter.ID,
		"date", types.FormatDate(date),
		"opening", in.Opening.String(),
	)
	return reading, nil
}

// RecordEveningMeterReading closes a meter's day exactly once.
func (s *Service) RecordEveningMeterReading(ctx context.Context, in EveningMeterInput) (*MeterReading, error) {
	if in.Date.IsZero() {
		return nil, apperror.NewValidation("reading date is required")
	}
	date := types.DateOnly(in.Date)

	meter, tank, err := s.registry.MeterForUser(ctx, in.MeterID)
	if err != nil {
		return nil, err
	}
	if !meter.IsActive {
		return nil, apperror.NewValidation("Meter is not active").WithDetail("meter_id", meter.ID)
	}

	var reading *MeterReading
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockOpenDay(ctx, tank.ID, date); err != nil {
			return err
		}
		r, err := s.repo.GetMeterReadingForUpdate(ctx, meter.ID, date)
		if apperror.IsNotFound(err) {
			return apperror.NewMissingPrerequisite("Morning meter reading required before evening reading")
		}
		if err != nil {
			return err
		}
		if r.IsClosed() {
			return apperror.NewDuplicate("evening meter reading", "date", types.FormatDate(date))
		}
		if in.Closing.LessThan(r.OpeningReadingLiters) {
			return apperror.NewValidation("Closing reading cannot be less than opening reading").
				WithDetail("opening", r.OpeningReadingLiters.String()).
				WithDetail("closing", in.Closing.String())
		}

		closedAt := s.now()
		if err := s.repo.CloseMeterReading(ctx, r.ID, in.Closing, closedAt); err != nil {
			return err
		}
		if err := s.registry.Repo().UpdateMeterReading(ctx, meter.ID, in.Closing); err != nil {
			return err
		}

		r.ClosingReadingLiters = in.Closing
		r.ClosedAt = &closedAt
		reading = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "evening meter reading recorded",
		"meter_id", meter.ID,
		"date", types.FormatDate(date),
		"dispensed", reading.ClosingReadingLiters.Sub(reading.OpeningReadingLiters).String(),
	)
	return reading, nil
}

// RecordMorningDip opens the tank's day.
func (s *Service) RecordMorningDip(ctx context.Context, in MorningDipInput) (*DailyReading, error) {
	if in.Date.IsZero() {
		return nil, apperror.NewValidation("reading date is required")
	}
	if in.MorningDip.IsNegative() {
		return nil, apperror.NewValidation("Morning dip cannot be negative")
	}
	if in.WaterLevelMM != nil && in.WaterLevelMM.IsNegative() {
		return nil, apperror.NewValidation("Water level cannot be negative")
	}
	date := types.DateOnly(in.Date)

	tank, err := s.registry.TankForUser(ctx, in.TankID)
	if err != nil {
		return nil, err
	}
	if tank.ExceedsCapacity(in.MorningDip) {
		return nil, apperror.NewValidation("Morning dip exceeds tank capacity").
			WithDetail("capacity", tank.CapacityLiters.String()).
			WithDetail("dip", in.MorningDip.String())
	}

	reading := &DailyReading{
		ID:                 id.New(),
		TankID:             tank.ID,
		ReadingDate:        date,
		MorningDipLiters:   in.MorningDip,
		EveningDipLiters:   decimal.Zero,
		WaterLevelMM:       in.WaterLevelMM,
		TemperatureCelsius: in.TemperatureC,
		RecordedByUserID:   appctx.GetUserID(ctx),
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetDailyReading(ctx, tank.ID, date); err == nil {
			return apperror.NewDuplicate("daily reading", "date", types.FormatDate(date))
		} else if !apperror.IsNotFound(err) {
			return err
		}
		if err := s.checkOvernight(ctx, tank.ID, date, in.MorningDip); err != nil {
			return err
		}
		return s.repo.CreateDailyReading(ctx, reading)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "morning dip recorded",
		"tank_id", tank.ID,
		"date", types.FormatDate(date),
		"dip", in.MorningDip.String(),
	)
	return reading, nil
}

// RecordEveningDip closes the tank's day. Reconciliation is run by the caller
// after this transaction commits.
func (s *Service) RecordEveningDip(ctx context.Context, in EveningDipInput) (*DailyReading, error) {
	if in.Date.IsZero() {
		return nil, apperror.NewValidation("reading date is required")
	}
	if !in.EveningDip.IsPositive() {
		return nil, apperror.NewValidation("Evening dip must be greater than zero")
	}
	if in.WaterLevelMM != nil && in.WaterLevelMM.IsNegative() {
		return nil, apperror.NewValidation("Water level cannot be negative")
	}
	date := types.DateOnly(in.Date)

	tank, err := s.registry.TankForUser(ctx, in.TankID)
	if err != nil {
		return nil, err
	}

	var reading *DailyReading
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.keys.LockKey(ctx, tx.DayKey(tank.ID, date)); err != nil {
			return fmt.Errorf("lock day: %w", err)
		}
		d, err := s.repo.GetDailyReadingForUpdate(ctx, tank.ID, date)
		if apperror.IsNotFound(err) {
			return apperror.NewMissingPrerequisite("Morning dip reading required before evening dip reading")
		}
		if err != nil {
			return err
		}
		if !d.MorningDipLiters.IsPositive() {
			return apperror.NewMissingPrerequisite("Morning dip must be recorded with a positive volume before evening dip")
		}
		if d.HasEvening() {
			return apperror.NewDuplicate("evening dip", "date", types.FormatDate(date))
		}

		meters, err := s.repo.ListMeterReadings(ctx, tank.ID, date, true)
		if err != nil {
			return err
		}
		if err := CheckMetersClosed(meters); err != nil {
			return err
		}

		if tank.ExceedsCapacity(in.EveningDip) {
			return apperror.NewValidation("Evening dip exceeds tank capacity").
				WithDetail("capacity", tank.CapacityLiters.String()).
				WithDetail("dip", in.EveningDip.String())
		}
		if d.WaterLevelMM != nil && in.WaterLevelMM != nil {
			rise := in.WaterLevelMM.Sub(*d.WaterLevelMM)
			if rise.GreaterThan(s.rules.MaxWaterRiseMM) {
				return apperror.NewValidation("Water level increase exceeds allowed maximum").
					WithDetail("rise_mm", rise.String()).
					WithDetail("max_mm", s.rules.MaxWaterRiseMM.String())
			}
		}
		if d.TemperatureCelsius != nil && in.TemperatureC != nil {
			swing := in.TemperatureC.Sub(*d.TemperatureCelsius).Abs()
			if swing.GreaterThan(s.rules.MaxTemperatureSwingC) {
				return apperror.NewValidation("Temperature change exceeds allowed maximum").
					WithDetail("swing_c", swing.String()).
					WithDetail("max_c", s.rules.MaxTemperatureSwingC.String())
			}
		}
		if err := s.checkOvernight(ctx, tank.ID, date, d.MorningDipLiters); err != nil {
			return err
		}

		d.EveningDipLiters = in.EveningDip
		d.EveningWaterLevelMM = in.WaterLevelMM
		d.EveningTemperatureCelsius = in.TemperatureC
		if err := s.repo.RecordEveningDip(ctx, d); err != nil {
			return err
		}
		reading = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "evening dip recorded",
		"tank_id", tank.ID,
		"date", types.FormatDate(date),
		"dip", in.EveningDip.String(),
	)
	return reading, nil
}

// lockOpenDay serializes with reconciliation of (tank, date) and rejects a day that is
// already reconciled. Must run inside a transaction.
func (s *Service) lockOpenDay(ctx context.Context, tankID id.ID, date time.Time) error {
	if err := s.keys.LockKey(ctx, tx.DayKey(tankID, date)); err != nil {
		return fmt.Errorf("lock day: %w", err)
	}
	if s.closed == nil {
		return nil
	}
	done, err := s.closed.IsReconciled(ctx, tankID, date)
	if err != nil {
		return err
	}
	if done {
		return apperror.NewValidation("Reading date is already reconciled for this tank; reprocess the reconciliation instead").
			WithDetail("date", types.FormatDate(date))
	}
	return nil
}

// checkOvernight compares morning against the previous day's evening dip, when one exists.
func (s *Service) checkOvernight(ctx context.Context, tankID id.ID, date time.Time, morning decimal.Decimal) error {
	prev, err := s.repo.GetDailyReading(ctx, tankID, types.PreviousDay(date))
	if apperror.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.rules.OvernightVarianceExceeded(prev.EveningDipLiters, morning) {
		return apperror.NewValidation("Morning dip differs from previous evening dip by more than allowed overnight variance").
			WithDetail("previous_evening", prev.EveningDipLiters.String()).
			WithDetail("morning", morning.String()).
			WithDetail("max_pct", s.rules.MaxOvernightVariancePct.String())
	}
	return nil
}

// GetDailyReading returns the tank's dip row for date.
func (s *Service) GetDailyReading(ctx context.Context, tankID id.ID, date time.Time) (*DailyReading, error) {
	if _, err := s.registry.TankForUser(ctx, tankID); err != nil {
		return nil, err
	}
	return s.repo.GetDailyReading(ctx, tankID, types.DateOnly(date))
}

// ListMeterReadings returns every meter reading of the tank for date.
func (s *Service) ListMeterReadings(ctx context.Context, tankID id.ID, date time.Time) ([]MeterReading, error) {
	if _, err := s.registry.TankForUser(ctx, tankID); err != nil {
		return nil, err
	}
	return s.repo.ListMeterReadings(ctx, tankID, types.DateOnly(date), false)
}
