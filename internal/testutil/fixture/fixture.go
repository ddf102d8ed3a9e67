// Package fixture wires every domain service over a memstore for tests.
package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/domain/variance"
	"fuelstation/internal/testutil/memstore"
	"fuelstation/pkg/numerator"
)

// Env is a fully wired service graph with one station, one tank and one meter.
type Env struct {
	Store    *memstore.Store
	Registry *registry.Service
	Readings *readings.Service
	FIFO     *fifo.Service
	Delivery *delivery.Service
	Prices   *pricing.Service
	Ledger   *ledger.Service
	Variance *variance.Service
	Engine   *reconciliation.Engine

	Station registry.Station
	Tank    registry.Tank
	Meter   registry.Meter

	// Day is the business date most tests operate on.
	Day time.Time
}

// New builds an Env. Selling price is 5000 UGX/L from 2026-01-01.
func New() *Env {
	s := memstore.New()
	policy := security.NewStationPolicy()

	station := s.AddStation(registry.Station{Name: "Kampala Road", Code: "KLA-01"})
	tank := s.AddTank(registry.Tank{
		StationID:           station.ID,
		TankNumber:          "T1",
		FuelType:            registry.FuelDiesel,
		CapacityLiters:      decimal.NewFromInt(10000),
		CurrentVolumeLiters: decimal.NewFromInt(4000),
	})
	meter := s.AddMeter(registry.Meter{
		TankID:               tank.ID,
		MeterNumber:          "M1",
		CurrentReadingLiters: decimal.NewFromInt(100000),
		IsActive:             true,
	})
	s.AddPrice(pricing.Price{
		StationID:        station.ID,
		FuelType:         registry.FuelDiesel,
		PricePerLiterUGX: decimal.NewFromInt(5000),
		EffectiveFrom:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:         true,
	})

	reg := registry.NewService(s.Registry(), policy)
	intake := readings.NewService(s.Readings(), reg, s, s, s.Reconciliations(), readings.DefaultRules())
	ledgerFIFO := fifo.NewService(s.FIFO(), s)
	prices := pricing.NewService(s.Prices())
	books := ledger.NewService(s.Ledger(), numerator.NewStatic(s, numerator.JournalConfig()))
	notifier := variance.NewService(s.Variance(), s.Registry(), policy, s, variance.DefaultThresholds())
	deliveries := delivery.NewService(s.Deliveries(), reg, ledgerFIFO, s.Reconciliations(), s, s)

	engine := reconciliation.NewEngine(reconciliation.Deps{
		Repo:       s.Reconciliations(),
		Readings:   s.Readings(),
		Rules:      readings.DefaultRules(),
		Registry:   reg,
		Deliveries: s.Deliveries(),
		FIFO:       ledgerFIFO,
		Prices:     prices,
		Ledger:     books,
		Variance:   notifier,
		Policy:     policy,
		TxManager:  s,
		Keys:       s,
		Events:     s.Outbox(),
	}, reconciliation.Config{Timeout: 5 * time.Second})

	return &Env{
		Store:    s,
		Registry: reg,
		Readings: intake,
		FIFO:     ledgerFIFO,
		Delivery: deliveries,
		Prices:   prices,
		Ledger:   books,
		Variance: notifier,
		Engine:   engine,
		Station:  station,
		Tank:     tank,
		Meter:    meter,
		Day:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

// As returns a context acting as a user with role at the env's station.
func (e *Env) As(role string) context.Context {
	station := e.Station.ID.String()
	if role == appctx.RoleAdmin {
		station = ""
	}
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    "user-" + role,
		Role:      role,
		StationID: station,
	})
}

// Stranger returns a manager context bound to another station.
func (e *Env) Stranger() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:    "user-stranger",
		Role:      appctx.RoleManager,
		StationID: id.NewString(),
	})
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return types.MustDecimal(s)
}

// Ptr returns a pointer to d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// SeedLayer appends a layer directly.
func (e *Env) SeedLayer(seq int64, remaining, cost string) fifo.Layer {
	return e.Store.AddLayer(fifo.Layer{
		TankID:                e.Tank.ID,
		LayerSequence:         seq,
		DeliveryDate:          e.Day.AddDate(0, 0, -30),
		OriginalVolumeLiters:  Dec(remaining),
		RemainingVolumeLiters: Dec(remaining),
		CostPerLiterUGX:       Dec(cost),
	})
}

// SeedPriorReconciliation stores a reconciliation the day before Day closing at closing liters.
func (e *Env) SeedPriorReconciliation(closing string) reconciliation.DailyReconciliation {
	c := Dec(closing)
	return e.Store.PutReconciliation(reconciliation.DailyReconciliation{
		TankID:                        e.Tank.ID,
		StationID:                     e.Station.ID,
		ReconciliationDate:            types.PreviousDay(e.Day),
		OpeningStockLiters:            c,
		TotalDeliveredLiters:          decimal.Zero,
		TotalDispensedLiters:          decimal.Zero,
		TheoreticalClosingStockLiters: c,
		ActualClosingStockLiters:      c,
		VolumeVarianceLiters:          decimal.Zero,
		VariancePercentage:            decimal.Zero,
		TotalSalesUGX:                 decimal.Zero,
		TotalCOGSUGX:                  decimal.Zero,
		GrossProfitUGX:                decimal.Zero,
		ProfitMarginPercentage:        decimal.Zero,
	})
}

// Scenario prepares the standard day: opening 4000 L, delivery of 3000 L at 4000 UGX,
// 2500 L dispensed on the meter and a 4000 L morning dip. The evening dip is left to the test.
func (e *Env) Scenario(t testing.TB) {
	t.Helper()
	admin := e.As(appctx.RoleAdmin)
	e.SeedPriorReconciliation("4000")
	e.SeedLayer(1, "4000", "3800")

	_, err := e.Delivery.RecordDelivery(admin, delivery.Input{
		TankID:       e.Tank.ID,
		Volume:       Dec("3000"),
		CostPerLiter: Dec("4000"),
		DeliveryDate: e.Day,
	})
	require.NoError(t, err)

	_, err = e.Readings.RecordMorningDip(admin, readings.MorningDipInput{
		TankID:       e.Tank.ID,
		Date:         e.Day,
		MorningDip:   Dec("4000"),
		WaterLevelMM: Ptr(Dec("10")),
		TemperatureC: Ptr(Dec("24")),
	})
	require.NoError(t, err)

	_, err = e.Readings.RecordMorningMeterReading(admin, readings.MorningMeterInput{
		MeterID: e.Meter.ID,
		Date:    e.Day,
		Opening: Dec("100000"),
	})
	require.NoError(t, err)

	_, err = e.Readings.RecordEveningMeterReading(admin, readings.EveningMeterInput{
		MeterID: e.Meter.ID,
		Date:    e.Day,
		Closing: Dec("102500"),
	})
	require.NoError(t, err)
}

// EveningDip records the evening dip through the engine.
func (e *Env) EveningDip(ctx context.Context, liters string) (*reconciliation.EveningDipResult, error) {
	return e.Engine.RecordEveningDip(ctx, e.Readings, readings.EveningDipInput{
		TankID:       e.Tank.ID,
		Date:         e.Day,
		EveningDip:   Dec(liters),
		WaterLevelMM: Ptr(Dec("12")),
		TemperatureC: Ptr(Dec("27")),
	})
}
