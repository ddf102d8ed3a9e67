// Package reconciliation computes a tank's daily book-vs-physical reconciliation,
// costs the dispensed volume through FIFO and posts the result to the ledger.
package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/fifo"
)

// State of a (tank, date) in the daily workflow.
type State string

const (
	StateNoReadings State = "NO_READINGS"
	StateMorningOnly State = "MORNING_ONLY"
	StateReady       State = "READY_FOR_RECONCILIATION"
	StateReconciled  State = "RECONCILED"
	StateFaulty      State = "FAULTY"
)

// DailyReconciliation is the computed record for one tank and day.
type DailyReconciliation struct {
	ID                            id.ID           `db:"id"`
	TankID                        id.ID           `db:"tank_id"`
	StationID                     id.ID           `db:"station_id"`
	ReconciliationDate            time.Time       `db:"reconciliation_date"`
	OpeningStockLiters            decimal.Decimal `db:"opening_stock_liters"`
	TotalDeliveredLiters          decimal.Decimal `db:"total_delivered_liters"`
	TotalDispensedLiters          decimal.Decimal `db:"total_dispensed_liters"`
	TheoreticalClosingStockLiters decimal.Decimal `db:"theoretical_closing_stock_liters"`
	ActualClosingStockLiters      decimal.Decimal `db:"actual_closing_stock_liters"`
	VolumeVarianceLiters          decimal.Decimal `db:"volume_variance_liters"`
	VariancePercentage            decimal.Decimal `db:"variance_percentage"`
	TotalSalesUGX                 decimal.Decimal `db:"total_sales_ugx"`
	TotalCOGSUGX                  decimal.Decimal `db:"total_cogs_ugx"`
	GrossProfitUGX                decimal.Decimal `db:"gross_profit_ugx"`
	ProfitMarginPercentage        decimal.Decimal `db:"profit_margin_percentage"`
	SellingPricePerLiterUGX       decimal.Decimal `db:"selling_price_per_liter_ugx"`
	JournalNumber                 *string         `db:"journal_number"`
	ReconciledByUserID            string          `db:"reconciled_by_user_id"`
	ReconciledAt                  time.Time       `db:"reconciled_at"`
}

// Figures are the raw inputs of one reconciliation.
type Figures struct {
	Opening   decimal.Decimal
	Delivered decimal.Decimal
	Dispensed decimal.Decimal
	Actual    decimal.Decimal
	COGS      decimal.Decimal
	Price     decimal.Decimal
}

// Compute derives every reconciliation figure. Parts are rounded to storage scale first
// so the stored identities hold exactly.
func Compute(f Figures) DailyReconciliation {
	opening := types.RoundVolume(f.Opening)
	delivered := types.RoundVolume(f.Delivered)
	dispensed := types.RoundVolume(f.Dispensed)
	actual := types.RoundVolume(f.Actual)

	theoretical := opening.Add(delivered).Sub(dispensed)
	variance := actual.Sub(theoretical)

	sales := types.RoundMoney(dispensed.Mul(f.Price))
	cogs := types.RoundMoney(f.COGS)
	profit := sales.Sub(cogs)

	return DailyReconciliation{
		OpeningStockLiters:            opening,
		TotalDeliveredLiters:          delivered,
		TotalDispensedLiters:          dispensed,
		TheoreticalClosingStockLiters: theoretical,
		ActualClosingStockLiters:      actual,
		VolumeVarianceLiters:          variance,
		VariancePercentage:            types.Percentage(variance, theoretical),
		TotalSalesUGX:                 sales,
		TotalCOGSUGX:                  cogs,
		GrossProfitUGX:                profit,
		ProfitMarginPercentage:        types.Percentage(profit, sales),
		SellingPricePerLiterUGX:       f.Price,
	}
}

// Verify checks the arithmetic identities within tolerance.
func (r *DailyReconciliation) Verify() error {
	tol := types.IdentityTolerance
	theoretical := r.OpeningStockLiters.Add(r.TotalDeliveredLiters).Sub(r.TotalDispensedLiters)

	checks := []struct {
		name     string
		got, exp decimal.Decimal
	}{
		{"theoretical_closing_stock", r.TheoreticalClosingStockLiters, theoretical},
		{"volume_variance", r.VolumeVarianceLiters, r.ActualClosingStockLiters.Sub(r.TheoreticalClosingStockLiters)},
		{"gross_profit", r.GrossProfitUGX, r.TotalSalesUGX.Sub(r.TotalCOGSUGX)},
	}
	for _, c := range checks {
		if !types.WithinTolerance(c.got, c.exp, tol) {
			return apperror.NewDataIntegrity(apperror.IntegrityIdentityMismatch, "Reconciliation arithmetic identity does not hold").
				WithDetail("identity", c.name).
				WithDetail("stored", c.got.String()).
				WithDetail("expected", c.exp.String())
		}
	}
	return nil
}

// VerifyConsumption checks the FIFO logs against dispensed volume and COGS.
func (r *DailyReconciliation) VerifyConsumption(logs []fifo.ConsumptionLog) error {
	volume, cost := decimal.Zero, decimal.Zero
	for _, l := range logs {
		volume = volume.Add(l.VolumeConsumedLiters)
		cost = cost.Add(l.TotalCostUGX)
	}
	if !types.WithinTolerance(volume, r.TotalDispensedLiters, types.ConsumptionVolumeTolerance) {
		return apperror.NewDataIntegrity(apperror.IntegrityIdentityMismatch, "FIFO consumption volume does not match dispensed volume").
			WithDetail("consumed", volume.String()).
			WithDetail("dispensed", r.TotalDispensedLiters.String())
	}
	if !types.WithinTolerance(cost, r.TotalCOGSUGX, types.ConsumptionCostTolerance) {
		return apperror.NewDataIntegrity(apperror.IntegrityIdentityMismatch, "FIFO consumption cost does not match COGS").
			WithDetail("consumed_cost", cost.String()).
			WithDetail("cogs", r.TotalCOGSUGX.String())
	}
	return nil
}

// Fault records why a (tank, date) could not be reconciled.
type Fault struct {
	ID        id.ID          `db:"id"`
	TankID    id.ID          `db:"tank_id"`
	FaultDate time.Time      `db:"fault_date"`
	Kind      string         `db:"kind"`
	Message   string         `db:"message"`
	Details   map[string]any `db:"details"`
	CreatedAt time.Time      `db:"created_at"`
}

// Filter narrows reconciliation queries.
type Filter struct {
	StationID *id.ID
	TankID    *id.ID
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Gap is a (tank, date) with readings but no reconciliation.
type Gap struct {
	TankID    id.ID     `db:"tank_id"`
	StationID id.ID     `db:"station_id"`
	Date      time.Time `db:"reading_date"`
	Faulty    bool      `db:"faulty"`
}
