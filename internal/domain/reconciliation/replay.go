package reconciliation

import (
	"context"
	"sort"
	"time"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/pkg/logger"
)

// ReplayOptions selects the gaps a replay processes.
type ReplayOptions struct {
	StationID *id.ID
	From, To  time.Time
	// IncludeFaulty also retries days with a recorded fault.
	IncludeFaulty bool
}

// ReplayReport summarizes a replay run.
type ReplayReport struct {
	Reconciled int
	Failed     int
	Skipped    int
}

// ReplayGaps reconciles gaps oldest first, as the admin trigger would. Once a day of a
// tank fails, the tank's later days are skipped: their opening stock depends on it.
func (e *Engine) ReplayGaps(ctx context.Context, opts ReplayOptions) (ReplayReport, error) {
	var report ReplayReport
	if err := e.Policy.RequireAdmin(ctx); err != nil {
		return report, err
	}

	gaps, err := e.Gaps(ctx, opts.StationID, opts.From, opts.To)
	if err != nil {
		return report, err
	}
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Date.Before(gaps[j].Date) })

	blocked := map[id.ID]bool{}
	for _, g := range gaps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if blocked[g.TankID] || (g.Faulty && !opts.IncludeFaulty) {
			blocked[g.TankID] = true
			report.Skipped++
			continue
		}

		rec, err := e.ProcessManual(ctx, g.TankID, g.Date)
		if err != nil {
			blocked[g.TankID] = true
			report.Failed++
			logger.Warn(ctx, "replay failed",
				"tank_id", g.TankID,
				"date", types.FormatDate(g.Date),
				"error", err,
			)
			continue
		}
		report.Reconciled++
		logger.Info(ctx, "gap reconciled",
			"tank_id", g.TankID,
			"date", types.FormatDate(g.Date),
			"reconciliation_id", rec.ID,
		)
	}
	return report, nil
}
