// Package reconciliation_repo provides PostgreSQL repositories for daily reconciliations,
// reconciliation faults and variance notifications.
package reconciliation_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const (
	reconciliationsTable = "daily_reconciliations"
	faultsTable          = "reconciliation_faults"
)

var (
	reconciliationColumns = postgres.ExtractDBColumns[reconciliation.DailyReconciliation]()
	faultColumns          = postgres.ExtractDBColumns[reconciliation.Fault]()
)

// ReconciliationRepo implements reconciliation.Repository.
type ReconciliationRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewReconciliationRepo creates a new reconciliation repository.
func NewReconciliationRepo(txm *postgres.TxManager) *ReconciliationRepo {
	return &ReconciliationRepo{txm: txm, builder: postgres.Builder()}
}

var _ reconciliation.Repository = (*ReconciliationRepo)(nil)

func (r *ReconciliationRepo) selectBase() squirrel.SelectBuilder {
	return r.builder.Select(reconciliationColumns...).From(reconciliationsTable)
}

func (r *ReconciliationRepo) Get(ctx context.Context, reconciliationID id.ID) (*reconciliation.DailyReconciliation, error) {
	q := r.selectBase().Where(squirrel.Eq{"id": reconciliationID})
	return postgres.Get[reconciliation.DailyReconciliation](ctx, r.txm.GetQuerier(ctx), q, "reconciliation", reconciliationID)
}

func (r *ReconciliationRepo) GetByTankDate(ctx context.Context, tankID id.ID, date time.Time) (*reconciliation.DailyReconciliation, error) {
	q := r.selectBase().Where(squirrel.Eq{"tank_id": tankID, "reconciliation_date": types.DateOnly(date)})
	return postgres.Get[reconciliation.DailyReconciliation](ctx, r.txm.GetQuerier(ctx), q, "reconciliation", tankID)
}

func (r *ReconciliationRepo) LatestBefore(ctx context.Context, tankID id.ID, date time.Time) (*reconciliation.DailyReconciliation, error) {
	q := r.selectBase().
		Where(squirrel.Eq{"tank_id": tankID}).
		Where(squirrel.Lt{"reconciliation_date": types.DateOnly(date)}).
		OrderBy("reconciliation_date DESC").
		Limit(1)
	return postgres.Get[reconciliation.DailyReconciliation](ctx, r.txm.GetQuerier(ctx), q, "reconciliation", tankID)
}

func (r *ReconciliationRepo) Create(ctx context.Context, rec *reconciliation.DailyReconciliation) error {
	q := r.builder.Insert(reconciliationsTable).SetMap(postgres.InsertMap(rec, reconciliationColumns))
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q); err != nil {
		return postgres.MapError(fmt.Errorf("insert reconciliation: %w", err),
			"reconciliation", "date", types.FormatDate(rec.ReconciliationDate))
	}
	return nil
}

func (r *ReconciliationRepo) journalQuery(reconciliationID id.ID, number string) squirrel.UpdateBuilder {
	return r.builder.Update(reconciliationsTable).
		Set("journal_number", number).
		Where(squirrel.Eq{"id": reconciliationID})
}

func (r *ReconciliationRepo) SetJournalNumber(ctx context.Context, reconciliationID id.ID, number string) error {
	return postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), r.journalQuery(reconciliationID, number), "reconciliation", reconciliationID)
}

func (r *ReconciliationRepo) Delete(ctx context.Context, reconciliationID id.ID) error {
	q := r.builder.Delete(reconciliationsTable).Where(squirrel.Eq{"id": reconciliationID})
	return postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), q, "reconciliation", reconciliationID)
}

func (r *ReconciliationRepo) listQuery(f reconciliation.Filter) squirrel.SelectBuilder {
	q := r.selectBase().OrderBy("reconciliation_date", "tank_id")
	if f.StationID != nil {
		q = q.Where(squirrel.Eq{"station_id": *f.StationID})
	}
	if f.TankID != nil {
		q = q.Where(squirrel.Eq{"tank_id": *f.TankID})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"reconciliation_date": types.DateOnly(*f.From)})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"reconciliation_date": types.DateOnly(*f.To)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func (r *ReconciliationRepo) List(ctx context.Context, filter reconciliation.Filter) ([]reconciliation.DailyReconciliation, error) {
	recs, err := postgres.Select[reconciliation.DailyReconciliation](ctx, r.txm.GetQuerier(ctx), r.listQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	return recs, nil
}

func (r *ReconciliationRepo) IsReconciled(ctx context.Context, tankID id.ID, date time.Time) (bool, error) {
	sql, args, err := r.builder.Select("1").From(reconciliationsTable).
		Where(squirrel.Eq{"tank_id": tankID, "reconciliation_date": types.DateOnly(date)}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var exists bool
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &exists, sql, args...); err != nil {
		return false, fmt.Errorf("check reconciliation: %w", err)
	}
	return exists, nil
}

func (r *ReconciliationRepo) GetFault(ctx context.Context, tankID id.ID, date time.Time) (*reconciliation.Fault, error) {
	q := r.builder.Select(faultColumns...).From(faultsTable).
		Where(squirrel.Eq{"tank_id": tankID, "fault_date": types.DateOnly(date)})
	return postgres.Get[reconciliation.Fault](ctx, r.txm.GetQuerier(ctx), q, "reconciliation fault", tankID)
}

func (r *ReconciliationRepo) saveFaultQuery(f *reconciliation.Fault) squirrel.InsertBuilder {
	return r.builder.Insert(faultsTable).
		SetMap(postgres.InsertMap(f, faultColumns)).
		Suffix("ON CONFLICT (tank_id, fault_date) DO UPDATE SET " +
			"kind = EXCLUDED.kind, message = EXCLUDED.message, details = EXCLUDED.details, created_at = EXCLUDED.created_at")
}

func (r *ReconciliationRepo) SaveFault(ctx context.Context, f *reconciliation.Fault) error {
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), r.saveFaultQuery(f)); err != nil {
		return fmt.Errorf("save reconciliation fault: %w", err)
	}
	return nil
}

func (r *ReconciliationRepo) ClearFault(ctx context.Context, tankID id.ID, date time.Time) error {
	q := r.builder.Delete(faultsTable).
		Where(squirrel.Eq{"tank_id": tankID, "fault_date": types.DateOnly(date)})
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q); err != nil {
		return fmt.Errorf("clear reconciliation fault: %w", err)
	}
	return nil
}

func (r *ReconciliationRepo) gapsQuery(stationID *id.ID, from, to time.Time) squirrel.SelectBuilder {
	q := r.builder.Select("d.tank_id", "t.station_id", "d.reading_date", "(f.id IS NOT NULL) AS faulty").
		From("daily_readings d").
		Join("tanks t ON t.id = d.tank_id").
		LeftJoin(reconciliationsTable + " r ON r.tank_id = d.tank_id AND r.reconciliation_date = d.reading_date").
		LeftJoin(faultsTable + " f ON f.tank_id = d.tank_id AND f.fault_date = d.reading_date").
		Where("d.evening_dip_liters > 0").
		Where("r.id IS NULL").
		Where(squirrel.GtOrEq{"d.reading_date": types.DateOnly(from)}).
		Where(squirrel.LtOrEq{"d.reading_date": types.DateOnly(to)}).
		OrderBy("d.reading_date", "d.tank_id")
	if stationID != nil {
		q = q.Where(squirrel.Eq{"t.station_id": *stationID})
	}
	return q
}

func (r *ReconciliationRepo) ListGaps(ctx context.Context, stationID *id.ID, from, to time.Time) ([]reconciliation.Gap, error) {
	gaps, err := postgres.Select[reconciliation.Gap](ctx, r.txm.GetQuerier(ctx), r.gapsQuery(stationID, from, to))
	if err != nil {
		return nil, fmt.Errorf("list reconciliation gaps: %w", err)
	}
	return gaps, nil
}
