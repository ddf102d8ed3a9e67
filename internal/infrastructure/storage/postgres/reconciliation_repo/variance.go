package reconciliation_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/variance"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const notificationsTable = "variance_notifications"

var notificationColumns = postgres.ExtractDBColumns[variance.Notification]()

// VarianceRepo implements variance.Repository.
type VarianceRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewVarianceRepo creates a new variance notification repository.
func NewVarianceRepo(txm *postgres.TxManager) *VarianceRepo {
	return &VarianceRepo{txm: txm, builder: postgres.Builder()}
}

var _ variance.Repository = (*VarianceRepo)(nil)

func (r *VarianceRepo) latestQuery(tankID id.ID, date time.Time, notificationType string) squirrel.SelectBuilder {
	return r.builder.Select(notificationColumns...).From(notificationsTable).
		Where(squirrel.Eq{
			"tank_id":           tankID,
			"notification_date": types.DateOnly(date),
			"notification_type": notificationType,
		}).
		OrderBy("created_at DESC").
		Limit(1).
		Suffix("FOR UPDATE")
}

func (r *VarianceRepo) FindLatestForUpdate(ctx context.Context, tankID id.ID, date time.Time, notificationType string) (*variance.Notification, error) {
	return postgres.Get[variance.Notification](ctx, r.txm.GetQuerier(ctx),
		r.latestQuery(tankID, date, notificationType), "variance notification", tankID)
}

func (r *VarianceRepo) Get(ctx context.Context, notificationID id.ID) (*variance.Notification, error) {
	q := r.builder.Select(notificationColumns...).From(notificationsTable).Where(squirrel.Eq{"id": notificationID})
	return postgres.Get[variance.Notification](ctx, r.txm.GetQuerier(ctx), q, "variance notification", notificationID)
}

func (r *VarianceRepo) GetForUpdate(ctx context.Context, notificationID id.ID) (*variance.Notification, error) {
	q := r.builder.Select(notificationColumns...).From(notificationsTable).
		Where(squirrel.Eq{"id": notificationID}).
		Suffix("FOR UPDATE")
	return postgres.Get[variance.Notification](ctx, r.txm.GetQuerier(ctx), q, "variance notification", notificationID)
}

func (r *VarianceRepo) Create(ctx context.Context, n *variance.Notification) error {
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	q := r.builder.Insert(notificationsTable).SetMap(postgres.InsertMap(n, notificationColumns))
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q); err != nil {
		return postgres.MapError(fmt.Errorf("insert variance notification: %w", err),
			"variance notification", "date", types.FormatDate(n.NotificationDate))
	}
	return nil
}

func (r *VarianceRepo) updateQuery(n *variance.Notification) squirrel.UpdateBuilder {
	return r.builder.Update(notificationsTable).
		Set("reconciliation_id", n.ReconciliationID).
		Set("severity", n.Severity).
		Set("variance_percentage", n.VariancePercentage).
		Set("variance_magnitude", n.VarianceMagnitude).
		Set("status", n.Status).
		Set("resolved_by_user_id", n.ResolvedByUserID).
		Set("resolved_at", n.ResolvedAt).
		Set("resolution_notes", n.ResolutionNotes).
		Set("updated_at", n.UpdatedAt).
		Where(squirrel.Eq{"id": n.ID})
}

func (r *VarianceRepo) Update(ctx context.Context, n *variance.Notification) error {
	n.UpdatedAt = time.Now().UTC()
	err := postgres.ExecOne(ctx, r.txm.GetQuerier(ctx), r.updateQuery(n), "variance notification", n.ID)
	return postgres.MapError(err, "variance notification", "date", types.FormatDate(n.NotificationDate))
}

func (r *VarianceRepo) DeleteUnresolvedByReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error) {
	q := r.builder.Delete(notificationsTable).
		Where(squirrel.Eq{"reconciliation_id": reconciliationID}).
		Where(squirrel.NotEq{"status": variance.StatusResolved})
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return 0, fmt.Errorf("delete variance notifications: %w", err)
	}
	return n, nil
}

func (r *VarianceRepo) listQuery(f variance.Filter) squirrel.SelectBuilder {
	cols := make([]string, len(notificationColumns))
	for i, c := range notificationColumns {
		cols[i] = "n." + c
	}
	q := r.builder.Select(cols...).From(notificationsTable + " n").OrderBy("n.created_at")
	if f.StationID != nil {
		q = q.Join("tanks t ON t.id = n.tank_id").Where(squirrel.Eq{"t.station_id": *f.StationID})
	}
	if f.TankID != nil {
		q = q.Where(squirrel.Eq{"n.tank_id": *f.TankID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"n.status": *f.Status})
	}
	if f.Severity != nil {
		q = q.Where(squirrel.Eq{"n.severity": *f.Severity})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"n.notification_date": types.DateOnly(*f.From)})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"n.notification_date": types.DateOnly(*f.To)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func (r *VarianceRepo) List(ctx context.Context, filter variance.Filter) ([]variance.Notification, error) {
	rows, err := postgres.Select[variance.Notification](ctx, r.txm.GetQuerier(ctx), r.listQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list variance notifications: %w", err)
	}
	return rows, nil
}
