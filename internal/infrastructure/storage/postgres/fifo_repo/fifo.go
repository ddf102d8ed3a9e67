// Package fifo_repo provides the PostgreSQL repository for FIFO cost layers and consumption logs.
package fifo_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const (
	layersTable = "fifo_layers"
	logsTable   = "fifo_consumption_logs"
)

var (
	layerColumns = postgres.ExtractDBColumns[fifo.Layer]()
	logColumns   = postgres.ExtractDBColumns[fifo.ConsumptionLog]()
)

// FIFORepo implements fifo.Repository.
type FIFORepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewFIFORepo creates a new FIFO repository.
func NewFIFORepo(txm *postgres.TxManager) *FIFORepo {
	return &FIFORepo{txm: txm, builder: postgres.Builder()}
}

var _ fifo.Repository = (*FIFORepo)(nil)

func (r *FIFORepo) NextSequence(ctx context.Context, tankID id.ID) (int64, error) {
	sql, args, err := r.builder.Select("COALESCE(MAX(layer_sequence), 0) + 1").From(layersTable).
		Where(squirrel.Eq{"tank_id": tankID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var next int64
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &next, sql, args...); err != nil {
		return 0, fmt.Errorf("next layer sequence: %w", err)
	}
	return next, nil
}

func (r *FIFORepo) CreateLayer(ctx context.Context, layer *fifo.Layer) error {
	now := time.Now().UTC()
	layer.CreatedAt, layer.UpdatedAt = now, now
	q := r.builder.Insert(layersTable).SetMap(postgres.InsertMap(layer, layerColumns))
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q); err != nil {
		return postgres.MapError(fmt.Errorf("insert fifo layer: %w", err),
			"fifo layer", "layer_sequence", fmt.Sprint(layer.LayerSequence))
	}
	return nil
}

func (r *FIFORepo) layersQuery(tankID id.ID, includeExhausted bool) squirrel.SelectBuilder {
	q := r.builder.Select(layerColumns...).From(layersTable).
		Where(squirrel.Eq{"tank_id": tankID}).
		OrderBy("layer_sequence", "id")
	if !includeExhausted {
		q = q.Where(squirrel.Eq{"is_exhausted": false})
	}
	return q
}

func (r *FIFORepo) ListOpenLayersForUpdate(ctx context.Context, tankID id.ID) ([]fifo.Layer, error) {
	layers, err := postgres.Select[fifo.Layer](ctx, r.txm.GetQuerier(ctx), r.layersQuery(tankID, false).Suffix("FOR UPDATE"))
	if err != nil {
		return nil, fmt.Errorf("lock open layers: %w", err)
	}
	return layers, nil
}

func (r *FIFORepo) GetLayersForUpdate(ctx context.Context, layerIDs []id.ID) ([]fifo.Layer, error) {
	if len(layerIDs) == 0 {
		return nil, nil
	}
	q := r.builder.Select(layerColumns...).From(layersTable).
		Where(squirrel.Eq{"id": layerIDs}).
		OrderBy("layer_sequence", "id").
		Suffix("FOR UPDATE")
	layers, err := postgres.Select[fifo.Layer](ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return nil, fmt.Errorf("lock layers: %w", err)
	}
	return layers, nil
}

func (r *FIFORepo) ListLayers(ctx context.Context, tankID id.ID, includeExhausted bool) ([]fifo.Layer, error) {
	layers, err := postgres.Select[fifo.Layer](ctx, r.txm.GetQuerier(ctx), r.layersQuery(tankID, includeExhausted))
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	return layers, nil
}

func (r *FIFORepo) updateRemainingQueries(layers []fifo.Layer, now time.Time) ([]postgres.BatchQuery, error) {
	queries := make([]postgres.BatchQuery, 0, len(layers))
	for _, l := range layers {
		sql, args, err := r.builder.Update(layersTable).
			Set("remaining_volume_liters", l.RemainingVolumeLiters).
			Set("is_exhausted", l.IsExhausted).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": l.ID}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args, ExpectRows: 1})
	}
	return queries, nil
}

// UpdateRemaining sends one batch of updates; it must run inside a transaction.
func (r *FIFORepo) UpdateRemaining(ctx context.Context, layers []fifo.Layer) error {
	queries, err := r.updateRemainingQueries(layers, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := postgres.NewBatchExecutor(r.txm).ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("update layer remaining: %w", err)
	}
	return nil
}

// InsertConsumptionLogs uses COPY inside a transaction and a multi-row INSERT otherwise.
func (r *FIFORepo) InsertConsumptionLogs(ctx context.Context, logs []fifo.ConsumptionLog) error {
	if len(logs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range logs {
		if logs[i].CreatedAt.IsZero() {
			logs[i].CreatedAt = now
		}
	}

	if r.txm.GetTx(ctx) != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		if _, err := postgres.CopyStructs(ctx, inserter, logsTable, logColumns, logs); err != nil {
			return fmt.Errorf("copy consumption logs: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(logsTable).Columns(logColumns...)
	for i := range logs {
		m := postgres.StructToMap(&logs[i])
		values := make([]any, len(logColumns))
		for j, c := range logColumns {
			values[j] = m[c]
		}
		q = q.Values(values...)
	}
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q); err != nil {
		return fmt.Errorf("insert consumption logs: %w", err)
	}
	return nil
}

func (r *FIFORepo) consumptionQuery(filter fifo.ConsumptionFilter) squirrel.SelectBuilder {
	cols := make([]string, len(logColumns))
	for i, c := range logColumns {
		cols[i] = "c." + c
	}
	q := r.builder.Select(cols...).From(logsTable + " c").
		Join(layersTable + " l ON l.id = c.fifo_layer_id").
		OrderBy("c.created_at", "l.layer_sequence")

	if filter.ReconciliationID != nil {
		q = q.Where(squirrel.Eq{"c.reconciliation_id": *filter.ReconciliationID})
	}
	if filter.TankID != nil {
		q = q.Where(squirrel.Eq{"c.tank_id": *filter.TankID})
	}
	if filter.StationID != nil {
		q = q.Join("tanks t ON t.id = c.tank_id").Where(squirrel.Eq{"t.station_id": *filter.StationID})
	}
	if filter.From != nil || filter.To != nil {
		q = q.Join("daily_reconciliations dr ON dr.id = c.reconciliation_id")
		if filter.From != nil {
			q = q.Where(squirrel.GtOrEq{"dr.reconciliation_date": types.DateOnly(*filter.From)})
		}
		if filter.To != nil {
			q = q.Where(squirrel.LtOrEq{"dr.reconciliation_date": types.DateOnly(*filter.To)})
		}
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

func (r *FIFORepo) ListConsumptionLogs(ctx context.Context, filter fifo.ConsumptionFilter) ([]fifo.ConsumptionLog, error) {
	logs, err := postgres.Select[fifo.ConsumptionLog](ctx, r.txm.GetQuerier(ctx), r.consumptionQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list consumption logs: %w", err)
	}
	return logs, nil
}

func (r *FIFORepo) DeleteConsumptionLogs(ctx context.Context, reconciliationID id.ID) (int64, error) {
	q := r.builder.Delete(logsTable).Where(squirrel.Eq{"reconciliation_id": reconciliationID})
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return 0, fmt.Errorf("delete consumption logs: %w", err)
	}
	return n, nil
}
