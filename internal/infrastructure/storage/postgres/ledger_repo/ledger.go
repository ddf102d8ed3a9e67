// Package ledger_repo provides the PostgreSQL repository for financial ledger entries.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/infrastructure/storage/postgres"
)

const entriesTable = "financial_ledger_entries"

var entryColumns = postgres.ExtractDBColumns[ledger.Entry]()

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{txm: txm, builder: postgres.Builder()}
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// InsertEntries writes all lines of a posting. Postings always run inside the
// reconciliation transaction, so COPY is the only path.
func (r *LedgerRepo) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		entries[i].CreatedAt = now
	}
	inserter := postgres.NewBatchInserter(r.txm)
	if _, err := postgres.CopyStructs(ctx, inserter, entriesTable, entryColumns, entries); err != nil {
		return fmt.Errorf("copy ledger entries: %w", err)
	}
	return nil
}

func (r *LedgerRepo) DeleteByReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error) {
	q := r.builder.Delete(entriesTable).Where(squirrel.Eq{"reconciliation_id": reconciliationID})
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), q)
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries: %w", err)
	}
	return n, nil
}

func applyFilter(q squirrel.SelectBuilder, f ledger.Filter) squirrel.SelectBuilder {
	if f.StationID != nil {
		q = q.Where(squirrel.Eq{"station_id": *f.StationID})
	}
	if f.ReconciliationID != nil {
		q = q.Where(squirrel.Eq{"reconciliation_id": *f.ReconciliationID})
	}
	if f.AccountType != nil {
		q = q.Where(squirrel.Eq{"account_type": *f.AccountType})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"entry_date": types.DateOnly(*f.From)})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"entry_date": types.DateOnly(*f.To)})
	}
	return q
}

func (r *LedgerRepo) listQuery(f ledger.Filter) squirrel.SelectBuilder {
	q := applyFilter(r.builder.Select(entryColumns...).From(entriesTable), f).
		OrderBy("entry_date", "journal_number", "created_at", "id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func (r *LedgerRepo) List(ctx context.Context, filter ledger.Filter) ([]ledger.Entry, error) {
	entries, err := postgres.Select[ledger.Entry](ctx, r.txm.GetQuerier(ctx), r.listQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepo) totalsQuery(f ledger.Filter) squirrel.SelectBuilder {
	return applyFilter(r.builder.Select(
		"COALESCE(SUM(debit_amount_ugx), 0) AS total_debit",
		"COALESCE(SUM(credit_amount_ugx), 0) AS total_credit",
	).From(entriesTable), f)
}

func (r *LedgerRepo) Totals(ctx context.Context, filter ledger.Filter) (ledger.Totals, error) {
	sql, args, err := r.totalsQuery(filter).ToSql()
	if err != nil {
		return ledger.Totals{}, fmt.Errorf("build query: %w", err)
	}
	var t ledger.Totals
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		return ledger.Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}
