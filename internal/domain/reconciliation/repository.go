package reconciliation

import (
	"context"
	"time"

	"fuelstation/internal/core/id"
)

// Repository persists reconciliations and faults.
// Get* methods return apperror NOT_FOUND when the row is absent.
type Repository interface {
	Get(ctx context.Context, reconciliationID id.ID) (*DailyReconciliation, error)
	GetByTankDate(ctx context.Context, tankID id.ID, date time.Time) (*DailyReconciliation, error)

	// LatestBefore returns the most recent reconciliation of the tank strictly before date.
	LatestBefore(ctx context.Context, tankID id.ID, date time.Time) (*DailyReconciliation, error)

	Create(ctx context.Context, r *DailyReconciliation) error
	// SetJournalNumber links the row to its ledger journal once postings exist.
	SetJournalNumber(ctx context.Context, reconciliationID id.ID, number string) error
	Delete(ctx context.Context, reconciliationID id.ID) error
	List(ctx context.Context, filter Filter) ([]DailyReconciliation, error)

	// IsReconciled reports whether a row exists for (tank, date).
	IsReconciled(ctx context.Context, tankID id.ID, date time.Time) (bool, error)

	GetFault(ctx context.Context, tankID id.ID, date time.Time) (*Fault, error)
	// SaveFault upserts the fault of (tank, date).
	SaveFault(ctx context.Context, f *Fault) error
	ClearFault(ctx context.Context, tankID id.ID, date time.Time) error

	// ListGaps returns days in [from, to] with both dips recorded and no reconciliation.
	ListGaps(ctx context.Context, stationID *id.ID, from, to time.Time) ([]Gap, error)
}
