package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// Repository persists ledger entries.
type Repository interface {
	InsertEntries(ctx context.Context, entries []Entry) error
	DeleteByReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Totals(ctx context.Context, filter Filter) (Totals, error)
}

// Numberer allocates journal numbers inside the posting transaction.
type Numberer interface {
	Next(ctx context.Context, period time.Time) (string, error)
}

// Service posts and reads ledger entries.
type Service struct {
	repo     Repository
	numberer Numberer
}

// NewService creates a new ledger service.
func NewService(repo Repository, numberer Numberer) *Service {
	return &Service{repo: repo, numberer: numberer}
}

// ReconciliationPosting is the financial outcome of one reconciliation.
type ReconciliationPosting struct {
	ReconciliationID id.ID
	StationID        id.ID
	FuelType         registry.FuelType
	Date             time.Time
	COGS             decimal.Decimal
	Sales            decimal.Decimal
}

// BuildReconciliationEntries returns Dr cogs / Cr inventory and Dr cash / Cr revenue.
// Zero-amount pairs are omitted.
func BuildReconciliationEntries(p ReconciliationPosting, journal string) []Entry {
	var entries []Entry
	pair := func(debit, credit AccountType, amount decimal.Decimal) {
		if amount.IsZero() {
			return
		}
		recID := p.ReconciliationID
		base := Entry{
			StationID:        p.StationID,
			JournalNumber:    journal,
			EntryDate:        types.DateOnly(p.Date),
			FuelType:         p.FuelType,
			ReferenceTable:   ReferenceReconciliation,
			ReferenceID:      p.ReconciliationID,
			ReconciliationID: &recID,
		}
		dr, cr := base, base
		dr.ID, dr.AccountType, dr.DebitAmountUGX, dr.CreditAmountUGX = id.New(), debit, amount, decimal.Zero
		cr.ID, cr.AccountType, cr.DebitAmountUGX, cr.CreditAmountUGX = id.New(), credit, decimal.Zero, amount
		entries = append(entries, dr, cr)
	}
	pair(AccountCOGS, AccountInventory, p.COGS)
	pair(AccountCash, AccountRevenue, p.Sales)
	return entries
}

// PostReconciliation writes the postings of a reconciliation under one journal number.
// Must run inside the reconciliation transaction.
func (s *Service) PostReconciliation(ctx context.Context, p ReconciliationPosting) ([]Entry, error) {
	if p.COGS.IsNegative() || p.Sales.IsNegative() {
		return nil, apperror.NewDataIntegrity(apperror.IntegrityIdentityMismatch, "Ledger amounts cannot be negative")
	}
	if p.COGS.IsZero() && p.Sales.IsZero() {
		return nil, nil
	}

	journal, err := s.numberer.Next(ctx, p.Date)
	if err != nil {
		return nil, fmt.Errorf("allocate journal number: %w", err)
	}

	entries := BuildReconciliationEntries(p, journal)
	if b := BalanceOf(Sum(entries)); !b.Balanced {
		return nil, apperror.NewDataIntegrity(apperror.IntegrityIdentityMismatch, "Ledger postings do not balance").
			WithDetail("debit", b.TotalDebit.String()).
			WithDetail("credit", b.TotalCredit.String())
	}

	if err := s.repo.InsertEntries(ctx, entries); err != nil {
		return nil, fmt.Errorf("insert ledger entries: %w", err)
	}

	logger.Debug(ctx, "ledger postings written",
		"journal_number", journal,
		"reconciliation_id", p.ReconciliationID,
		"entries", len(entries),
	)
	return entries, nil
}

// ReverseReconciliation deletes a reconciliation's postings.
func (s *Service) ReverseReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error) {
	n, err := s.repo.DeleteByReconciliation(ctx, reconciliationID)
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries: %w", err)
	}
	return n, nil
}

// Entries lists postings visible to the user.
func (s *Service) Entries(ctx context.Context, filter Filter) ([]Entry, error) {
	station, err := security.StationFilter(ctx, filter.StationID)
	if err != nil {
		return nil, err
	}
	filter.StationID = station
	return s.repo.List(ctx, filter)
}

// Balance checks sum(debit) == sum(credit) over the filtered scope.
func (s *Service) Balance(ctx context.Context, filter Filter) (Balance, error) {
	station, err := security.StationFilter(ctx, filter.StationID)
	if err != nil {
		return Balance{}, err
	}
	filter.StationID = station
	totals, err := s.repo.Totals(ctx, filter)
	if err != nil {
		return Balance{}, err
	}
	return BalanceOf(totals), nil
}
