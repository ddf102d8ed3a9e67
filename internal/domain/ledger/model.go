// Package ledger writes and reads the double-entry financial postings of reconciliations.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/registry"
)

// AccountType is a ledger account.
type AccountType string

const (
	AccountRevenue      AccountType = "revenue"
	AccountCOGS         AccountType = "cogs"
	AccountInventory    AccountType = "inventory"
	AccountCash         AccountType = "cash"
	AccountVarianceLoss AccountType = "variance_loss"
	AccountVarianceGain AccountType = "variance_gain"
)

// Valid reports whether a is a known account.
func (a AccountType) Valid() bool {
	switch a {
	case AccountRevenue, AccountCOGS, AccountInventory, AccountCash, AccountVarianceLoss, AccountVarianceGain:
		return true
	}
	return false
}

// ReferenceReconciliation is the reference_table value of reconciliation postings.
const ReferenceReconciliation = "daily_reconciliations"

// Entry is one posting line. Exactly one of debit and credit is non-zero.
type Entry struct {
	ID               id.ID             `db:"id"`
	StationID        id.ID             `db:"station_id"`
	JournalNumber    string            `db:"journal_number"`
	EntryDate        time.Time         `db:"entry_date"`
	AccountType      AccountType       `db:"account_type"`
	FuelType         registry.FuelType `db:"fuel_type"`
	DebitAmountUGX   decimal.Decimal   `db:"debit_amount_ugx"`
	CreditAmountUGX  decimal.Decimal   `db:"credit_amount_ugx"`
	ReferenceTable   string            `db:"reference_table"`
	ReferenceID      id.ID             `db:"reference_id"`
	ReconciliationID *id.ID            `db:"reconciliation_id"`
	CreatedAt        time.Time         `db:"created_at"`
}

// Totals are the debit and credit sums of a scope.
type Totals struct {
	TotalDebit  decimal.Decimal `db:"total_debit"`
	TotalCredit decimal.Decimal `db:"total_credit"`
}

// Balance reports whether a scope satisfies the double-entry identity.
type Balance struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
	Balanced    bool
}

// BalanceOf evaluates totals against the ledger tolerance.
func BalanceOf(t Totals) Balance {
	diff := t.TotalDebit.Sub(t.TotalCredit)
	return Balance{
		TotalDebit:  t.TotalDebit,
		TotalCredit: t.TotalCredit,
		Difference:  diff,
		Balanced:    diff.Abs().LessThanOrEqual(types.LedgerTolerance),
	}
}

// Sum totals a set of entries.
func Sum(entries []Entry) Totals {
	t := Totals{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, e := range entries {
		t.TotalDebit = t.TotalDebit.Add(e.DebitAmountUGX)
		t.TotalCredit = t.TotalCredit.Add(e.CreditAmountUGX)
	}
	return t
}

// Filter narrows entry queries.
type Filter struct {
	StationID        *id.ID
	ReconciliationID *id.ID
	AccountType      *AccountType
	From             *time.Time
	To               *time.Time
	Limit            int
}
