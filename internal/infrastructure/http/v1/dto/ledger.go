package dto

import (
	"time"

	"fuelstation/internal/domain/ledger"
)

// LedgerQuery filters ledger entries.
type LedgerQuery struct {
	StationID        string `form:"stationId" binding:"omitempty,uuid"`
	ReconciliationID string `form:"reconciliationId" binding:"omitempty,uuid"`
	AccountType      string `form:"accountType" binding:"omitempty,oneof=revenue cogs inventory cash variance_loss variance_gain"`
	From             string `form:"from" binding:"omitempty,date"`
	To               string `form:"to" binding:"omitempty,date"`
	Limit            int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Parse converts the query strings.
func (q LedgerQuery) Parse() (ledger.Filter, error) {
	r, err := RangeQuery{StationID: q.StationID, From: q.From, To: q.To, Limit: q.Limit}.Parse()
	if err != nil {
		return ledger.Filter{}, err
	}
	f := ledger.Filter{StationID: r.StationID, From: r.From, To: r.To, Limit: r.Limit}
	if f.ReconciliationID, err = ParseOptionalID("reconciliationId", q.ReconciliationID); err != nil {
		return ledger.Filter{}, err
	}
	if q.AccountType != "" {
		at := ledger.AccountType(q.AccountType)
		f.AccountType = &at
	}
	return f, nil
}

// LedgerEntryResponse represents a ledger posting in API responses.
type LedgerEntryResponse struct {
	ID               string    `json:"id"`
	StationID        string    `json:"stationId"`
	JournalNumber    string    `json:"journalNumber"`
	EntryDate        string    `json:"entryDate"`
	AccountType      string    `json:"accountType"`
	FuelType         string    `json:"fuelType"`
	DebitAmountUGX   string    `json:"debitAmountUgx"`
	CreditAmountUGX  string    `json:"creditAmountUgx"`
	ReferenceTable   string    `json:"referenceTable"`
	ReferenceID      string    `json:"referenceId"`
	ReconciliationID *string   `json:"reconciliationId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FromLedgerEntry converts entity to response DTO.
func FromLedgerEntry(e ledger.Entry) LedgerEntryResponse {
	var recID *string
	if e.ReconciliationID != nil {
		s := e.ReconciliationID.String()
		recID = &s
	}
	return LedgerEntryResponse{
		ID:               e.ID.String(),
		StationID:        e.StationID.String(),
		JournalNumber:    e.JournalNumber,
		EntryDate:        DateString(e.EntryDate),
		AccountType:      string(e.AccountType),
		FuelType:         string(e.FuelType),
		DebitAmountUGX:   e.DebitAmountUGX.StringFixed(2),
		CreditAmountUGX:  e.CreditAmountUGX.StringFixed(2),
		ReferenceTable:   e.ReferenceTable,
		ReferenceID:      e.ReferenceID.String(),
		ReconciliationID: recID,
		CreatedAt:        e.CreatedAt,
	}
}

// BalanceResponse reports whether debits equal credits.
type BalanceResponse struct {
	TotalDebitUGX  string `json:"totalDebitUgx"`
	TotalCreditUGX string `json:"totalCreditUgx"`
	DifferenceUGX  string `json:"differenceUgx"`
	Balanced       bool   `json:"balanced"`
}

// FromBalance converts the balance check.
func FromBalance(b ledger.Balance) BalanceResponse {
	return BalanceResponse{
		TotalDebitUGX:  b.TotalDebit.StringFixed(2),
		TotalCreditUGX: b.TotalCredit.StringFixed(2),
		DifferenceUGX:  b.Difference.StringFixed(4),
		Balanced:       b.Balanced,
	}
}
