// Package variance classifies reconciliation variances and runs the investigation workflow.
package variance

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
)

// Severity tiers; SeverityNone means no notification.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status of an investigation.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusInvestigating || s == StatusResolved
}

// TypeVolumeVariance is the only notification type the engine raises.
const TypeVolumeVariance = "volume_variance"

// Thresholds are inclusive lower bounds on |variance %|.
type Thresholds struct {
	Low      decimal.Decimal
	Medium   decimal.Decimal
	High     decimal.Decimal
	Critical decimal.Decimal
}

// DefaultThresholds returns 2 / 3 / 5 / 10 percent.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:      decimal.NewFromInt(2),
		Medium:   decimal.NewFromInt(3),
		High:     decimal.NewFromInt(5),
		Critical: decimal.NewFromInt(10),
	}
}

// Classify maps a variance percentage to a severity.
func (t Thresholds) Classify(pct decimal.Decimal) Severity {
	abs := pct.Abs()
	switch {
	case abs.GreaterThanOrEqual(t.Critical):
		return SeverityCritical
	case abs.GreaterThanOrEqual(t.High):
		return SeverityHigh
	case abs.GreaterThanOrEqual(t.Medium):
		return SeverityMedium
	case abs.GreaterThanOrEqual(t.Low):
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Notification is a variance raised for investigation.
type Notification struct {
	ID                 id.ID           `db:"id"`
	TankID             id.ID           `db:"tank_id"`
	ReconciliationID   *id.ID          `db:"reconciliation_id"`
	NotificationType   string          `db:"notification_type"`
	NotificationDate   time.Time       `db:"notification_date"`
	Severity           Severity        `db:"severity"`
	VariancePercentage decimal.Decimal `db:"variance_percentage"`
	VarianceMagnitude  decimal.Decimal `db:"variance_magnitude"`
	Status             Status          `db:"status"`
	ResolvedByUserID   *string         `db:"resolved_by_user_id"`
	ResolvedAt         *time.Time      `db:"resolved_at"`
	ResolutionNotes    *string         `db:"resolution_notes"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// allowed lists the workflow edges.
var allowed = map[Status][]Status{
	StatusOpen:          {StatusInvestigating, StatusResolved},
	StatusInvestigating: {StatusOpen, StatusResolved},
	StatusResolved:      {StatusOpen, StatusInvestigating},
}

// CanTransition reports whether from -> to is a workflow edge.
func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Filter narrows notification queries.
type Filter struct {
	StationID *id.ID
	TankID    *id.ID
	From      *time.Time
	To        *time.Time
	Status    *Status
	Severity  *Severity
	Limit     int
}
