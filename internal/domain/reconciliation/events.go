package reconciliation

import (
	"context"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/variance"
)

// Event types written by the engine.
const (
	EventCompleted      = "reconciliation.completed"
	EventReversed       = "reconciliation.reversed"
	EventVarianceRaised = "variance.raised"
)

// Aggregate types of emitted events.
const (
	AggregateReconciliation = "daily_reconciliation"
	AggregateNotification   = "variance_notification"
)

// Event is a domain event recorded in the same transaction as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher records events. Publish is always called inside the engine's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// CompletedPayload is the body of reconciliation.completed.
type CompletedPayload struct {
	ReconciliationID   id.ID           `json:"reconciliationId"`
	TankID             id.ID           `json:"tankId"`
	StationID          id.ID           `json:"stationId"`
	Date               string          `json:"date"`
	VolumeVariance     decimal.Decimal `json:"volumeVarianceLiters"`
	VariancePercentage decimal.Decimal `json:"variancePercentage"`
	TotalCOGSUGX       decimal.Decimal `json:"totalCogsUgx"`
	TotalSalesUGX      decimal.Decimal `json:"totalSalesUgx"`
	JournalNumber      *string         `json:"journalNumber,omitempty"`
}

// ReversedPayload is the body of reconciliation.reversed.
type ReversedPayload struct {
	ReconciliationID id.ID  `json:"reconciliationId"`
	TankID           id.ID  `json:"tankId"`
	Date             string `json:"date"`
	ReversedBy       string `json:"reversedBy"`
}

// VariancePayload is the body of variance.raised.
type VariancePayload struct {
	NotificationID     id.ID             `json:"notificationId"`
	ReconciliationID   id.ID             `json:"reconciliationId"`
	TankID             id.ID             `json:"tankId"`
	Date               string            `json:"date"`
	Severity           variance.Severity `json:"severity"`
	VariancePercentage decimal.Decimal   `json:"variancePercentage"`
}

func completedEvent(rec *DailyReconciliation) Event {
	return Event{
		AggregateType: AggregateReconciliation,
		AggregateID:   rec.ID,
		EventType:     EventCompleted,
		Payload: CompletedPayload{
			ReconciliationID:   rec.ID,
			TankID:             rec.TankID,
			StationID:          rec.StationID,
			Date:               types.FormatDate(rec.ReconciliationDate),
			VolumeVariance:     rec.VolumeVarianceLiters,
			VariancePercentage: rec.VariancePercentage,
			TotalCOGSUGX:       rec.TotalCOGSUGX,
			TotalSalesUGX:      rec.TotalSalesUGX,
			JournalNumber:      rec.JournalNumber,
		},
	}
}

func reversedEvent(rec *DailyReconciliation, by string) Event {
	return Event{
		AggregateType: AggregateReconciliation,
		AggregateID:   rec.ID,
		EventType:     EventReversed,
		Payload: ReversedPayload{
			ReconciliationID: rec.ID,
			TankID:           rec.TankID,
			Date:             types.FormatDate(rec.ReconciliationDate),
			ReversedBy:       by,
		},
	}
}

func varianceEvent(rec *DailyReconciliation, n *variance.Notification) Event {
	return Event{
		AggregateType: AggregateNotification,
		AggregateID:   n.ID,
		EventType:     EventVarianceRaised,
		Payload: VariancePayload{
			NotificationID:     n.ID,
			ReconciliationID:   rec.ID,
			TankID:             rec.TankID,
			Date:               types.FormatDate(rec.ReconciliationDate),
			Severity:           n.Severity,
			VariancePercentage: n.VariancePercentage,
		},
	}
}
