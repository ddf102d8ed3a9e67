package reconciliation_repo

import (
	"context"

	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/infrastructure/storage/postgres"
)

// EventOutbox writes reconciliation events to the transactional outbox.
type EventOutbox struct {
	outbox *postgres.OutboxPublisher
}

// NewEventOutbox creates an outbox-backed event publisher.
func NewEventOutbox(txm *postgres.TxManager) *EventOutbox {
	return &EventOutbox{outbox: postgres.NewOutboxPublisher(txm)}
}

var _ reconciliation.EventPublisher = (*EventOutbox)(nil)

func (o *EventOutbox) Publish(ctx context.Context, event reconciliation.Event) error {
	return o.outbox.Publish(ctx, postgres.DomainEvent{
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
	})
}
