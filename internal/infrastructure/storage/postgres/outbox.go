package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"fuelstation/internal/core/id"
	"fuelstation/pkg/logger"
)

const outboxTable = "sys_outbox"

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries is the number of failed deliveries after which a message is parked.
const maxOutboxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "daily_reconciliation"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "reconciliation.completed"
	Payload       []byte       `db:"payload"`    // JSON
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = ExtractDBColumns[OutboxMessage]()

// DomainEvent represents an event to be published via outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	now       func() time.Time
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager, builder: Builder(), now: time.Now}
}

func (p *OutboxPublisher) insertQuery(event DomainEvent) (squirrel.InsertBuilder, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return squirrel.InsertBuilder{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return p.builder.Insert(outboxTable).
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, p.now().UTC()), nil
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event DomainEvent) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}
	q, err := p.insertQuery(event)
	if err != nil {
		return err
	}
	if _, err := Exec(ctx, tx, q); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PublishBatch writes multiple events to the outbox in one round trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, events []DomainEvent) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		q, err := p.insertQuery(event)
		if err != nil {
			return err
		}
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build outbox insert: %w", err)
		}
		batch.Queue(sql, args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle delivers a message; an error schedules a retry.
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay reads pending messages and hands them to a handler.
// Used by the background worker to publish events to the broker.
type OutboxRelay struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	batchSize int
	handler   OutboxHandler
	now       func() time.Time
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		builder:   Builder(),
		batchSize: batchSize,
		handler:   handler,
		now:       time.Now,
	}
}

func (r *OutboxRelay) pendingQuery(now time.Time) squirrel.SelectBuilder {
	return r.builder.Select(outboxColumns...).
		From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at").
		Limit(uint64(r.batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED")
}

func (r *OutboxRelay) publishedQuery(msgID id.ID, now time.Time) squirrel.UpdateBuilder {
	return r.builder.Update(outboxTable).
		Set("status", OutboxStatusPublished).
		Set("published_at", now).
		Where(squirrel.Eq{"id": msgID})
}

// retryQuery backs off linearly and parks the message after maxOutboxRetries.
func (r *OutboxRelay) retryQuery(msg *OutboxMessage, cause error, now time.Time) squirrel.UpdateBuilder {
	status := OutboxStatusPending
	if msg.RetryCount+1 >= maxOutboxRetries {
		status = OutboxStatusFailed
	}
	return r.builder.Update(outboxTable).
		Set("retry_count", msg.RetryCount+1).
		Set("last_error", cause.Error()).
		Set("next_retry_at", now.Add(time.Duration(msg.RetryCount+1)*time.Minute)).
		Set("status", status).
		Where(squirrel.Eq{"id": msg.ID})
}

// ProcessBatch locks a batch of pending messages and delivers them.
// Returns number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		now := r.now().UTC()

		messages, err := Select[OutboxMessage](ctx, q, r.pendingQuery(now))
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for i := range messages {
			msg := &messages[i]
			if herr := r.handler.Handle(ctx, msg); herr != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID,
					"event_type", msg.EventType,
					"retry", msg.RetryCount+1,
					"error", herr,
				)
				if _, err := Exec(ctx, q, r.retryQuery(msg, herr, now)); err != nil {
					return fmt.Errorf("update failed message: %w", err)
				}
				continue
			}
			if _, err := Exec(ctx, q, r.publishedQuery(msg.ID, now)); err != nil {
				return fmt.Errorf("mark message published: %w", err)
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// Purge deletes published messages older than retention.
func (r *OutboxRelay) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	q := r.builder.Delete(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPublished}).
		Where(squirrel.Lt{"published_at": r.now().UTC().Add(-retention)})
	n, err := Exec(ctx, r.txManager.GetQuerier(ctx), q)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return n, nil
}
