package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/pkg/logger"
)

// EventChannelPrefix prefixes the pub/sub channel of every relayed event type.
const EventChannelPrefix = "fuelstation:events:"

// publisher is the part of redis.UniversalClient the broadcaster uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// EventBroadcaster relays outbox messages to Redis pub/sub.
type EventBroadcaster struct {
	client publisher
}

// NewEventBroadcaster creates an outbox handler publishing to Redis.
func NewEventBroadcaster(client redis.UniversalClient) *EventBroadcaster {
	return &EventBroadcaster{client: client}
}

var _ postgres.OutboxHandler = (*EventBroadcaster)(nil)

// Handle publishes the payload on the channel of its event type.
func (b *EventBroadcaster) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	channel := EventChannelPrefix + msg.EventType
	receivers, err := b.client.Publish(ctx, channel, msg.Payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	logger.Debug(ctx, "outbox event relayed",
		"message_id", msg.ID,
		"channel", channel,
		"receivers", receivers,
	)
	return nil
}
