package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayPublishTimeout = 2 * time.Second

// RedisRelay shares events between service instances over a Redis pub/sub channel.
// Events received from other instances are handed to the local publisher.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	local   Publisher
	logger  *zap.Logger
}

// NewRedisRelay creates a relay with a fresh instance id
func NewRedisRelay(client *redis.Client, channel string, local Publisher, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		logger:  logger,
	}
}

// Origin returns the id stamped on events published by this instance
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Publish sends the event to the other instances
func (r *RedisRelay) Publish(ctx context.Context, event domain.Event) {
	event.Origin = r.origin

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to encode event for relay", logger.Event(event), zap.Error(err))
		return
	}

	// The request may already be finished by the time we get here
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayPublishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("Failed to relay event", logger.Event(event), zap.Error(err))
	}
}

// Run forwards events from other instances to the local publisher until ctx is done
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.logger.Info("Event relay subscribed",
		zap.String("channel", r.channel),
		zap.String("origin", r.origin),
	)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("Discarding malformed relay message", zap.Error(err))
				continue
			}

			if event.Origin == r.origin {
				continue
			}

			r.local.Publish(ctx, event)
		}
	}
}
