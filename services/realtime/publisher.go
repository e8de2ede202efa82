// Package realtime carries row-change notifications between the
// reconciliation pipeline and connected clients over Redis pub/sub. Each
// reservation gets its own channel; the payload is the full updated record.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"moshimoshi/models"

	"github.com/go-redis/redis/v8"
)

// ChannelFor returns the pub/sub channel carrying updates for one record.
func ChannelFor(recordID string) string {
	return "reservations:" + recordID
}

// Publisher pushes record updates to subscribed clients.
type Publisher interface {
	PublishUpdate(ctx context.Context, rec *models.Reservation) error
}

// RedisPublisher is the production Publisher.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishUpdate sends the full updated record on its channel.
func (p *RedisPublisher) PublishUpdate(ctx context.Context, rec *models.Reservation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("realtime: failed to marshal reservation %s: %w", rec.ID, err)
	}
	if err := p.client.Publish(ctx, ChannelFor(rec.ID), payload).Err(); err != nil {
		return fmt.Errorf("realtime: failed to publish update for %s: %w", rec.ID, err)
	}
	return nil
}
