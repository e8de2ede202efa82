package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus is the latest snapshot of the backing services: the reservation
// store, the realtime pub/sub DB, and the archive queue DB.
type HealthStatus struct {
	Mongo         bool      `json:"mongo"`
	RealtimeRedis bool      `json:"realtime_redis"`
	QueueRedis    bool      `json:"queue_redis"`
	CheckedAt     time.Time `json:"checked_at"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// StartHealthMonitor performs periodic health checks and updates in-memory state.
func StartHealthMonitor(realtimeRedis, queueRedis *redis.Client, mongoClient *mongo.Client) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		ctx := context.Background()

		for range ticker.C {
			snapshot := HealthStatus{
				Mongo:         mongoClient.Ping(ctx, nil) == nil,
				RealtimeRedis: realtimeRedis.Ping(ctx).Err() == nil,
				QueueRedis:    queueRedis.Ping(ctx).Err() == nil,
				CheckedAt:     time.Now(),
			}

			mu.Lock()
			currentHealth = snapshot
			mu.Unlock()
		}
	}()
}
