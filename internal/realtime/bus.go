// Package realtime implements the change-event channel on Redis pub/sub.
// Every successful store write is published here; subscribers react by
// refetching, so delivery is best-effort.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"habitsync/internal/logger"
	"habitsync/internal/remote"
	"github.com/redis/go-redis/v9"
)

// RedisBus broadcasts document change events over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisBus{client: client}, nil
}

// NewRedisBusWithClient creates a bus from an existing Redis client
func NewRedisBusWithClient(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// channelName maps a collection to its pub/sub channel.
func channelName(collection string) string {
	return "habitsync." + collection + ".documents"
}

// Publish sends a change event to the collection's channel.
func (b *RedisBus) Publish(ctx context.Context, event remote.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(event.Collection), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe delivers every event for the collection to fn. Each callback runs
// to completion before the next is delivered. The returned unsubscribe func is
// idempotent.
func (b *RedisBus) Subscribe(ctx context.Context, collection string, fn func(remote.Event)) (func(), error) {
	sub := b.client.Subscribe(ctx, channelName(collection))

	// Wait for the subscription handshake so no event published after
	// Subscribe returns can be missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	ch := sub.Channel()
	go func() {
		for msg := range ch {
			var event remote.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("dropping malformed change event", "collection", collection, "error", err)
				continue
			}
			fn(event)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if err := sub.Close(); err != nil {
				logger.Warn("close subscription", "collection", collection, "error", err)
			}
		})
	}
	return unsubscribe, nil
}

// Close closes the Redis connection
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Ping checks if Redis is reachable
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
