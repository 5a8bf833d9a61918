// Package broadcast delivers fire-and-forget notices to the real-time
// channel after successful notification writes. The consumer side of the
// channel is an external collaborator.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice is the payload published after a successful write.
type Notice struct {
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	RefID     string    `json:"refId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster receives notices fire-and-forget: a failed publish never
// fails the write that triggered it.
type Broadcaster interface {
	Publish(ctx context.Context, notice Notice)
}

// RedisBroadcaster publishes notices to a per-user Redis pub/sub channel.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

// NewRedisBroadcaster connects and verifies the Redis backend.
func NewRedisBroadcaster(redisURL string) (*RedisBroadcaster, error) {
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
	return &RedisBroadcaster{client: client, prefix: "notify:"}, nil
}

// NewRedisBroadcasterWithClient wraps an existing client (tests).
func NewRedisBroadcasterWithClient(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, prefix: "notify:"}
}

func (b *RedisBroadcaster) channel(userID string) string {
	return b.prefix + userID
}

// Publish sends the notice to the user's channel. Failures are logged and
// swallowed.
func (b *RedisBroadcaster) Publish(ctx context.Context, notice Notice) {
	payload, err := json.Marshal(notice)
	if err != nil {
		log.Printf("broadcast: marshal notice for %s: %v", notice.UserID, err)
		return
	}
	if err := b.client.Publish(ctx, b.channel(notice.UserID), payload).Err(); err != nil {
		log.Printf("broadcast: publish to %s: %v", b.channel(notice.UserID), err)
	}
}

// Close releases the Redis connection.
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}

// Ping checks reachability.
func (b *RedisBroadcaster) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Noop discards all notices. Used when no broadcast channel is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Notice) {}
