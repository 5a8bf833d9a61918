package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisBroadcaster, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	b, err := NewRedisBroadcaster("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create broadcaster: %v", err)
	}
	return b, s
}

func TestNewRedisBroadcaster(t *testing.T) {
	b, _ := setupTestRedis(t)
	defer b.Close()

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestPublishDeliversToUserChannel(t *testing.T) {
	s := miniredis.RunT(t)
	b, err := NewRedisBroadcaster("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create broadcaster: %v", err)
	}
	defer b.Close()

	sub := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer sub.Close()
	ctx := context.Background()
	pubsub := sub.Subscribe(ctx, "notify:u1")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	notice := Notice{UserID: "u1", Kind: "notification", RefID: "n1", Timestamp: time.Now().UTC()}
	b.Publish(ctx, notice)

	select {
	case msg := <-pubsub.Channel():
		var got Notice
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got.UserID != "u1" || got.RefID != "n1" {
			t.Errorf("unexpected notice: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received on user channel")
	}
}

func TestPublishAfterBackendGoneDoesNotPanic(t *testing.T) {
	b, s := setupTestRedis(t)
	defer b.Close()

	s.Close()
	// Fire-and-forget: failure is logged, never propagated.
	b.Publish(context.Background(), Notice{UserID: "u1", Kind: "notification"})
}
