//go:build integration

package eventbus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	addr := os.Getenv("PUNCTURED_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return New(client, 4)
}

func TestPublishWithNoSubscriberIsNoOp(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	err := bus.Publish(ctx, "no-such-user", NewBalance(1000))
	require.NoError(t, err)
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()

	// give the consumer group a moment to register before publishing
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "alice", NewBalance(42)))

	select {
	case ev := <-sub.Events:
		assert.Equal(t, KindBalance, ev.Kind)
		assert.Equal(t, int64(42), ev.Balance.AmountMsat)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeDoesNotLeakAcrossUsers(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "bob")
	require.NoError(t, err)
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, "carol", NewBalance(1)))

	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected cross-user event: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}
