package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDispatchesToAllHandlers(t *testing.T) {
	bus := NewLocalBus()
	var first, second []Envelope
	bus.Handle(func(env Envelope) { first = append(first, env) })
	bus.Handle(func(env Envelope) { second = append(second, env) })

	env := Envelope{Kind: KindEvent, Target: RoomTarget(3), Payload: json.RawMessage(`{"type":"chat"}`)}
	require.NoError(t, bus.Publish(context.Background(), env))

	assert.Equal(t, []Envelope{env}, first)
	assert.Equal(t, []Envelope{env}, second)
}

func TestLocalBusRejectsCancelledContext(t *testing.T) {
	bus := NewLocalBus()
	called := false
	bus.Handle(func(Envelope) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, bus.Publish(ctx, Envelope{Kind: KindEvent, Target: PublicTarget()}))
	assert.False(t, called)
}

// Requires Redis on localhost:6379; skipped otherwise.
func TestRedisBusRoundTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	bus := NewRedisBus(client, "chat:delivery:test")
	defer bus.Close()
	got := make(chan Envelope, 1)
	bus.Handle(func(env Envelope) { got <- env })

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go bus.Run(runCtx)
	select {
	case <-bus.Ready():
	case <-ctx.Done():
		t.Fatal("subscription not ready")
	}

	env := Envelope{Kind: KindSubscribe, Target: RoomTarget(9), UserIDs: []int{1, 2}}
	require.NoError(t, bus.Publish(ctx, env))

	select {
	case received := <-got:
		assert.Equal(t, env, received)
	case <-ctx.Done():
		t.Fatal("envelope not received")
	}
}
