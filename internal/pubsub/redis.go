package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"chat-core/internal/observability"
)

// RedisBus publishes envelopes on one Redis channel. Each instance runs a
// subscriber that dispatches everything it receives, its own publishes
// included.
type RedisBus struct {
	client   *redis.Client
	channel  string
	handlers handlers
	ready    chan struct{}
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel, ready: make(chan struct{})}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		observability.IncBusPublishError("redis")
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Handle(h Handler) {
	b.handlers.add(h)
}

// Ready is closed once the subscription is confirmed.
func (b *RedisBus) Ready() <-chan struct{} {
	return b.ready
}

func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	close(b.ready)
	log.Printf("redis bus subscribed channel=%s", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("redis bus: dropping malformed envelope: %v", err)
				continue
			}
			b.handlers.dispatch(env)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
