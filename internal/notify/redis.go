package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel shared by every storefront instance.
const DefaultChannel = "storefront:state-changes"

// RedisBroadcaster publishes changes locally and to other instances through Redis pub/sub.
type RedisBroadcaster struct {
	rdb      *redis.Client
	hub      *Hub
	channel  string
	instance string
	onRemote func(Change)
}

// NewRedisBroadcaster builds a broadcaster. onRemote runs for changes made by other
// instances, before they are fanned out locally.
func NewRedisBroadcaster(rdb *redis.Client, hub *Hub, instance string, onRemote func(Change)) *RedisBroadcaster {
	return &RedisBroadcaster{
		rdb:      rdb,
		hub:      hub,
		channel:  DefaultChannel,
		instance: instance,
		onRemote: onRemote,
	}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, change Change) {
	change.Origin = b.instance
	b.hub.Publish(ctx, change)

	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("[Notify] marshal change: %v", err)
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		log.Printf("[Notify] redis publish failed: %v", err)
	}
}

// Run relays changes from other instances until ctx is done.
func (b *RedisBroadcaster) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("[Notify] redis relay shutting down")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

// relay applies one message from the channel. Changes this instance published itself are
// skipped; remote ones reach onRemote before local subscribers hear about them.
func (b *RedisBroadcaster) relay(ctx context.Context, payload string) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		log.Printf("[Notify] bad change payload: %v", err)
		return
	}
	if change.Origin == b.instance {
		return
	}
	if b.onRemote != nil {
		b.onRemote(change)
	}
	b.hub.Publish(ctx, change)
}
