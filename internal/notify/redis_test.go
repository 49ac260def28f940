package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(t *testing.T, change Change) string {
	t.Helper()
	b, err := json.Marshal(change)
	require.NoError(t, err)
	return string(b)
}

func TestRedisBroadcaster_RelaySkipsOwnChanges(t *testing.T) {
	hub := NewHub()
	calls := 0
	b := NewRedisBroadcaster(nil, hub, "node-a", func(Change) { calls++ })

	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	b.relay(context.Background(), payload(t, Change{SessionID: "s1", Store: "cart", Origin: "node-a"}))

	assert.Equal(t, 0, calls)
	assert.Empty(t, ch)
}

func TestRedisBroadcaster_RelayReloadsBeforeFanOut(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	var seen []Change
	b := NewRedisBroadcaster(nil, hub, "node-a", func(c Change) {
		// Subscribers must not hear about the change before the session is reloaded.
		assert.Empty(t, ch)
		seen = append(seen, c)
	})

	b.relay(context.Background(), payload(t, Change{SessionID: "s1", Store: "cart", Version: 3, Origin: "node-b"}))

	require.Len(t, seen, 1)
	assert.Equal(t, "cart", seen[0].Store)
	select {
	case got := <-ch:
		assert.Equal(t, int64(3), got.Version)
		assert.Equal(t, "node-b", got.Origin)
	default:
		t.Fatal("expected the change to reach local subscribers")
	}
}

func TestRedisBroadcaster_RelayIgnoresGarbage(t *testing.T) {
	hub := NewHub()
	calls := 0
	b := NewRedisBroadcaster(nil, hub, "node-a", func(Change) { calls++ })

	b.relay(context.Background(), "{not json")

	assert.Equal(t, 0, calls)
}

func TestRedisBroadcaster_AcrossInstances(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	remote := make(chan Change, 1)
	hubB := NewHub()
	b := NewRedisBroadcaster(rdb, hubB, "node-b", func(c Change) { remote <- c })
	go b.Run(ctx)

	a := NewRedisBroadcaster(rdb, NewHub(), "node-a", nil)
	// The subscription is established asynchronously; keep publishing until it lands.
	require.Eventually(t, func() bool {
		a.Publish(ctx, Change{SessionID: "s1", Store: "wishlist"})
		select {
		case c := <-remote:
			return c.Origin == "node-a" && c.Store == "wishlist"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)
}
