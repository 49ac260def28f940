package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversOnlyToSameSession(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe("a")
	defer cancelA()
	b, cancelB := hub.Subscribe("b")
	defer cancelB()

	hub.Publish(context.Background(), Change{SessionID: "a", Store: "cart", Version: 3})

	select {
	case got := <-a:
		assert.Equal(t, "cart", got.Store)
		assert.Equal(t, int64(3), got.Version)
		assert.False(t, got.At.IsZero())
	default:
		t.Fatal("expected a change for session a")
	}

	select {
	case got := <-b:
		t.Fatalf("unexpected change for session b: %+v", got)
	default:
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s")
	require.Equal(t, 1, hub.Subscribers("s"))

	cancel()
	cancel()

	assert.Equal(t, 0, hub.Subscribers("s"))
	_, open := <-ch
	assert.False(t, open)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("s")
	defer cancel()

	for i := 0; i < subscriberBuffer*3; i++ {
		hub.Publish(context.Background(), Change{SessionID: "s", Store: "cart", Version: int64(i)})
	}
}
