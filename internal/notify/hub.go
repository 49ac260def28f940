package notify

import (
	"context"
	"sync"
	"time"
)

// Change tells subscribers that one store of a session was rewritten.
type Change struct {
	SessionID string    `json:"session_id"`
	Store     string    `json:"store"`
	Version   int64     `json:"version"`
	Origin    string    `json:"origin,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher announces store changes.
type Publisher interface {
	Publish(ctx context.Context, change Change)
}

const subscriberBuffer = 16

// Hub fans changes out to the subscribers of each session within this process.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Change]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Change]struct{})}
}

// Subscribe registers a listener for one session. The returned cancel func must be called.
func (h *Hub) Subscribe(sessionID string) (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan Change]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers change to the session's subscribers. Slow subscribers miss updates
// rather than block the writer.
func (h *Hub) Publish(_ context.Context, change Change) {
	if change.At.IsZero() {
		change.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[change.SessionID] {
		select {
		case ch <- change:
		default:
		}
	}
}

// Subscribers returns the number of listeners of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
