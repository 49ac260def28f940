package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/analytics"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/sdk"
)

// Options configure a Manager. Client is the template every session clones.
type Options struct {
	Client    *sdk.Client
	Storage   persist.Storage
	Publisher notify.Publisher
	Tracker   analytics.Tracker
	IDs       analytics.IDs
	Poller    *checkout.Poller
	Now       func() time.Time
}

// Manager owns the live sessions of this instance. Sessions are created lazily and
// hydrated from storage, so any instance can serve any browser.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
	loading  singleflight.Group

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracker == nil {
		opts.Tracker = analytics.LogTracker{}
	}
	if opts.Poller == nil {
		opts.Poller = checkout.NewPoller()
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
		pending:  make(map[string]struct{}),
	}
}

// Get returns the live session for id, hydrating it on first use.
func (m *Manager) Get(ctx context.Context, id, userAgent string) (*Session, error) {
	now := m.opts.Now()

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(now)
		return s, nil
	}

	// Concurrent requests of one browser share the load; it must outlive the first of them.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := m.loading.Do(id, func() (any, error) {
		m.mu.RLock()
		existing, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}

		s := newSession(id, m.opts)
		if err := m.opts.Storage.Touch(loadCtx, id, userAgent); err != nil {
			return nil, fmt.Errorf("touch session: %w", err)
		}
		if err := s.hydrate(loadCtx); err != nil {
			return nil, fmt.Errorf("hydrate session: %w", err)
		}

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
		log.Printf("[Session] loaded %s", id)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s = v.(*Session)
	s.touch(now)
	return s, nil
}

// Reload re-hydrates a live session after another instance changed its storage. Sessions
// not loaded here are ignored; they hydrate on their next request.
func (m *Manager) Reload(ctx context.Context, id string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()
	if err := s.hydrate(ctx); err != nil {
		log.Printf("[Session] reload %s failed: %v", id, err)
	}
}

// ReloadAsync schedules a Reload without waiting for the session lock, so a slow action
// on one session cannot hold up the caller. Requests arriving while a reload of the same
// session is still waiting are merged into it.
func (m *Manager) ReloadAsync(id string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	m.pendingMu.Lock()
	if _, waiting := m.pending[id]; waiting {
		m.pendingMu.Unlock()
		return
	}
	m.pending[id] = struct{}{}
	m.pendingMu.Unlock()

	go func() {
		s.Lock()
		defer s.Unlock()

		// Cleared under the session lock: anything written after this point schedules
		// another reload.
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()

		if err := s.hydrate(context.Background()); err != nil {
			log.Printf("[Session] reload %s failed: %v", id, err)
		}
	}()
}

// Drop evicts a session from memory. Its persisted state stays.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Destroy evicts a session and deletes its persisted state.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.Drop(id)
	return m.opts.Storage.RemoveAll(ctx, id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than maxIdle and purges persisted state of
// sessions idle for longer than retain. It returns the number of evicted sessions.
func (m *Manager) Sweep(ctx context.Context, maxIdle, retain time.Duration) int {
	now := m.opts.Now()
	cutoff := now.Add(-maxIdle)

	m.mu.Lock()
	evicted := 0
	live := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
			continue
		}
		live = append(live, id)
	}
	m.mu.Unlock()

	if retain > 0 {
		// Live sessions only touch storage when loaded; refresh them so they are not purged.
		for _, id := range live {
			if err := m.opts.Storage.Touch(ctx, id, ""); err != nil {
				log.Printf("[Session] touch %s failed: %v", id, err)
			}
		}
		purged, err := m.opts.Storage.Purge(ctx, now.Add(-retain))
		if err != nil {
			log.Printf("[Session] purge failed: %v", err)
		} else if purged > 0 {
			log.Printf("[Session] purged %d stored sessions", purged)
		}
	}
	if evicted > 0 {
		log.Printf("[Session] evicted %d idle sessions", evicted)
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxIdle, retain time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx, maxIdle, retain)
		}
	}
}
