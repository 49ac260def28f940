package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/persist"
)

// Deps are shared by every store of one client session.
type Deps struct {
	SessionID string
	Storage   persist.Storage
	Publisher notify.Publisher
}

// persisted binds a store to its storage key and announces every write.
type persisted struct {
	deps    Deps
	key     string
	name    string
	version atomic.Int64
}

func newPersisted(deps Deps, key, name string) *persisted {
	return &persisted{deps: deps, key: key, name: name}
}

func (p *persisted) load(ctx context.Context, v any) (bool, error) {
	raw, ok, err := p.deps.Storage.Get(ctx, p.deps.SessionID, p.key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", p.key, err)
	}
	return true, nil
}

func (p *persisted) save(ctx context.Context, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.key, err)
	}
	if err := p.deps.Storage.Set(ctx, p.deps.SessionID, p.key, raw); err != nil {
		return err
	}
	p.announce(ctx)
	return nil
}

func (p *persisted) remove(ctx context.Context) error {
	if err := p.deps.Storage.Remove(ctx, p.deps.SessionID, p.key); err != nil {
		return err
	}
	p.announce(ctx)
	return nil
}

func (p *persisted) announce(ctx context.Context) {
	v := p.version.Add(1)
	if p.deps.Publisher == nil {
		return
	}
	p.deps.Publisher.Publish(ctx, notify.Change{
		SessionID: p.deps.SessionID,
		Store:     p.name,
		Version:   v,
		At:        time.Now(),
	})
}
