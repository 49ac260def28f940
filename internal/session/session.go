// Package session keeps one live client session per browser: its SDK credentials, the
// persisted stores and the login flow.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/storefront/internal/authflow"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/store"
)

// Session is the single writer of its stores: callers mutating state hold Lock for the
// whole action, so responses are applied in request order.
type Session struct {
	ID       string
	Client   *sdk.Client
	Auth     *store.AuthStore
	Cart     *store.CartStore
	Wishlist *store.WishlistStore
	Currency *store.CurrencyStore
	Flow     *authflow.Flow
	Result   *checkout.ResultPage

	mu       sync.Mutex
	lastSeen atomic.Int64
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// LastSeen is the time of the last Get for this session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func newSession(id string, o Options) *Session {
	client := o.Client.Clone()
	deps := store.Deps{SessionID: id, Storage: o.Storage, Publisher: o.Publisher}

	s := &Session{
		ID:       id,
		Client:   client,
		Auth:     store.NewAuthStore(client, deps),
		Cart:     store.NewCartStore(client, deps, o.Tracker, o.IDs),
		Wishlist: store.NewWishlistStore(client, deps),
		Currency: store.NewCurrencyStore(deps),
	}
	s.Flow = authflow.New(authflow.Deps{
		SessionID: id,
		API:       client.Auth,
		Auth:      s.Auth,
		Cart:      s.Cart,
		Wishlist:  s.Wishlist,
		Now:       o.Now,
	})
	s.Result = checkout.NewResultPage(checkout.ResultDeps{
		SessionID: id,
		API:       client.Checkout,
		Cart:      s.Cart,
		Poller:    o.Poller,
		Tracker:   o.Tracker,
		IDs:       o.IDs,
	})
	return s
}

// hydrate restores every store from storage. Auth goes first so the SDK carries the
// customer token before anything else is read.
func (s *Session) hydrate(ctx context.Context) error {
	for _, h := range []interface{ Hydrate(context.Context) error }{s.Auth, s.Cart, s.Wishlist, s.Currency} {
		if err := h.Hydrate(ctx); err != nil {
			return err
		}
	}
	return nil
}
