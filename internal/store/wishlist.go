package store

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/sdk"
)

// WishlistState is fetched on demand and never merged across the guest/customer boundary.
type WishlistState struct {
	Items      []sdk.Product `json:"items"`
	Count      int           `json:"count"`
	HasFetched bool          `json:"hasFetched"`
}

type WishlistStore struct {
	client *sdk.Client
	p      *persisted

	mu    sync.RWMutex
	state WishlistState
}

// NewWishlistStore constructs WishlistStore.
func NewWishlistStore(client *sdk.Client, deps Deps) *WishlistStore {
	return &WishlistStore{
		client: client,
		p:      newPersisted(deps, persist.KeyWishlist, "wishlist"),
	}
}

// Hydrate restores the persisted wishlist.
func (s *WishlistStore) Hydrate(ctx context.Context) error {
	var st WishlistState
	if _, err := s.p.load(ctx, &st); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *WishlistStore) Snapshot() WishlistState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Items = append([]sdk.Product(nil), s.state.Items...)
	return st
}

// Contains reports whether productID is on the list.
func (s *WishlistStore) Contains(productID sdk.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.Items {
		if p.ID == productID {
			return true
		}
	}
	return false
}

// Fetch replaces the list from the API.
func (s *WishlistStore) Fetch(ctx context.Context) (WishlistState, error) {
	items, err := s.client.Wishlist.Get(ctx)
	if err != nil {
		return WishlistState{}, err
	}
	return s.replace(ctx, WishlistState{Items: items, Count: len(items), HasFetched: true})
}

// Add saves a product and refetches the list.
func (s *WishlistStore) Add(ctx context.Context, productID sdk.ID) (WishlistState, error) {
	if err := s.client.Wishlist.Add(ctx, productID); err != nil {
		return WishlistState{}, err
	}
	return s.Fetch(ctx)
}

// Remove deletes a product remotely and drops it from the local list directly.
func (s *WishlistStore) Remove(ctx context.Context, productID sdk.ID) (WishlistState, error) {
	if err := s.client.Wishlist.Remove(ctx, productID); err != nil {
		return WishlistState{}, err
	}

	s.mu.Lock()
	kept := make([]sdk.Product, 0, len(s.state.Items))
	for _, p := range s.state.Items {
		if p.ID != productID {
			kept = append(kept, p)
		}
	}
	s.state.Items = kept
	s.state.Count = len(kept)
	st := s.state
	s.mu.Unlock()

	return st, s.p.save(ctx, st)
}

// Reset empties the list locally; the next read fetches again.
func (s *WishlistStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.state = WishlistState{}
	s.mu.Unlock()
	return s.p.remove(ctx)
}

func (s *WishlistStore) replace(ctx context.Context, st WishlistState) (WishlistState, error) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st, s.p.save(ctx, st)
}
