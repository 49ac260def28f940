package store

import (
	"context"
	"log"
	"sync"

	"github.com/example/storefront/internal/analytics"
	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/utils"
)

// CartState mirrors the last cart the storefront API returned.
type CartState struct {
	Items          map[string]sdk.CartItem `json:"items"`
	ItemOrder      []string                `json:"item_order"`
	Count          int                     `json:"count"`
	Subtotal       float64                 `json:"subtotal"`
	Total          float64                 `json:"total"`
	DiscountAmount float64                 `json:"discount_amount"`
	Coupon         *sdk.Coupon             `json:"coupon,omitempty"`
	CartToken      string                  `json:"cart_token,omitempty"`
}

// List returns the items in server order.
func (s CartState) List() []sdk.CartItem {
	out := make([]sdk.CartItem, 0, len(s.ItemOrder))
	for _, id := range s.ItemOrder {
		if item, ok := s.Items[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

func emptyCart() CartState {
	return CartState{Items: map[string]sdk.CartItem{}}
}

// CartStore keeps the session cart. Every action replaces the cart fields wholesale from
// one API response; only the cart token survives across responses.
type CartStore struct {
	client  *sdk.Client
	p       *persisted
	tracker analytics.Tracker
	ids     analytics.IDs

	mu    sync.RWMutex
	state CartState
}

// NewCartStore builds a cart store. tracker may be nil.
func NewCartStore(client *sdk.Client, deps Deps, tracker analytics.Tracker, ids analytics.IDs) *CartStore {
	if tracker == nil {
		tracker = analytics.LogTracker{}
	}
	return &CartStore{
		client:  client,
		p:       newPersisted(deps, persist.KeyCart, "cart"),
		tracker: tracker,
		ids:     ids,
		state:   emptyCart(),
	}
}

// Hydrate restores the persisted cart and makes the SDK carry exactly its token; an empty
// persisted cart clears a token left over from before.
func (s *CartStore) Hydrate(ctx context.Context) error {
	st := emptyCart()
	if _, err := s.p.load(ctx, &st); err != nil {
		return err
	}
	if st.Items == nil {
		st.Items = map[string]sdk.CartItem{}
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	s.client.SetCartToken(st.CartToken)
	return nil
}

// Snapshot returns a copy of the current state.
func (s *CartStore) Snapshot() CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCart(s.state)
}

// Token returns the guest cart token, if any.
func (s *CartStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CartToken
}

// SyncCartToken makes outgoing SDK requests carry the locally known cart token.
func (s *CartStore) SyncCartToken() {
	if token := s.Token(); token != "" && s.client.GetCartToken() != token {
		s.client.SetCartToken(token)
	}
}

// AdoptToken sets the cart token when the store has none. It reports whether it did.
func (s *CartStore) AdoptToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	if s.state.CartToken != "" {
		s.mu.Unlock()
		return false, nil
	}
	s.state.CartToken = token
	st := cloneCart(s.state)
	s.mu.Unlock()

	s.client.SetCartToken(token)
	return true, s.p.save(ctx, st)
}

// AddItemInput carries the options of an add-to-cart action. Stock is checked by the
// calling page before the store is used.
type AddItemInput struct {
	Product            sdk.Product
	Quantity           int
	Fields             map[string]any
	SubscriptionPlanID sdk.ID
	Notice             string
}

// AddItem adds a product and reports add_to_cart to every configured destination.
func (s *CartStore) AddItem(ctx context.Context, in AddItemInput) (CartState, error) {
	s.SyncCartToken()
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}

	cart, err := s.client.Cart.AddItem(ctx, sdk.AddItemInput{
		ProductID:          in.Product.ID,
		Quantity:           qty,
		Fields:             in.Fields,
		SubscriptionPlanID: in.SubscriptionPlanID,
		Notice:             in.Notice,
	})
	if err != nil {
		return CartState{}, err
	}

	st, err := s.apply(ctx, cart)
	if err != nil {
		return st, err
	}

	for _, e := range analytics.Fanout(s.ids, analytics.Event{
		Name:        analytics.EventAddToCart,
		SessionID:   s.p.deps.SessionID,
		ProductID:   in.Product.ID.String(),
		ProductName: in.Product.Name,
		Quantity:    qty,
		Value:       in.Product.EffectivePrice() * float64(qty),
		Currency:    in.Product.Currency,
	}) {
		s.tracker.Track(ctx, e)
	}
	return st, nil
}

// UpdateQuantity sets an item's quantity; zero or less removes the item.
func (s *CartStore) UpdateQuantity(ctx context.Context, itemID sdk.ID, qty int) (CartState, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	s.SyncCartToken()
	cart, err := s.client.Cart.UpdateItem(ctx, itemID, qty)
	if err != nil {
		return CartState{}, err
	}
	return s.apply(ctx, cart)
}

func (s *CartStore) RemoveItem(ctx context.Context, itemID sdk.ID) (CartState, error) {
	s.SyncCartToken()
	cart, err := s.client.Cart.RemoveItem(ctx, itemID)
	if err != nil {
		return CartState{}, err
	}
	return s.apply(ctx, cart)
}

func (s *CartStore) ApplyCoupon(ctx context.Context, code string) (CartState, error) {
	s.SyncCartToken()
	cart, err := s.client.Cart.ApplyCoupon(ctx, code)
	if err != nil {
		return CartState{}, err
	}
	return s.apply(ctx, cart)
}

func (s *CartStore) RemoveCoupon(ctx context.Context) (CartState, error) {
	s.SyncCartToken()
	cart, err := s.client.Cart.RemoveCoupon(ctx)
	if err != nil {
		return CartState{}, err
	}
	return s.apply(ctx, cart)
}

// ClearCart removes every line from the cart.
func (s *CartStore) ClearCart(ctx context.Context) (CartState, error) {
	s.SyncCartToken()
	cart, err := s.client.Cart.Clear(ctx)
	if err != nil {
		return CartState{}, err
	}
	return s.apply(ctx, cart)
}

// FetchCart reloads the cart from the backend.
func (s *CartStore) FetchCart(ctx context.Context) (CartState, error) {
	s.SyncCartToken()
	cart, err := s.client.Cart.Get(ctx)
	if err != nil {
		return CartState{}, err
	}
	return s.apply(ctx, cart)
}

// Reset drops the local cart and its token without calling the API (logout path).
func (s *CartStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.state = emptyCart()
	s.mu.Unlock()

	s.client.SetCartToken("")
	return s.p.remove(ctx)
}

// apply replaces the cart fields from one response. The known guest token is kept; the
// response token is adopted only when the store has none.
func (s *CartStore) apply(ctx context.Context, cart *sdk.Cart) (CartState, error) {
	next := fromResponse(cart)

	s.mu.Lock()
	if s.state.CartToken != "" {
		if cart.CartToken != "" && cart.CartToken != s.state.CartToken {
			log.Printf("[Cart] session=%s keeping cart token %s over response token %s",
				s.p.deps.SessionID, utils.Fingerprint(s.state.CartToken), utils.Fingerprint(cart.CartToken))
		}
		next.CartToken = s.state.CartToken
	}
	s.state = next
	st := cloneCart(next)
	s.mu.Unlock()

	if st.CartToken != "" {
		s.client.SetCartToken(st.CartToken)
	}
	return st, s.p.save(ctx, st)
}

func fromResponse(cart *sdk.Cart) CartState {
	st := emptyCart()
	if cart == nil {
		return st
	}
	for _, item := range cart.Items {
		id := item.ID.String()
		if _, dup := st.Items[id]; !dup {
			st.ItemOrder = append(st.ItemOrder, id)
		}
		st.Items[id] = item
	}
	st.Count = cart.Count
	st.Subtotal = cart.Subtotal
	st.Total = cart.Total
	st.DiscountAmount = cart.DiscountAmount
	if cart.Coupon != nil {
		c := *cart.Coupon
		st.Coupon = &c
	}
	st.CartToken = cart.CartToken
	return st
}

func cloneCart(s CartState) CartState {
	out := s
	out.Items = make(map[string]sdk.CartItem, len(s.Items))
	for k, v := range s.Items {
		out.Items[k] = v
	}
	out.ItemOrder = append([]string(nil), s.ItemOrder...)
	if s.Coupon != nil {
		c := *s.Coupon
		out.Coupon = &c
	}
	return out
}
