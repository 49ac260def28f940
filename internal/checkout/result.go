package checkout

import (
	"context"
	"log"
	"sync"

	"github.com/example/storefront/internal/analytics"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/store"
)

// Result page statuses.
const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusError   = "error"
)

// View is what the result page renders.
type View struct {
	Status    string        `json:"status"`
	TxID      string        `json:"txid"`
	Order     *sdk.Order    `json:"order,omitempty"`
	Checkout  *sdk.Checkout `json:"checkout,omitempty"`
	Celebrate bool          `json:"celebrate"`
	Message   string        `json:"message,omitempty"`
}

type ResultDeps struct {
	SessionID string
	API       ResultFetcher
	Cart      interface {
		ClearCart(ctx context.Context) (store.CartState, error)
	}
	Poller  *Poller
	Tracker analytics.Tracker
	IDs     analytics.IDs
}

// ResultPage is the per-session checkout result page. It remembers the last params so a
// retry repeats the same query, and celebrates each settled checkout once.
type ResultPage struct {
	deps ResultDeps

	mu         sync.Mutex
	last       *Params
	celebrated map[string]bool
}

func NewResultPage(deps ResultDeps) *ResultPage {
	if deps.Poller == nil {
		deps.Poller = NewPoller()
	}
	if deps.Tracker == nil {
		deps.Tracker = analytics.LogTracker{}
	}
	return &ResultPage{deps: deps, celebrated: make(map[string]bool)}
}

// Load resolves the result for params.
func (p *ResultPage) Load(ctx context.Context, params Params) (View, error) {
	p.mu.Lock()
	cp := params
	p.last = &cp
	p.mu.Unlock()
	return p.resolve(ctx, params)
}

// Retry repeats the last query with the same txid.
func (p *ResultPage) Retry(ctx context.Context) (View, error) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last == nil {
		return View{}, ErrNoResult
	}
	return p.resolve(ctx, *last)
}

// Last returns the params of the last Load.
func (p *ResultPage) Last() (Params, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Params{}, false
	}
	return *p.last, true
}

// Celebrated reports whether the success celebration already played for txid.
func (p *ResultPage) Celebrated(txid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.celebrated[txid]
}

func (p *ResultPage) resolve(ctx context.Context, params Params) (View, error) {
	view := View{TxID: params.TxID}

	res, err := p.deps.Poller.Fetch(ctx, p.deps.API, params.TxID)
	if err != nil {
		view.Status = StatusError
		view.Message = sdk.Message(err, "We could not load your payment result. Please try again.")
		return view, err
	}

	switch {
	case res.Order != nil:
		view.Status = StatusSuccess
		view.Order = res.Order
		view.Checkout = res.Checkout
		view.Celebrate = p.firstCelebration(params.TxID)
		if view.Celebrate {
			p.settle(ctx, params.TxID, res.Order)
		}
	case res.Checkout != nil:
		view.Status = StatusPending
		view.Checkout = res.Checkout
	default:
		view.Status = StatusError
		view.Message = "Payment result not found."
	}
	return view, nil
}

func (p *ResultPage) firstCelebration(txid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.celebrated[txid] {
		return false
	}
	p.celebrated[txid] = true
	return true
}

// settle runs the one-time side effects of a paid order.
func (p *ResultPage) settle(ctx context.Context, txid string, order *sdk.Order) {
	if _, err := p.deps.Cart.ClearCart(ctx); err != nil {
		log.Printf("[Checkout] session=%s clear cart after %s: %v", p.deps.SessionID, txid, err)
	}
	for _, e := range analytics.Fanout(p.deps.IDs, analytics.Event{
		Name:      analytics.EventPurchase,
		SessionID: p.deps.SessionID,
		Value:     order.Total,
		Currency:  order.Currency,
	}) {
		p.deps.Tracker.Track(ctx, e)
	}
	log.Printf("[Checkout] session=%s order %s paid for checkout %s", p.deps.SessionID, order.ID, txid)
}
