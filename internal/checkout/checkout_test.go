package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/analytics"
	"github.com/example/storefront/internal/authflow"
	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/sdk/sdktest"
	"github.com/example/storefront/internal/store"
)

const testSession = "0f6e2c3a-8b1d-4e7f-9a2b-5c4d3e2f1a00"

type recordedSleeps struct{ waits []time.Duration }

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

type flakyResults struct {
	fails int
	calls int
	txids []string
	res   *sdk.CheckoutResult
}

func (f *flakyResults) GetResult(_ context.Context, txid string) (*sdk.CheckoutResult, error) {
	f.calls++
	f.txids = append(f.txids, txid)
	if f.calls <= f.fails {
		return nil, &sdk.APIError{Status: 503, Message: "unavailable"}
	}
	return f.res, nil
}

func testPoller(r *recordedSleeps) *Poller {
	p := NewPoller()
	p.Sleep = r.sleep
	return p
}

func TestPoller_BackoffSchedule(t *testing.T) {
	p := NewPoller()
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 10*time.Second, p.Backoff(4))
	assert.Equal(t, 10*time.Second, p.Backoff(60))
}

func TestPoller_RetriesThreeTimes(t *testing.T) {
	sleeps := &recordedSleeps{}
	api := &flakyResults{fails: 10}

	_, err := testPoller(sleeps).Fetch(context.Background(), api, "123")
	require.Error(t, err)
	assert.Equal(t, 4, api.calls, "one try plus three retries")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps.waits)
}

func TestPoller_StopsOnSuccess(t *testing.T) {
	sleeps := &recordedSleeps{}
	api := &flakyResults{fails: 1, res: &sdk.CheckoutResult{Checkout: &sdk.Checkout{ID: "123"}}}

	res, err := testPoller(sleeps).Fetch(context.Background(), api, "123")
	require.NoError(t, err)
	assert.Equal(t, sdk.ID("123"), res.Checkout.ID)
	assert.Equal(t, 2, api.calls)
	assert.Equal(t, []time.Duration{time.Second}, sleeps.waits)
}

func TestPoller_CancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &flakyResults{fails: 10}

	_, err := NewPoller().Fetch(ctx, api, "123")
	require.Error(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestParseResultParams(t *testing.T) {
	p, err := ParseResultParams(" 123 ", "1767225600", "abc")
	require.NoError(t, err)
	assert.Equal(t, "123", p.TxID)
	assert.Equal(t, "abc", p.Signature)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), p.Expires)
	assert.True(t, p.Expired(p.Expires.Add(time.Second)))
	assert.False(t, p.Expired(p.Expires))

	p, err = ParseResultParams("123", "", "")
	require.NoError(t, err)
	assert.False(t, p.Expired(time.Now()))

	_, err = ParseResultParams("", "1", "")
	require.ErrorIs(t, err, ErrMissingTxID)
	_, err = ParseResultParams("123", "soon", "")
	require.ErrorIs(t, err, ErrInvalidExpires)
}

type resultFixture struct {
	srv     *sdktest.Server
	cart    *store.CartStore
	tracker *analytics.MemoryTracker
	page    *ResultPage
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	srv := sdktest.NewServer(t)
	srv.AddProduct(sdk.Product{ID: "p1", Price: 50})
	client := srv.Client()
	tracker := &analytics.MemoryTracker{}
	cart := store.NewCartStore(client, store.Deps{SessionID: testSession, Storage: persist.NewMemoryStorage()}, nil, analytics.IDs{})

	_, err := cart.AddItem(context.Background(), store.AddItemInput{Product: sdk.Product{ID: "p1"}, Quantity: 2})
	require.NoError(t, err)

	return &resultFixture{
		srv:     srv,
		cart:    cart,
		tracker: tracker,
		page: NewResultPage(ResultDeps{
			SessionID: testSession,
			API:       client.Checkout,
			Cart:      cart,
			Poller:    testPoller(&recordedSleeps{}),
			Tracker:   tracker,
			IDs:       analytics.IDs{FacebookPixelID: "px", GTMID: "gtm"},
		}),
	}
}

func TestResultPage_PaidOrderCelebratesOnce(t *testing.T) {
	fx := newResultFixture(t)
	fx.srv.Results["123"] = sdk.CheckoutResult{Order: &sdk.Order{ID: "o-1", Total: 100, Currency: "SAR"}}
	ctx := context.Background()

	params, err := ParseResultParams("123", "", "")
	require.NoError(t, err)

	view, err := fx.page.Load(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, view.Status)
	assert.True(t, view.Celebrate)
	assert.Empty(t, fx.cart.Snapshot().Items)
	assert.True(t, fx.page.Celebrated("123"))

	again, err := fx.page.Load(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, again.Status)
	assert.False(t, again.Celebrate)

	retried, err := fx.page.Retry(ctx)
	require.NoError(t, err)
	assert.False(t, retried.Celebrate)

	assert.Equal(t, 1, fx.srv.Calls("DELETE /cart"))
	purchases := 0
	for _, e := range fx.tracker.Events() {
		if e.Name == analytics.EventPurchase {
			purchases++
		}
	}
	assert.Equal(t, 2, purchases, "one event per destination, once")
}

func TestResultPage_PendingAndRetryKeepTxID(t *testing.T) {
	api := &flakyResults{res: &sdk.CheckoutResult{Checkout: &sdk.Checkout{ID: "123", Status: "pending"}}}
	page := NewResultPage(ResultDeps{SessionID: testSession, API: api, Poller: testPoller(&recordedSleeps{})})
	ctx := context.Background()

	view, err := page.Load(ctx, Params{TxID: "123"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, view.Status)
	assert.False(t, view.Celebrate)
	require.NotNil(t, view.Checkout)

	view, err = page.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, view.Status)
	assert.Equal(t, "123", view.TxID)
	assert.Equal(t, []string{"123", "123"}, api.txids)
	last, ok := page.Last()
	require.True(t, ok)
	assert.Equal(t, "123", last.TxID)
}

func TestResultPage_RetryWithoutLoad(t *testing.T) {
	page := NewResultPage(ResultDeps{API: &flakyResults{}})
	_, err := page.Retry(context.Background())
	require.ErrorIs(t, err, ErrNoResult)
}

func TestResultPage_FailureShowsErrorView(t *testing.T) {
	fx := newResultFixture(t)

	view, err := fx.page.Load(context.Background(), Params{TxID: "missing"})
	require.Error(t, err)
	assert.Equal(t, StatusError, view.Status)
	assert.Equal(t, "checkout not found", view.Message)
	assert.Equal(t, 4, fx.srv.Calls("GET /checkout/{id}/result"))
	assert.Len(t, fx.cart.Snapshot().Items, 1, "cart untouched")
}

func TestStart_UnauthorizedReopensLogin(t *testing.T) {
	srv := sdktest.NewServer(t)
	client := srv.Client()
	deps := store.Deps{SessionID: testSession, Storage: persist.NewMemoryStorage()}
	auth := store.NewAuthStore(client, deps)
	cart := store.NewCartStore(client, deps, nil, analytics.IDs{})
	flow := authflow.New(authflow.Deps{SessionID: testSession, API: client.Auth, Auth: auth, Cart: cart})
	ctx := context.Background()

	require.NoError(t, auth.SetAuth(ctx, "stale-token", &sdk.Customer{ID: "c1"}))

	_, err := Start(ctx, StartDeps{SessionID: testSession, API: client.Checkout, Cart: cart, Auth: auth, Modal: flow})
	require.ErrorIs(t, err, ErrReauthRequired)
	assert.False(t, auth.IsAuthenticated())
	assert.Empty(t, client.GetAuthToken())

	st := flow.State()
	assert.True(t, st.Open)
	assert.Equal(t, authflow.StepPhone, st.Step)
}

func TestStart_Success(t *testing.T) {
	srv := sdktest.NewServer(t)
	client := srv.Client()
	deps := store.Deps{SessionID: testSession, Storage: persist.NewMemoryStorage()}
	auth := store.NewAuthStore(client, deps)
	cart := store.NewCartStore(client, deps, nil, analytics.IDs{})
	flow := authflow.New(authflow.Deps{SessionID: testSession, API: client.Auth, Auth: auth, Cart: cart})
	ctx := context.Background()
	require.NoError(t, auth.SetAuth(ctx, sdktest.AuthToken, nil))

	co, err := Start(ctx, StartDeps{SessionID: testSession, API: client.Checkout, Cart: cart, Auth: auth, Modal: flow})
	require.NoError(t, err)
	assert.Equal(t, sdk.ID("123"), co.ID)
	assert.NotEmpty(t, co.RedirectURL)
}

func TestStart_OtherErrorsKeepSession(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.CheckoutStatus = 422
	client := srv.Client()
	deps := store.Deps{SessionID: testSession, Storage: persist.NewMemoryStorage()}
	auth := store.NewAuthStore(client, deps)
	cart := store.NewCartStore(client, deps, nil, analytics.IDs{})
	flow := authflow.New(authflow.Deps{SessionID: testSession, API: client.Auth, Auth: auth, Cart: cart})
	ctx := context.Background()
	require.NoError(t, auth.SetAuth(ctx, sdktest.AuthToken, nil))

	_, err := Start(ctx, StartDeps{SessionID: testSession, API: client.Checkout, Cart: cart, Auth: auth, Modal: flow})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReauthRequired))
	assert.True(t, auth.IsAuthenticated())
	assert.False(t, flow.State().Open)
}
