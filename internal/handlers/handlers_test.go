package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/sdk/sdktest"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/utils"
)

type harness struct {
	t      *testing.T
	app    *fiber.App
	srv    *sdktest.Server
	mgr    *session.Manager
	hub    *notify.Hub
	stop   context.CancelFunc
	now    time.Time
	cookie string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		srv: sdktest.NewServer(t),
		now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	client := h.srv.Client()
	hub := notify.NewHub()
	h.hub = hub
	shutdown, stop := context.WithCancel(context.Background())
	h.stop = stop
	t.Cleanup(stop)
	h.mgr = session.NewManager(session.Options{
		Client:    client,
		Storage:   persist.NewMemoryStorage(),
		Publisher: hub,
		Poller: &checkout.Poller{
			Retries:  1,
			BaseWait: time.Millisecond,
			MaxWait:  time.Millisecond,
			Sleep:    func(context.Context, time.Duration) error { return nil },
		},
		Now: func() time.Time { return h.now },
	})

	h.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	routes.Register(h.app, routes.Deps{
		Config: &config.Config{
			AppEnv:        "test",
			SessionSecret: "test-secret",
			SessionTTL:    time.Hour,
		},
		Sessions: h.mgr,
		Pages:    pages.NewService(client),
		Hub:      hub,
		Shutdown: shutdown,
	})
	return h
}

type response struct {
	Status     int             `json:"-"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	ReopenAuth bool            `json:"reopen_auth"`
	RetryAfter int             `json:"retry_after"`
}

func (h *harness) do(method, path string, body any) response {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if h.cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: h.cookie})
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			h.cookie = c.Value
		}
	}

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &out), string(raw))
	}
	out.Status = resp.StatusCode
	return out
}

func decode[T any](t *testing.T, r response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

type authState struct {
	Modal struct {
		Open  bool   `json:"open"`
		Step  string `json:"step"`
		Phone string `json:"phone"`
	} `json:"modal"`
	IsAuthenticated bool `json:"is_authenticated"`
}

type cartView struct {
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	HasToken bool    `json:"has_token"`
	Items    []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Display struct {
		Currency string `json:"currency"`
		Total    string `json:"total"`
	} `json:"display"`
}

func (h *harness) login() {
	h.t.Helper()
	r := h.do(http.MethodPost, "/api/auth/phone", map[string]string{"phone": "+966501234567"})
	require.Equal(h.t, http.StatusOK, r.Status, r.Message)
	r = h.do(http.MethodPost, "/api/auth/otp", map[string]string{"code": sdktest.ValidCode})
	require.Equal(h.t, http.StatusOK, r.Status, r.Message)
	require.True(h.t, decode[authState](h.t, r).IsAuthenticated)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, r.Status)
	assert.True(t, r.Success)
}

func TestSession_CookieIsIssuedOnceAndReused(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodGet, "/api/auth/state", nil)
	require.Equal(t, http.StatusOK, r.Status)
	require.NotEmpty(t, h.cookie)
	first := h.cookie

	h.do(http.MethodGet, "/api/auth/state", nil)
	assert.Equal(t, first, h.cookie)
	assert.Equal(t, 1, h.mgr.Len())
}

func TestAuth_OTPFlow(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/api/auth/phone", map[string]string{"phone": "0501234567"})
	assert.Equal(t, http.StatusUnprocessableEntity, r.Status, "local numbers need a country code")

	r = h.do(http.MethodPost, "/api/auth/phone", map[string]string{"phone": "+966501234567"})
	require.Equal(t, http.StatusOK, r.Status, r.Message)
	st := decode[authState](t, r)
	assert.Equal(t, "otp", st.Modal.Step)
	assert.Equal(t, "+966501234567", st.Modal.Phone)

	r = h.do(http.MethodPost, "/api/auth/otp", map[string]string{"code": "9999"})
	assert.Equal(t, http.StatusUnprocessableEntity, r.Status)

	r = h.do(http.MethodPost, "/api/auth/otp", map[string]string{"code": sdktest.ValidCode})
	assert.Equal(t, http.StatusTooManyRequests, r.Status)
	assert.Equal(t, 5, r.RetryAfter)

	h.now = h.now.Add(6 * time.Second)
	r = h.do(http.MethodPost, "/api/auth/otp", map[string]string{"code": sdktest.ValidCode})
	require.Equal(t, http.StatusOK, r.Status, r.Message)
	st = decode[authState](t, r)
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "authenticated", st.Modal.Step)

	r = h.do(http.MethodGet, "/api/auth/profile", nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "Sara", decode[sdk.Customer](t, r).Name)
}

func TestAuth_ExpiredCode(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/api/auth/phone", map[string]string{"phone": "+966501234567"})

	h.now = h.now.Add(5*time.Minute + time.Second)
	r := h.do(http.MethodPost, "/api/auth/otp", map[string]string{"code": sdktest.ValidCode})
	assert.Equal(t, http.StatusGone, r.Status)
	assert.Zero(t, h.srv.Calls("POST /auth/verify"))
}

func TestAuth_ProfileRequiresCustomer(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodGet, "/api/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Status)
	assert.False(t, r.Success)
}

func TestCart_GuestTokenSurvivesLogin(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Name: "Oud", Price: 100, Currency: "SAR"})
	h.srv.AuthCartToken = "customer-cart"

	r := h.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Zero(t, h.srv.Calls("GET /cart"), "no token, no remote read")

	r = h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p1", "quantity": 2})
	require.Equal(t, http.StatusCreated, r.Status, r.Message)
	cart := decode[cartView](t, r)
	assert.True(t, cart.HasToken)
	assert.Equal(t, 2, cart.Count)
	assert.Equal(t, "200.00 SAR", cart.Display.Total)

	h.login()

	r = h.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, r.Status)
	cart = decode[cartView](t, r)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p1", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCart_StockIsCheckedBeforeAdding(t *testing.T) {
	h := newHarness(t)
	zero, two := 0, 2
	h.srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Price: 100, Stock: &zero})
	h.srv.AddProduct(sdk.Product{ID: "p2", Slug: "musk", Price: 50, Stock: &two})

	r := h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p1"})
	assert.Equal(t, http.StatusConflict, r.Status)

	r = h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p2", "quantity": 3})
	assert.Equal(t, http.StatusConflict, r.Status)

	r = h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "missing"})
	assert.Equal(t, http.StatusNotFound, r.Status)

	assert.Zero(t, h.srv.Calls("POST /cart/items"))
}

func TestCart_CouponAndQuantity(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Price: 100})

	r := h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p1"})
	require.Equal(t, http.StatusCreated, r.Status, r.Message)

	r = h.do(http.MethodPost, "/api/cart/coupon", map[string]string{"code": "SAVE10"})
	require.Equal(t, http.StatusOK, r.Status, r.Message)
	assert.Equal(t, 90.0, decode[cartView](t, r).Total)

	r = h.do(http.MethodPost, "/api/cart/coupon", map[string]string{"code": ""})
	assert.Equal(t, http.StatusBadRequest, r.Status)

	r = h.do(http.MethodDelete, "/api/cart/coupon", nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, 100.0, decode[cartView](t, r).Total)

	r = h.do(http.MethodPut, "/api/cart/items/p1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, r.Status, "quantity is required")
}

func TestWishlist_GuestCannotModify(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud"})

	r := h.do(http.MethodGet, "/api/wishlist", nil)
	assert.Equal(t, http.StatusOK, r.Status)

	r = h.do(http.MethodPost, "/api/wishlist/p1", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Status)

	h.login()
	r = h.do(http.MethodPost, "/api/wishlist/p1", nil)
	require.Equal(t, http.StatusCreated, r.Status, r.Message)

	r = h.do(http.MethodGet, "/api/products/oud", nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.True(t, decode[pages.ProductView](t, r).InWishlist)
}

func TestCurrency_SelectAndFormat(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodGet, "/api/currency", nil)
	require.Equal(t, http.StatusOK, r.Status)
	var st struct {
		Selected  string         `json:"selectedCurrency"`
		Available []sdk.Currency `json:"availableCurrencies"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &st))
	assert.Equal(t, "SAR", st.Selected)
	assert.Len(t, st.Available, 2)

	r = h.do(http.MethodPut, "/api/currency", map[string]string{"code": "usd"})
	require.Equal(t, http.StatusOK, r.Status, r.Message)

	r = h.do(http.MethodPut, "/api/currency", map[string]string{"code": "EUR"})
	assert.Equal(t, http.StatusUnprocessableEntity, r.Status)

	r = h.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "USD", decode[cartView](t, r).Display.Currency)
}

func TestCheckout_RejectedTokenReopensLogin(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/api/checkout", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Status)
	assert.True(t, r.ReopenAuth)

	r = h.do(http.MethodGet, "/api/auth/state", nil)
	st := decode[authState](t, r)
	assert.True(t, st.Modal.Open)
	assert.False(t, st.IsAuthenticated)
}

func TestCheckout_StartAfterLogin(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.do(http.MethodPost, "/api/checkout", nil)
	require.Equal(t, http.StatusCreated, r.Status, r.Message)
	assert.Equal(t, "https://pay.example.com/123", decode[sdk.Checkout](t, r).RedirectURL)
}

func TestCheckout_ResultCelebratesOnce(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Price: 100})
	h.srv.Results["123"] = sdk.CheckoutResult{
		Checkout: &sdk.Checkout{ID: "123", Status: "paid"},
		Order:    &sdk.Order{ID: "o1"},
	}
	h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p1"})

	r := h.do(http.MethodGet, "/api/checkout/result", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, r.Status, "txid is required")

	r = h.do(http.MethodGet, "/api/checkout/result?txid=123", nil)
	require.Equal(t, http.StatusOK, r.Status, r.Message)
	view := decode[checkout.View](t, r)
	assert.Equal(t, checkout.StatusSuccess, view.Status)
	assert.True(t, view.Celebrate)

	r = h.do(http.MethodPost, "/api/checkout/result/retry", nil)
	require.Equal(t, http.StatusOK, r.Status)
	view = decode[checkout.View](t, r)
	assert.Equal(t, checkout.StatusSuccess, view.Status)
	assert.False(t, view.Celebrate)
	assert.Equal(t, 1, h.srv.Calls("DELETE /cart"))
}

func TestCheckout_ResultErrorStillRenders(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/api/checkout/result/retry", nil)
	assert.Equal(t, http.StatusNotFound, r.Status, "nothing to retry yet")

	r = h.do(http.MethodGet, "/api/checkout/result?txid=unknown", nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, checkout.StatusError, decode[checkout.View](t, r).Status)

	expired := h.now.Add(-time.Minute).Unix()
	r = h.do(http.MethodGet, "/api/checkout/result?txid=123&expires="+strconv.FormatInt(expired, 10), nil)
	require.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, checkout.StatusError, decode[checkout.View](t, r).Status)
}

func TestHomepage_AlwaysHasReviews(t *testing.T) {
	h := newHarness(t)
	h.srv.Components = []json.RawMessage{json.RawMessage(`{"id":1,"type":"banner","settings":{"image":"hero.png"}}`)}

	r := h.do(http.MethodGet, "/api/homepage", nil)
	require.Equal(t, http.StatusOK, r.Status, r.Message)
	var page struct {
		Blocks []struct {
			Type string `json:"type"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &page))
	require.Len(t, page.Blocks, 2)
	assert.Equal(t, "reviews", page.Blocks[1].Type)
}

func TestOrders_RequireLogin(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Status)

	h.login()
	r = h.do(http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusOK, r.Status)
}

func TestLogout_ResetsCart(t *testing.T) {
	h := newHarness(t)
	h.srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Price: 100})
	h.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p1"})
	h.login()

	r := h.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, r.Status, r.Message)
	assert.False(t, decode[authState](t, r).IsAuthenticated)

	r = h.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, r.Status)
	cart := decode[cartView](t, r)
	assert.Zero(t, cart.Count)
	assert.False(t, cart.HasToken)
}

func TestEvents_StreamsChangesUntilShutdown(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/api/cart", nil)
	require.NotEmpty(t, h.cookie)
	id, err := utils.ParseSessionToken("test-secret", h.cookie)
	require.NoError(t, err)
	sessionID := id.String()

	go func() {
		for h.hub.Subscribers(sessionID) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		h.hub.Publish(context.Background(), notify.Change{SessionID: sessionID, Store: "wishlist", Version: 7})
		h.stop()
	}()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: h.cookie})
	resp, err := h.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "event: ready\n")
	assert.Contains(t, body, `"session_id":"`+sessionID+`"`)
	assert.Contains(t, body, "event: change\n")
	assert.Contains(t, body, `"store":"wishlist"`)
	assert.Contains(t, body, `"version":7`)

	assert.Eventually(t, func() bool { return h.hub.Subscribers(sessionID) == 0 }, time.Second, 10*time.Millisecond)
}
