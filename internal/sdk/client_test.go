package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendsCredentialHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"items":[],"count":0,"total":0}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, PublicKey: "pk_test", SecretKey: "sk_test"})
	c.SetAuthToken("auth-1")
	c.SetCartToken("guest-abc")

	_, err := c.Cart.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "pk_test", got.Get("X-Public-Key"))
	assert.Equal(t, "Bearer auth-1", got.Get("Authorization"))
	assert.Equal(t, "guest-abc", got.Get(HeaderCartToken))
	assert.Empty(t, got.Get("X-Secret-Key"), "secret key is only sent on server-side reads")
}

func TestClient_ServerSideReadsCarrySecretKey(t *testing.T) {
	var secret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Secret-Key")
		_, _ = w.Write([]byte(`{"data":{"id":7,"name":"Demo","currencies":[{"code":"USD","rate":0.27}]}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, PublicKey: "pk", SecretKey: "sk"})
	store, err := c.Store.Get(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, "sk", secret)
	assert.Equal(t, ID("7"), store.ID)
	require.Len(t, store.Currencies, 1)
	assert.Equal(t, 0.27, store.Currencies[0].Rate)
}

func TestClient_CartTokenFromHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderCartToken, "guest-from-header")
		_, _ = w.Write([]byte(`{"data":{"items":[{"id":1,"product_id":"p1","quantity":2}],"count":2}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	cart, err := c.Cart.AddItem(context.Background(), AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, "guest-from-header", cart.CartToken)
	assert.Empty(t, c.GetCartToken(), "client token is owned by the caller")
	require.Len(t, cart.Items, 1)
	assert.Equal(t, ID("1"), cart.Items[0].ID)
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		unauthorized bool
		message      string
	}{
		{name: "401 with message", status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`, unauthorized: true, message: "Unauthenticated."},
		{name: "422 with error field", status: http.StatusUnprocessableEntity, body: `{"error":"invalid coupon"}`, message: "invalid coupon"},
		{name: "500 without body", status: http.StatusInternalServerError, body: ``, message: "fallback"},
		{name: "200 with success false", status: http.StatusOK, body: `{"success":false,"message":"out of stock"}`, message: "out of stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(Config{BaseURL: srv.URL})
			_, err := c.Checkout.Create(context.Background())
			require.Error(t, err)

			assert.Equal(t, tt.unauthorized, IsUnauthorized(err))
			assert.Equal(t, tt.message, Message(err, "fallback"))
		})
	}
}

func TestComponent_KeepsRawDescriptor(t *testing.T) {
	var comps []Component
	payload := `[{"id":1,"type":"banner","order":1,"settings":{"image":"a.png"}},{"id":"x","type":"mystery","extra":true}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &comps))

	require.Len(t, comps, 2)
	assert.Equal(t, "banner", comps[0].Type)
	assert.JSONEq(t, `{"image":"a.png"}`, string(comps[0].Settings))
	assert.Contains(t, string(comps[1].Raw), `"extra":true`)
}
