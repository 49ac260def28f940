// Package sdktest runs an in-memory storefront API for tests.
package sdktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/example/storefront/internal/sdk"
)

// Auth fixtures.
const (
	SessionToken = "sess-1"
	ValidCode    = "1234"
	AuthToken    = "auth-token"
)

// Server fakes the remote storefront API. Fields may be changed between calls while
// holding no locks; use the setters when a test runs handlers concurrently.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	carts    map[string]*sdk.Cart
	nextCart int

	// Products served by the catalog endpoints, keyed by id and slug.
	Products map[string]sdk.Product
	// VerifyType is returned by a successful OTP verification.
	VerifyType string
	// AuthCartToken is returned as cart_token by verify and register.
	AuthCartToken string
	// Components returned by the homepage endpoint.
	Components []json.RawMessage
	// Results maps checkout ids to their settlement result.
	Results map[string]sdk.CheckoutResult
	// CheckoutStatus forces the status code of POST /checkout when non-zero.
	CheckoutStatus int
	Store          sdk.Store
	Reviews        []sdk.Review
	Orders         map[string]sdk.Order
	Wishlist       []sdk.Product
	Course         sdk.Course
}

// NewServer starts a fake API and closes it with the test.
func NewServer(t testing.TB) *Server {
	s := &Server{
		calls:      map[string]int{},
		carts:      map[string]*sdk.Cart{},
		Products:   map[string]sdk.Product{},
		VerifyType: sdk.AuthTypeAuthenticated,
		Results:    map[string]sdk.CheckoutResult{},
		Orders:     map[string]sdk.Order{},
		Store: sdk.Store{ID: "1", Name: "Demo Store", Currency: "SAR", Currencies: []sdk.Currency{
			{Code: "SAR", Name: "Saudi Riyal", Symbol: "SAR", Rate: 1},
			{Code: "USD", Name: "US Dollar", Symbol: "$", Rate: 0.27},
		}},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Server.Close)
	return s
}

// Client returns an SDK client pointed at the fake.
func (s *Server) Client() *sdk.Client {
	return sdk.New(sdk.Config{BaseURL: s.URL, PublicKey: "pk_test", SecretKey: "sk_test"})
}

// Calls returns how often "METHOD /path-pattern" was hit.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// SeedCart installs a server-side cart for token.
func (s *Server) SeedCart(token string, cart sdk.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cart
	c.CartToken = token
	s.carts[token] = &c
}

// Cart returns the server-side cart for token.
func (s *Server) Cart(token string) (sdk.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[token]
	if !ok {
		return sdk.Cart{}, false
	}
	return *c, true
}

// AddProduct registers a product under its id and slug.
func (s *Server) AddProduct(p sdk.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Products[p.ID.String()] = p
	if p.Slug != "" {
		s.Products[p.Slug] = p
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.calls[pattern]++
			s.mu.Unlock()
			fn(w, r)
		})
	}

	handle("POST /auth/phone", s.startPhone)
	handle("POST /auth/verify", s.verify)
	handle("POST /auth/resend", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sdk.PhoneAuthResponse{SessionToken: SessionToken, ExpiresIn: 300})
	})
	handle("POST /auth/register", s.register)
	handle("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, nil)
	})
	handle("GET /auth/profile", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, sdk.Customer{ID: "c1", Name: "Sara", Phone: "+966501234567"})
	}))
	handle("PUT /auth/profile", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		var in sdk.ProfileUpdate
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeData(w, http.StatusOK, sdk.Customer{ID: "c1", Name: in.Name, LastName: in.LastName, Email: in.Email})
	}))

	handle("GET /cart", s.cartOp(func(c *sdk.Cart, r *http.Request) error { return nil }))
	handle("DELETE /cart", s.cartOp(func(c *sdk.Cart, r *http.Request) error {
		c.Items = nil
		c.Coupon = nil
		return nil
	}))
	handle("POST /cart/items", s.cartOp(s.addItem))
	handle("PUT /cart/items/{id}", s.cartOp(func(c *sdk.Cart, r *http.Request) error {
		var in struct {
			Quantity int `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		for i := range c.Items {
			if c.Items[i].ID.String() == r.PathValue("id") {
				c.Items[i].Quantity = in.Quantity
				return nil
			}
		}
		return errNotFound
	}))
	handle("DELETE /cart/items/{id}", s.cartOp(func(c *sdk.Cart, r *http.Request) error {
		kept := c.Items[:0]
		for _, it := range c.Items {
			if it.ID.String() != r.PathValue("id") {
				kept = append(kept, it)
			}
		}
		c.Items = kept
		return nil
	}))
	handle("POST /cart/coupon", s.cartOp(func(c *sdk.Cart, r *http.Request) error {
		var in struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Code != "SAVE10" {
			return errInvalidCoupon
		}
		c.Coupon = &sdk.Coupon{Code: in.Code, Type: "fixed", Value: 10}
		return nil
	}))
	handle("DELETE /cart/coupon", s.cartOp(func(c *sdk.Cart, r *http.Request) error {
		c.Coupon = nil
		return nil
	}))
	handle("GET /cart/count", func(w http.ResponseWriter, r *http.Request) {
		c, _ := s.Cart(r.Header.Get(sdk.HeaderCartToken))
		writeData(w, http.StatusOK, map[string]int{"count": c.Count})
	})

	handle("POST /checkout", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if s.CheckoutStatus != 0 {
			writeError(w, s.CheckoutStatus, "checkout failed")
			return
		}
		writeData(w, http.StatusCreated, sdk.Checkout{ID: "123", Status: "pending", RedirectURL: "https://pay.example.com/123"})
	}))
	handle("GET /checkout/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		res, ok := s.Results[r.PathValue("id")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "checkout not found")
			return
		}
		writeData(w, http.StatusOK, res)
	})

	handle("GET /wishlist", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		items := append([]sdk.Product{}, s.Wishlist...)
		s.mu.Unlock()
		writeData(w, http.StatusOK, items)
	}))
	handle("POST /wishlist", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			ProductID sdk.ID `json:"product_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.mu.Lock()
		p, ok := s.Products[in.ProductID.String()]
		if ok {
			s.Wishlist = append(s.Wishlist, p)
		}
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeData(w, http.StatusCreated, nil)
	}))
	handle("DELETE /wishlist/{id}", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		kept := s.Wishlist[:0]
		for _, p := range s.Wishlist {
			if p.ID.String() != r.PathValue("id") {
				kept = append(kept, p)
			}
		}
		s.Wishlist = kept
		s.mu.Unlock()
		writeData(w, http.StatusOK, nil)
	}))

	handle("GET /store", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, s.Store)
	})
	handle("GET /components", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		comps := append([]json.RawMessage{}, s.Components...)
		s.mu.Unlock()
		writeData(w, http.StatusOK, comps)
	})
	handle("GET /reviews", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, s.Reviews)
	})
	handle("POST /reviews", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		var in sdk.ReviewInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		review := sdk.Review{ID: "r-new", ProductID: in.ProductID, Rating: in.Rating, Comment: in.Comment}
		s.mu.Lock()
		s.Reviews = append(s.Reviews, review)
		s.mu.Unlock()
		writeData(w, http.StatusCreated, review)
	}))
	handle("GET /products", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, s.productList(r.URL.Query().Get("category")))
	})
	handle("GET /products/{slug}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		p, ok := s.Products[r.PathValue("slug")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeData(w, http.StatusOK, p)
	})
	handle("GET /products/{id}/reviews", func(w http.ResponseWriter, r *http.Request) {
		var out []sdk.Review
		s.mu.Lock()
		for _, rv := range s.Reviews {
			if rv.ProductID.String() == r.PathValue("id") {
				out = append(out, rv)
			}
		}
		s.mu.Unlock()
		writeList(w, out)
	})
	handle("GET /products/{id}/course", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, s.Course)
	}))
	handle("GET /categories", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, []sdk.Category{{ID: "10", Name: "Perfumes", Slug: "perfumes"}})
	})
	handle("GET /categories/{slug}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("slug") != "perfumes" {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		writeData(w, http.StatusOK, sdk.Category{ID: "10", Name: "Perfumes", Slug: "perfumes"})
	})
	handle("GET /categories/{slug}/products", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, s.productList(r.PathValue("slug")))
	})
	handle("GET /orders", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		out := make([]sdk.Order, 0, len(s.Orders))
		for _, o := range s.Orders {
			out = append(out, o)
		}
		s.mu.Unlock()
		writeList(w, out)
	}))
	handle("GET /orders/{id}", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		o, ok := s.Orders[r.PathValue("id")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeData(w, http.StatusOK, o)
	}))
	return mux
}

func (s *Server) startPhone(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Phone string `json:"phone"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Phone == "" {
		writeError(w, http.StatusUnprocessableEntity, "phone is required")
		return
	}
	writeData(w, http.StatusOK, sdk.PhoneAuthResponse{SessionToken: SessionToken, ExpiresIn: 300})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionToken string `json:"session_token"`
		Code         string `json:"code"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Code != ValidCode {
		writeError(w, http.StatusUnprocessableEntity, "invalid verification code")
		return
	}
	if s.VerifyType != sdk.AuthTypeAuthenticated {
		writeData(w, http.StatusOK, sdk.AuthResponse{Type: s.VerifyType, SessionToken: SessionToken + "-refreshed"})
		return
	}
	writeData(w, http.StatusOK, sdk.AuthResponse{
		Type:      sdk.AuthTypeAuthenticated,
		Token:     AuthToken,
		Customer:  &sdk.Customer{ID: "c1", Name: "Sara", Phone: "+966501234567"},
		CartToken: s.AuthCartToken,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in sdk.RegistrationInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.SessionToken == "" || in.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	writeData(w, http.StatusCreated, sdk.AuthResponse{
		Type:      sdk.AuthTypeAuthenticated,
		Token:     AuthToken,
		Customer:  &sdk.Customer{ID: "c2", Name: in.Name, LastName: in.LastName, Email: in.Email},
		CartToken: s.AuthCartToken,
	})
}

var (
	errNotFound      = fmt.Errorf("item not found")
	errInvalidCoupon = fmt.Errorf("invalid coupon")
)

func (s *Server) addItem(c *sdk.Cart, r *http.Request) error {
	var in sdk.AddItemInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	p, ok := s.Products[in.ProductID.String()]
	s.mu.Unlock()
	if !ok {
		return errNotFound
	}
	for i := range c.Items {
		if c.Items[i].ProductID == in.ProductID {
			c.Items[i].Quantity += in.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, sdk.CartItem{
		ID:        sdk.ID("item-" + strconv.Itoa(len(c.Items)+1)),
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Price:     p.EffectivePrice(),
	})
	return nil
}

// cartOp resolves (or creates) the cart for the request's token, applies fn and answers
// with the recomputed cart.
func (s *Server) cartOp(fn func(*sdk.Cart, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := r.Header.Get(sdk.HeaderCartToken)
		cart, ok := s.carts[token]
		if !ok {
			s.nextCart++
			token = "guest-" + strconv.Itoa(s.nextCart)
			cart = &sdk.Cart{CartToken: token}
			s.carts[token] = cart
		}
		s.mu.Unlock()

		if err := fn(cart, r); err != nil {
			status := http.StatusUnprocessableEntity
			if err == errNotFound {
				status = http.StatusNotFound
			}
			writeError(w, status, err.Error())
			return
		}

		s.mu.Lock()
		recompute(cart)
		out := *cart
		out.Items = append([]sdk.CartItem(nil), cart.Items...)
		s.mu.Unlock()

		w.Header().Set(sdk.HeaderCartToken, token)
		writeData(w, http.StatusOK, out)
	}
}

func recompute(c *sdk.Cart) {
	c.Count, c.Subtotal = 0, 0
	for i := range c.Items {
		c.Items[i].Total = c.Items[i].Price * float64(c.Items[i].Quantity)
		c.Count += c.Items[i].Quantity
		c.Subtotal += c.Items[i].Total
	}
	c.DiscountAmount = 0
	if c.Coupon != nil {
		c.DiscountAmount = c.Coupon.Value
		c.Coupon.DiscountAmount = c.Coupon.Value
	}
	c.Total = c.Subtotal - c.DiscountAmount
}

func (s *Server) productList(category string) []sdk.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[sdk.ID]bool{}
	out := []sdk.Product{}
	for _, p := range s.Products {
		if seen[p.ID] {
			continue
		}
		if category != "" && (p.Category == nil || p.Category.Slug != category) {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != AuthToken {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next(w, r)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeList(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"data":       data,
		"pagination": sdk.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 20},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
