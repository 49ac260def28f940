package sdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// AuthService covers phone/OTP authentication and the customer profile.
type AuthService struct{ c *Client }

// StartPhoneAuth sends an OTP to phone and returns the session token the code is verified against.
func (s *AuthService) StartPhoneAuth(ctx context.Context, phone string) (*PhoneAuthResponse, error) {
	var out PhoneAuthResponse
	_, err := s.c.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "auth/phone",
		Body:   map[string]string{"phone": phone},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP checks the code. New customers get a response whose NeedsRegistration is true.
func (s *AuthService) VerifyOTP(ctx context.Context, sessionToken, code string) (*AuthResponse, error) {
	var out AuthResponse
	_, err := s.c.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "auth/verify",
		Body:   map[string]string{"session_token": sessionToken, "code": code},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendOTP sends a fresh code for an ongoing phone sign-in.
func (s *AuthService) ResendOTP(ctx context.Context, sessionToken string) (*PhoneAuthResponse, error) {
	var out PhoneAuthResponse
	_, err := s.c.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "auth/resend",
		Body:   map[string]string{"session_token": sessionToken},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RegistrationInput holds the fields of the registration step.
type RegistrationInput struct {
	SessionToken string `json:"session_token"`
	Name         string `json:"name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
}

// CompleteRegistration finishes sign-up for a phone that has no customer yet.
func (s *AuthService) CompleteRegistration(ctx context.Context, in RegistrationInput) (*AuthResponse, error) {
	var out AuthResponse
	_, err := s.c.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "auth/register",
		Body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfile returns the signed-in customer.
func (s *AuthService) GetProfile(ctx context.Context) (*Customer, error) {
	var out Customer
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "auth/profile"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProfileUpdate holds the editable profile fields; empty values are left untouched.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	LastName string `json:"last_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, in ProfileUpdate) (*Customer, error) {
	var out Customer
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodPut, Path: "auth/profile", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the access token on the backend.
func (s *AuthService) Logout(ctx context.Context) error {
	_, err := s.c.Do(ctx, RequestOpts{Method: http.MethodPost, Path: "auth/logout"}, nil)
	return err
}

// CartService manages the guest or customer cart.
type CartService struct{ c *Client }

// AddItemInput describes one add-to-cart request.
type AddItemInput struct {
	ProductID          ID             `json:"product_id"`
	Quantity           int            `json:"quantity"`
	Fields             map[string]any `json:"fields,omitempty"`
	SubscriptionPlanID ID             `json:"subscription_plan_id,omitempty"`
	Notice             string         `json:"notice,omitempty"`
}

// Get returns the cart of the current cart token.
func (s *CartService) Get(ctx context.Context) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{Method: http.MethodGet, Path: "cart"})
}

func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{Method: http.MethodPost, Path: "cart/items", Body: in})
}

// UpdateItem sets the quantity of a line.
func (s *CartService) UpdateItem(ctx context.Context, itemID ID, quantity int) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{
		Method: http.MethodPut,
		Path:   "cart/items/" + url.PathEscape(itemID.String()),
		Body:   map[string]int{"quantity": quantity},
	})
}

func (s *CartService) RemoveItem(ctx context.Context, itemID ID) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{Method: http.MethodDelete, Path: "cart/items/" + url.PathEscape(itemID.String())})
}

func (s *CartService) Clear(ctx context.Context) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{Method: http.MethodDelete, Path: "cart"})
}

func (s *CartService) ApplyCoupon(ctx context.Context, code string) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{Method: http.MethodPost, Path: "cart/coupon", Body: map[string]string{"code": code}})
}

func (s *CartService) RemoveCoupon(ctx context.Context) (*Cart, error) {
	return s.cartCall(ctx, RequestOpts{Method: http.MethodDelete, Path: "cart/coupon"})
}

// GetCount returns the number of units in the cart.
func (s *CartService) GetCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "cart/count"}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// cartCall decodes a cart payload; a token only sent as a header is copied onto the cart.
func (s *CartService) cartCall(ctx context.Context, opts RequestOpts) (*Cart, error) {
	var out Cart
	resp, err := s.c.Do(ctx, opts, &out)
	if err != nil {
		return nil, err
	}
	if out.CartToken == "" {
		out.CartToken = resp.Header.Get(HeaderCartToken)
	}
	return &out, nil
}

// CheckoutService creates checkouts and reads their settlement result.
type CheckoutService struct{ c *Client }

// Create starts a checkout for the current cart.
func (s *CheckoutService) Create(ctx context.Context) (*Checkout, error) {
	var out Checkout
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodPost, Path: "checkout"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult reads the settlement of a checkout. It may still be pending.
func (s *CheckoutService) GetResult(ctx context.Context, txid string) (*CheckoutResult, error) {
	var out CheckoutResult
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "checkout/" + url.PathEscape(txid) + "/result"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WishlistService manages saved products.
type WishlistService struct{ c *Client }

// Get lists the saved products of the signed-in customer.
func (s *WishlistService) Get(ctx context.Context) ([]Product, error) {
	var out []Product
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "wishlist"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *WishlistService) Add(ctx context.Context, productID ID) error {
	_, err := s.c.Do(ctx, RequestOpts{Method: http.MethodPost, Path: "wishlist", Body: map[string]ID{"product_id": productID}}, nil)
	return err
}

func (s *WishlistService) Remove(ctx context.Context, productID ID) error {
	_, err := s.c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: "wishlist/" + url.PathEscape(productID.String())}, nil)
	return err
}

// ReviewService reads and writes product reviews.
type ReviewService struct{ c *Client }

// List returns one page of reviews of a product.
func (s *ReviewService) List(ctx context.Context, productID ID, page int) ([]Review, *Pagination, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	var out []Review
	resp, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "products/" + url.PathEscape(productID.String()) + "/reviews", Query: q}, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, resp.Pagination, nil
}

// ListStore returns store-wide reviews, newest first.
func (s *ReviewService) ListStore(ctx context.Context, limit int) ([]Review, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []Review
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "reviews", Query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReviewInput is a new review, optionally tied to the order it was bought in.
type ReviewInput struct {
	ProductID ID     `json:"product_id"`
	OrderID   ID     `json:"order_id,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (s *ReviewService) Create(ctx context.Context, in ReviewInput) (*Review, error) {
	var out Review
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodPost, Path: "reviews", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListQuery filters catalog listings.
type ListQuery struct {
	Page     int
	PerPage  int
	Search   string
	Category string
	Sort     string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// ProductService reads the product catalog.
type ProductService struct{ c *Client }

func (s *ProductService) List(ctx context.Context, q ListQuery) ([]Product, *Pagination, error) {
	var out []Product
	resp, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "products", Query: q.values()}, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, resp.Pagination, nil
}

// Get loads a product by slug or id. serverSide attaches the secret key.
func (s *ProductService) Get(ctx context.Context, slugOrID string, serverSide bool) (*Product, error) {
	var out Product
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "products/" + url.PathEscape(slugOrID), ServerSide: serverSide}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCourse loads the playback content of a purchased course.
func (s *ProductService) GetCourse(ctx context.Context, productID ID) (*Course, error) {
	var out Course
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "products/" + url.PathEscape(productID.String()) + "/course"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CategoryService reads catalog categories.
type CategoryService struct{ c *Client }

func (s *CategoryService) List(ctx context.Context) ([]Category, error) {
	var out []Category
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "categories"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads a category by slug.
func (s *CategoryService) Get(ctx context.Context, slug string, serverSide bool) (*Category, error) {
	var out Category
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "categories/" + url.PathEscape(slug), ServerSide: serverSide}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CategoryService) Products(ctx context.Context, slug string, q ListQuery) ([]Product, *Pagination, error) {
	var out []Product
	resp, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "categories/" + url.PathEscape(slug) + "/products", Query: q.values()}, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, resp.Pagination, nil
}

// StoreService reads the tenant store profile.
type StoreService struct{ c *Client }

// Get loads the store profile. serverSide attaches the secret key.
func (s *StoreService) Get(ctx context.Context, serverSide bool) (*Store, error) {
	var out Store
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "store", ServerSide: serverSide}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderService reads the customer's orders.
type OrderService struct{ c *Client }

func (s *OrderService) List(ctx context.Context, page int) ([]Order, *Pagination, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	var out []Order
	resp, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "orders", Query: q}, &out)
	if err != nil {
		return nil, nil, err
	}
	return out, resp.Pagination, nil
}

// Get loads one order of the signed-in customer.
func (s *OrderService) Get(ctx context.Context, id string) (*Order, error) {
	var out Order
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "orders/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComponentService lists the homepage components in display order.
type ComponentService struct{ c *Client }

// GetAll returns every homepage component.
func (s *ComponentService) GetAll(ctx context.Context) ([]Component, error) {
	var out []Component
	if _, err := s.c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "components"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
