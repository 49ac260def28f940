package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://api.storefront.example.com/v1"
	defaultTimeout = 15 * time.Second

	headerPublicKey = "X-Public-Key"
	headerSecretKey = "X-Secret-Key"
	// HeaderCartToken carries the guest cart identity in both directions.
	HeaderCartToken = "X-Cart-Token"
)

// Config captures the inputs needed to build a Client.
type Config struct {
	BaseURL    string
	PublicKey  string
	SecretKey  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the remote storefront API. It owns the customer auth token and the
// guest cart token; both are safe for concurrent use.
type Client struct {
	baseURL    string
	publicKey  string
	secretKey  string
	httpClient *http.Client

	tokenMu   sync.RWMutex
	authToken string
	cartToken string

	Auth       *AuthService
	Cart       *CartService
	Checkout   *CheckoutService
	Wishlist   *WishlistService
	Reviews    *ReviewService
	Products   *ProductService
	Categories *CategoryService
	Store      *StoreService
	Orders     *OrderService
	Components *ComponentService
}

// New constructs a Client with its service groups.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    baseURL,
		publicKey:  cfg.PublicKey,
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
	}
	c.Auth = &AuthService{c: c}
	c.Cart = &CartService{c: c}
	c.Checkout = &CheckoutService{c: c}
	c.Wishlist = &WishlistService{c: c}
	c.Reviews = &ReviewService{c: c}
	c.Products = &ProductService{c: c}
	c.Categories = &CategoryService{c: c}
	c.Store = &StoreService{c: c}
	c.Orders = &OrderService{c: c}
	c.Components = &ComponentService{c: c}
	return c
}

// Clone returns a client sharing configuration and transport but with empty credentials.
func (c *Client) Clone() *Client {
	return New(Config{
		BaseURL:    c.baseURL,
		PublicKey:  c.publicKey,
		SecretKey:  c.secretKey,
		HTTPClient: c.httpClient,
	})
}

// SetAuthToken replaces the customer session token. An empty token logs the client out.
func (c *Client) SetAuthToken(token string) {
	c.tokenMu.Lock()
	c.authToken = token
	c.tokenMu.Unlock()
}

// GetAuthToken returns the current customer session token.
func (c *Client) GetAuthToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.authToken
}

// SetCartToken replaces the guest cart token.
func (c *Client) SetCartToken(token string) {
	c.tokenMu.Lock()
	c.cartToken = token
	c.tokenMu.Unlock()
}

// GetCartToken returns the guest cart token.
func (c *Client) GetCartToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.cartToken
}

// RequestOpts captures inputs for a storefront API call.
type RequestOpts struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// ServerSide attaches the secret key; only used for server-rendered catalog reads.
	ServerSide bool
}

// Response bundles the decoded envelope and HTTP metadata.
type Response struct {
	Status     int
	Header     http.Header
	Data       json.RawMessage
	Message    string
	Pagination *Pagination
}

type envelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Pagination *Pagination     `json:"pagination"`
	Meta       *Pagination     `json:"meta"`
}

// Do performs a request and decodes the response payload into out when non-nil.
func (c *Client) Do(ctx context.Context, opts RequestOpts, out any) (*Response, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}
	path := strings.TrimLeft(opts.Path, "/")
	if path == "" {
		return nil, errors.New("request path is required")
	}

	u, err := url.Parse(c.baseURL + "/" + path)
	if err != nil {
		return nil, fmt.Errorf("parse storefront URL: %w", err)
	}
	if len(opts.Query) > 0 {
		u.RawQuery = opts.Query.Encode()
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publicKey != "" {
		req.Header.Set(headerPublicKey, c.publicKey)
	}
	if opts.ServerSide && c.secretKey != "" {
		req.Header.Set(headerSecretKey, c.secretKey)
	}
	if token := c.GetAuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if token := c.GetCartToken(); token != "" {
		req.Header.Set(HeaderCartToken, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s %s: %w", opts.Method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	envOK := len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &env) == nil

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: raw}
		if envOK {
			apiErr.Message = firstNonEmpty(env.Message, env.Error)
		}
		return nil, apiErr
	}

	result := &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
	}
	if envOK {
		result.Message = env.Message
		result.Pagination = env.Pagination
		if result.Pagination == nil {
			result.Pagination = env.Meta
		}
		if env.Success != nil && !*env.Success {
			return nil, &APIError{Status: resp.StatusCode, Message: firstNonEmpty(env.Message, env.Error), Body: raw}
		}
	}

	payload := json.RawMessage(raw)
	if envOK && len(env.Data) > 0 {
		payload = env.Data
	}
	result.Data = payload

	if out != nil && len(bytes.TrimSpace(payload)) > 0 && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	}

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
