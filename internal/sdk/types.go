package sdk

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ID accepts both numeric and string identifiers from the API.
type ID string

// UnmarshalJSON decodes a JSON number or string into an ID.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Int64 returns the numeric form of the ID when it has one.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

type Customer struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Avatar   string `json:"avatar,omitempty"`
}

type Currency struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

type Store struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Logo        string     `json:"logo"`
	Favicon     string     `json:"favicon"`
	Currency    string     `json:"currency"`
	Currencies  []Currency `json:"currencies"`
	Domain      string     `json:"domain"`
}

type Category struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	Image         string `json:"image"`
	ProductsCount int    `json:"products_count"`
}

type ProductField struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type SubscriptionPlan struct {
	ID       ID      `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Interval string  `json:"interval"`
}

type Product struct {
	ID                ID                 `json:"id"`
	Name              string             `json:"name"`
	Slug              string             `json:"slug"`
	Type              string             `json:"type"`
	Description       string             `json:"description"`
	Price             float64            `json:"price"`
	SalePrice         *float64           `json:"sale_price,omitempty"`
	Currency          string             `json:"currency"`
	Image             string             `json:"image"`
	Images            []string           `json:"images,omitempty"`
	Stock             *int               `json:"stock,omitempty"`
	IsAvailable       bool               `json:"is_available"`
	Rating            float64            `json:"rating"`
	ReviewsCount      int                `json:"reviews_count"`
	Category          *Category          `json:"category,omitempty"`
	Fields            []ProductField     `json:"custom_fields,omitempty"`
	SubscriptionPlans []SubscriptionPlan `json:"subscription_plans,omitempty"`
}

// EffectivePrice returns the sale price when present.
func (p Product) EffectivePrice() float64 {
	if p.SalePrice != nil && *p.SalePrice > 0 {
		return *p.SalePrice
	}
	return p.Price
}

type Coupon struct {
	Code           string  `json:"code"`
	Type           string  `json:"type"`
	Value          float64 `json:"value"`
	DiscountAmount float64 `json:"discount_amount"`
}

type CartItem struct {
	ID                 ID             `json:"id"`
	ProductID          ID             `json:"product_id"`
	Product            *Product       `json:"product,omitempty"`
	Quantity           int            `json:"quantity"`
	Price              float64        `json:"price"`
	Total              float64        `json:"total"`
	Fields             map[string]any `json:"fields,omitempty"`
	SubscriptionPlanID ID             `json:"subscription_plan_id,omitempty"`
	Notice             string         `json:"notice,omitempty"`
}

type Cart struct {
	Items          []CartItem `json:"items"`
	Count          int        `json:"count"`
	Subtotal       float64    `json:"subtotal"`
	Total          float64    `json:"total"`
	DiscountAmount float64    `json:"discount_amount"`
	Coupon         *Coupon    `json:"coupon,omitempty"`
	CartToken      string     `json:"cart_token,omitempty"`
}

// Auth response types returned by the verify step.
const (
	AuthTypeAuthenticated        = "authenticated"
	AuthTypeNew                  = "new"
	AuthTypeRequiresRegistration = "requires_registration"
)

type PhoneAuthResponse struct {
	SessionToken string `json:"session_token"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

type AuthResponse struct {
	Type                 string    `json:"type"`
	Token                string    `json:"token"`
	Customer             *Customer `json:"customer,omitempty"`
	SessionToken         string    `json:"session_token,omitempty"`
	CartToken            string    `json:"cart_token,omitempty"`
	RequiresRegistration bool      `json:"requires_registration,omitempty"`
}

// NeedsRegistration reports whether the verify step asks for the registration form.
func (r AuthResponse) NeedsRegistration() bool {
	return r.Type == AuthTypeNew || r.Type == AuthTypeRequiresRegistration || r.RequiresRegistration
}

type OrderItem struct {
	ID        ID       `json:"id"`
	ProductID ID       `json:"product_id"`
	Name      string   `json:"name"`
	Image     string   `json:"image"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
	Total     float64  `json:"total"`
	Product   *Product `json:"product,omitempty"`
	Reviewed  bool     `json:"reviewed"`
}

type Order struct {
	ID            ID          `json:"id"`
	Number        string      `json:"number"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Subtotal      float64     `json:"subtotal"`
	Discount      float64     `json:"discount"`
	Total         float64     `json:"total"`
	Currency      string      `json:"currency"`
	Items         []OrderItem `json:"items"`
	CanReview     bool        `json:"can_review"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Checkout struct {
	ID          ID        `json:"id"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Currency    string    `json:"currency"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// CheckoutResult carries the order once payment has settled; Order is nil while pending.
type CheckoutResult struct {
	Checkout *Checkout `json:"checkout,omitempty"`
	Order    *Order    `json:"order,omitempty"`
}

type Review struct {
	ID           ID        `json:"id"`
	ProductID    ID        `json:"product_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
}

type Lesson struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	VideoURL  string `json:"video_url,omitempty"`
	Content   string `json:"content,omitempty"`
	Duration  int    `json:"duration"`
	IsPreview bool   `json:"is_preview"`
	Completed bool   `json:"completed"`
}

type CourseSection struct {
	ID      ID       `json:"id"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

type Course struct {
	ID       ID              `json:"id"`
	Title    string          `json:"title"`
	Sections []CourseSection `json:"sections"`
	Progress float64         `json:"progress"`
}

// Component is a backend-configured homepage block. Raw keeps the full descriptor.
type Component struct {
	ID       ID              `json:"id"`
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Order    int             `json:"order"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw descriptor alongside the decoded header fields.
func (c *Component) UnmarshalJSON(b []byte) error {
	type plain Component
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Component(p)
	c.Raw = append(json.RawMessage(nil), b...)
	return nil
}
