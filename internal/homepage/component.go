// Package homepage turns the backend-configured component list into homepage blocks.
package homepage

import (
	"encoding/json"
	"log"
	"sort"
	"strings"

	"github.com/example/storefront/internal/sdk"
)

// Component tags as sent by the backend.
const (
	TypeBanner      = "banner"
	TypeReviews     = "reviews"
	TypeProductList = "product_list"
	TypeFeatures    = "features"
	TypeCustom      = "custom"
)

const (
	defaultReviewsTitle = "Customer Reviews"
	defaultReviewsLimit = 6
	defaultProductLimit = 8
)

// Component is one homepage block. The set of implementations is closed: Banner, Reviews,
// ProductList, Features and Custom.
type Component interface {
	Meta() Header
	component()
}

type Header struct {
	ID    sdk.ID `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Order int    `json:"order"`
}

func (h Header) Meta() Header { return h }

type Banner struct {
	Header
	Image       string `json:"image"`
	MobileImage string `json:"mobile_image,omitempty"`
	Heading     string `json:"heading,omitempty"`
	Subheading  string `json:"subheading,omitempty"`
	Link        string `json:"link,omitempty"`
	ButtonText  string `json:"button_text,omitempty"`
}

type Reviews struct {
	Header
	Limit int `json:"limit"`
}

type ProductList struct {
	Header
	Category   string   `json:"category,omitempty"`
	ProductIDs []sdk.ID `json:"product_ids,omitempty"`
	Sort       string   `json:"sort,omitempty"`
	Limit      int      `json:"limit"`
}

type Feature struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Features struct {
	Header
	Items []Feature `json:"items"`
}

// Custom is any block the storefront has no renderer for, including unknown tags.
type Custom struct {
	Header
	Raw json.RawMessage `json:"-"`
}

func (Banner) component()      {}
func (Reviews) component()     {}
func (ProductList) component() {}
func (Features) component()    {}
func (Custom) component()      {}

// Decode converts descriptors into components ordered by their order field. Known tags
// with unreadable settings fall back to Custom.
func Decode(descriptors []sdk.Component) []Component {
	sorted := append([]sdk.Component(nil), descriptors...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	out := make([]Component, 0, len(sorted))
	for _, d := range sorted {
		c, err := decodeOne(d)
		if err != nil {
			log.Printf("[Homepage] component %s (%s) has bad settings: %v", d.ID, d.Type, err)
			c = custom(d)
		}
		out = append(out, c)
	}
	return out
}

func decodeOne(d sdk.Component) (Component, error) {
	h := Header{ID: d.ID, Type: normalizeType(d.Type), Title: d.Title, Order: d.Order}

	switch h.Type {
	case TypeBanner:
		c := Banner{Header: h}
		if err := settings(d, &c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeReviews:
		c := Reviews{Header: h}
		if err := settings(d, &c); err != nil {
			return nil, err
		}
		if c.Limit <= 0 {
			c.Limit = defaultReviewsLimit
		}
		return c, nil
	case TypeProductList:
		c := ProductList{Header: h}
		if err := settings(d, &c); err != nil {
			return nil, err
		}
		if c.Limit <= 0 {
			c.Limit = defaultProductLimit
		}
		return c, nil
	case TypeFeatures:
		c := Features{Header: h}
		if err := settings(d, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return custom(d), nil
	}
}

func custom(d sdk.Component) Custom {
	raw := d.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(d)
	}
	return Custom{Header: Header{ID: d.ID, Type: d.Type, Title: d.Title, Order: d.Order}, Raw: raw}
}

// settings decodes the settings object into the typed fields of v. The descriptor header
// wins, except that a title given only in settings is kept.
func settings(d sdk.Component, v Component) error {
	if len(d.Settings) == 0 || string(d.Settings) == "null" {
		return nil
	}
	h := v.Meta()
	if err := json.Unmarshal(d.Settings, v); err != nil {
		return err
	}
	if h.Title == "" {
		h.Title = v.Meta().Title
	}
	restore(v, h)
	return nil
}

func restore(v Component, h Header) {
	switch c := v.(type) {
	case *Banner:
		c.Header = h
	case *Reviews:
		c.Header = h
	case *ProductList:
		c.Header = h
	case *Features:
		c.Header = h
	}
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "product-list", "productlist", "products":
		return TypeProductList
	case "review":
		return TypeReviews
	case "hero":
		return TypeBanner
	}
	return t
}

// EnsureReviews guarantees exactly one Reviews component: one is appended when missing
// and later duplicates are dropped.
func EnsureReviews(list []Component) []Component {
	out := make([]Component, 0, len(list)+1)
	seen := false
	for _, c := range list {
		if _, ok := c.(Reviews); ok {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, c)
	}
	if !seen {
		out = append(out, Reviews{
			Header: Header{ID: "reviews", Type: TypeReviews, Title: defaultReviewsTitle, Order: len(out)},
			Limit:  defaultReviewsLimit,
		})
	}
	return out
}
