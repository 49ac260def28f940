// Package pages composes the view models of the catalog, course and order pages.
package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/homepage"
	"github.com/example/storefront/internal/sdk"
)

var (
	ErrOutOfStock        = errors.New("this product is out of stock")
	ErrInsufficientStock = errors.New("not enough stock for the requested quantity")
	ErrLoginRequired     = errors.New("please sign in to continue")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrNotReviewable     = errors.New("this order cannot be reviewed")
	ErrProductNotInOrder = errors.New("the product is not part of this order")
)

// Service reads shared catalog data with the server-side client, coalescing identical
// concurrent reads. Per-customer reads take the session's client.
type Service struct {
	server *sdk.Client
	group  singleflight.Group
}

func NewService(server *sdk.Client) *Service {
	return &Service{server: server}
}

// do runs fn once for concurrent callers of key. The shared load is detached from the
// first caller's cancellation so one client going away does not fail the others.
func do[T any](ctx context.Context, s *Service, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) { return fn(shared) })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *Service) Store(ctx context.Context) (*sdk.Store, error) {
	return do(ctx, s, "store", func(ctx context.Context) (*sdk.Store, error) {
		return s.server.Store.Get(ctx, true)
	})
}

// Homepage renders the dynamic homepage. dev attaches raw descriptors to placeholders.
func (s *Service) Homepage(ctx context.Context, dev bool) (*homepage.Page, error) {
	return do(ctx, s, "homepage", func(ctx context.Context) (*homepage.Page, error) {
		return homepage.Build(ctx, s.server.Components, homepage.SDKLoader{Client: s.server}, homepage.RenderOptions{Dev: dev})
	})
}

// Catalog is a page of products.
type Catalog struct {
	Products   []sdk.Product   `json:"products"`
	Pagination *sdk.Pagination `json:"pagination,omitempty"`
}

func (s *Service) Products(ctx context.Context, q sdk.ListQuery) (*Catalog, error) {
	key := fmt.Sprintf("products:%d:%d:%s:%s:%s", q.Page, q.PerPage, q.Search, q.Category, q.Sort)
	return do(ctx, s, key, func(ctx context.Context) (*Catalog, error) {
		products, pg, err := s.server.Products.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Catalog{Products: products, Pagination: pg}, nil
	})
}

func (s *Service) Categories(ctx context.Context) ([]sdk.Category, error) {
	return do(ctx, s, "categories", func(ctx context.Context) ([]sdk.Category, error) {
		return s.server.Categories.List(ctx)
	})
}

type CategoryView struct {
	Category *sdk.Category `json:"category"`
	Catalog
}

func (s *Service) Category(ctx context.Context, slug string, q sdk.ListQuery) (*CategoryView, error) {
	key := fmt.Sprintf("category:%s:%d:%d:%s", slug, q.Page, q.PerPage, q.Sort)
	return do(ctx, s, key, func(ctx context.Context) (*CategoryView, error) {
		cat, err := s.server.Categories.Get(ctx, slug, true)
		if err != nil {
			return nil, err
		}
		products, pg, err := s.server.Categories.Products(ctx, slug, q)
		if err != nil {
			return nil, err
		}
		return &CategoryView{Category: cat, Catalog: Catalog{Products: products, Pagination: pg}}, nil
	})
}

// ProductView is the product detail page.
type ProductView struct {
	Product     *sdk.Product `json:"product"`
	InStock     bool         `json:"in_stock"`
	MaxQuantity int          `json:"max_quantity,omitempty"`
	InWishlist  bool         `json:"in_wishlist"`
}

func (s *Service) Product(ctx context.Context, slug string) (*sdk.Product, error) {
	return do(ctx, s, "product:"+slug, func(ctx context.Context) (*sdk.Product, error) {
		return s.server.Products.Get(ctx, slug, true)
	})
}

// ProductPage loads a product and marks whether it is on the customer's wishlist.
func (s *Service) ProductPage(ctx context.Context, slug string, inWishlist func(sdk.ID) bool) (*ProductView, error) {
	p, err := s.Product(ctx, slug)
	if err != nil {
		return nil, err
	}
	view := &ProductView{Product: p, InStock: CheckStock(*p, 1) == nil}
	if p.Stock != nil {
		view.MaxQuantity = *p.Stock
	}
	if inWishlist != nil {
		view.InWishlist = inWishlist(p.ID)
	}
	return view, nil
}

// CheckStock is run by the page before a product is added to the cart.
func CheckStock(p sdk.Product, qty int) error {
	if qty <= 0 {
		qty = 1
	}
	// No stock figure means the product is not stock-tracked (courses, digital goods).
	if p.Stock == nil {
		return nil
	}
	switch {
	case *p.Stock <= 0:
		return ErrOutOfStock
	case *p.Stock < qty:
		return ErrInsufficientStock
	}
	return nil
}

type ReviewsView struct {
	Reviews    []sdk.Review    `json:"reviews"`
	Pagination *sdk.Pagination `json:"pagination,omitempty"`
}

func (s *Service) ProductReviews(ctx context.Context, productID sdk.ID, page int) (*ReviewsView, error) {
	return do(ctx, s, fmt.Sprintf("reviews:%s:%d", productID, page), func(ctx context.Context) (*ReviewsView, error) {
		reviews, pg, err := s.server.Reviews.List(ctx, productID, page)
		if err != nil {
			return nil, err
		}
		return &ReviewsView{Reviews: reviews, Pagination: pg}, nil
	})
}

// Course reads the playback view of a purchased course. It needs a signed-in customer.
func Course(ctx context.Context, client *sdk.Client, authenticated bool, productID string) (*sdk.Course, error) {
	if !authenticated {
		return nil, ErrLoginRequired
	}
	return client.Products.GetCourse(ctx, sdk.ID(productID))
}

type OrdersView struct {
	Orders     []sdk.Order     `json:"orders"`
	Pagination *sdk.Pagination `json:"pagination,omitempty"`
}

func Orders(ctx context.Context, client *sdk.Client, authenticated bool, page int) (*OrdersView, error) {
	if !authenticated {
		return nil, ErrLoginRequired
	}
	orders, pg, err := client.Orders.List(ctx, page)
	if err != nil {
		return nil, err
	}
	return &OrdersView{Orders: orders, Pagination: pg}, nil
}

// OrderView is the order detail page with the items that can still be reviewed.
type OrderView struct {
	Order      *sdk.Order `json:"order"`
	Reviewable []sdk.ID   `json:"reviewable"`
}

func Order(ctx context.Context, client *sdk.Client, authenticated bool, id string) (*OrderView, error) {
	if !authenticated {
		return nil, ErrLoginRequired
	}
	o, err := client.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &OrderView{Order: o, Reviewable: []sdk.ID{}}
	if o.CanReview {
		for _, it := range o.Items {
			if !it.Reviewed {
				view.Reviewable = append(view.Reviewable, it.ProductID)
			}
		}
	}
	return view, nil
}

type ReviewInput struct {
	ProductID sdk.ID `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// SubmitReview reviews one product of a delivered order.
func SubmitReview(ctx context.Context, client *sdk.Client, authenticated bool, orderID string, in ReviewInput) (*sdk.Review, error) {
	if !authenticated {
		return nil, ErrLoginRequired
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrInvalidRating
	}
	view, err := Order(ctx, client, authenticated, orderID)
	if err != nil {
		return nil, err
	}
	if !view.Order.CanReview {
		return nil, ErrNotReviewable
	}
	found := false
	for _, id := range view.Reviewable {
		if id == in.ProductID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrProductNotInOrder
	}
	return client.Reviews.Create(ctx, sdk.ReviewInput{
		ProductID: in.ProductID,
		OrderID:   view.Order.ID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	})
}
