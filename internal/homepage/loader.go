package homepage

import (
	"context"
	"log"

	"github.com/example/storefront/internal/sdk"
)

// SDKLoader reads block data through the storefront SDK.
type SDKLoader struct {
	Client *sdk.Client
}

func (l SDKLoader) StoreReviews(ctx context.Context, limit int) ([]sdk.Review, error) {
	return l.Client.Reviews.ListStore(ctx, limit)
}

// Products resolves a product-list block: explicit ids first, otherwise a category or
// catalog listing.
func (l SDKLoader) Products(ctx context.Context, list ProductList) ([]sdk.Product, error) {
	if len(list.ProductIDs) > 0 {
		out := make([]sdk.Product, 0, len(list.ProductIDs))
		for _, id := range list.ProductIDs {
			p, err := l.Client.Products.Get(ctx, id.String(), true)
			if err != nil {
				if sdk.IsNotFound(err) {
					log.Printf("[Homepage] product %s in block %s no longer exists", id, list.ID)
					continue
				}
				return nil, err
			}
			out = append(out, *p)
			if len(out) == list.Limit {
				break
			}
		}
		return out, nil
	}

	q := sdk.ListQuery{PerPage: list.Limit, Sort: list.Sort}
	if list.Category != "" {
		products, _, err := l.Client.Categories.Products(ctx, list.Category, q)
		return products, err
	}
	products, _, err := l.Client.Products.List(ctx, q)
	return products, err
}

// Source lists the homepage component descriptors.
type Source interface {
	GetAll(ctx context.Context) ([]sdk.Component, error)
}

// Page is the rendered homepage.
type Page struct {
	Blocks []Block `json:"blocks"`
}

// Build fetches, decodes and renders the homepage. The reviews block is always present
// exactly once.
func Build(ctx context.Context, src Source, loader Loader, opts RenderOptions) (*Page, error) {
	descriptors, err := src.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	blocks, err := Render(ctx, EnsureReviews(Decode(descriptors)), loader, opts)
	if err != nil {
		return nil, err
	}
	return &Page{Blocks: blocks}, nil
}
