package homepage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/example/storefront/internal/sdk"
)

// Block is the view model of one rendered component.
type Block struct {
	Header
	Banner   *Banner         `json:"banner,omitempty"`
	Features []Feature       `json:"features,omitempty"`
	Reviews  []sdk.Review    `json:"reviews,omitempty"`
	Products []sdk.Product   `json:"products,omitempty"`
	Notice   string          `json:"notice,omitempty"`
	Debug    json.RawMessage `json:"debug,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Loader reads the data behind reviews and product-list blocks.
type Loader interface {
	StoreReviews(ctx context.Context, limit int) ([]sdk.Review, error)
	Products(ctx context.Context, list ProductList) ([]sdk.Product, error)
}

type RenderOptions struct {
	// Dev attaches the raw descriptor to placeholder blocks.
	Dev bool
	// Concurrency bounds the parallel block loads.
	Concurrency int
}

// Render maps each component to its block and fills data-backed blocks concurrently.
// A block whose data fails to load carries an error message; the page still renders.
func Render(ctx context.Context, list []Component, loader Loader, opts RenderOptions) ([]Block, error) {
	blocks := make([]Block, len(list))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	var unhandled error
	for i, c := range list {
		blocks[i] = Block{Header: c.Meta()}
		b := &blocks[i]

		switch c := c.(type) {
		case Banner:
			b.Banner = &c
		case Features:
			b.Features = c.Items
		case Reviews:
			g.Go(func() error {
				reviews, err := loader.StoreReviews(gctx, c.Limit)
				if err != nil {
					log.Printf("[Homepage] reviews block %s: %v", c.ID, err)
					b.Error = sdk.Message(err, "Reviews are unavailable right now.")
					return nil
				}
				b.Reviews = reviews
				return nil
			})
		case ProductList:
			g.Go(func() error {
				products, err := loader.Products(gctx, c)
				if err != nil {
					log.Printf("[Homepage] product block %s: %v", c.ID, err)
					b.Error = sdk.Message(err, "Products are unavailable right now.")
					return nil
				}
				b.Products = products
				return nil
			})
		case Custom:
			b.Notice = fmt.Sprintf("Unsupported component type %q", c.Type)
			if opts.Dev {
				b.Debug = c.Raw
			}
		default:
			unhandled = fmt.Errorf("homepage: unhandled component %T", c)
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if unhandled != nil {
		return nil, unhandled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}
