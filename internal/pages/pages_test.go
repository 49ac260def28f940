package pages

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/sdk/sdktest"
)

func stock(n int) *int { return &n }

func TestCheckStock(t *testing.T) {
	tests := []struct {
		name string
		p    sdk.Product
		qty  int
		want error
	}{
		{name: "untracked", p: sdk.Product{}, qty: 5},
		{name: "enough", p: sdk.Product{Stock: stock(3)}, qty: 3},
		{name: "zero qty counts as one", p: sdk.Product{Stock: stock(1)}, qty: 0},
		{name: "sold out", p: sdk.Product{Stock: stock(0)}, qty: 1, want: ErrOutOfStock},
		{name: "too many", p: sdk.Product{Stock: stock(2)}, qty: 3, want: ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStock(tt.p, tt.qty)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_ProductPage(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Name: "Oud", Stock: stock(0)})
	svc := NewService(srv.Client())

	view, err := svc.ProductPage(context.Background(), "oud", func(id sdk.ID) bool { return id == "p1" })
	require.NoError(t, err)
	assert.Equal(t, "Oud", view.Product.Name)
	assert.False(t, view.InStock)
	assert.True(t, view.InWishlist)

	_, err = svc.ProductPage(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, sdk.IsNotFound(err))
}

func TestService_ConcurrentReadsShareResults(t *testing.T) {
	srv := sdktest.NewServer(t)
	svc := NewService(srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := svc.Store(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "Demo Store", st.Name)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, srv.Calls("GET /store"), 8)
	assert.GreaterOrEqual(t, srv.Calls("GET /store"), 1)
}

func TestService_Category(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.AddProduct(sdk.Product{ID: "p1", Slug: "oud", Category: &sdk.Category{Slug: "perfumes"}})
	srv.AddProduct(sdk.Product{ID: "p2", Slug: "mug"})
	svc := NewService(srv.Client())

	view, err := svc.Category(context.Background(), "perfumes", sdk.ListQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "Perfumes", view.Category.Name)
	require.Len(t, view.Products, 1)
	assert.Equal(t, sdk.ID("p1"), view.Products[0].ID)
}

func TestCustomerPagesNeedLogin(t *testing.T) {
	srv := sdktest.NewServer(t)
	client := srv.Client()
	ctx := context.Background()

	_, err := Course(ctx, client, false, "p1")
	assert.ErrorIs(t, err, ErrLoginRequired)
	_, err = Orders(ctx, client, false, 1)
	assert.ErrorIs(t, err, ErrLoginRequired)
	_, err = Order(ctx, client, false, "o1")
	assert.ErrorIs(t, err, ErrLoginRequired)
	_, err = SubmitReview(ctx, client, false, "o1", ReviewInput{Rating: 5})
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Zero(t, srv.Calls("GET /orders"))
}

func TestSubmitReview(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.Orders["o1"] = sdk.Order{ID: "o1", CanReview: true, Items: []sdk.OrderItem{
		{ProductID: "p1"},
		{ProductID: "p2", Reviewed: true},
	}}
	srv.Orders["o2"] = sdk.Order{ID: "o2", Items: []sdk.OrderItem{{ProductID: "p1"}}}
	client := srv.Client()
	client.SetAuthToken(sdktest.AuthToken)
	ctx := context.Background()

	view, err := Order(ctx, client, true, "o1")
	require.NoError(t, err)
	assert.Equal(t, []sdk.ID{"p1"}, view.Reviewable)

	_, err = SubmitReview(ctx, client, true, "o1", ReviewInput{ProductID: "p1", Rating: 0})
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = SubmitReview(ctx, client, true, "o2", ReviewInput{ProductID: "p1", Rating: 4})
	assert.ErrorIs(t, err, ErrNotReviewable)
	_, err = SubmitReview(ctx, client, true, "o1", ReviewInput{ProductID: "p2", Rating: 4})
	assert.ErrorIs(t, err, ErrProductNotInOrder)

	review, err := SubmitReview(ctx, client, true, "o1", ReviewInput{ProductID: "p1", Rating: 5, Comment: " Great "})
	require.NoError(t, err)
	assert.Equal(t, "Great", review.Comment)
	assert.Equal(t, 1, srv.Calls("POST /reviews"))
}

func TestService_SharedLoadIgnoresCallerCancellation(t *testing.T) {
	srv := sdktest.NewServer(t)
	svc := NewService(srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := svc.Store(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Demo Store", st.Name)
}
