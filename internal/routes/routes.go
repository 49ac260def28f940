package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/session"
)

// Deps are the shared services the routes are built on.
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	Pages    *pages.Service
	Hub      *notify.Hub
	// Shutdown ends open event streams when done. Defaults to context.Background.
	Shutdown context.Context
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	healthHandler := handlers.NewHealthHandler(d.Sessions.Len)
	authHandler := handlers.NewAuthHandler()
	profileHandler := handlers.NewProfileHandler()
	cartHandler := handlers.NewCartHandler(d.Pages)
	wishlistHandler := handlers.NewWishlistHandler()
	currencyHandler := handlers.NewCurrencyHandler(d.Pages)
	catalogHandler := handlers.NewCatalogHandler(d.Pages, d.Config.IsDevelopment())
	orderHandler := handlers.NewOrderHandler()
	checkoutHandler := handlers.NewCheckoutHandler()
	shutdown := d.Shutdown
	if shutdown == nil {
		shutdown = context.Background()
	}
	eventsHandler := handlers.NewEventsHandler(shutdown, d.Hub)

	app.Get("/healthz", healthHandler.Check)

	api := app.Group("/api", middleware.SessionMiddleware(d.Sessions, middleware.SessionConfig{
		Secret: d.Config.SessionSecret,
		TTL:    d.Config.SessionTTL,
		Secure: !d.Config.IsDevelopment(),
	}))
	requireCustomer := middleware.RequireCustomer()

	// Auth routes
	auth := api.Group("/auth")
	auth.Get("/state", authHandler.State)
	auth.Post("/open", authHandler.Open)
	auth.Post("/phone", authHandler.SubmitPhone)
	auth.Post("/otp", authHandler.SubmitOTP)
	auth.Post("/otp/resend", authHandler.Resend)
	auth.Post("/register", authHandler.Register)
	auth.Post("/close", authHandler.Close)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/profile", requireCustomer, profileHandler.GetProfile)
	auth.Put("/profile", requireCustomer, profileHandler.UpdateProfile)

	// Cart routes
	cart := api.Group("/cart")
	cart.Get("/", cartHandler.GetCart)
	cart.Delete("/", cartHandler.ClearCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:id", cartHandler.UpdateItem)
	cart.Delete("/items/:id", cartHandler.RemoveItem)
	cart.Post("/coupon", cartHandler.ApplyCoupon)
	cart.Delete("/coupon", cartHandler.RemoveCoupon)

	// Wishlist routes
	wishlist := api.Group("/wishlist")
	wishlist.Get("/", wishlistHandler.GetWishlist)
	wishlist.Post("/:productId", requireCustomer, wishlistHandler.AddToWishlist)
	wishlist.Delete("/:productId", requireCustomer, wishlistHandler.RemoveFromWishlist)

	// Currency routes
	api.Get("/currency", currencyHandler.GetCurrency)
	api.Put("/currency", currencyHandler.SelectCurrency)

	// Catalog routes
	api.Get("/homepage", catalogHandler.Homepage)
	api.Get("/store", catalogHandler.Store)
	api.Get("/products", catalogHandler.ListProducts)
	api.Get("/products/:slug", catalogHandler.GetProduct)
	api.Get("/products/:id/reviews", catalogHandler.ProductReviews)
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/categories/:slug", catalogHandler.GetCategory)
	api.Get("/courses/:id", catalogHandler.GetCourse)

	// Order routes
	orders := api.Group("/orders")
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Post("/:id/review", orderHandler.ReviewOrder)

	// Checkout routes
	checkout := api.Group("/checkout")
	checkout.Post("/", checkoutHandler.StartCheckout)
	checkout.Get("/result", checkoutHandler.Result)
	checkout.Post("/result/retry", checkoutHandler.RetryResult)

	api.Get("/events", eventsHandler.Stream)
}
