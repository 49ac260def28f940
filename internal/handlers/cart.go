package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/store"
)

// CartHandler exposes the session cart.
type CartHandler struct {
	pages *pages.Service
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(svc *pages.Service) *CartHandler {
	return &CartHandler{pages: svc}
}

// GetCart returns the cart. The API is only asked when the session has a cart token or a
// signed-in customer; otherwise the (empty) local cart is returned.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	if sess.Cart.Token() == "" && !sess.Auth.IsAuthenticated() {
		return cartResponse(c, sess, sess.Cart.Snapshot())
	}
	st, err := sess.Cart.FetchCart(c.UserContext())
	if err != nil {
		return err
	}
	return cartResponse(c, sess, st)
}

type addItemRequest struct {
	ProductID          string         `json:"product_id"`
	Quantity           int            `json:"quantity"`
	Fields             map[string]any `json:"fields"`
	SubscriptionPlanID string         `json:"subscription_plan_id"`
	Notice             string         `json:"notice"`
}

// AddItem checks stock on the product page data and adds it to the cart.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	ctx := c.UserContext()
	product, err := h.pages.Product(ctx, req.ProductID)
	if err != nil {
		return err
	}
	if err := pages.CheckStock(*product, req.Quantity); err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Cart.AddItem(ctx, store.AddItemInput{
		Product:            *product,
		Quantity:           req.Quantity,
		Fields:             req.Fields,
		SubscriptionPlanID: sdk.ID(req.SubscriptionPlanID),
		Notice:             req.Notice,
	})
	if err != nil {
		return err
	}
	c.Status(fiber.StatusCreated)
	return cartResponse(c, sess, st)
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// UpdateItem sets the quantity of a line; zero removes it.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Quantity == nil || *req.Quantity < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be zero or more")
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Cart.UpdateQuantity(c.UserContext(), sdk.ID(c.Params("id")), *req.Quantity)
	if err != nil {
		return err
	}
	return cartResponse(c, sess, st)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Cart.RemoveItem(c.UserContext(), sdk.ID(c.Params("id")))
	if err != nil {
		return err
	}
	return cartResponse(c, sess, st)
}

func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Cart.ClearCart(c.UserContext())
	if err != nil {
		return err
	}
	return cartResponse(c, sess, st)
}

type couponRequest struct {
	Code string `json:"code"`
}

func (h *CartHandler) ApplyCoupon(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "coupon code is required")
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Cart.ApplyCoupon(c.UserContext(), code)
	if err != nil {
		return err
	}
	return cartResponse(c, sess, st)
}

func (h *CartHandler) RemoveCoupon(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Cart.RemoveCoupon(c.UserContext())
	if err != nil {
		return err
	}
	return cartResponse(c, sess, st)
}

// cartResponse renders the cart with totals formatted in the selected display currency.
func cartResponse(c *fiber.Ctx, sess *session.Session, st store.CartState) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"items":           st.List(),
			"count":           st.Count,
			"subtotal":        st.Subtotal,
			"total":           st.Total,
			"discount_amount": st.DiscountAmount,
			"coupon":          st.Coupon,
			"has_token":       st.CartToken != "",
			"display": fiber.Map{
				"currency": sess.Currency.Snapshot().SelectedCurrency,
				"subtotal": sess.Currency.Format(st.Subtotal),
				"discount": sess.Currency.Format(st.DiscountAmount),
				"total":    sess.Currency.Format(st.Total),
			},
		},
	})
}
