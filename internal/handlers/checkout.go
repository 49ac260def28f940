package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/checkout"
)

// CheckoutHandler starts checkouts and serves the payment result page.
type CheckoutHandler struct {
	now func() time.Time
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler() *CheckoutHandler {
	return &CheckoutHandler{now: time.Now}
}

// StartCheckout creates a checkout for the session cart and returns the payment redirect.
func (h *CheckoutHandler) StartCheckout(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	co, err := checkout.Start(c.UserContext(), checkout.StartDeps{
		SessionID: sess.ID,
		API:       sess.Client.Checkout,
		Cart:      sess.Cart,
		Auth:      sess.Auth,
		Modal:     sess.Flow,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": co})
}

// Result resolves the checkout named by the txid query parameter. A failed lookup still
// renders the page with status 200 so the client can offer a retry.
func (h *CheckoutHandler) Result(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	params, err := checkout.ParseResultParams(c.Query("txid"), c.Query("expires"), c.Query("signature"))
	if err != nil {
		return err
	}
	if params.Expired(h.now()) {
		return respond(c, checkout.View{
			Status:  checkout.StatusError,
			TxID:    params.TxID,
			Message: "This payment link has expired.",
		})
	}

	sess.Lock()
	defer sess.Unlock()
	view, err := sess.Result.Load(c.UserContext(), params)
	if err != nil {
		log.Printf("[Checkout] session=%s result %s: %v", sess.ID, params.TxID, err)
	}
	return respond(c, view)
}

// RetryResult repeats the last result query of the session.
func (h *CheckoutHandler) RetryResult(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	view, err := sess.Result.Retry(c.UserContext())
	if err != nil {
		if view.Status == "" {
			return err
		}
		log.Printf("[Checkout] session=%s retry %s: %v", sess.ID, view.TxID, err)
	}
	return respond(c, view)
}
