package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/pages"
)

// CurrencyHandler manages the display currency of the session.
type CurrencyHandler struct {
	pages *pages.Service
}

// NewCurrencyHandler constructs CurrencyHandler.
func NewCurrencyHandler(svc *pages.Service) *CurrencyHandler {
	return &CurrencyHandler{pages: svc}
}

// GetCurrency returns the selection, loading the offered currencies from the store on first use.
func (h *CurrencyHandler) GetCurrency(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.ensureAvailable(c); err != nil {
		return err
	}
	return respond(c, sess.Currency.Snapshot())
}

type selectCurrencyRequest struct {
	Code string `json:"code"`
}

func (h *CurrencyHandler) SelectCurrency(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req selectCurrencyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.ensureAvailable(c); err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Currency.Select(c.UserContext(), req.Code)
	if err != nil {
		return err
	}
	return respond(c, st)
}

func (h *CurrencyHandler) ensureAvailable(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	if len(sess.Currency.Snapshot().AvailableCurrencies) > 0 {
		return nil
	}

	ctx := c.UserContext()
	st, err := h.pages.Store(ctx)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	return sess.Currency.SetAvailable(ctx, st.Currencies)
}
