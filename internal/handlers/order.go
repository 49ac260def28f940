package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/utils"
)

// OrderHandler serves the customer's order history.
type OrderHandler struct{}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler() *OrderHandler {
	return &OrderHandler{}
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	pg := utils.ParsePagination(c)
	view, err := pages.Orders(c.UserContext(), sess.Client, sess.Auth.IsAuthenticated(), pg.Page)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       view.Orders,
		"pagination": view.Pagination,
	})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	view, err := pages.Order(c.UserContext(), sess.Client, sess.Auth.IsAuthenticated(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, view)
}

// ReviewOrder reviews one product of a delivered order.
func (h *OrderHandler) ReviewOrder(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req pages.ReviewInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ProductID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
	}

	review, err := pages.SubmitReview(c.UserContext(), sess.Client, sess.Auth.IsAuthenticated(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "review submitted",
		"data":    review,
	})
}
