package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/session"
)

func currentSession(c *fiber.Ctx) (*session.Session, error) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "session not loaded")
	}
	return sess, nil
}

func respond(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}
