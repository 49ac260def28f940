package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports liveness and the number of loaded sessions.
type HealthHandler struct {
	sessions func() int
}

func NewHealthHandler(sessions func() int) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "ok",
		"data":    fiber.Map{"sessions": h.sessions()},
	})
}
