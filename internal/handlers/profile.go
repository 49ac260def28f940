package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/sdk"
)

// ProfileHandler manages the signed-in customer's profile.
type ProfileHandler struct{}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// GetProfile refreshes the customer from the API. A rejected token signs the session out.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	customer, err := sess.Auth.FetchProfile(c.UserContext())
	if err != nil {
		if sdk.IsUnauthorized(err) {
			sess.Flow.Reset()
		}
		return err
	}
	return respond(c, customer)
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
}

// UpdateProfile updates the editable profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" && req.LastName == "" && req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	sess.Lock()
	defer sess.Unlock()
	customer, err := sess.Auth.UpdateProfile(c.UserContext(), sdk.ProfileUpdate{
		Name:     req.Name,
		LastName: req.LastName,
		Email:    req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "profile updated", "data": customer})
}
