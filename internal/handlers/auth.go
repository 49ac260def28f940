package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/authflow"
)

// AuthHandler drives the login modal of the client session.
type AuthHandler struct{}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// State returns the modal state together with the customer session.
func (h *AuthHandler) State(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	return respond(c, authPayload(sess.Flow.State(), sess.Auth.IsAuthenticated()))
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

// SubmitPhone sends the verification code.
func (h *AuthHandler) SubmitPhone(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Flow.SubmitPhone(c.UserContext(), req.Phone)
	if err != nil {
		return err
	}
	return respond(c, authPayload(st, sess.Auth.IsAuthenticated()))
}

type otpRequest struct {
	Code string `json:"code"`
}

// SubmitOTP verifies the code; it either signs the customer in or asks for registration.
func (h *AuthHandler) SubmitOTP(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Flow.SubmitOTP(c.UserContext(), req.Code)
	if err != nil {
		return err
	}
	return respond(c, authPayload(st, sess.Auth.IsAuthenticated()))
}

// Resend requests a new code.
func (h *AuthHandler) Resend(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Flow.Resend(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, authPayload(st, sess.Auth.IsAuthenticated()))
}

// Register completes the registration step.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	var req authflow.Registration
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Flow.CompleteRegistration(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    authPayload(st, sess.Auth.IsAuthenticated()),
	})
}

// Open shows the modal.
func (h *AuthHandler) Open(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	return respond(c, authPayload(sess.Flow.Open(), sess.Auth.IsAuthenticated()))
}

// Close abandons the flow; in-flight state is discarded.
func (h *AuthHandler) Close(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	return respond(c, authPayload(sess.Flow.Reset(), sess.Auth.IsAuthenticated()))
}

// Logout ends the customer session and clears the cart and wishlist of this browser.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	sess.Lock()
	defer sess.Unlock()
	if err := sess.Auth.Logout(ctx); err != nil {
		return err
	}
	if err := sess.Cart.Reset(ctx); err != nil {
		log.Printf("[Auth] session=%s reset cart on logout: %v", sess.ID, err)
	}
	if err := sess.Wishlist.Reset(ctx); err != nil {
		log.Printf("[Auth] session=%s reset wishlist on logout: %v", sess.ID, err)
	}
	st := sess.Flow.Reset()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "logged out",
		"data":    authPayload(st, false),
	})
}

func authPayload(st authflow.State, authenticated bool) fiber.Map {
	return fiber.Map{
		"modal":            st,
		"is_authenticated": authenticated,
	}
}
