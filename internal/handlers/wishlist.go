package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/sdk"
)

// WishlistHandler exposes the customer wishlist.
type WishlistHandler struct{}

// NewWishlistHandler constructs WishlistHandler.
func NewWishlistHandler() *WishlistHandler {
	return &WishlistHandler{}
}

// GetWishlist refreshes the wishlist for a signed-in customer. Guests get the local copy.
func (h *WishlistHandler) GetWishlist(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	if !sess.Auth.IsAuthenticated() {
		return respond(c, sess.Wishlist.Snapshot())
	}
	st, err := sess.Wishlist.Fetch(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, st)
}

func (h *WishlistHandler) AddToWishlist(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Wishlist.Add(c.UserContext(), sdk.ID(c.Params("productId")))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": st})
}

func (h *WishlistHandler) RemoveFromWishlist(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	sess.Lock()
	defer sess.Unlock()
	st, err := sess.Wishlist.Remove(c.UserContext(), sdk.ID(c.Params("productId")))
	if err != nil {
		return err
	}
	return respond(c, st)
}
