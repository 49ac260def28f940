package middleware

import (
	"errors"
	"log"
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/authflow"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/store"
)

const genericMessage = "Something went wrong, please try again"

// ErrorHandler renders every error as a toast payload: {"success": false, "message": ...}.
// Remote failures keep the backend message when there is one.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := describe(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(body)
}

func describe(err error) (int, fiber.Map) {
	body := fiber.Map{"success": false, "message": err.Error()}

	var (
		fiberErr *fiber.Error
		flowErr  *authflow.Error
		apiErr   *sdk.APIError
	)
	switch {
	case errors.As(err, &fiberErr):
		if fiberErr.Code >= fiber.StatusInternalServerError {
			body["message"] = genericMessage
		}
		return fiberErr.Code, body

	case errors.Is(err, checkout.ErrReauthRequired):
		body["reopen_auth"] = true
		return fiber.StatusUnauthorized, body

	case errors.As(err, &flowErr):
		if flowErr.RetryAfter > 0 {
			body["retry_after"] = int(math.Ceil(flowErr.RetryAfter.Seconds()))
			return fiber.StatusTooManyRequests, body
		}
		if errors.Is(err, authflow.ErrWrongStep) {
			return fiber.StatusConflict, body
		}
		if errors.Is(err, authflow.ErrOTPExpired) {
			return fiber.StatusGone, body
		}
		return fiber.StatusUnprocessableEntity, body

	case errors.Is(err, pages.ErrLoginRequired):
		return fiber.StatusUnauthorized, body
	case errors.Is(err, pages.ErrOutOfStock), errors.Is(err, pages.ErrInsufficientStock),
		errors.Is(err, pages.ErrNotReviewable), errors.Is(err, pages.ErrProductNotInOrder):
		return fiber.StatusConflict, body
	case errors.Is(err, pages.ErrInvalidRating), errors.Is(err, store.ErrUnknownCurrency),
		errors.Is(err, checkout.ErrMissingTxID), errors.Is(err, checkout.ErrInvalidExpires):
		return fiber.StatusUnprocessableEntity, body
	case errors.Is(err, checkout.ErrNoResult):
		return fiber.StatusNotFound, body

	case errors.As(err, &apiErr):
		body["message"] = sdk.Message(err, genericMessage)
		switch {
		case apiErr.Status < 400:
			return fiber.StatusUnprocessableEntity, body
		case apiErr.Status < 500:
			return apiErr.Status, body
		}
		return fiber.StatusBadGateway, body
	}

	body["message"] = genericMessage
	return fiber.StatusInternalServerError, body
}
