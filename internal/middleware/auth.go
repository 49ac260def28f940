package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/utils"
)

const (
	// SessionCookie carries the signed client session id.
	SessionCookie = "sf_session"
	// SessionHeader is accepted (and echoed) for clients without cookies.
	SessionHeader = "X-Session-Token"

	sessionContextKey = "clientSession"
)

type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

// SessionMiddleware resolves the client session of the request, starting a new one when
// the token is missing or invalid.
func SessionMiddleware(mgr *session.Manager, cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookie)
		if raw == "" {
			raw = c.Get(SessionHeader)
		}

		id, err := utils.ParseSessionToken(cfg.Secret, raw)
		if err != nil || raw == "" {
			id = uuid.New()
			token, err := utils.GenerateSessionToken(cfg.Secret, id, cfg.TTL)
			if err != nil {
				return err
			}
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    token,
				Path:     "/",
				Expires:  time.Now().Add(cfg.TTL),
				HTTPOnly: true,
				Secure:   cfg.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
			c.Set(SessionHeader, token)
		}

		sess, err := mgr.Get(c.UserContext(), id.String(), c.Get(fiber.HeaderUserAgent))
		if err != nil {
			return err
		}

		c.Locals(sessionContextKey, sess)
		return c.Next()
	}
}

// CurrentSession returns the client session loaded by SessionMiddleware.
func CurrentSession(c *fiber.Ctx) (*session.Session, bool) {
	sess, ok := c.Locals(sessionContextKey).(*session.Session)
	return sess, ok && sess != nil
}

// RequireCustomer rejects requests whose session has no signed-in customer.
func RequireCustomer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := CurrentSession(c)
		if !ok || !sess.Auth.IsAuthenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "please sign in to continue")
		}
		return c.Next()
	}
}
