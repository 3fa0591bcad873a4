package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// SessionCookie identifies a shopper across requests.
	SessionCookie     = "floral-session"
	sessionContextKey = "shopperSessionID"
)

// SessionMiddleware makes sure every request carries a shopper session, issuing a new
// cookie when the request has none or an unreadable one.
func SessionMiddleware(ttl time.Duration, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Cookies(SessionCookie))
		if err != nil {
			id = uuid.New()
		}

		// refreshed on every request so the session slides with the cart TTL
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    id.String(),
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		c.Locals(sessionContextKey, id.String())
		return c.Next()
	}
}

// GetSessionID returns the shopper session of the request.
func GetSessionID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(sessionContextKey).(string)
	return id, ok && id != ""
}
