package middleware

import (
	"fieldreport/internal/session"

	"github.com/gofiber/fiber/v2"
)

// SessionRequired is a Fiber middleware that rejects requests while nobody
// is signed in.
func SessionRequired(sess *session.Session) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !sess.IsAuthenticated() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Login required",
			})
		}
		return c.Next()
	}
}
