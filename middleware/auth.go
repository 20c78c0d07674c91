// middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthMiddleware gates admin-only operations. The capability token is
// passed in explicitly rather than read from a hidden global, so tests can
// stand up configurations with different authorities. There is no transfer
// mechanism: the token set at construction is the admin identity for the
// lifetime of the process.
func AdminAuthMiddleware(token string) fiber.Handler {
	if token == "" {
		log.Fatal("admin token is empty — service cannot authorize admin operations")
	}

	return func(c *fiber.Ctx) error {
		got := c.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Printf("[ADMIN_AUTH] rejected request for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin authorization required",
			})
		}
		return c.Next()
	}
}

// UserContextMiddleware extracts the player identity set by the gateway.
// Participant-facing routes require it; handlers read user_id from locals.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
