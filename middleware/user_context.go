package middleware

import "github.com/gofiber/fiber/v2"

// UserContext copies the caller-asserted X-User-ID header into the request
// locals. Identity is not cryptographically verified; the chat platform in
// front of this service is the trust boundary.
func UserContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := c.Get("X-User-ID"); userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

// RequireUser returns the asserted identity or empty string.
func RequireUser(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}
