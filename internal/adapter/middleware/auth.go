package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citadelhq/transferd/internal/core/security"
)

// UserIDKey is where Protected stores the authenticated user's id in the
// request locals.
const UserIDKey = "user_id"

// Protected authenticates requests by API key. Only the key's hash is
// ever compared against the store.
func Protected(db *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization") // "Bearer ct_live_..."
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing API key"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid header format"})
		}
		hashedKey := security.HashKey(parts[1])

		var userID string
		err := db.QueryRow(c.Context(), "SELECT user_id FROM api_keys WHERE key_hash = $1", hashedKey).Scan(&userID)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API key"})
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}
