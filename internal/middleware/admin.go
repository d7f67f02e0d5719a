package middleware

import (
	"lendpool-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminKeyHeader = "X-Admin-Key"
	adminIDHeader  = "X-Admin-Id"
	adminIDLocal   = "admin_id"
)

// RequireAdminKey checks X-Admin-Key against a bcrypt hash and records the
// acting admin from X-Admin-Id. An empty hash locks every admin route.
func RequireAdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(adminKeyHeader)
		if hash == "" || key == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		adminID, err := uuid.Parse(c.Get(adminIDHeader))
		if err != nil {
			return response.Error(c, "Invalid UUID format for "+adminIDHeader, fiber.StatusBadRequest, nil)
		}
		c.Locals(adminIDLocal, adminID)
		return c.Next()
	}
}

// GetAdminID returns the acting admin set by RequireAdminKey.
func GetAdminID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(adminIDLocal).(uuid.UUID)
	return id, ok
}
