package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerIDLocalKey is the key under which the authenticated owner's ID is
// stored in Fiber's context locals. Scans are strictly partitioned by this ID.
const OwnerIDLocalKey = "owner_id"

// Auth verifies a Bearer JWT (HS256) and stores its subject claim as the
// owner ID for downstream handlers. Token issuance is an external concern;
// this service only consumes tokens.
func Auth(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token subject")
		}

		c.Locals(OwnerIDLocalKey, sub)
		return c.Next()
	}
}

// OwnerIDFromCtx extracts the authenticated owner ID set by Auth.
func OwnerIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(OwnerIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
