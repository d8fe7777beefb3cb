package user

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

// GuestTokenHeader carries the opaque client-generated token that stands in
// for a user before sign-in.
const GuestTokenHeader = "X-Guest-Token"

const maxGuestTokenLen = 128

// Middleware verifies a bearer JWT when one is sent. Requests without an
// Authorization header pass through untouched so guests can shop.
func Middleware(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		Filter: func(c *fiber.Ctx) bool {
			return strings.TrimSpace(c.Get(fiber.HeaderAuthorization)) == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		},
	})
}

// GetUserIDFromCtx reads the user_id claim placed in locals by the JWT
// middleware.
func GetUserIDFromCtx(c *fiber.Ctx) (int, error) {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok || tok == nil {
		return 0, fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	switch v := claims["user_id"].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, fiber.ErrUnauthorized
		}
		return id, nil
	default:
		return 0, fiber.ErrUnauthorized
	}
}

// GuestTokenFromCtx returns the trimmed guest token header, or "" when absent
// or unreasonably long.
func GuestTokenFromCtx(c *fiber.Ctx) string {
	tok := strings.TrimSpace(c.Get(GuestTokenHeader))
	if len(tok) > maxGuestTokenLen {
		return ""
	}
	return tok
}
