package middleware

import (
	"strings"

	"github.com/amirasaad/ebanking/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// UserContextKey is the fiber locals key holding the verified *jwt.Token.
const UserContextKey = "user"

// JwtProtected verifies the bearer token signed with cfg.Secret.
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return Protected(cfg.Secret)
}

// Protected verifies HS256 bearer tokens signed with secret.
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(secret)},
		ContextKey:   UserContextKey,
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return ErrorJSON(c, fiber.StatusBadRequest, "Missing or malformed JWT")
	}
	return ErrorJSON(c, fiber.StatusUnauthorized, "Invalid or expired JWT")
}
