// Package webapi provides the HTTP surface of the ingestion pipeline.
// It is organized into sub-packages:
// - auth: token issuing endpoint
// - transaction: submission, query and test seeding endpoints
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/ebanking/pkg/app"
	"github.com/amirasaad/ebanking/pkg/middleware"
	authweb "github.com/amirasaad/ebanking/webapi/auth"
	"github.com/amirasaad/ebanking/webapi/common"
	transactionweb "github.com/amirasaad/ebanking/webapi/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: a.Config.Env == "test",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return middleware.ErrorJSON(c, fe.Code, fe.Message)
			}
			return common.ErrorResponseJSON(c, err)
		},
	})

	// Uses X-Forwarded-For header when behind a proxy
	// Falls back to X-Real-IP or direct IP if needed
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				// Take the first IP in the chain
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return middleware.ErrorJSON(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		},
	}))
	fiberApp.Use(recover.New())
	if a.Config.Env != "test" {
		fiberApp.Use(logger.New())
	}

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})

	authweb.Routes(fiberApp, a.TokenService)
	transactionweb.Routes(fiberApp, a.Producer, a.Query, a.TokenService, a.Config)
	return fiberApp
}
