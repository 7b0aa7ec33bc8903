package auth

import (
	authsvc "github.com/amirasaad/ebanking/pkg/service/auth"
	"github.com/amirasaad/ebanking/webapi/common"
	"github.com/gofiber/fiber/v2"
)

func Routes(app *fiber.App, tokenSvc *authsvc.TokenService) {
	app.Post("/api/token/generate", GenerateToken(tokenSvc))
}

// GenerateToken issues a bearer token whose subject is the given customer.
// @Summary Issue a token
// @Description Issues an HS256 bearer token for the customer id
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Customer"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} middleware.ErrorBody
// @Failure 429 {object} middleware.ErrorBody
// @Failure 500 {object} middleware.ErrorBody
// @Router /api/token/generate [post]
func GenerateToken(tokenSvc *authsvc.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[TokenRequest](c)
		if input == nil {
			return err // Error already written by BindAndValidate
		}
		token, err := tokenSvc.Generate(input.CustomerID)
		if err != nil {
			return common.ErrorResponseJSON(c, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, TokenResponse{Token: token})
	}
}
