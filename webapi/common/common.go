// Package common holds the request binding and response helpers shared by
// the HTTP handlers.
package common

import (
	"errors"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/middleware"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	authsvc "github.com/amirasaad/ebanking/pkg/service/auth"
	txsvc "github.com/amirasaad/ebanking/pkg/service/transaction"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// DeliveryFailedMessage is returned when the log did not acknowledge a
// submitted transaction in time.
const DeliveryFailedMessage = "Failed to send transaction to log"

var validate = validator.New()

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransaction):
		return fiber.StatusBadRequest
	case errors.Is(err, txsvc.ErrInvalidQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, repo.ErrInvalidPage):
		return fiber.StatusBadRequest
	case errors.Is(err, authsvc.ErrMissingCustomer):
		return fiber.StatusBadRequest
	case errors.Is(err, authsvc.ErrUnauthorized):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponseJSON writes the error envelope for err. Server errors other
// than a delivery failure do not leak their cause.
func ErrorResponseJSON(c *fiber.Ctx, err error) error {
	status := ErrorToStatusCode(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "Internal server error"
		if errors.Is(err, txsvc.ErrDelivery) {
			message = DeliveryFailedMessage
		}
	}
	return middleware.ErrorJSON(c, status, message)
}

// SuccessResponseJSON writes body with status.
func SuccessResponseJSON(c *fiber.Ctx, status int, body any) error {
	return c.Status(status).JSON(body)
}

// BindAndValidate parses the query string and, when present, the request
// body into T and validates it using go-playground/validator.
// Returns a pointer to the struct (populated), or writes an error response
// and returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.QueryParser(&input); err != nil {
		return nil, middleware.ErrorJSON(c, fiber.StatusBadRequest, "Invalid request parameters: "+err.Error())
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return nil, middleware.ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
		}
	}
	if err := validate.Struct(input); err != nil {
		return nil, middleware.ErrorJSON(c, fiber.StatusBadRequest, "Validation failed: "+err.Error())
	}
	return &input, nil
}

// CurrentCustomer returns the customer id carried by the verified token.
func CurrentCustomer(c *fiber.Ctx, tokenSvc *authsvc.TokenService) (string, error) {
	token, ok := c.Locals(middleware.UserContextKey).(*jwt.Token)
	if !ok {
		return "", authsvc.ErrUnauthorized
	}
	return tokenSvc.CustomerID(token)
}
