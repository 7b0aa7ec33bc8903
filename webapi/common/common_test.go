package common

import (
	"errors"
	"fmt"
	"testing"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	authsvc "github.com/amirasaad/ebanking/pkg/service/auth"
	txsvc "github.com/amirasaad/ebanking/pkg/service/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transaction", domain.ErrZeroAmount, fiber.StatusBadRequest},
		{"invalid query", fmt.Errorf("%w: month", txsvc.ErrInvalidQuery), fiber.StatusBadRequest},
		{"invalid page", fmt.Errorf("%w: size", repo.ErrInvalidPage), fiber.StatusBadRequest},
		{"missing customer", authsvc.ErrMissingCustomer, fiber.StatusBadRequest},
		{"unauthorized", authsvc.ErrUnauthorized, fiber.StatusUnauthorized},
		{"delivery", fmt.Errorf("%w: timeout", txsvc.ErrDelivery), fiber.StatusInternalServerError},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorToStatusCode(tt.err))
		})
	}
}
