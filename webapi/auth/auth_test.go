package auth_test

import (
	"testing"

	"github.com/amirasaad/ebanking/pkg/middleware"
	"github.com/amirasaad/ebanking/webapi/auth"
	"github.com/amirasaad/ebanking/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

type AuthTestSuite struct {
	testutils.E2ETestSuite
}

func (s *AuthTestSuite) TestGenerateToken_BadRequest() {
	resp := s.MakeRequest("POST", "/api/token/generate", `{"customerId":123}`, "")
	body := testutils.DecodeJSON[middleware.ErrorBody](s.T(), resp)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("/api/token/generate", body.Path)
}

func (s *AuthTestSuite) TestGenerateToken_MissingCustomer() {
	resp := s.MakeRequest("POST", "/api/token/generate", `{}`, "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *AuthTestSuite) TestGenerateToken_Success() {
	resp := s.MakeRequest("POST", "/api/token/generate", `{"customerId":"P-0123456789"}`, "")
	s.Equal(fiber.StatusOK, resp.StatusCode)

	body := testutils.DecodeJSON[auth.TokenResponse](s.T(), resp)
	s.Require().NotEmpty(body.Token)

	// The issued token opens protected routes for that customer.
	query := s.MakeRequest("GET", "/api/v1/getTransaction?month=7&year=2024", "", body.Token)
	defer query.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusOK, query.StatusCode)
}

func (s *AuthTestSuite) TestGenerateToken_FromQuery() {
	resp := s.MakeRequest("POST", "/api/token/generate?customerId=P-1", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode)
}

func TestAuthTestSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
