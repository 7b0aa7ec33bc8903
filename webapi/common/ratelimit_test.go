package common_test

import (
	"testing"
	"time"

	"github.com/amirasaad/ebanking/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

type RateLimitTestSuite struct {
	suite.Suite
	env *testutils.Env
}

func (s *RateLimitTestSuite) SetupTest() {
	cfg := testutils.Config()
	cfg.RateLimit.MaxRequests = 5
	cfg.RateLimit.Window = time.Second
	s.env = testutils.NewEnv(s.T(), cfg)
}

func (s *RateLimitTestSuite) TestRateLimit() {
	// Send requests until rate limit is hit
	for i := range [6]int{} {
		resp := s.env.MakeRequest(fiber.MethodGet, "/health", "", "")
		defer resp.Body.Close() //nolint: errcheck

		if i < 5 {
			s.Equal(fiber.StatusOK, resp.StatusCode, "Expected OK for request %d", i+1)
		} else {
			s.Equal(fiber.StatusTooManyRequests, resp.StatusCode, "Expected Too Many Requests for request %d", i+1)
		}
	}

	// Wait for the rate limit window to reset
	time.Sleep(1100 * time.Millisecond)

	resp := s.env.MakeRequest(fiber.MethodGet, "/health", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode, "Expected OK after rate limit reset")
}

func (s *RateLimitTestSuite) TestForwardedClientsAreLimitedSeparately() {
	for range 5 {
		resp := s.env.MakeRequestWithHeaders(fiber.MethodGet, "/health", "", map[string]string{
			"X-Forwarded-For": "10.0.0.1, 172.16.0.1",
		})
		resp.Body.Close() //nolint: errcheck
	}
	resp := s.env.MakeRequestWithHeaders(fiber.MethodGet, "/health", "", map[string]string{
		"X-Forwarded-For": "10.0.0.1",
	})
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusTooManyRequests, resp.StatusCode)

	other := s.env.MakeRequestWithHeaders(fiber.MethodGet, "/health", "", map[string]string{
		"X-Real-IP": "10.0.0.2",
	})
	defer other.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusOK, other.StatusCode)
}

func TestRateLimitTestSuite(t *testing.T) {
	suite.Run(t, new(RateLimitTestSuite))
}
