// Package auth issues and reads the bearer tokens that carry a customer's
// identity.
package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/ebanking/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCustomer is returned when a token is requested for an empty customer id.
	ErrMissingCustomer = errors.New("customer id is required")
	// ErrUnauthorized is returned when a token carries no usable identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// TokenService signs HS256 tokens whose subject is the customer id.
type TokenService struct {
	cfg    *config.Jwt
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(cfg *config.Jwt, logger *slog.Logger) *TokenService {
	return &TokenService{cfg: cfg, logger: logger.With("component", "auth"), now: time.Now}
}

// Generate issues a token for customerID.
func (s *TokenService) Generate(customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", ErrMissingCustomer
	}
	log := s.logger.With("customer_id", customerID)
	log.Debug("GenerateToken called")

	now := s.now()
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["sub"] = customerID
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(s.cfg.Expiry).Unix()
	tokenString, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		log.Error("GenerateToken failed", "error", err)
		return "", err
	}
	log.Info("GenerateToken successful")
	return tokenString, nil
}

// CustomerID returns the subject of a verified token.
func (s *TokenService) CustomerID(token *jwt.Token) (string, error) {
	if token == nil || !token.Valid {
		return "", ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		s.logger.Error("Token carries no subject", "error", err)
		return "", ErrUnauthorized
	}
	return sub, nil
}

// Parse verifies tokenString and returns the customer id it carries.
func (s *TokenService) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Join(ErrUnauthorized, err)
	}
	return s.CustomerID(token)
}
