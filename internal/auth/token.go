package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/r0gig0r/double-take/config"
)

// RouteStorage is the scope carried by tokens minted for snapshot access.
const RouteStorage = "storage"

// Service mints and verifies scoped, short-lived access tokens.
type Service struct {
	cfg config.AuthConfig
}

// NewService creates a token service from the auth configuration.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{cfg: cfg}
}

// Enabled reports whether authentication is configured.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Mint issues a signed token limited to the given route scope.
func (s *Service) Mint(route string) (string, error) {
	if !s.cfg.Enabled {
		return "", fmt.Errorf("auth is disabled")
	}

	ttl := time.Duration(s.cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"route": route,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns its route
// scope. An empty route means an unscoped credential.
func (s *Service) Verify(tokenString string) (string, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	route, _ := claims["route"].(string)
	return route, nil
}
