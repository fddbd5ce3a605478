package services

import (
	"errors"

	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/security"
	"github.com/AuroraHealth/aurora-go/pkg/config"
)

// ErrInvalidCredentials is returned when the admin password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles admin authentication for the data API.
type AuthService struct {
	logger *logging.ChanneledLogger
}

// NewAuthService creates a new auth service.
func NewAuthService(logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{logger: logger}
}

// Login verifies the admin password and returns a signed JWT.
func (s *AuthService) Login(password string) (string, error) {
	if config.AdminPasswordHash == "" {
		s.logger.Auth().Warn("Admin login attempted without ADMIN_PASSWORD_HASH configured")
		return "", ErrInvalidCredentials
	}

	if !security.VerifyAdminPassword(password, config.AdminPasswordHash) {
		s.logger.Auth().Warn("Admin login failed, bad password")
		return "", ErrInvalidCredentials
	}

	token, err := security.GenerateAdminToken(config.JWTSecret, config.JWTExpiry)
	if err != nil {
		return "", err
	}

	s.logger.Auth().Info("Admin login succeeded")
	return token, nil
}

// ValidateToken checks a bearer token and confirms admin role.
func (s *AuthService) ValidateToken(token string) bool {
	claims, err := security.ValidateJWT(token, config.JWTSecret)
	if err != nil {
		return false
	}
	return security.IsAdminClaims(claims)
}
