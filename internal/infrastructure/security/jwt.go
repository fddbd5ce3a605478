// Package security provides JWT token utilities for the data API
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateAdminToken creates a JWT token granting access to the data API
func GenerateAdminToken(jwtSecret string, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"role": "admin",
		"iat":  time.Now().UTC().Unix(),
		"exp":  time.Now().UTC().Add(expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// IsAdminClaims reports whether the claims carry the admin role
func IsAdminClaims(claims jwt.MapClaims) bool {
	role, ok := claims["role"].(string)
	return ok && role == "admin"
}

// VerifyAdminPassword compares a plaintext password against the configured bcrypt hash
func VerifyAdminPassword(password, passwordHash string) bool {
	if passwordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// HashAdminPassword produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH
func HashAdminPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
