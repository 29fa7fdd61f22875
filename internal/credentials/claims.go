package credentials

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the platform token we read for diagnostics.
// The token is not verified here; the platform verifies it on every call.
type Claims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
}

var ErrNotBearer = errors.New("credentials: not a bearer token")

// Claims decodes the bearer token payload without verifying its signature.
func (c Credentials) Claims() (Claims, error) {
	if c.Kind != KindBearer || c.Value == "" {
		return Claims{}, ErrNotBearer
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(c.Value, &claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Subject names the caller for logs: username, then sub, then the credential kind.
func (c Credentials) Subject() string {
	claims, err := c.Claims()
	if err != nil {
		return string(c.Kind)
	}
	if claims.PreferredUsername != "" {
		return claims.PreferredUsername
	}
	if claims.Subject != "" {
		return claims.Subject
	}
	return string(c.Kind)
}

// Expired reports whether an expiring bearer token is past its exp claim.
// Tokens without exp, and API keys, never report expired.
func (c Credentials) Expired(now time.Time) bool {
	claims, err := c.Claims()
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
