// Package auth verifies the role claims the external identity
// provider attaches to producer requests. Token issuing is the
// provider's concern; only verification lives here.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arpitbabbar/task-manager-arch/internal/config"
)

// Common verification errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingRole  = errors.New("required role not granted")
)

// Role names the API layer authorizes against.
const (
	// RoleProducer allows submitting tasks and polling their status.
	RoleProducer = "producer"

	// RoleAdmin additionally allows cache invalidation.
	RoleAdmin = "admin"
)

// Claims is the verified claim set for a caller.
type Claims struct {
	// Subject is the provider-assigned caller identity, opaque to us.
	Subject string

	// Roles is the set of role names granted to the caller.
	Roles []string
}

// HasRole reports whether the claim set grants the named role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenVerifier validates a bearer token and extracts its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*Claims, error)
}

// tokenClaims is the JWT claim shape the identity provider issues.
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// jwtVerifier verifies HMAC-signed tokens with the shared secret from
// configuration.
type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a TokenVerifier for the configured secret.
func NewJWTVerifier(cfg config.AuthConfig) (TokenVerifier, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters")
	}
	return &jwtVerifier{secret: []byte(cfg.JWTSecret)}, nil
}

// VerifyToken validates the signature and expiry of tokenString and
// returns its claims.
func (v *jwtVerifier) VerifyToken(_ context.Context, tokenString string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject: claims.Subject,
		Roles:   claims.Roles,
	}, nil
}
