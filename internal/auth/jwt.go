// Package auth resolves the signed-in user from a session token.
//
// Sessions are issued by the external auth provider as HS256 JWTs whose
// "sub" claim is the user id. This service only verifies them.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength guards against accidentally empty or toy secrets
const minSecretLength = 16

// TokenVerifier validates session tokens
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for tokens signed with secret
func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", minSecretLength)
	}
	return &TokenVerifier{secret: []byte(secret)}, nil
}

// Verify parses and verifies a token and returns the user id it carries
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return claims.Subject, nil
}
