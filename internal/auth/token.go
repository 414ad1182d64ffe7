package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atelierhub/portal/pkg/cerr"
)

// TokenIssuer signs and verifies session tokens. Tokens carry only the user
// id; the middleware reloads the user row on every request so role changes
// take effect without waiting for token expiry.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

func (i *TokenIssuer) Issue(userID string, now time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to sign session token: %w", err))
	}
	return signed, nil
}

// Verify parses a session token and returns the user id it was issued for.
func (i *TokenIssuer) Verify(raw string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", cerr.NewError(cerr.Unauthenticated, "invalid session", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", cerr.NewError(cerr.Unauthenticated, "invalid session", nil)
	}
	return claims.Subject, nil
}

// TTL returns the configured session lifetime, used for cookie expiry.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}
