// Package authtest mints tokens for tests. The service itself never issues
// tokens.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Secret is a 256-bit key suitable for HS256 in tests.
const Secret = "test-secret-with-at-least-32-bytes!!"

// Claims returns a claim set for subject expiring ttl from now. A negative
// ttl yields an already expired token.
func Claims(subject string, ttl time.Duration, roles ...string) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	switch len(roles) {
	case 0:
	case 1:
		claims["role"] = roles[0]
	default:
		claims["role"] = roles
	}
	return claims
}

// Sign signs claims with HS256 and secret.
func Sign(t testing.TB, secret string, claims jwt.MapClaims) string {
	t.Helper()
	return SignWith(t, jwt.SigningMethodHS256, secret, claims)
}

// SignWith signs claims with the given HMAC method.
func SignWith(t testing.TB, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// Bearer returns an Authorization header value for token.
func Bearer(token string) string {
	return "Bearer " + token
}
