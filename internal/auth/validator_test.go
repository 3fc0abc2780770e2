package auth

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1sbest/payment-api/internal/authtest"
)

func testRules(t *testing.T, mutate func(*RulesConfig)) TokenValidationRules {
	t.Helper()
	cfg := RulesConfig{
		Secret:                authtest.Secret,
		ValidateLifetime:      true,
		RequireExpirationTime: false,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	rules, err := NewRules(cfg)
	require.NoError(t, err)
	return rules
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()
	seg := strings.Split(token, ".")[1]
	raw, err := jwt.NewParser().DecodeSegment(seg)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestNewRules(t *testing.T) {
	_, err := NewRules(RulesConfig{})
	assert.Error(t, err, "empty secret must be rejected")

	_, err = NewRules(RulesConfig{Secret: "s", ValidateIssuer: true})
	assert.Error(t, err, "issuer validation needs an issuer")

	_, err = NewRules(RulesConfig{Secret: "s", ValidateAudience: true})
	assert.Error(t, err, "audience validation needs an audience")

	_, err = NewRules(RulesConfig{Secret: "s", ClockSkew: -time.Second})
	assert.Error(t, err)

	rules, err := NewRules(RulesConfig{Secret: "s", ValidateLifetime: true})
	require.NoError(t, err)
	assert.Equal(t, DefaultRolesClaim, rules.rolesClaim)
	assert.Zero(t, rules.ClockSkew())
	assert.True(t, rules.ValidatesLifetime())
}

func TestValidator_ValidTokenClaimsRoundTrip(t *testing.T) {
	v := NewValidator(testRules(t, nil))

	claims := authtest.Claims("user-1", time.Hour, "admin", "clerk")
	claims["custom"] = map[string]any{"nested": true}
	token := authtest.Sign(t, authtest.Secret, claims)

	id, err := v.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, decodePayload(t, token), id.Claims)
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, []string{"admin", "clerk"}, id.Roles)
	assert.False(t, id.IsAnonymous())
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 2*time.Second)
	assert.False(t, id.IssuedAt.IsZero())
}

func TestValidator_SingleStringRole(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	token := authtest.Sign(t, authtest.Secret, authtest.Claims("u", time.Hour, "admin"))

	id, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, id.Roles)
}

func TestValidator_CustomRolesClaim(t *testing.T) {
	v := NewValidator(testRules(t, func(c *RulesConfig) { c.RolesClaim = "roles" }))
	claims := authtest.Claims("u", time.Hour)
	claims["roles"] = []string{"auditor"}

	id, err := v.Validate(authtest.Sign(t, authtest.Secret, claims))
	require.NoError(t, err)
	assert.Equal(t, []string{"auditor"}, id.Roles)
}

func TestValidator_Expired(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	token := authtest.Sign(t, authtest.Secret, authtest.Claims("u", -time.Minute))

	_, err := v.Validate(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidator_ClockSkewTolerance(t *testing.T) {
	v := NewValidator(testRules(t, func(c *RulesConfig) { c.ClockSkew = time.Minute }))
	token := authtest.Sign(t, authtest.Secret, authtest.Claims("u", -30*time.Second))

	_, err := v.Validate(token)
	assert.NoError(t, err)
}

func TestValidator_InjectedClock(t *testing.T) {
	token := authtest.Sign(t, authtest.Secret, authtest.Claims("u", time.Hour))
	v := NewValidator(testRules(t, nil), WithClock(func() time.Time {
		return time.Now().Add(2 * time.Hour)
	}))

	_, err := v.Validate(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidator_ExpiryBoundary(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims := authtest.Claims("u", time.Hour)
	claims["exp"] = exp.Unix()
	token := authtest.Sign(t, authtest.Secret, claims)

	tests := []struct {
		name    string
		skew    time.Duration
		now     time.Time
		expired bool
	}{
		{"now equals exp", 0, exp, false},
		{"one second past exp", 0, exp.Add(time.Second), true},
		{"now minus skew equals exp", time.Minute, exp.Add(time.Minute), false},
		{"one second past skew", time.Minute, exp.Add(time.Minute + time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(
				testRules(t, func(c *RulesConfig) { c.ClockSkew = tt.skew }),
				WithClock(func() time.Time { return tt.now }),
			)
			_, err := v.Validate(token)
			if tt.expired {
				assert.ErrorIs(t, err, ErrExpired)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_NotBeforeWithinSkew(t *testing.T) {
	v := NewValidator(testRules(t, func(c *RulesConfig) { c.ClockSkew = time.Minute }))
	claims := authtest.Claims("u", time.Hour)
	claims["nbf"] = time.Now().Add(30 * time.Second).Unix()

	_, err := v.Validate(authtest.Sign(t, authtest.Secret, claims))
	assert.NoError(t, err)
}

func TestValidator_LifetimeDisabledAcceptsExpired(t *testing.T) {
	v := NewValidator(testRules(t, func(c *RulesConfig) { c.ValidateLifetime = false }))
	token := authtest.Sign(t, authtest.Secret, authtest.Claims("u", -time.Hour))

	_, err := v.Validate(token)
	assert.NoError(t, err)
}

func TestValidator_NotYetValid(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	claims := authtest.Claims("u", time.Hour)
	claims["nbf"] = time.Now().Add(10 * time.Minute).Unix()

	_, err := v.Validate(authtest.Sign(t, authtest.Secret, claims))
	assert.ErrorIs(t, err, ErrNotYetValid)
}

func TestValidator_RequireExpirationTime(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u"}
	token := authtest.Sign(t, authtest.Secret, claims)

	lax := NewValidator(testRules(t, nil))
	_, err := lax.Validate(token)
	assert.NoError(t, err)

	strict := NewValidator(testRules(t, func(c *RulesConfig) { c.RequireExpirationTime = true }))
	_, err = strict.Validate(token)
	assert.ErrorIs(t, err, ErrMissingExpiry)
}

func TestValidator_WrongKey(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	token := authtest.Sign(t, "a-completely-different-secret-value", authtest.Claims("u", time.Hour))

	_, err := v.Validate(token)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestValidator_PayloadTamperingInvalidatesSignature(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	token := authtest.Sign(t, authtest.Secret, authtest.Claims("user-1", time.Hour, "admin"))
	parts := strings.Split(token, ".")

	for i := 0; i < len(parts[1]); i++ {
		payload := []byte(parts[1])
		if payload[i] == 'A' {
			payload[i] = 'B'
		} else {
			payload[i] = 'A'
		}
		tampered := parts[0] + "." + string(payload) + "." + parts[2]

		_, err := v.Validate(tampered)
		require.ErrorIs(t, err, ErrSignatureInvalid, "byte %d", i)
	}
}

func TestValidator_Malformed(t *testing.T) {
	v := NewValidator(testRules(t, nil))

	for _, token := range []string{"", "abc", "a.b", "a.b.c.d", "a.b.c", "!!!.e30.sig"} {
		t.Run(token, func(t *testing.T) {
			_, err := v.Validate(token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestValidator_RejectsNonHMACAlgorithms(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, authtest.Claims("u", time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestValidator_AcceptsHS512(t *testing.T) {
	v := NewValidator(testRules(t, nil))
	token := authtest.SignWith(t, jwt.SigningMethodHS512, authtest.Secret, authtest.Claims("u", time.Hour))

	_, err := v.Validate(token)
	assert.NoError(t, err)
}

func TestValidator_IssuerAndAudience(t *testing.T) {
	claims := authtest.Claims("u", time.Hour)
	claims["iss"] = "someone-else"
	claims["aud"] = []string{"other-api"}
	token := authtest.Sign(t, authtest.Secret, claims)

	off := NewValidator(testRules(t, nil))
	_, err := off.Validate(token)
	assert.NoError(t, err, "issuer and audience are not checked by default")

	iss := NewValidator(testRules(t, func(c *RulesConfig) {
		c.ValidateIssuer = true
		c.Issuer = "payment-api"
	}))
	_, err = iss.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidIssuer)

	aud := NewValidator(testRules(t, func(c *RulesConfig) {
		c.ValidateAudience = true
		c.Audience = "payment-api"
	}))
	_, err = aud.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidAudience)

	claims["iss"] = "payment-api"
	claims["aud"] = "payment-api"
	good := authtest.Sign(t, authtest.Secret, claims)
	both := NewValidator(testRules(t, func(c *RulesConfig) {
		c.ValidateIssuer, c.Issuer = true, "payment-api"
		c.ValidateAudience, c.Audience = true, "payment-api"
	}))
	_, err = both.Validate(good)
	assert.NoError(t, err)
}

func TestStatusFor(t *testing.T) {
	for _, err := range []error{ErrMissingToken, ErrMalformedToken, ErrSignatureInvalid, ErrExpired, ErrMissingExpiry} {
		assert.Equal(t, 401, StatusFor(err), err.Error())
	}
	for _, err := range []error{ErrInsufficientRole, ErrPolicyDenied} {
		assert.Equal(t, 403, StatusFor(err), err.Error())
	}
}
