package auth

import (
	"errors"
	"time"
)

// DefaultRolesClaim is the claim roles are read from when none is configured.
const DefaultRolesClaim = "role"

// TokenValidationRules is the immutable validation configuration shared by
// every request. Build it once with NewRules and never mutate it.
type TokenValidationRules struct {
	secret []byte

	validateIssuer   bool
	issuer           string
	validateAudience bool
	audience         string

	validateLifetime      bool
	requireExpirationTime bool
	clockSkew             time.Duration

	rolesClaim string
}

// RulesConfig carries the settings NewRules turns into TokenValidationRules.
type RulesConfig struct {
	Secret string

	ValidateIssuer bool
	Issuer         string

	ValidateAudience bool
	Audience         string

	ValidateLifetime      bool
	RequireExpirationTime bool
	ClockSkew             time.Duration

	// RolesClaim names the claim holding roles. Default: "role".
	RolesClaim string
}

// NewRules validates cfg and returns the rules. A missing secret is a
// configuration error that must abort startup.
func NewRules(cfg RulesConfig) (TokenValidationRules, error) {
	if cfg.Secret == "" {
		return TokenValidationRules{}, errors.New("jwt secret is required")
	}
	if cfg.ValidateIssuer && cfg.Issuer == "" {
		return TokenValidationRules{}, errors.New("issuer validation enabled without an issuer")
	}
	if cfg.ValidateAudience && cfg.Audience == "" {
		return TokenValidationRules{}, errors.New("audience validation enabled without an audience")
	}
	if cfg.ClockSkew < 0 {
		return TokenValidationRules{}, errors.New("clock skew must not be negative")
	}
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = DefaultRolesClaim
	}

	return TokenValidationRules{
		secret:                []byte(cfg.Secret),
		validateIssuer:        cfg.ValidateIssuer,
		issuer:                cfg.Issuer,
		validateAudience:      cfg.ValidateAudience,
		audience:              cfg.Audience,
		validateLifetime:      cfg.ValidateLifetime,
		requireExpirationTime: cfg.RequireExpirationTime,
		clockSkew:             cfg.ClockSkew,
		rolesClaim:            cfg.RolesClaim,
	}, nil
}

// ClockSkew returns the tolerated clock skew.
func (r TokenValidationRules) ClockSkew() time.Duration {
	return r.clockSkew
}

// ValidatesLifetime reports whether expiry is enforced.
func (r TokenValidationRules) ValidatesLifetime() bool {
	return r.validateLifetime
}
