package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// TokenValidator turns a raw bearer token into an Identity.
type TokenValidator interface {
	Validate(token string) (*Identity, error)
}

// Validator validates HMAC-signed JWTs. It is safe for concurrent use.
type Validator struct {
	rules TokenValidationRules
	now   func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a validator bound to rules.
func NewValidator(rules TokenValidationRules, opts ...ValidatorOption) *Validator {
	v := &Validator{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks token and returns the identity it carries.
//
// The signature is verified over the raw segments before the payload is
// decoded, so any change to the header or payload yields ErrSignatureInvalid
// rather than a decoding error.
func (v *Validator) Validate(token string) (*Identity, error) {
	if err := v.verifySignature(token); err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(v.parserOptions()...).ParseWithClaims(token, claims, v.keyFunc)
	if err != nil {
		return nil, mapJWTError(err)
	}

	if err := v.checkClaims(claims); err != nil {
		return nil, err
	}

	return v.buildIdentity(claims), nil
}

// parserOptions leaves time-based claims to checkClaims: jwt's own check
// rejects a token whose expiry equals the current time, which must pass.
func (v *Validator) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{jwt.WithValidMethods(hmacMethods), jwt.WithoutClaimsValidation()}
}

func (v *Validator) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return v.rules.secret, nil
}

func (v *Validator) verifySignature(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}

	p := jwt.NewParser()
	rawHeader, err := p.DecodeSegment(parts[0])
	if err != nil {
		return fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	if !slices.Contains(hmacMethods, header.Alg) {
		return fmt.Errorf("%w: algorithm %q not accepted", ErrSignatureInvalid, header.Alg)
	}

	sig, err := p.DecodeSegment(parts[2])
	if err != nil {
		return fmt.Errorf("%w: signature: %v", ErrMalformedToken, err)
	}

	method := jwt.GetSigningMethod(header.Alg)
	if err := method.Verify(parts[0]+"."+parts[1], sig, v.rules.secret); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// checkClaims applies the lifetime, issuer and audience rules.
func (v *Validator) checkClaims(claims jwt.MapClaims) error {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: exp: %v", ErrMalformedToken, err)
	}
	if v.rules.requireExpirationTime && exp == nil {
		return ErrMissingExpiry
	}

	if v.rules.validateLifetime {
		now := v.now()
		if exp != nil && now.Add(-v.rules.clockSkew).After(exp.Time) {
			return fmt.Errorf("%w: expired at %s", ErrExpired, exp.Time.UTC().Format(time.RFC3339))
		}
		nbf, err := claims.GetNotBefore()
		if err != nil {
			return fmt.Errorf("%w: nbf: %v", ErrMalformedToken, err)
		}
		if nbf != nil && now.Add(v.rules.clockSkew).Before(nbf.Time) {
			return fmt.Errorf("%w: valid from %s", ErrNotYetValid, nbf.Time.UTC().Format(time.RFC3339))
		}
	}

	if v.rules.validateIssuer {
		iss, _ := claims.GetIssuer()
		if iss != v.rules.issuer {
			return ErrInvalidIssuer
		}
	}

	if v.rules.validateAudience {
		aud, _ := claims.GetAudience()
		if !slices.Contains(aud, v.rules.audience) {
			return ErrInvalidAudience
		}
	}
	return nil
}

func (v *Validator) buildIdentity(claims jwt.MapClaims) *Identity {
	id := &Identity{Claims: make(map[string]any, len(claims))}
	for k, val := range claims {
		id.Claims[k] = val
	}

	id.Subject, _ = claims.GetSubject()
	id.Roles = stringsClaim(claims[v.rules.rolesClaim])

	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		id.IssuedAt = iat.Time
	}
	return id
}

// stringsClaim reads a claim that may be a single string or an array of
// strings.
func stringsClaim(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

var _ TokenValidator = (*Validator)(nil)
