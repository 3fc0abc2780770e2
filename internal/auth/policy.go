package auth

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chr1sbest/payment-api/internal/model"
)

// PolicyFunc is a named authorization predicate over an identity.
type PolicyFunc func(id *Identity) bool

// PolicySet maps policy names to predicates. It is built at startup and only
// read afterwards.
type PolicySet map[string]PolicyFunc

// Evaluate runs the named policy against id. Unknown names deny.
func (s PolicySet) Evaluate(name string, id *Identity) error {
	fn, ok := s[name]
	if !ok {
		return fmt.Errorf("%w: unknown policy %q", ErrPolicyDenied, name)
	}
	if !fn(id) {
		return fmt.Errorf("%w: %s", ErrPolicyDenied, name)
	}
	return nil
}

// RequireRole is satisfied by identities holding at least one of roles.
func RequireRole(roles ...string) PolicyFunc {
	return func(id *Identity) bool {
		return id.HasAnyRole(roles...)
	}
}

// RequireClaim is satisfied when claim is present and, if values are given,
// contains one of them. Space-delimited strings (OAuth scope style) and
// arrays are both understood.
func RequireClaim(claim string, values ...string) PolicyFunc {
	return func(id *Identity) bool {
		if id.IsAnonymous() {
			return false
		}
		raw, ok := id.Claims[claim]
		if !ok {
			return false
		}
		if len(values) == 0 {
			return true
		}
		have := stringsClaim(raw)
		if s, ok := raw.(string); ok {
			have = strings.Fields(s)
		}
		for _, v := range values {
			if slices.Contains(have, v) {
				return true
			}
		}
		return false
	}
}

// AnyOf is satisfied when at least one of fns is.
func AnyOf(fns ...PolicyFunc) PolicyFunc {
	return func(id *Identity) bool {
		for _, fn := range fns {
			if fn(id) {
				return true
			}
		}
		return false
	}
}

// Decide applies policy to id. It returns nil when access is granted and a
// *DenyError otherwise. Anonymous policies always grant.
func Decide(policy model.AccessPolicy, id *Identity, policies PolicySet) error {
	if policy.Anonymous() {
		return nil
	}
	if id.IsAnonymous() {
		return Deny(ErrMissingToken)
	}
	if len(policy.Roles) > 0 && !id.HasAnyRole(policy.Roles...) {
		return Deny(fmt.Errorf("%w: need one of %v", ErrInsufficientRole, policy.Roles))
	}
	if policy.Policy != "" {
		if err := policies.Evaluate(policy.Policy, id); err != nil {
			return Deny(err)
		}
	}
	return nil
}
