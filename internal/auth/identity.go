package auth

import (
	"slices"
	"time"
)

// Identity is the result of a successful token validation. It is owned by
// the request it was derived for.
type Identity struct {
	// Subject is the "sub" claim.
	Subject string

	// Roles are taken from the configured roles claim.
	Roles []string

	// Claims holds the token payload exactly as decoded.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time

	anonymous bool
}

// Anonymous returns the identity attached to requests that carry no valid
// token.
func Anonymous() *Identity {
	return &Identity{anonymous: true, Claims: map[string]any{}}
}

// IsAnonymous reports whether the identity is the anonymous marker.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.anonymous
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// HasAnyRole reports whether the identity carries at least one of roles.
func (id *Identity) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}
