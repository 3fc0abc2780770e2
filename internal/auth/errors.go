package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for authentication and authorization.
var (
	// Authentication errors, surfaced as 401.
	ErrMissingToken     = errors.New("auth: missing bearer token")
	ErrMalformedToken   = errors.New("auth: token malformed")
	ErrSignatureInvalid = errors.New("auth: token signature invalid")
	ErrExpired          = errors.New("auth: token expired")
	ErrNotYetValid      = errors.New("auth: token not yet valid")
	ErrMissingExpiry    = errors.New("auth: token has no expiration time")
	ErrInvalidIssuer    = errors.New("auth: token issuer rejected")
	ErrInvalidAudience  = errors.New("auth: token audience rejected")

	// Authorization errors, surfaced as 403.
	ErrInsufficientRole = errors.New("auth: insufficient role")
	ErrPolicyDenied     = errors.New("auth: policy denied")
)

// DenyError is a gate decision rejecting a request.
type DenyError struct {
	// Status is the HTTP status returned to the caller (401 or 403).
	Status int

	// Reason is the internal cause. It is logged, never sent to the caller.
	Reason error
}

// Error reports the status code and the reason.
func (e *DenyError) Error() string {
	return fmt.Sprintf("access denied (%d): %v", e.Status, e.Reason)
}

// Unwrap returns the reason for errors.Is/As support.
func (e *DenyError) Unwrap() error {
	return e.Reason
}

// Deny wraps reason into a DenyError with the status it collapses to.
func Deny(reason error) *DenyError {
	return &DenyError{Status: StatusFor(reason), Reason: reason}
}

// StatusFor maps an auth error onto the status code exposed at the gate
// boundary.
func StatusFor(err error) int {
	if errors.Is(err, ErrInsufficientRole) || errors.Is(err, ErrPolicyDenied) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
