// Package auth implements the bearer-token gate in front of the payment API.
//
// A Validator checks HMAC-signed JWTs against immutable TokenValidationRules
// and turns their claims into an Identity. The Gate exposes two chi-compatible
// middlewares: Authenticate attaches an Identity (or the anonymous identity)
// to the request context, and Authorize compares it with the endpoint's
// model.AccessPolicy. Validation sub-reasons never leave this package; callers
// see 401 or 403 only.
package auth
