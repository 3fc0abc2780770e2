package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RouteKey uniquely identifies an operation by HTTP method and router path
// pattern (e.g. "/api/PaymentDetail/{id}").
type RouteKey struct {
	Method string
	Path   string
}

// String renders the key as "METHOD /path".
func (k RouteKey) String() string {
	return k.Method + " " + k.Path
}

// AccessPolicy represents the access requirements declared for a single
// operation. The same value is read by the runtime gates and by the API
// description annotator, so the two can never disagree.
//
// AllowAnonymous overrides every other field. Roles is a set of roles of
// which the caller needs at least one; empty means any authenticated identity
// suffices. Policy names an additional predicate evaluated over the identity.
type AccessPolicy struct {
	RequireAuth    bool
	AllowAnonymous bool
	Roles          []string
	Policy         string
}

// Anonymous reports whether callers without an identity may reach the
// operation.
func (p AccessPolicy) Anonymous() bool {
	return p.AllowAnonymous || !p.RequireAuth
}

// Restricted reports whether the policy narrows access beyond "authenticated".
func (p AccessPolicy) Restricted() bool {
	return len(p.Roles) > 0 || p.Policy != ""
}

// Public returns a policy for operations anyone may call.
func Public() AccessPolicy {
	return AccessPolicy{AllowAnonymous: true}
}

// Authenticated returns a policy requiring a valid identity and, optionally,
// at least one of roles.
func Authenticated(roles ...string) AccessPolicy {
	return AccessPolicy{RequireAuth: true, Roles: roles}
}

// Config is the in-memory representation of all access policies derived from
// an API description.
type Config struct {
	Policies map[RouteKey]AccessPolicy
}

// Endpoint is the declaration of one operation: where it lives, how it is
// documented and who may call it.
type Endpoint struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	Tags        []string

	// PathParams lists path parameters, in order, that are integers.
	PathParams []string

	// RequestSchema and ResponseSchema name component schemas; empty means
	// the operation has no body / an untyped response.
	RequestSchema  string
	ResponseSchema string
	ResponseArray  bool

	Policy AccessPolicy
}

// Key returns the endpoint's RouteKey.
func (e Endpoint) Key() RouteKey {
	return RouteKey{Method: e.Method, Path: e.Path}
}

// Route pairs an Endpoint with the handler serving it.
type Route struct {
	Endpoint
	Handler http.Handler
}

// ErrUndeclaredPolicy is returned when an endpoint is registered without an
// explicit access decision.
var ErrUndeclaredPolicy = errors.New("endpoint has no explicit access policy")

// Registry is the ordered set of declared endpoints. It is built once at
// startup and read-only afterwards.
type Registry struct {
	endpoints []Endpoint
	index     map[RouteKey]int
}

// NewRegistry creates a registry from endpoints, failing on the first invalid
// or duplicate declaration.
func NewRegistry(endpoints ...Endpoint) (*Registry, error) {
	r := &Registry{index: make(map[RouteKey]int)}
	for _, e := range endpoints {
		if err := r.Add(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends an endpoint. Every endpoint must state either RequireAuth or
// AllowAnonymous; there is no implicit default.
func (r *Registry) Add(e Endpoint) error {
	e.Method = strings.ToUpper(e.Method)
	if e.Method == "" || e.Path == "" {
		return errors.New("endpoint method and path are required")
	}
	if !e.Policy.RequireAuth && !e.Policy.AllowAnonymous {
		return fmt.Errorf("%s: %w", e.Key(), ErrUndeclaredPolicy)
	}
	if _, dup := r.index[e.Key()]; dup {
		return fmt.Errorf("endpoint %s registered twice", e.Key())
	}
	r.index[e.Key()] = len(r.endpoints)
	r.endpoints = append(r.endpoints, e)
	return nil
}

// Endpoints returns the declared endpoints in registration order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Lookup returns the policy for key.
func (r *Registry) Lookup(key RouteKey) (AccessPolicy, bool) {
	i, ok := r.index[RouteKey{Method: strings.ToUpper(key.Method), Path: key.Path}]
	if !ok {
		return AccessPolicy{}, false
	}
	return r.endpoints[i].Policy, true
}

// Config returns the registry's policies in the same shape the description
// parser produces.
func (r *Registry) Config() *Config {
	policies := make(map[RouteKey]AccessPolicy, len(r.endpoints))
	for _, e := range r.endpoints {
		policies[e.Key()] = e.Policy
	}
	return &Config{Policies: policies}
}
