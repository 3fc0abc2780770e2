package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chr1sbest/payment-api/internal/model"
)

// Gate stages, as reported to the Recorder.
const (
	StageAuthenticate = "authenticate"
	StageAuthorize    = "authorize"
)

// PolicyResolver returns the access policy declared for the endpoint r is
// routed to. ok is false for routes with no declaration (health, metrics).
type PolicyResolver func(r *http.Request) (policy model.AccessPolicy, ok bool)

// RouteResolver resolves policies from reg using chi's matched route
// pattern. The gates must therefore run as route middleware (chi's With),
// after routing has populated the pattern.
func RouteResolver(reg *model.Registry) PolicyResolver {
	return func(r *http.Request) (model.AccessPolicy, bool) {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return model.AccessPolicy{}, false
		}
		return reg.Lookup(model.RouteKey{Method: r.Method, Path: rctx.RoutePattern()})
	}
}

// Recorder observes gate outcomes.
type Recorder interface {
	AuthDecision(stage, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthDecision(string, string) {}

// Gate holds the authentication and authorization middlewares. All of its
// fields are read-only after NewGate returns.
type Gate struct {
	validator TokenValidator
	resolve   PolicyResolver
	policies  PolicySet
	log       *zap.Logger
	rec       Recorder
	disabled  bool
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPolicies sets the named policies available to endpoint declarations.
func WithPolicies(p PolicySet) GateOption {
	return func(g *Gate) { g.policies = p }
}

// WithLogger sets the logger used for rejected requests.
func WithLogger(l *zap.Logger) GateOption {
	return func(g *Gate) { g.log = l }
}

// WithRecorder sets the decision recorder.
func WithRecorder(r Recorder) GateOption {
	return func(g *Gate) { g.rec = r }
}

// Disabled turns both gates into pass-throughs that attach the anonymous
// identity.
func Disabled() GateOption {
	return func(g *Gate) { g.disabled = true }
}

// NewGate creates a gate validating tokens with v and resolving endpoint
// policies with resolve.
func NewGate(v TokenValidator, resolve PolicyResolver, opts ...GateOption) *Gate {
	g := &Gate{
		validator: v,
		resolve:   resolve,
		policies:  PolicySet{},
		log:       zap.NewNop(),
		rec:       nopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate attaches the caller's Identity to the request context.
//
// A presented token is always validated. On endpoints that require
// authentication a missing or invalid token ends the request with 401; on
// anonymous endpoints the request proceeds with the anonymous identity.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.disabled {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous())))
			return
		}

		policy, declared := g.resolve(r)
		anonymousOK := !declared || policy.Anonymous()

		token, ok := BearerToken(r.Header.Get("Authorization"))
		if !ok {
			if !anonymousOK {
				g.deny(w, r, StageAuthenticate, Deny(ErrMissingToken))
				return
			}
			g.rec.AuthDecision(StageAuthenticate, "anonymous")
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous())))
			return
		}

		id, err := g.validator.Validate(token)
		if err != nil {
			if !anonymousOK {
				g.deny(w, r, StageAuthenticate, Deny(err))
				return
			}
			g.log.Debug("ignoring invalid token on anonymous endpoint",
				zap.String("path", r.URL.Path), zap.Error(err))
			g.rec.AuthDecision(StageAuthenticate, "anonymous")
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous())))
			return
		}

		g.rec.AuthDecision(StageAuthenticate, "authenticated")
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Authorize enforces the endpoint's roles and named policy against the
// identity attached by Authenticate.
func (g *Gate) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.disabled {
			next.ServeHTTP(w, r)
			return
		}

		policy, declared := g.resolve(r)
		if !declared {
			next.ServeHTTP(w, r)
			return
		}

		if err := Decide(policy, IdentityFromContext(r.Context()), g.policies); err != nil {
			var deny *DenyError
			if !errors.As(err, &deny) {
				deny = Deny(err)
			}
			g.deny(w, r, StageAuthorize, deny)
			return
		}

		g.rec.AuthDecision(StageAuthorize, "allowed")
		next.ServeHTTP(w, r)
	})
}

type denyBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, stage string, d *DenyError) {
	g.log.Debug("request rejected",
		zap.String("stage", stage),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", d.Status),
		zap.Error(d.Reason),
	)

	body := denyBody{Status: "Unauthorized", Message: "Authentication required"}
	outcome := "unauthorized"
	if d.Status == http.StatusForbidden {
		body = denyBody{Status: "Forbidden", Message: "Insufficient permissions"}
		outcome = "forbidden"
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	g.rec.AuthDecision(stage, outcome)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(body)
}

// BearerToken extracts the token from an Authorization header value. ok is
// false when the header is empty or uses another scheme.
func BearerToken(header string) (token string, ok bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token = strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
