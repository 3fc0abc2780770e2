package openapi

import "github.com/chr1sbest/payment-api/internal/model"

// Scope prefixes used to carry role and policy constraints in a bearer
// security requirement. OpenAPI 3.1 allows role names as scopes for
// non-OAuth schemes.
const (
	RoleScopePrefix   = "role:"
	PolicyScopePrefix = "policy:"
)

// Annotate injects the failure responses and security requirement implied
// by policy into op. Anonymous policies leave op untouched; role and policy
// constraints only add a 403 on top of the authenticated annotations.
//
// Annotate is idempotent: responses are keyed by status and the security
// requirement is replaced, never appended.
func Annotate(op *Operation, policy model.AccessPolicy) {
	if op == nil || policy.Anonymous() {
		return
	}

	if op.Responses == nil {
		op.Responses = make(map[string]*Response)
	}
	op.Responses["401"] = &Response{Description: "Unauthorized"}
	if policy.Restricted() {
		op.Responses["403"] = &Response{Description: "Forbidden"}
	}

	scopes := make([]string, 0, len(policy.Roles)+1)
	for _, role := range policy.Roles {
		scopes = append(scopes, RoleScopePrefix+role)
	}
	if policy.Policy != "" {
		scopes = append(scopes, PolicyScopePrefix+policy.Policy)
	}
	op.Security = []SecurityRequirement{{BearerScheme: scopes}}
}
