package parser

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chr1sbest/payment-api/internal/model"
	"github.com/chr1sbest/payment-api/internal/openapi"
)

// ParseConfig reads an OpenAPI v3 YAML (or JSON) file and extracts access
// requirements into a Config structure.
func ParseConfig(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	return Parse(data)
}

// Parse extracts access requirements from an OpenAPI document. It focuses on
// paths, methods and security blocks; it does not attempt to fully model the
// description.
func Parse(data []byte) (*model.Config, error) {
	var root openapiRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshal description: %w", err)
	}

	policies := make(map[model.RouteKey]model.AccessPolicy)

	for rawPath, item := range root.Paths {
		if item == nil {
			continue
		}

		for method, op := range item.Operations() {
			if op == nil {
				continue
			}

			key := model.RouteKey{Method: method, Path: rawPath}
			policy, err := derivePolicy(&root, op)
			if err != nil {
				return nil, fmt.Errorf("derive policy for %s %s: %w", method, rawPath, err)
			}
			policies[key] = policy
		}
	}

	return &model.Config{Policies: policies}, nil
}

// openapiRoot is a minimal representation of the parts of an OpenAPI v3
// document we care about: global security and per-path operations.
type openapiRoot struct {
	Security []securityRequirement `yaml:"security"`
	Paths    map[string]*pathItem  `yaml:"paths"`
}

type pathItem struct {
	Get     *operation `yaml:"get"`
	Post    *operation `yaml:"post"`
	Put     *operation `yaml:"put"`
	Delete  *operation `yaml:"delete"`
	Patch   *operation `yaml:"patch"`
	Options *operation `yaml:"options"`
	Head    *operation `yaml:"head"`
}

// Operations returns a map of HTTP method (uppercase) to operation.
func (p *pathItem) Operations() map[string]*operation {
	ops := make(map[string]*operation)
	if p.Get != nil {
		ops["GET"] = p.Get
	}
	if p.Post != nil {
		ops["POST"] = p.Post
	}
	if p.Put != nil {
		ops["PUT"] = p.Put
	}
	if p.Delete != nil {
		ops["DELETE"] = p.Delete
	}
	if p.Patch != nil {
		ops["PATCH"] = p.Patch
	}
	if p.Options != nil {
		ops["OPTIONS"] = p.Options
	}
	if p.Head != nil {
		ops["HEAD"] = p.Head
	}
	return ops
}

type operation struct {
	Security []securityRequirement `yaml:"security"`
}

type securityRequirement map[string][]string

// derivePolicy determines the AccessPolicy for an operation, taking into
// account operation-level and root-level security requirements. The
// precedence rules follow the OpenAPI specification: operation.security
// overrides root.security when present. If security is present but no bearer
// requirement is found, an error is returned to avoid silently
// misconfiguring protection.
func derivePolicy(root *openapiRoot, op *operation) (model.AccessPolicy, error) {
	sec := op.Security
	if sec == nil {
		sec = root.Security
	}

	// No security section, or an explicit empty array: the operation is public.
	if len(sec) == 0 {
		return model.Public(), nil
	}

	for _, req := range sec {
		// An empty requirement object ({}) makes authentication optional.
		if len(req) == 0 {
			return model.Public(), nil
		}
	}

	for _, req := range sec {
		scopes, ok := req[openapi.BearerScheme]
		if !ok {
			continue
		}

		policy := model.AccessPolicy{RequireAuth: true}
		// Convention: "role:" scopes are roles, "policy:" names a policy.
		for _, s := range scopes {
			switch {
			case strings.HasPrefix(s, openapi.RoleScopePrefix):
				policy.Roles = append(policy.Roles, strings.TrimPrefix(s, openapi.RoleScopePrefix))
			case strings.HasPrefix(s, openapi.PolicyScopePrefix):
				policy.Policy = strings.TrimPrefix(s, openapi.PolicyScopePrefix)
			}
		}
		return policy, nil
	}

	// Security requirements exist but none reference the bearer scheme: treat
	// as configuration error rather than silently public.
	return model.AccessPolicy{}, fmt.Errorf("security section present but no %s requirement found", openapi.BearerScheme)
}

// Verify compares a parsed description against the declared policies and
// returns one line per disagreement, sorted. An empty result means the
// description matches.
func Verify(published, declared *model.Config) []string {
	var drift []string

	for key, want := range declared.Policies {
		got, ok := published.Policies[key]
		if !ok {
			drift = append(drift, fmt.Sprintf("%s: missing from description", key))
			continue
		}
		if got.Anonymous() != want.Anonymous() {
			drift = append(drift, fmt.Sprintf("%s: requires auth = %v, declared %v", key, !got.Anonymous(), !want.Anonymous()))
			continue
		}
		if want.Anonymous() {
			continue
		}
		if !sameSet(got.Roles, want.Roles) {
			drift = append(drift, fmt.Sprintf("%s: roles = %v, declared %v", key, got.Roles, want.Roles))
		}
		if got.Policy != want.Policy {
			drift = append(drift, fmt.Sprintf("%s: policy = %q, declared %q", key, got.Policy, want.Policy))
		}
	}

	for key := range published.Policies {
		if _, ok := declared.Policies[key]; !ok {
			drift = append(drift, fmt.Sprintf("%s: not declared by the service", key))
		}
	}

	sort.Strings(drift)
	return drift
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}
