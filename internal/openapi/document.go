// Package openapi builds the published API description for the service.
//
// Only the subset of OpenAPI 3.1 the service emits is modelled. Security
// metadata is derived from each endpoint's model.AccessPolicy by Annotate, so
// the description and the runtime gates read the same declaration.
package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// BearerScheme is the name of the security scheme referenced by protected
// operations.
const BearerScheme = "BearerAuth"

// Document is an OpenAPI 3.1 document.
type Document struct {
	OpenAPI    string               `yaml:"openapi" json:"openapi"`
	Info       Info                 `yaml:"info" json:"info"`
	Paths      map[string]*PathItem `yaml:"paths" json:"paths"`
	Components Components           `yaml:"components" json:"components"`
}

// Info is the document metadata.
type Info struct {
	Title       string `yaml:"title" json:"title"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// PathItem holds the operations of one path.
type PathItem struct {
	Get    *Operation `yaml:"get,omitempty" json:"get,omitempty"`
	Post   *Operation `yaml:"post,omitempty" json:"post,omitempty"`
	Put    *Operation `yaml:"put,omitempty" json:"put,omitempty"`
	Delete *Operation `yaml:"delete,omitempty" json:"delete,omitempty"`
	Patch  *Operation `yaml:"patch,omitempty" json:"patch,omitempty"`
}

// Operation returns a pointer to the slot for method, or nil if the method
// is not modelled.
func (p *PathItem) Operation(method string) **Operation {
	switch method {
	case "GET":
		return &p.Get
	case "POST":
		return &p.Post
	case "PUT":
		return &p.Put
	case "DELETE":
		return &p.Delete
	case "PATCH":
		return &p.Patch
	}
	return nil
}

// Operation describes one endpoint.
type Operation struct {
	OperationID string                `yaml:"operationId,omitempty" json:"operationId,omitempty"`
	Summary     string                `yaml:"summary,omitempty" json:"summary,omitempty"`
	Tags        []string              `yaml:"tags,omitempty" json:"tags,omitempty"`
	Parameters  []Parameter           `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	RequestBody *RequestBody          `yaml:"requestBody,omitempty" json:"requestBody,omitempty"`
	Responses   map[string]*Response  `yaml:"responses" json:"responses"`
	Security    []SecurityRequirement `yaml:"security,omitempty" json:"security,omitempty"`
}

// SecurityRequirement maps scheme names to required scopes.
type SecurityRequirement map[string][]string

// Parameter is a path/query/header parameter.
type Parameter struct {
	Name     string  `yaml:"name" json:"name"`
	In       string  `yaml:"in" json:"in"`
	Required bool    `yaml:"required" json:"required"`
	Schema   *Schema `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// RequestBody describes an operation's input.
type RequestBody struct {
	Required bool                 `yaml:"required" json:"required"`
	Content  map[string]MediaType `yaml:"content" json:"content"`
}

// Response describes one declared response.
type Response struct {
	Description string               `yaml:"description" json:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty" json:"content,omitempty"`
}

// MediaType wraps a schema for a content type.
type MediaType struct {
	Schema *Schema `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// Schema is a JSON schema subset.
type Schema struct {
	Ref        string             `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Type       string             `yaml:"type,omitempty" json:"type,omitempty"`
	Format     string             `yaml:"format,omitempty" json:"format,omitempty"`
	Required   []string           `yaml:"required,omitempty" json:"required,omitempty"`
	Properties map[string]*Schema `yaml:"properties,omitempty" json:"properties,omitempty"`
	Items      *Schema            `yaml:"items,omitempty" json:"items,omitempty"`
	MaxLength  int                `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Pattern    string             `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Components holds reusable definitions.
type Components struct {
	Schemas         map[string]*Schema         `yaml:"schemas,omitempty" json:"schemas,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `yaml:"securitySchemes,omitempty" json:"securitySchemes,omitempty"`
}

// SecurityScheme describes an authentication mechanism.
type SecurityScheme struct {
	Type         string `yaml:"type" json:"type"`
	Scheme       string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	BearerFormat string `yaml:"bearerFormat,omitempty" json:"bearerFormat,omitempty"`
	Name         string `yaml:"name,omitempty" json:"name,omitempty"`
	In           string `yaml:"in,omitempty" json:"in,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Output formats understood by Encode.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Encode serializes doc as YAML or JSON.
func Encode(doc *Document, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return buf.Bytes(), nil
}
