package openapi

import (
	"fmt"
	"strings"

	"github.com/chr1sbest/payment-api/internal/model"
)

// Version is the OpenAPI version emitted by Build.
const Version = "3.1.0"

// Build walks the registry in order and produces the annotated description.
// It runs once, before the server starts accepting traffic.
func Build(info Info, reg *model.Registry, schemas map[string]*Schema) (*Document, error) {
	doc := &Document{
		OpenAPI: Version,
		Info:    info,
		Paths:   make(map[string]*PathItem),
		Components: Components{
			Schemas:         schemas,
			SecuritySchemes: map[string]*SecurityScheme{BearerScheme: bearerScheme()},
		},
	}

	for _, e := range reg.Endpoints() {
		item, ok := doc.Paths[e.Path]
		if !ok {
			item = &PathItem{}
			doc.Paths[e.Path] = item
		}

		slot := item.Operation(e.Method)
		if slot == nil {
			return nil, fmt.Errorf("%s: method not supported in description", e.Key())
		}

		op := operationFor(e)
		Annotate(op, e.Policy)
		*slot = op
	}
	return doc, nil
}

func bearerScheme() *SecurityScheme {
	return &SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
		Description:  "Enter 'Bearer' [space] and then your valid token in the text input below.",
	}
}

func operationFor(e model.Endpoint) *Operation {
	op := &Operation{
		OperationID: e.OperationID,
		Summary:     e.Summary,
		Tags:        e.Tags,
		Responses:   map[string]*Response{"200": {Description: "OK"}},
	}

	for _, name := range e.PathParams {
		op.Parameters = append(op.Parameters, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &Schema{Type: "integer", Format: "int32"},
		})
	}
	if len(e.PathParams) > 0 {
		op.Responses["404"] = &Response{Description: "Not Found", Content: jsonContent(ref("ResponseMessage"))}
	}

	if e.RequestSchema != "" {
		op.RequestBody = &RequestBody{Required: true, Content: jsonContent(ref(e.RequestSchema))}
		op.Responses["400"] = &Response{Description: "Bad Request", Content: jsonContent(ref("ResponseMessage"))}
	}

	if e.ResponseSchema != "" {
		schema := ref(e.ResponseSchema)
		if e.ResponseArray {
			schema = &Schema{Type: "array", Items: schema}
		}
		op.Responses["200"].Content = jsonContent(schema)
	}
	return op
}

func ref(name string) *Schema {
	if strings.HasPrefix(name, "#/") {
		return &Schema{Ref: name}
	}
	return &Schema{Ref: "#/components/schemas/" + name}
}

func jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}
