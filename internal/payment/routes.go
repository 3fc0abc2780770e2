package payment

import (
	"net/http"

	"github.com/chr1sbest/payment-api/internal/auth"
	"github.com/chr1sbest/payment-api/internal/model"
	"github.com/chr1sbest/payment-api/internal/openapi"
)

// BasePath is where the payment-detail endpoints are mounted.
const BasePath = "/api/PaymentDetail"

// Access constants used by the protected route set.
const (
	AdminRole   = "admin"
	WritePolicy = "payments:write"
)

// Policies returns the named policies the protected routes reference.
func Policies() auth.PolicySet {
	return auth.PolicySet{
		WritePolicy: auth.AnyOf(auth.RequireRole(AdminRole), auth.RequireClaim("scope", WritePolicy)),
	}
}

// Routes declares the CRUD endpoints. With protect set, every endpoint
// requires an authenticated caller, updates additionally need WritePolicy
// and deletes need AdminRole; otherwise every endpoint is explicitly public.
func Routes(h *Handler, protect bool) []model.Route {
	policy := func(p model.AccessPolicy) model.AccessPolicy {
		if !protect {
			return model.Public()
		}
		return p
	}
	tags := []string{"PaymentDetail"}

	return []model.Route{
		{
			Endpoint: model.Endpoint{
				Method:         http.MethodGet,
				Path:           BasePath,
				OperationID:    "GetPaymentDetails",
				Summary:        "List payment details",
				Tags:           tags,
				ResponseSchema: "PaymentDetail",
				ResponseArray:  true,
				Policy:         policy(model.Authenticated()),
			},
			Handler: http.HandlerFunc(h.List),
		},
		{
			Endpoint: model.Endpoint{
				Method:         http.MethodPost,
				Path:           BasePath,
				OperationID:    "CreatePaymentDetail",
				Summary:        "Create a payment detail",
				Tags:           tags,
				RequestSchema:  "PaymentDetail",
				ResponseSchema: "ResponseMessage",
				Policy:         policy(model.Authenticated()),
			},
			Handler: http.HandlerFunc(h.Create),
		},
		{
			Endpoint: model.Endpoint{
				Method:         http.MethodGet,
				Path:           BasePath + "/{id}",
				OperationID:    "GetPaymentDetailById",
				Summary:        "Get a payment detail",
				Tags:           tags,
				PathParams:     []string{"id"},
				ResponseSchema: "PaymentDetail",
				Policy:         policy(model.Authenticated()),
			},
			Handler: http.HandlerFunc(h.Get),
		},
		{
			Endpoint: model.Endpoint{
				Method:         http.MethodPut,
				Path:           BasePath + "/{id}",
				OperationID:    "UpdatePaymentDetail",
				Summary:        "Update a payment detail",
				Tags:           tags,
				PathParams:     []string{"id"},
				RequestSchema:  "PaymentDetail",
				ResponseSchema: "ResponseMessage",
				Policy:         policy(model.AccessPolicy{RequireAuth: true, Policy: WritePolicy}),
			},
			Handler: http.HandlerFunc(h.Update),
		},
		{
			Endpoint: model.Endpoint{
				Method:         http.MethodDelete,
				Path:           BasePath + "/{id}",
				OperationID:    "DeletePaymentDetail",
				Summary:        "Delete a payment detail",
				Tags:           tags,
				PathParams:     []string{"id"},
				ResponseSchema: "ResponseMessage",
				Policy:         policy(model.Authenticated(AdminRole)),
			},
			Handler: http.HandlerFunc(h.Delete),
		},
	}
}

// Schemas returns the component schemas referenced by Routes.
func Schemas() map[string]*openapi.Schema {
	str := func() *openapi.Schema { return &openapi.Schema{Type: "string"} }
	return map[string]*openapi.Schema{
		"PaymentDetail": {
			Type:     "object",
			Required: []string{"cardOwnerName", "cardNumber", "expirationDate", "securityCode"},
			Properties: map[string]*openapi.Schema{
				"paymentDetailId": {Type: "integer", Format: "int32"},
				"cardOwnerName":   {Type: "string", MaxLength: maxOwnerNameLen},
				"cardNumber":      {Type: "string", Pattern: `^\d{16}$`},
				"expirationDate":  {Type: "string", Format: "date-time"},
				"securityCode":    {Type: "string", Pattern: `^\d{3}$`},
			},
		},
		"ResponseMessage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"status":  str(),
				"message": str(),
			},
		},
	}
}
