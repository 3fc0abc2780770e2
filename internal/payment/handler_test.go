package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1sbest/payment-api/internal/model"
)

func sampleDetail(id int) PaymentDetail {
	return PaymentDetail{
		PaymentDetailID: id,
		CardOwnerName:   "Ada Lovelace",
		CardNumber:      "4111111111111111",
		ExpirationDate:  time.Date(2030, 12, 1, 0, 0, 0, 0, time.UTC),
		SecurityCode:    "123",
	}
}

func newRouter(store Store) http.Handler {
	h := NewHandler(store, nil)
	r := chi.NewRouter()
	for _, rt := range Routes(h, false) {
		r.Method(rt.Method, rt.Path, rt.Handler)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) ResponseMessage {
	t.Helper()
	var msg ResponseMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg), rec.Body.String())
	return msg
}

func TestHandler_ListEmpty(t *testing.T) {
	rec := do(t, newRouter(NewMemoryStore()), http.MethodGet, BasePath, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ResponseMessage{Status: StatusEmpty, Message: "Payment Details is empty!"}, decodeMessage(t, rec))
}

func TestHandler_CreateThenList(t *testing.T) {
	store := NewMemoryStore()
	router := newRouter(store)

	rec := do(t, router, http.MethodPost, BasePath, sampleDetail(0))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ResponseMessage{Status: StatusSuccess, Message: "Created successfully!"}, decodeMessage(t, rec))
	assert.Equal(t, BasePath+"/1", rec.Header().Get("Location"))

	rec = do(t, router, http.MethodGet, BasePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []PaymentDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, sampleDetail(1), items[0])
}

func TestHandler_CreateRejects(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), ptr(sampleDetail(7))))
	router := newRouter(store)

	bad := sampleDetail(0)
	bad.CardNumber = "1234"

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"cardOwnerName":`},
		{"invalid card number", bad},
		{"duplicate id", sampleDetail(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, BasePath, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, ResponseMessage{Status: StatusFailed, Message: "Created failed!"}, decodeMessage(t, rec))
		})
	}
}

func TestHandler_Get(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), ptr(sampleDetail(3))))
	router := newRouter(store)

	rec := do(t, router, http.MethodGet, BasePath+"/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got PaymentDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, sampleDetail(3), got)

	rec = do(t, router, http.MethodGet, BasePath+"/4", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Payment detail with Id 4 Not Found!", decodeMessage(t, rec).Message)

	rec = do(t, router, http.MethodGet, BasePath+"/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, StatusFailed, decodeMessage(t, rec).Status)
}

func TestHandler_Update(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), ptr(sampleDetail(2))))
	router := newRouter(store)

	changed := sampleDetail(2)
	changed.CardOwnerName = "Grace Hopper"

	rec := do(t, router, http.MethodPut, BasePath+"/2", changed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Updated successfully!", decodeMessage(t, rec).Message)

	got, err := store.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", got.CardOwnerName)

	rec = do(t, router, http.MethodPut, BasePath+"/5", changed)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Something went wrong!", decodeMessage(t, rec).Message)

	rec = do(t, router, http.MethodPut, BasePath+"/9", sampleDetail(9))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Payment detail with Id 9 Not Found!", decodeMessage(t, rec).Message)
}

func TestHandler_Delete(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), ptr(sampleDetail(1))))
	router := newRouter(store)

	rec := do(t, router, http.MethodDelete, BasePath+"/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Deleted successfully!", decodeMessage(t, rec).Message)

	rec = do(t, router, http.MethodDelete, BasePath+"/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingStore struct{ Store }

func (failingStore) List(context.Context) ([]PaymentDetail, error) {
	return nil, errors.New("disk on fire")
}

func TestHandler_StoreFailureIs500(t *testing.T) {
	rec := do(t, newRouter(failingStore{NewMemoryStore()}), http.MethodGet, BasePath, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ResponseMessage{Status: StatusFailed, Message: "Internal server error"}, decodeMessage(t, rec))
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestRoutes_Policies(t *testing.T) {
	h := NewHandler(NewMemoryStore(), nil)

	for _, rt := range Routes(h, false) {
		assert.True(t, rt.Policy.Anonymous(), "%s should be public when unprotected", rt.Key())
	}

	byKey := map[string]model.Route{}
	for _, rt := range Routes(h, true) {
		assert.True(t, rt.Policy.RequireAuth, "%s", rt.Key())
		assert.False(t, rt.Policy.AllowAnonymous, "%s", rt.Key())
		byKey[rt.Key().String()] = rt
	}
	assert.Equal(t, []string{AdminRole}, byKey["DELETE "+BasePath+"/{id}"].Policy.Roles)
	assert.Equal(t, WritePolicy, byKey["PUT "+BasePath+"/{id}"].Policy.Policy)

	_, ok := Policies()[WritePolicy]
	assert.True(t, ok)
}

func ptr(d PaymentDetail) *PaymentDetail { return &d }
