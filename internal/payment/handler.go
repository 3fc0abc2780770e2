package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Response statuses.
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
	StatusEmpty   = "Empty"
)

const maxBodyBytes = 1 << 20

// Handler serves the payment-detail CRUD endpoints.
type Handler struct {
	store Store
	log   *zap.Logger
}

// NewHandler creates a handler over store.
func NewHandler(store Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, log: log}
}

// List returns every record, or 404 "Empty" when there are none.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.internalError(w, "list", err)
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusNotFound, ResponseMessage{Status: StatusEmpty, Message: "Payment Details is empty!"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create stores a new record.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	failed := ResponseMessage{Status: StatusFailed, Message: "Created failed!"}

	var d PaymentDetail
	if err := decode(w, r, &d); err != nil {
		writeJSON(w, http.StatusBadRequest, failed)
		return
	}
	if err := d.Validate(); err != nil {
		h.log.Debug("create rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, failed)
		return
	}

	if err := h.store.Create(r.Context(), &d); err != nil {
		if errors.Is(err, ErrConflict) {
			writeJSON(w, http.StatusBadRequest, failed)
			return
		}
		h.internalError(w, "create", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%d", BasePath, d.PaymentDetailID))
	writeJSON(w, http.StatusOK, ResponseMessage{Status: StatusSuccess, Message: "Created successfully!"})
}

// Get returns one record.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	d, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		notFound(w, id)
		return
	}
	if err != nil {
		h.internalError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Update replaces a record. The body's id must match the path id.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	failed := ResponseMessage{Status: StatusFailed, Message: "Something went wrong!"}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var d PaymentDetail
	if err := decode(w, r, &d); err != nil {
		writeJSON(w, http.StatusBadRequest, failed)
		return
	}
	if d.PaymentDetailID != id {
		writeJSON(w, http.StatusBadRequest, failed)
		return
	}
	if err := d.Validate(); err != nil {
		h.log.Debug("update rejected", zap.Int("id", id), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, failed)
		return
	}

	err := h.store.Update(r.Context(), d)
	if errors.Is(err, ErrNotFound) {
		notFound(w, id)
		return
	}
	if err != nil {
		h.internalError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, ResponseMessage{Status: StatusSuccess, Message: "Updated successfully!"})
}

// Delete removes a record.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		notFound(w, id)
		return
	}
	if err != nil {
		h.internalError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, ResponseMessage{Status: StatusSuccess, Message: "Deleted successfully!"})
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.log.Error("payment store failure", zap.String("op", op), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, ResponseMessage{Status: StatusFailed, Message: "Internal server error"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ResponseMessage{Status: StatusFailed, Message: fmt.Sprintf("Invalid payment detail id %q", raw)})
		return 0, false
	}
	return id, true
}

func notFound(w http.ResponseWriter, id int) {
	writeJSON(w, http.StatusNotFound, ResponseMessage{
		Status:  StatusFailed,
		Message: fmt.Sprintf("Payment detail with Id %d Not Found!", id),
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
