package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/minicrm/internal/ai"
	"github.com/ignite/minicrm/internal/pkg/logger"
	"github.com/ignite/minicrm/internal/service/campaign"
	"github.com/ignite/minicrm/internal/service/customer"
	"github.com/ignite/minicrm/internal/service/delivery"
	"github.com/ignite/minicrm/internal/service/order"
)

// maxBodyBytes caps request bodies; bulk imports fit comfortably under it.
const maxBodyBytes = 1 << 20

// envelope is the uniform response shape: {"ok": true, "data": ...} on
// success, {"ok": false, "error": "..."} on failure.
type envelope struct {
	OK      bool        `json:"ok"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *listMeta   `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// listMeta carries pagination info for list endpoints.
type listMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func newListMeta(page, limit, total int) *listMeta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &listMeta{Page: page, Limit: limit, Total: total, Pages: pages}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, envelope{OK: true, Data: data})
}

func respondList(w http.ResponseWriter, data interface{}, meta *listMeta) {
	respondJSON(w, http.StatusOK, envelope{OK: true, Data: data, Meta: meta})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{OK: false, Error: msg})
}

// respondServiceError maps a service-layer error onto the HTTP taxonomy and
// writes it. Unknown errors are logged and reported as a generic 500 so
// storage details never leak to clients.
func respondServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrCustomerNotFound),
		errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, delivery.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, customer.ErrDuplicateEmail),
		errors.Is(err, delivery.ErrAlreadyReconciled):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrNotDraft):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrUpstream), errors.Is(err, ai.ErrMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON request body into dst with a size cap. An empty
// body is reported as an error; handlers with optional bodies read manually.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer io.Copy(io.Discard, r.Body)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
