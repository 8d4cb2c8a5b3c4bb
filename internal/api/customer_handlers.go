package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/customer"
)

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type customerUpdatePayload struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// validateCustomerPayload mirrors the service checks so user mistakes come
// back as 400 instead of surfacing from deeper layers.
func validateCustomerPayload(p customerPayload) string {
	if strings.TrimSpace(p.Name) == "" {
		return "name is required"
	}
	if !plausibleEmail(p.Email) {
		return "a valid email is required"
	}
	return ""
}

func plausibleEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}

// CreateCustomer handles POST /api/v1/customers.
func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var p customerPayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateCustomerPayload(p); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	c, err := h.customers.Create(r.Context(), customer.CreateInput{
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, c)
}

// BulkImportCustomers handles POST /api/v1/customers/bulk. The whole batch
// is rejected on the first invalid row.
func (h *Handlers) BulkImportCustomers(w http.ResponseWriter, r *http.Request) {
	var rows []customerPayload
	if err := decodeBody(w, r, &rows); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusBadRequest, "at least one customer is required")
		return
	}

	inputs := make([]customer.CreateInput, len(rows))
	for i, p := range rows {
		if msg := validateCustomerPayload(p); msg != "" {
			respondError(w, http.StatusBadRequest, "row "+strconv.Itoa(i+1)+": "+msg)
			return
		}
		inputs[i] = customer.CreateInput{Name: p.Name, Email: p.Email, Phone: p.Phone}
	}

	created, err := h.customers.BulkImport(r.Context(), inputs)
	if err != nil {
		if status := statusForError(err); status != http.StatusInternalServerError {
			respondServiceError(w, err)
			return
		}
		// Row-level failures from the service carry the offending index.
		if strings.HasPrefix(err.Error(), "row ") {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{OK: true, Data: created, Message: "imported"})
}

// ListCustomers handles GET /api/v1/customers with ?q=, ?page=, ?limit=.
func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePage(r)
	customers, total, err := h.customers.List(r.Context(), customer.ListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondList(w, customers, newListMeta(page, limit, total))
}

// SearchCustomers handles GET /api/v1/customers/search?q=. A quick typeahead
// lookup on name and email, capped at 10 rows.
func (h *Handlers) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondData(w, http.StatusOK, []domain.Customer{})
		return
	}
	customers, _, err := h.customers.List(r.Context(), customer.ListFilter{Search: q, Limit: 10})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, customers)
}

// GetCustomer handles GET /api/v1/customers/{id}.
func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, c)
}

// UpdateCustomer handles PATCH /api/v1/customers/{id}. Absent fields keep
// their stored value.
func (h *Handlers) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var p customerUpdatePayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		respondError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}
	if p.Email != nil && !plausibleEmail(*p.Email) {
		respondError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	c, err := h.customers.Update(r.Context(), chi.URLParam(r, "id"), customer.UpdateFields{
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, c)
}

// DeleteCustomer handles DELETE /api/v1/customers/{id}.
func (h *Handlers) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.customers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Message: "deleted"})
}
