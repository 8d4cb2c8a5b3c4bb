package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/minicrm/internal/service/order"
)

type orderItemPayload struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// orderPayload decodes Amount only to reject it: order amounts are always
// server-computed from line items, a client supplying one is an error.
type orderPayload struct {
	CustomerID string             `json:"customerId"`
	Items      []orderItemPayload `json:"items"`
	OrderDate  *time.Time         `json:"orderDate"`
	Amount     *float64           `json:"amount"`
}

type orderUpdatePayload struct {
	CustomerID *string             `json:"customerId"`
	Items      *[]orderItemPayload `json:"items"`
	OrderDate  *time.Time          `json:"orderDate"`
	Amount     *float64            `json:"amount"`
}

func validateOrderPayload(p orderPayload) string {
	if p.Amount != nil {
		return "amount is computed by the server and cannot be supplied"
	}
	if strings.TrimSpace(p.CustomerID) == "" {
		return "customerId is required"
	}
	return validateOrderItems(p.Items)
}

func validateOrderItems(items []orderItemPayload) string {
	if len(items) == 0 {
		return "at least one item is required"
	}
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return "item " + strconv.Itoa(i+1) + ": name is required"
		}
		if it.Quantity < 1 {
			return "item " + strconv.Itoa(i+1) + ": quantity must be at least 1"
		}
		if it.Price < 0 {
			return "item " + strconv.Itoa(i+1) + ": price cannot be negative"
		}
	}
	return ""
}

func toItemInputs(items []orderItemPayload) []order.ItemInput {
	out := make([]order.ItemInput, len(items))
	for i, it := range items {
		out[i] = order.ItemInput{Name: it.Name, Quantity: it.Quantity, Price: it.Price}
	}
	return out
}

// CreateOrder handles POST /api/v1/orders.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var p orderPayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateOrderPayload(p); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateInput{
		CustomerID: p.CustomerID,
		Items:      toItemInputs(p.Items),
		OrderDate:  p.OrderDate,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, o)
}

// BulkCreateOrders handles POST /api/v1/orders/bulk. Every row is validated
// before anything is written; the first bad row aborts the batch.
func (h *Handlers) BulkCreateOrders(w http.ResponseWriter, r *http.Request) {
	var rows []orderPayload
	if err := decodeBody(w, r, &rows); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusBadRequest, "at least one order is required")
		return
	}

	inputs := make([]order.CreateInput, len(rows))
	for i, p := range rows {
		if msg := validateOrderPayload(p); msg != "" {
			respondError(w, http.StatusBadRequest, "row "+strconv.Itoa(i+1)+": "+msg)
			return
		}
		inputs[i] = order.CreateInput{
			CustomerID: p.CustomerID,
			Items:      toItemInputs(p.Items),
			OrderDate:  p.OrderDate,
		}
	}

	created, err := h.orders.BulkCreate(r.Context(), inputs)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{OK: true, Data: created, Message: "ingested"})
}

// ListOrders handles GET /api/v1/orders with ?customerId=, ?from=, ?to=,
// ?minAmount=, ?maxAmount=, ?page=, ?limit=.
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePage(r)
	f := order.ListFilter{
		CustomerID: r.URL.Query().Get("customerId"),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		f.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		f.To = t
	}
	if raw := r.URL.Query().Get("minAmount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "minAmount must be numeric")
			return
		}
		f.MinAmount = &v
	}
	if raw := r.URL.Query().Get("maxAmount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "maxAmount must be numeric")
			return
		}
		f.MaxAmount = &v
	}

	orders, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondList(w, orders, newListMeta(page, limit, total))
}

// ListOrdersByCustomer handles GET /api/v1/orders/by-customer/{customerID}.
func (h *Handlers) ListOrdersByCustomer(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePage(r)
	orders, total, err := h.orders.List(r.Context(), order.ListFilter{
		CustomerID: chi.URLParam(r, "customerID"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondList(w, orders, newListMeta(page, limit, total))
}

// GetOrder handles GET /api/v1/orders/{id}.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, o)
}

// UpdateOrder handles PATCH /api/v1/orders/{id}. Reassigning the customer
// migrates the order's financial effect between the two customers.
func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var p orderUpdatePayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Amount != nil {
		respondError(w, http.StatusBadRequest, "amount is computed by the server and cannot be supplied")
		return
	}
	if p.CustomerID != nil && strings.TrimSpace(*p.CustomerID) == "" {
		respondError(w, http.StatusBadRequest, "customerId cannot be empty")
		return
	}
	u := order.UpdateFields{CustomerID: p.CustomerID, OrderDate: p.OrderDate}
	if p.Items != nil {
		if msg := validateOrderItems(*p.Items); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		items := toItemInputs(*p.Items)
		u.Items = &items
	}

	o, err := h.orders.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, o)
}

// DeleteOrder handles DELETE /api/v1/orders/{id}.
func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Message: "deleted"})
}
