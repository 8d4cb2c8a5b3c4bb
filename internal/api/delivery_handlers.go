package api

import (
	"net/http"
	"strings"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/delivery"
)

// VendorSend handles POST /api/v1/delivery/vendor/send. It stands in for a
// third-party messaging vendor: it sleeps a simulated latency, rolls the
// delivery outcome, and posts the receipt back through the reconciler
// before answering.
func (h *Handlers) VendorSend(w http.ResponseWriter, r *http.Request) {
	var p struct {
		CampaignID string `json:"campaignId"`
		CustomerID string `json:"customerId"`
		Message    string `json:"message"`
	}
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.CampaignID) == "" || strings.TrimSpace(p.CustomerID) == "" {
		respondError(w, http.StatusBadRequest, "campaignId and customerId are required")
		return
	}

	if err := h.vendor.Send(r.Context(), p.CampaignID, p.CustomerID, p.Message); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Message: "delivered"})
}

// DeliveryReceipt handles POST /api/v1/delivery/delivery-receipt. Receipts
// only land on PENDING rows; a second receipt for the same pair conflicts.
func (h *Handlers) DeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	var receipt delivery.Receipt
	if err := decodeBody(w, r, &receipt); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(receipt.CampaignID) == "" || strings.TrimSpace(receipt.CustomerID) == "" {
		respondError(w, http.StatusBadRequest, "campaignId and customerId are required")
		return
	}
	if !domain.TerminalDeliveryStatus(domain.DeliveryStatus(receipt.Status)) {
		respondError(w, http.StatusBadRequest, "status must be SENT or FAILED")
		return
	}

	logRow, err := h.reconciler.ApplyReceipt(r.Context(), receipt)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"id":     logRow.ID,
		"status": logRow.Status,
	})
}
