package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/minicrm/internal/auth"
	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/audience"
	"github.com/ignite/minicrm/internal/service/campaign"
)

type campaignPayload struct {
	Name         string          `json:"name"`
	Message      string          `json:"message"`
	SegmentRules json.RawMessage `json:"segmentRules"`
}

type campaignUpdatePayload struct {
	Name         *string         `json:"name"`
	Message      *string         `json:"message"`
	SegmentRules json.RawMessage `json:"segmentRules"`
}

// campaignWithStats decorates a campaign with its delivery counters.
type campaignWithStats struct {
	*domain.Campaign
	Stats *campaign.Stats `json:"stats"`
}

// CreateCampaign handles POST /api/v1/campaigns. The creator is always the
// authenticated principal; a client-supplied createdBy is ignored.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var p campaignPayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	rules, err := parseRulesField(p.SegmentRules)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.campaigns.Create(r.Context(), campaign.CreateInput{
		CreatedBy: principal.ID,
		Name:      p.Name,
		Message:   p.Message,
		Rules:     rules,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, map[string]interface{}{
		"id":           c.ID,
		"audienceSize": c.AudienceSize,
		"status":       c.Status,
	})
}

// ListCampaigns handles GET /api/v1/campaigns. Results are scoped to the
// calling principal unless ?mine=false.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePage(r)
	f := campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	if r.URL.Query().Get("mine") != "false" {
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
			f.CreatedBy = principal.ID
		}
	}

	campaigns, total, err := h.campaigns.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondList(w, campaigns, newListMeta(page, limit, total))
}

// GetCampaign handles GET /api/v1/campaigns/{id} and includes delivery
// counters alongside the campaign itself.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, stats, err := h.campaigns.GetWithStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, campaignWithStats{Campaign: c, Stats: stats})
}

// UpdateCampaign handles PATCH /api/v1/campaigns/{id}. A rule change
// recounts the audience snapshot but never re-dispatches messages.
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var p campaignUpdatePayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		respondError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}
	if p.Message != nil && strings.TrimSpace(*p.Message) == "" {
		respondError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	input := campaign.UpdateInput{Name: p.Name, Message: p.Message}
	if len(p.SegmentRules) > 0 {
		rules, err := parseRulesField(p.SegmentRules)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		input.Rules = &rules
	}

	c, err := h.campaigns.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, c)
}

// SetCampaignStatus handles PATCH /api/v1/campaigns/{id}/status.
func (h *Handlers) SetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Status string `json:"status"`
	}
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to := domain.CampaignStatus(p.Status)
	if !domain.ValidCampaignStatus(to) {
		respondError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(p.Status))
		return
	}

	c, err := h.campaigns.SetStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, c)
}

// DeleteCampaign handles DELETE /api/v1/campaigns/{id}. Only drafts can be
// deleted; dispatched campaigns keep their history.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Message: "deleted"})
}

// ListCampaignLogs handles GET /api/v1/campaigns/{id}/logs with ?status=.
func (h *Handlers) ListCampaignLogs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch domain.DeliveryStatus(status) {
	case "", domain.DeliveryPending, domain.DeliverySent, domain.DeliveryFailed:
	default:
		respondError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(status))
		return
	}

	page, limit, offset := parsePage(r)
	logs, total, err := h.campaigns.Logs(r.Context(), chi.URLParam(r, "id"), campaign.LogFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondList(w, logs, newListMeta(page, limit, total))
}

// PreviewAudience handles POST /api/v1/campaigns/preview: resolves a rule
// object into {customers, total} without creating anything.
func (h *Handlers) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	var p struct {
		SegmentRules json.RawMessage `json:"segmentRules"`
		Limit        int             `json:"limit"`
	}
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rules, err := parseRulesField(p.SegmentRules)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.resolver.Resolve(r.Context(), rules, audience.Options{Limit: p.Limit})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"customers": result.Members,
		"total":     result.Total,
	})
}

// parseRulesField decodes and validates an optional segmentRules JSON
// object. A missing field means "match everyone". Fields and operators
// outside the allow-lists are rejected here, before sanitization, so a typo
// fails the request instead of silently matching a wider audience.
func parseRulesField(raw json.RawMessage) (segment.Rules, error) {
	if len(raw) == 0 {
		return segment.Rules{}, nil
	}
	rules, err := segment.ParseRules(raw)
	if err != nil {
		return nil, err
	}
	if err := segment.Validate(rules); err != nil {
		return nil, err
	}
	return rules, nil
}
