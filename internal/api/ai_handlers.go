package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/minicrm/internal/ai"
	"github.com/ignite/minicrm/internal/pkg/logger"
	"github.com/ignite/minicrm/internal/segment"
)

// ParseSegmentRules handles POST /api/v1/nl/segment-rules/parse: free text
// in, a sanitized rule object out. Model output goes through the same
// sanitizer as user-supplied rules before anything trusts it.
func (h *Handlers) ParseSegmentRules(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		respondError(w, http.StatusServiceUnavailable, "ai service is not configured")
		return
	}

	var p struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	rules, err := h.ai.ExtractRules(r.Context(), p.Text)
	if err != nil {
		if errors.Is(err, ai.ErrUpstream) || errors.Is(err, ai.ErrMalformed) {
			logger.Warn("nl rule extraction failed", "error", err)
			respondError(w, http.StatusBadGateway, "could not parse audience via AI, try rephrasing")
			return
		}
		respondServiceError(w, err)
		return
	}

	sanitized := segment.Sanitize(rules)
	raw, err := sanitized.JSON()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "rules": raw})
}

// SuggestMessageIdeas handles POST /api/v1/ai/message-ideas.
func (h *Handlers) SuggestMessageIdeas(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		respondError(w, http.StatusServiceUnavailable, "ai service is not configured")
		return
	}

	var p ai.CopyRequest
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.Objective) == "" {
		respondError(w, http.StatusBadRequest, "objective is required")
		return
	}

	variants, err := h.ai.SuggestCopy(r.Context(), p)
	if err != nil {
		if errors.Is(err, ai.ErrUpstream) || errors.Is(err, ai.ErrMalformed) {
			logger.Warn("copy suggestion failed", "error", err)
			respondError(w, http.StatusBadGateway, "could not generate suggestions, try again")
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "variants": variants})
}
