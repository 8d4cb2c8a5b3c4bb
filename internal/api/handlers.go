package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/minicrm/internal/ai"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/audience"
	"github.com/ignite/minicrm/internal/service/campaign"
	"github.com/ignite/minicrm/internal/service/customer"
	"github.com/ignite/minicrm/internal/service/delivery"
	"github.com/ignite/minicrm/internal/service/order"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AIService is the slice of the AI client the handlers use. *ai.Client
// satisfies it; tests substitute a stub.
type AIService interface {
	ExtractRules(ctx context.Context, text string) (segment.Rules, error)
	SuggestCopy(ctx context.Context, req ai.CopyRequest) ([]ai.CopyVariant, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	customers  *customer.Service
	orders     *order.Ledger
	campaigns  *campaign.Dispatcher
	resolver   *audience.Resolver
	reconciler *delivery.Reconciler
	vendor     campaign.Sender
	ai         AIService

	started time.Time
}

// NewHandlers wires the handler set. ai may be nil when no API key is
// configured; the AI endpoints then respond 503.
func NewHandlers(
	customers *customer.Service,
	orders *order.Ledger,
	campaigns *campaign.Dispatcher,
	resolver *audience.Resolver,
	reconciler *delivery.Reconciler,
	vendor campaign.Sender,
	aiSvc AIService,
) *Handlers {
	return &Handlers{
		customers:  customers,
		orders:     orders,
		campaigns:  campaigns,
		resolver:   resolver,
		reconciler: reconciler,
		vendor:     vendor,
		ai:         aiSvc,
		started:    time.Now(),
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// parsePage reads ?page= and ?limit= with defaults and caps. Offset is
// derived; services may clamp the limit further.
func parsePage(r *http.Request) (page, limit, offset int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = queryInt(r, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
