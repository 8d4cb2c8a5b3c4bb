package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/minicrm/internal/auth"
)

// SetupRoutes configures the router. Everything under /api/v1 except the
// vendor-facing delivery endpoints requires a bearer token; the delivery
// group stays open because real vendors do not carry our credentials.
func SetupRoutes(h *Handlers, authManager *auth.Manager, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Vendor-facing endpoints, deliberately unauthenticated.
		r.Route("/delivery", func(r chi.Router) {
			r.Post("/vendor/send", h.VendorSend)
			r.Post("/delivery-receipt", h.DeliveryReceipt)
		})

		r.Group(func(r chi.Router) {
			if authManager != nil {
				r.Use(authManager.Middleware)
			}

			r.Route("/customers", func(r chi.Router) {
				r.Post("/", h.CreateCustomer)
				r.Post("/bulk", h.BulkImportCustomers)
				r.Get("/", h.ListCustomers)
				r.Get("/search", h.SearchCustomers)
				r.Get("/{id}", h.GetCustomer)
				r.Patch("/{id}", h.UpdateCustomer)
				r.Delete("/{id}", h.DeleteCustomer)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.CreateOrder)
				r.Post("/bulk", h.BulkCreateOrders)
				r.Get("/", h.ListOrders)
				r.Get("/by-customer/{customerID}", h.ListOrdersByCustomer)
				r.Get("/{id}", h.GetOrder)
				r.Patch("/{id}", h.UpdateOrder)
				r.Delete("/{id}", h.DeleteOrder)
			})

			r.Route("/campaigns", func(r chi.Router) {
				r.Post("/", h.CreateCampaign)
				r.Post("/preview", h.PreviewAudience)
				r.Get("/", h.ListCampaigns)
				r.Get("/{id}", h.GetCampaign)
				r.Patch("/{id}", h.UpdateCampaign)
				r.Patch("/{id}/status", h.SetCampaignStatus)
				r.Delete("/{id}", h.DeleteCampaign)
				r.Get("/{id}/logs", h.ListCampaignLogs)
			})

			r.Post("/nl/segment-rules/parse", h.ParseSegmentRules)
			r.Post("/ai/message-ideas", h.SuggestMessageIdeas)
		})
	})

	return r
}
