package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/shipfast-storefront/internal/middleware"
)

const healthPath = "/api/health"

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	if h.opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(custommiddleware.Recovery(h.logger))
	r.Use(custommiddleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Encoding"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.NewRateLimiter(h.opts.RateLimitRPM, healthPath).Middleware)

	r.Get(healthPath, h.Health)
	r.Get("/downloads/{file}", h.Artifact)

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", h.Plans)
		r.Get("/releases", h.Releases)
		r.Post("/discounts/preview", h.PreviewDiscount)
		r.Post("/checkout", h.Checkout)
		r.Get("/download", h.Download)

		r.Post("/session", h.SignIn)
		r.Delete("/session", h.SignOut)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/overview", h.Overview)
			r.Get("/licenses", h.Licenses)
			r.Get("/licenses/{id}", h.License)
			r.Get("/downloads", h.Downloads)

			r.Get("/notifications", h.Notifications)
			r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
			r.Delete("/notifications/{id}", h.DeleteNotification)

			r.Get("/tickets", h.Tickets)
			r.Post("/tickets", h.CreateTicket)
			r.Get("/tickets/{id}", h.Ticket)
			r.Post("/tickets/{id}/messages", h.AddTicketMessage)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: http.StatusText(http.StatusNotFound)})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}
