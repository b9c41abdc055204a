/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/students/*    Fee accounts, previews, payments
  /api/discounts/*   Discount rules
  /api/calendar/*    Month grid
  /api/events/*      Calendar events
  /api/checkout/*    Checkout sessions

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Student fee routes
		r.Route("/students/{id}", func(r chi.Router) {
			r.Get("/fees", h.GetStudentFees)
			r.Post("/fees", h.CreateStudentFees)
			r.Get("/fees/preview", h.PreviewPayment)
			r.Get("/payments", h.ListPayments)
			r.Post("/payments", h.RecordPayment)
		})

		// Discount rule routes
		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", h.ListDiscounts)
			r.Post("/", h.CreateDiscount)
		})

		// Calendar routes
		r.Get("/calendar/grid", h.GetMonthGrid)
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Put("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
		})

		// Checkout session routes
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.OpenCheckout)
			r.Get("/{id}", h.GetCheckout)
			r.Post("/{id}/advance", h.AdvanceCheckout)
		})
	})

	return r
}
