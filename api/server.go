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
  /api/users/*         Membership, scores, per-user histories
  /api/books/*         Inventory, forecasts, queues
  /api/borrows/*       Borrow lifecycle
  /api/reservations/*  Reservation queue
  /api/tiers           Tier schedule
  /api/admin/*         Sweeps and database reset (dev only)

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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Post("/{id}/ban", h.BanUser)
			r.Get("/{id}/score", h.GetScore)
			r.Get("/{id}/score/events", h.GetScoreEvents)
			r.Post("/{id}/score/adjust", h.AdjustScore)
			r.Get("/{id}/borrows", h.GetUserBorrows)
			r.Get("/{id}/reservations", h.GetUserReservations)
		})

		// Book routes
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Post("/", h.RegisterBook)
			r.Get("/{id}", h.GetBook)
			r.Post("/{id}/copies", h.ChangeCopies)
			r.Get("/{id}/forecast", h.GetForecast)
			r.Get("/{id}/calendar", h.GetCalendar)
			r.Get("/{id}/queue", h.GetQueue)
		})

		// Borrow routes
		r.Route("/borrows", func(r chi.Router) {
			r.Post("/", h.CreateBorrow)
			r.Post("/{id}/renew", h.RenewBorrow)
			r.Post("/{id}/return", h.ReturnBorrow)
			r.Post("/{id}/collect", h.CollectBorrow)
		})

		// Reservation routes
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.CreateReservation)
			r.Delete("/{id}", h.CancelReservation)
		})

		// Tier routes
		r.Get("/tiers", h.ListTiers)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
			r.Post("/reset", h.ResetDatabase)
		})

		// Scenario routes (dev/demo)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
