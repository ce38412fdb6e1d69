/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RealIP:         Client address from proxy headers
  3. RequestLogger:  One logrus line per request
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. CORS:           Cross-origin requests for the frontend
  6. RequireActor:   X-User-ID to profile (all routes except health,
                     lockout check/failed and scenarios)

ROUTE GROUPS:
  /api/profile(s)/*          Profiles
  /api/lockout/*             Login lockout bookkeeping
  /api/time-entries/*        Hour logging
  /api/sick-leaves/*         Sick leaves
  /api/vacation-requests/*   Vacation workflow
  /api/dashboard/*           Month and vacation dashboards
  /api/admin/*               Sick statistics
  /api/scenarios/*           Demo organisations (optional)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	// Scenarios mounts the demo scenario routes. They wipe the store, so
	// they stay off in production.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", ActorHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/lockout", func(r chi.Router) {
			r.Post("/check", h.CheckLockout)
			r.Post("/failed", h.RecordFailedLogin)
			r.With(h.RequireActor).Post("/reset", h.ResetFailedLogins)
		})

		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(h.RequireActor)

			r.Get("/profile", h.GetProfile)
			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", h.ListProfiles)
				r.Post("/", h.InviteUser)
				r.Patch("/{id}", h.UpdateProfile)
			})

			r.Route("/time-entries", func(r chi.Router) {
				r.Get("/", h.ListTimeEntries)
				r.Post("/", h.CreateTimeEntry)
				r.Patch("/{id}", h.UpdateTimeEntry)
				r.Delete("/{id}", h.DeleteTimeEntry)
			})

			r.Route("/sick-leaves", func(r chi.Router) {
				r.Get("/", h.ListSickLeaves)
				r.Post("/", h.CreateSickLeave)
				r.Delete("/{id}", h.DeleteSickLeave)
			})

			r.Route("/vacation-requests", func(r chi.Router) {
				r.Get("/", h.ListVacationRequests)
				r.Post("/", h.SubmitVacationRequest)
				r.Get("/review", h.ListReviewQueue)
				r.Delete("/{id}", h.CancelVacationRequest)
				r.Patch("/{id}/review", h.ReviewVacationRequest)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/month", h.GetMonthSummary)
				r.Get("/vacation", h.GetVacationBalance)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/sick-stats", h.GetSickStatistics)
			})
		})
	})

	return r
}
