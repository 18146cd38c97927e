/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/individuals/*    Population
  /api/wages            Monthly contribution bases
  /api/legislation/*    Legislation documents
  /api/levies           Known levies
  /api/variables        Registered variables
  /api/contributions/*  Computations, month close and stored runs
  /api/scenarios/*      Demo data

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

// DefaultAllowedOrigins is used when NewRouter receives no origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/individuals", func(r chi.Router) {
			r.Get("/", h.ListIndividuals)
			r.Post("/", h.CreateIndividual)
			r.Get("/{id}", h.GetIndividual)
		})

		r.Post("/wages", h.PutWages)

		r.Route("/legislation", func(r chi.Router) {
			r.Get("/", h.ListLegislation)
			r.Post("/", h.CreateLegislation)
		})

		r.Get("/levies", h.ListLevies)
		r.Get("/variables", h.ListVariables)

		r.Route("/contributions", func(r chi.Router) {
			r.Post("/", h.ComputeContributions)
			r.Post("/close", h.CloseMonth)
			r.Get("/{id}", h.GetContributions)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
