// Package api wires the HTTP router for the HiveDAO server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hivedao/hivedao/internal/api/handlers"
	"github.com/hivedao/hivedao/internal/api/middleware"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.AgentExtractor)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Agent-Name", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Health & DAO status
		r.Get("/health", h.Health)
		r.Get("/status", h.Status)

		// Agents
		r.Post("/join", h.Join)
		r.Get("/agent/{name}", h.GetAgent)
		r.Get("/agents", h.ListAgents)

		// Contributions
		r.Route("/contributions", func(r chi.Router) {
			r.Get("/types", h.ContributionTypes)
			r.Get("/leaderboard", h.Leaderboard)
			r.Get("/agent/{name}", h.AgentContributions)
			r.Get("/", h.ListContributions)
			r.Post("/", h.SubmitContribution)
			r.Patch("/{id}", h.ReviewContribution)
		})

		// Governance
		r.Route("/governance", func(r chi.Router) {
			r.Get("/space", h.Space)
			r.Route("/proposals", func(r chi.Router) {
				r.Get("/", h.ListProposals)
				r.Post("/", h.CreateProposal)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetProposal)
					r.Get("/votes", h.ProposalVotes)
					r.Get("/results", h.ProposalResults)
					r.Post("/vote", h.CastVote)
				})
			})
		})

		// Treasury
		r.Get("/treasury", h.Treasury)
	})

	return r
}
