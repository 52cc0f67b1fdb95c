package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, deleteLimiter *DeleteRateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RecoveryMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/steps", h.Steps)

		r.Get("/parts", h.ListParts)
		r.Get("/parts/{id}", h.GetPart)
		// Catalog writes require the API key
		r.With(AuthMiddleware(h.apiKey)).Post("/parts", h.UpsertParts)

		r.Get("/share/{hash}", h.DecodeShare)

		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(h.SessionMiddleware)

			r.Get("/", h.GetSession)
			r.With(deleteLimiter.Middleware).Delete("/", h.DeleteSession)
			r.Get("/summary", h.Summary)
			r.Get("/compat", h.Compat)
			r.Get("/share", h.Share)

			r.Post("/candidates/{cat}", h.AddCandidate)
			r.Delete("/candidates/{cat}/{id}", h.RemoveCandidate)
			r.Put("/active/{cat}", h.SetActive)
			r.Put("/selected/{cat}", h.SetPart)
			r.Post("/compare", h.ToggleCompare)
			r.Put("/targets", h.SetTargets)
			r.Post("/reset", h.Reset)

			r.Post("/builds", h.SaveBuild)
			r.Post("/builds/{bid}/load", h.LoadBuild)
			// Deleting saved builds is rate limited per client
			r.With(deleteLimiter.Middleware).Delete("/builds/{bid}", h.DeleteBuild)
		})
	})

	return r
}
