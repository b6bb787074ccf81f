package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk metrics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Post("/metrics", h.HandleComputeMetrics)
		r.Post("/cvar/montecarlo", h.HandleMonteCarloCVaR)
		r.Get("/symbols/{symbol}/volatility", h.HandleSymbolVolatility)
	})
}
