package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all evaluation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evaluation", func(r chi.Router) {
		r.Post("/sharpe-improvement", h.HandleSharpeImprovement)
	})
}
