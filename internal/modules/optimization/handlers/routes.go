package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the optimization endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimization", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize)
		r.Get("/results", h.HandleListResults)
		r.Get("/results/{id}", h.HandleGetResult)
		r.Get("/methods", h.HandleListMethods)
	})
}
