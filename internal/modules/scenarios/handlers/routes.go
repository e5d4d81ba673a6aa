package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the scenario catalog routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios/predefined", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{name}", h.HandleGet)
	})
}
