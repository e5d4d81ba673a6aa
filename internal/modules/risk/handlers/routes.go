package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the risk profile routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/securities/{ticker}", h.HandleGetSecurity)
		r.Post("/portfolio", h.HandlePortfolio)
	})
}
