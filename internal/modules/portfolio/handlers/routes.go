package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio data routes under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.HandleListAssets)
			r.Get("/{name}/prices", h.HandleGetPrices)
		})

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", h.HandleListPortfolios)
			r.Get("/{name}/weights", h.HandleGetWeights)
			r.Get("/{name}/holdings", h.HandleGetHoldings)
			r.Post("/{name}/derive", h.HandleDerive)
		})
	})
}
