package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/defaults", h.HandleGetDefaults)
		r.Get("/correlation", h.HandleGetCorrelation)
		r.Get("/prices/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			symbol := chi.URLParam(r, "symbol")
			h.HandleGetPrices(w, r, symbol)
		})

		r.Route("/simulations", func(r chi.Router) {
			r.Post("/", h.HandleRunSimulation)
			r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				h.HandleGetRun(w, r, id)
			})
		})
	})
}
