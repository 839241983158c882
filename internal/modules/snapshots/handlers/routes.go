package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}/accounts/{accountID}/snapshots", h.HandleList)
	r.Post("/users/{userID}/accounts/{accountID}/snapshots", h.HandleCreate)
}
