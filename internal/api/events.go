package api

import (
	"net/http"
	"strconv"

	"github.com/nvelichkov/shipstream/internal/store"
)

type EventHandler struct {
	store *store.Store
}

func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

// List returns the global history, most recent first.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	respondJSON(w, http.StatusOK, h.store.History(limit))
}

// ListSystem returns the SYSTEM event subset.
func (h *EventHandler) ListSystem(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.SystemEvents())
}

// RiskScores returns the latest risk score per shipment.
func (h *EventHandler) RiskScores(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.RiskScores())
}
