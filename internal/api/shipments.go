package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvelichkov/shipstream/internal/store"
)

type ShipmentHandler struct {
	store *store.Store
}

func NewShipmentHandler(s *store.Store) *ShipmentHandler {
	return &ShipmentHandler{store: s}
}

// Events returns the shipment's event index, most recent first.
func (h *ShipmentHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	respondJSON(w, http.StatusOK, h.store.EventsByShipment(id))
}

// Settlement returns the settlement summary for the shipment, or 404 when it
// has no settlement events.
func (h *ShipmentHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state := h.store.SettlementStateByShipment(id)
	if state == nil {
		respondError(w, http.StatusNotFound, "no settlement events for shipment")
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// Progress returns the payload of the shipment's last SETTLEMENT_TRIGGER
// event.
func (h *ShipmentHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payload, ok := h.store.SettlementProgress(id)
	if !ok {
		respondError(w, http.StatusNotFound, "no settlement progress for shipment")
		return
	}

	respondJSON(w, http.StatusOK, payload)
}

// Tokens returns the shipment's enriched token events, most recent first.
func (h *ShipmentHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	respondJSON(w, http.StatusOK, h.store.TokenEventsByShipment(id))
}

// Trajectory returns the cumulative token trajectory, oldest first.
func (h *ShipmentHandler) Trajectory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	respondJSON(w, http.StatusOK, h.store.TokenTrajectory(id))
}
