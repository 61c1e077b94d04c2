// Package store is the in-memory aggregation core: a bounded most-recent-first
// event history with per-shipment indices, scalar derived maps, and enriched
// settlement/token lists fed by the enrichment hook.
package store

import (
	"log/slog"
	"sync"

	"github.com/nvelichkov/shipstream/internal/domain"
)

// DefaultCapacity bounds every collection when no explicit capacity is given.
const DefaultCapacity = 200

// Store ingests decoded domain events and answers read-only queries.
//
// Ingestion runs on the event client's dispatch goroutine while HTTP handlers
// query concurrently, so every collection is guarded by one RWMutex. Queries
// never mutate and always return copies.
type Store struct {
	capacity int
	logger   *slog.Logger

	mu                 sync.RWMutex
	history            []domain.Event
	byShipment         map[string][]domain.Event
	systemEvents       []domain.Event
	settlements        []domain.SettlementEvent
	tokenEvents        []domain.TokenEvent
	latestRiskScore    map[string]float64
	settlementProgress map[string]map[string]any
}

// New creates a store whose collections hold at most capacity entries each.
func New(capacity int, logger *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:           capacity,
		logger:             logger,
		byShipment:         make(map[string][]domain.Event),
		latestRiskScore:    make(map[string]float64),
		settlementProgress: make(map[string]map[string]any),
	}
}

// prepend inserts v at the front and truncates to capacity, evicting the
// oldest entry.
func prepend[T any](list []T, v T, capacity int) []T {
	var zero T
	list = append(list, zero)
	copy(list[1:], list)
	list[0] = v
	if len(list) > capacity {
		list = list[:capacity]
	}
	return list
}

// AddEvent is the single ingestion entry point for raw domain events. It
// updates the global history, the shipment index when the event carries a
// shipment id, and the derived state keyed on event type. Unrecognized event
// types only affect the histories.
func (s *Store) AddEvent(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = prepend(s.history, e, s.capacity)

	if e.ShipmentID != "" {
		s.byShipment[e.ShipmentID] = prepend(s.byShipment[e.ShipmentID], e, s.capacity)
	}

	switch e.EventType {
	case domain.EventRiskScore:
		if e.ShipmentID == "" {
			return
		}
		// Last-write-wins, numeric scores only.
		if score, ok := e.Payload["score"].(float64); ok {
			s.latestRiskScore[e.ShipmentID] = score
		}

	case domain.EventSettlementTrigger:
		if e.ShipmentID != "" {
			s.settlementProgress[e.ShipmentID] = e.Payload
		}

	case domain.EventSystem:
		s.systemEvents = prepend(s.systemEvents, e, s.capacity)
	}
}

// AddSettlementEvent appends a pre-enriched settlement record. Independent of
// the general history.
func (s *Store) AddSettlementEvent(e domain.SettlementEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = prepend(s.settlements, e, s.capacity)
}

// AddTokenEvent appends a pre-enriched token record. Independent of the
// general history.
func (s *Store) AddTokenEvent(e domain.TokenEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenEvents = prepend(s.tokenEvents, e, s.capacity)
}

// History returns up to limit events, most recent first. limit <= 0 returns
// the full retained window.
func (s *Store) History(limit int) []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Event, n)
	copy(out, s.history[:n])
	return out
}

// EventsByShipment returns the shipment's index, most recent first.
func (s *Store) EventsByShipment(shipmentID string) []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byShipment[shipmentID]
	out := make([]domain.Event, len(events))
	copy(out, events)
	return out
}

// SystemEvents returns the SYSTEM event subset, most recent first.
func (s *Store) SystemEvents() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, len(s.systemEvents))
	copy(out, s.systemEvents)
	return out
}

// RiskScore returns the last risk score seen for a shipment.
func (s *Store) RiskScore(shipmentID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.latestRiskScore[shipmentID]
	return score, ok
}

// RiskScores returns a copy of the latest risk score map.
func (s *Store) RiskScores() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.latestRiskScore))
	for k, v := range s.latestRiskScore {
		out[k] = v
	}
	return out
}

// SettlementProgress returns the payload of the last SETTLEMENT_TRIGGER event
// for a shipment.
func (s *Store) SettlementProgress(shipmentID string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.settlementProgress[shipmentID]
	return payload, ok
}

// SettlementProgressAll returns a copy of the settlement progress map.
func (s *Store) SettlementProgressAll() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]any, len(s.settlementProgress))
	for k, v := range s.settlementProgress {
		out[k] = v
	}
	return out
}

// SettlementStateByShipment summarizes the shipment's settlement activity
// from the most recent matching record, plus the full filtered list. Returns
// nil when the shipment has no settlement events.
func (s *Store) SettlementStateByShipment(shipmentID string) *domain.SettlementState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.SettlementEvent
	for _, e := range s.settlements {
		if e.ShipmentID == shipmentID {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	latest := matched[0]
	return &domain.SettlementState{
		LastMilestone:    latest.Milestone,
		LastAmount:       latest.Amount,
		LastRiskDecision: latest.RiskDecision,
		Events:           matched,
	}
}

// TokenEventsByShipment returns the shipment's enriched token events, most
// recent first.
func (s *Store) TokenEventsByShipment(shipmentID string) []domain.TokenEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []domain.TokenEvent{}
	for _, e := range s.tokenEvents {
		if e.ShipmentID == shipmentID {
			matched = append(matched, e)
		}
	}
	return matched
}

// RestoreDerived seeds the scalar derived maps from a snapshot. Only applied
// to empty maps so a live session is never clobbered by stale snapshot data.
func (s *Store) RestoreDerived(riskScores map[string]float64, progress map[string]map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latestRiskScore) == 0 {
		for k, v := range riskScores {
			s.latestRiskScore[k] = v
		}
	}
	if len(s.settlementProgress) == 0 {
		for k, v := range progress {
			s.settlementProgress[k] = v
		}
	}
}

// Clear resets every collection and derived map. Driven only by an external
// trigger such as a session reset, never scheduled internally.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.byShipment = make(map[string][]domain.Event)
	s.systemEvents = nil
	s.settlements = nil
	s.tokenEvents = nil
	s.latestRiskScore = make(map[string]float64)
	s.settlementProgress = make(map[string]map[string]any)

	if s.logger != nil {
		s.logger.Info("aggregation store cleared")
	}
}
