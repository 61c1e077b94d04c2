// Package enrich subscribes to the event client and feeds the aggregation
// store: every event goes into the raw history, and settlement- or
// token-related events are additionally enriched into their typed records
// with field defaults applied exactly once, here.
package enrich

import (
	"log/slog"

	"github.com/nvelichkov/shipstream/internal/domain"
	"github.com/nvelichkov/shipstream/internal/store"
)

// Enricher routes decoded events into the store.
type Enricher struct {
	store  *store.Store
	logger *slog.Logger
}

func New(s *store.Store, logger *slog.Logger) *Enricher {
	return &Enricher{store: s, logger: logger}
}

// HandleEvent is the client subscriber: ingest the raw event, then enrich by
// event type. Never fails — missing fields default, bad numerics propagate as
// NaN.
func (en *Enricher) HandleEvent(e *domain.Event) {
	en.store.AddEvent(*e)

	switch {
	case domain.IsSettlementType(e.EventType):
		en.store.AddSettlementEvent(en.settlementEvent(e))
	case domain.IsTokenType(e.EventType):
		en.store.AddTokenEvent(en.tokenEvent(e))
	}
}

func (en *Enricher) settlementEvent(e *domain.Event) domain.SettlementEvent {
	shipmentID := e.ShipmentID
	if shipmentID == "" {
		shipmentID = domain.PayloadString(e.Payload, "shipment_id")
	}
	rationale := e.Rationale
	if rationale == "" {
		rationale = domain.PayloadString(e.Payload, "rationale")
	}

	return domain.SettlementEvent{
		ShipmentID:   shipmentID,
		Milestone:    domain.PayloadString(e.Payload, "milestone"),
		Amount:       domain.PayloadNumber(e.Payload, "amount", 0),
		RiskDecision: domain.PayloadString(e.Payload, "risk_decision"),
		Rationale:    rationale,
		Timestamp:    e.Timestamp,
		TraceID:      e.TraceID,
	}
}

func (en *Enricher) tokenEvent(e *domain.Event) domain.TokenEvent {
	shipmentID := e.ShipmentID
	if shipmentID == "" {
		shipmentID = domain.PayloadString(e.Payload, "shipment_id")
	}
	rationale := e.Rationale
	if rationale == "" {
		rationale = domain.PayloadString(e.Payload, "rationale")
	}

	tokenAmount := numberField(e.TokenAmount, e.Payload, "tokenAmount", 0)
	burnAmount := numberField(e.BurnAmount, e.Payload, "burnAmount", 0)
	riskMultiplier := numberField(e.RiskMultiplier, e.Payload, "riskMultiplier", 1)
	mlAdjustment := numberField(e.MLAdjustment, e.Payload, "mlAdjustment", 1)

	var reliability *float64
	if e.EconomicReliability != nil {
		v := *e.EconomicReliability
		reliability = &v
	} else if raw, ok := e.Payload["economicReliability"].(float64); ok {
		reliability = &raw
	}

	return domain.TokenEvent{
		ShipmentID:     shipmentID,
		TokenAmount:    tokenAmount,
		BurnAmount:     burnAmount,
		RiskMultiplier: riskMultiplier,
		MLAdjustment:   mlAdjustment,
		NetToken:       tokenAmount*riskMultiplier*mlAdjustment - burnAmount,
		Rationale:      rationale,
		Reliability:    reliability,
		Timestamp:      e.Timestamp,
		TraceID:        e.TraceID,
	}
}

// numberField prefers the typed top-level field, then the payload key, then
// the operator identity default.
func numberField(ptr *float64, payload map[string]any, key string, def float64) float64 {
	if ptr != nil {
		return *ptr
	}
	return domain.PayloadNumber(payload, key, def)
}
