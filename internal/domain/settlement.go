package domain

import "time"

// SettlementEvent is the enriched record built from a settlement-related
// Event by the enrichment hook. Field defaults are applied exactly once, at
// enrichment time.
type SettlementEvent struct {
	ShipmentID   string    `json:"shipment_id"`
	Milestone    string    `json:"milestone"`
	Amount       float64   `json:"amount"`
	RiskDecision string    `json:"risk_decision"`
	Rationale    string    `json:"rationale,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// SettlementState summarizes the most recent settlement activity for one
// shipment.
type SettlementState struct {
	LastMilestone    string            `json:"last_milestone"`
	LastAmount       float64           `json:"last_amount"`
	LastRiskDecision string            `json:"last_risk_decision"`
	Events           []SettlementEvent `json:"events"`
}
