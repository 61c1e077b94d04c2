package domain

import "time"

// TokenEvent is the enriched record built from a token-related Event.
// Numeric fields carry the identity value of their operator when the source
// omitted them (0 for additive terms, 1 for multiplicative terms); non-numeric
// source values arrive here as NaN.
type TokenEvent struct {
	ShipmentID     string    `json:"shipment_id"`
	TokenAmount    float64   `json:"token_amount"`
	BurnAmount     float64   `json:"burn_amount"`
	RiskMultiplier float64   `json:"risk_multiplier"`
	MLAdjustment   float64   `json:"ml_adjustment"`
	NetToken       float64   `json:"net_token"`
	Rationale      string    `json:"rationale,omitempty"`
	Reliability    *float64  `json:"economic_reliability,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TraceID        string    `json:"trace_id,omitempty"`
}

// TrajectoryPoint is one step of the cumulative token trajectory. Derived on
// query, never persisted.
type TrajectoryPoint struct {
	SequenceIndex   int      `json:"sequence_index"`
	CumulativeValue float64  `json:"cumulative_value"`
	BurnFlag        bool     `json:"burn_flag"`
	Reliability     *float64 `json:"reliability,omitempty"`
}
