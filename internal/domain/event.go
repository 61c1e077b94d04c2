package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Event types with recognized aggregation semantics. The set is open:
// unknown types still land in the history, they just drive no derived state.
const (
	EventRiskScore           = "RISK_SCORE"
	EventSettlementTrigger   = "SETTLEMENT_TRIGGER"
	EventSettlementMilestone = "SETTLEMENT_MILESTONE"
	EventSystem              = "SYSTEM"
	EventTokenMint           = "TOKEN_MINT"
	EventTokenBurn           = "TOKEN_BURN"
	EventTokenAdjustment     = "TOKEN_ADJUSTMENT"
)

// Severity of a domain event. Optional on the wire.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one timestamped fact received from the upstream feed.
// Immutable once ingested; timestamps are not monotonic across reconnects.
type Event struct {
	EventID    string         `json:"event_id"`
	ShipmentID string         `json:"canonical_shipment_id,omitempty"`
	EventType  string         `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Severity   Severity       `json:"severity,omitempty"`

	// Tokenomics fields, present only on token-related events.
	TokenAmount         *float64 `json:"tokenAmount,omitempty"`
	BurnAmount          *float64 `json:"burnAmount,omitempty"`
	RiskMultiplier      *float64 `json:"riskMultiplier,omitempty"`
	MLAdjustment        *float64 `json:"mlAdjustment,omitempty"`
	Rationale           string   `json:"rationale,omitempty"`
	EconomicReliability *float64 `json:"economicReliability,omitempty"`
}

// DecodeEvent parses one wire frame (a single UTF-8 JSON document) into an
// Event. Callers treat any error as "drop the frame".
func DecodeEvent(frame []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// IsSettlementType reports whether the event type feeds the settlement
// enrichment path.
func IsSettlementType(eventType string) bool {
	switch eventType {
	case EventSettlementTrigger, EventSettlementMilestone:
		return true
	}
	return false
}

// IsTokenType reports whether the event type feeds the token enrichment path.
func IsTokenType(eventType string) bool {
	switch eventType {
	case EventTokenMint, EventTokenBurn, EventTokenAdjustment:
		return true
	}
	return false
}

// PayloadNumber extracts a numeric payload field. A missing key yields def;
// a present but non-numeric value yields NaN (permissive policy — bad data
// propagates instead of failing ingestion).
func PayloadNumber(payload map[string]any, key string, def float64) float64 {
	v, ok := payload[key]
	if !ok {
		return def
	}
	n, ok := v.(float64)
	if !ok {
		return math.NaN()
	}
	return n
}

// PayloadString extracts a string payload field, or "" when absent or not a
// string.
func PayloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
