package store

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nvelichkov/shipstream/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeEvent(id, shipmentID, eventType string) domain.Event {
	return domain.Event{
		EventID:    id,
		ShipmentID: shipmentID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
	}
}

func TestStore_BoundedHistory(t *testing.T) {
	const capacity = 5
	s := New(capacity, testLogger())

	for i := 0; i < 12; i++ {
		s.AddEvent(makeEvent(fmt.Sprintf("evt-%d", i), "", "STATUS_UPDATE"))
	}

	history := s.History(0)
	if len(history) != capacity {
		t.Fatalf("expected history of %d after 12 inserts, got %d", capacity, len(history))
	}

	// Most recent first: evt-11 down to evt-7
	for i, e := range history {
		want := fmt.Sprintf("evt-%d", 11-i)
		if e.EventID != want {
			t.Errorf("history[%d] = %s, want %s", i, e.EventID, want)
		}
	}
}

func TestStore_HistoryLimit(t *testing.T) {
	s := New(10, testLogger())
	for i := 0; i < 8; i++ {
		s.AddEvent(makeEvent(fmt.Sprintf("evt-%d", i), "", "STATUS_UPDATE"))
	}

	if got := len(s.History(3)); got != 3 {
		t.Errorf("expected 3 events with limit=3, got %d", got)
	}
	if got := len(s.History(0)); got != 8 {
		t.Errorf("expected all 8 events with limit=0, got %d", got)
	}
}

func TestStore_ShipmentIndexCoherence(t *testing.T) {
	s := New(20, testLogger())

	// Interleave two shipments plus keyless events
	order := []string{"S1", "S2", "S1", "", "S2", "S1"}
	for i, shipment := range order {
		s.AddEvent(makeEvent(fmt.Sprintf("evt-%d", i), shipment, "STATUS_UPDATE"))
	}

	// Every history entry with a shipment id must appear in that shipment's
	// index in the same relative order.
	for _, shipment := range []string{"S1", "S2"} {
		var fromHistory []string
		for _, e := range s.History(0) {
			if e.ShipmentID == shipment {
				fromHistory = append(fromHistory, e.EventID)
			}
		}

		index := s.EventsByShipment(shipment)
		if len(index) != len(fromHistory) {
			t.Fatalf("shipment %s: index has %d events, history has %d", shipment, len(index), len(fromHistory))
		}
		for i, e := range index {
			if e.EventID != fromHistory[i] {
				t.Errorf("shipment %s index[%d] = %s, want %s", shipment, i, e.EventID, fromHistory[i])
			}
		}
	}
}

func TestStore_ShipmentIndexBounded(t *testing.T) {
	const capacity = 3
	s := New(capacity, testLogger())

	for i := 0; i < 7; i++ {
		s.AddEvent(makeEvent(fmt.Sprintf("evt-%d", i), "S1", "STATUS_UPDATE"))
	}

	index := s.EventsByShipment("S1")
	if len(index) != capacity {
		t.Fatalf("expected shipment index capped at %d, got %d", capacity, len(index))
	}
	if index[0].EventID != "evt-6" {
		t.Errorf("expected most recent event first, got %s", index[0].EventID)
	}
}

func TestStore_RiskScoreLastWriteWins(t *testing.T) {
	s := New(10, testLogger())

	first := makeEvent("evt-1", "S1", domain.EventRiskScore)
	first.Payload = map[string]any{"score": 3.5}
	s.AddEvent(first)

	second := makeEvent("evt-2", "S1", domain.EventRiskScore)
	second.Payload = map[string]any{"score": 7.2}
	s.AddEvent(second)

	score, ok := s.RiskScore("S1")
	if !ok {
		t.Fatal("expected a risk score for S1")
	}
	if score != 7.2 {
		t.Errorf("expected last-write-wins score 7.2, got %v", score)
	}
}

func TestStore_RiskScoreNonNumericIgnored(t *testing.T) {
	s := New(10, testLogger())

	e := makeEvent("evt-1", "S1", domain.EventRiskScore)
	e.Payload = map[string]any{"score": "high"}
	s.AddEvent(e)

	if _, ok := s.RiskScore("S1"); ok {
		t.Error("non-numeric score should not populate the risk score map")
	}
	// The event itself still lands in the history
	if len(s.EventsByShipment("S1")) != 1 {
		t.Error("event should still be in the shipment index")
	}
}

func TestStore_SettlementProgress(t *testing.T) {
	s := New(10, testLogger())

	e := makeEvent("evt-1", "S1", domain.EventSettlementTrigger)
	e.Payload = map[string]any{"stage": "IN_TRANSIT", "progress": 0.4}
	s.AddEvent(e)

	e2 := makeEvent("evt-2", "S1", domain.EventSettlementTrigger)
	e2.Payload = map[string]any{"stage": "DELIVERED", "progress": 1.0}
	s.AddEvent(e2)

	payload, ok := s.SettlementProgress("S1")
	if !ok {
		t.Fatal("expected settlement progress for S1")
	}
	if payload["stage"] != "DELIVERED" {
		t.Errorf("expected last payload to win, got stage=%v", payload["stage"])
	}
}

func TestStore_SystemEventsSubset(t *testing.T) {
	s := New(10, testLogger())

	s.AddEvent(makeEvent("evt-1", "S1", "STATUS_UPDATE"))
	sys := makeEvent("evt-2", "", domain.EventSystem)
	sys.Severity = domain.SeverityWarning
	s.AddEvent(sys)

	systemEvents := s.SystemEvents()
	if len(systemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(systemEvents))
	}
	if systemEvents[0].EventID != "evt-2" {
		t.Errorf("wrong event in system subset: %s", systemEvents[0].EventID)
	}
	// System event is also in the global history
	if len(s.History(0)) != 2 {
		t.Errorf("expected 2 events in global history, got %d", len(s.History(0)))
	}
}

func TestStore_UnrecognizedTypeOnlyAffectsHistory(t *testing.T) {
	s := New(10, testLogger())

	e := makeEvent("evt-1", "S1", "SOMETHING_NEW")
	e.Payload = map[string]any{"score": 9.9}
	s.AddEvent(e)

	if _, ok := s.RiskScore("S1"); ok {
		t.Error("unrecognized type should not touch the risk score map")
	}
	if len(s.SystemEvents()) != 0 {
		t.Error("unrecognized type should not touch the system subset")
	}
	if len(s.History(0)) != 1 || len(s.EventsByShipment("S1")) != 1 {
		t.Error("unrecognized type should still land in both histories")
	}
}

func TestStore_SettlementStateByShipment(t *testing.T) {
	s := New(10, testLogger())

	s.AddSettlementEvent(domain.SettlementEvent{
		ShipmentID:   "S1",
		Milestone:    "DELIVERED",
		Amount:       100,
		RiskDecision: "LOW",
	})

	state := s.SettlementStateByShipment("S1")
	if state == nil {
		t.Fatal("expected settlement state for S1")
	}
	if state.LastMilestone != "DELIVERED" {
		t.Errorf("last_milestone = %s, want DELIVERED", state.LastMilestone)
	}
	if state.LastAmount != 100 {
		t.Errorf("last_amount = %v, want 100", state.LastAmount)
	}
	if state.LastRiskDecision != "LOW" {
		t.Errorf("last_risk_decision = %s, want LOW", state.LastRiskDecision)
	}
	if len(state.Events) != 1 {
		t.Errorf("expected 1 event in filtered list, got %d", len(state.Events))
	}
}

func TestStore_SettlementStateSummaryFromMostRecent(t *testing.T) {
	s := New(10, testLogger())

	s.AddSettlementEvent(domain.SettlementEvent{ShipmentID: "S1", Milestone: "PICKED_UP", Amount: 10, RiskDecision: "LOW"})
	s.AddSettlementEvent(domain.SettlementEvent{ShipmentID: "S2", Milestone: "IN_TRANSIT", Amount: 20, RiskDecision: "HIGH"})
	s.AddSettlementEvent(domain.SettlementEvent{ShipmentID: "S1", Milestone: "DELIVERED", Amount: 30, RiskDecision: "MEDIUM"})

	state := s.SettlementStateByShipment("S1")
	if state == nil {
		t.Fatal("expected settlement state for S1")
	}
	if state.LastMilestone != "DELIVERED" || state.LastAmount != 30 {
		t.Errorf("summary should come from the most recent S1 record, got %+v", state)
	}
	if len(state.Events) != 2 {
		t.Errorf("expected 2 S1 events, got %d", len(state.Events))
	}
}

func TestStore_SettlementStateMissingShipment(t *testing.T) {
	s := New(10, testLogger())
	if state := s.SettlementStateByShipment("NOPE"); state != nil {
		t.Errorf("expected nil for unknown shipment, got %+v", state)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(10, testLogger())

	risk := makeEvent("evt-1", "S1", domain.EventRiskScore)
	risk.Payload = map[string]any{"score": 5.0}
	s.AddEvent(risk)
	s.AddEvent(makeEvent("evt-2", "", domain.EventSystem))
	s.AddSettlementEvent(domain.SettlementEvent{ShipmentID: "S1", Milestone: "DELIVERED"})
	s.AddTokenEvent(domain.TokenEvent{ShipmentID: "S1", TokenAmount: 10, RiskMultiplier: 1, MLAdjustment: 1})

	s.Clear()

	if len(s.History(0)) != 0 {
		t.Error("history not cleared")
	}
	if len(s.EventsByShipment("S1")) != 0 {
		t.Error("shipment index not cleared")
	}
	if len(s.SystemEvents()) != 0 {
		t.Error("system subset not cleared")
	}
	if _, ok := s.RiskScore("S1"); ok {
		t.Error("risk scores not cleared")
	}
	if s.SettlementStateByShipment("S1") != nil {
		t.Error("settlement list not cleared")
	}
	if len(s.TokenEventsByShipment("S1")) != 0 {
		t.Error("token list not cleared")
	}
}
