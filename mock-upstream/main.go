// Command mock-upstream serves a synthetic shipment event feed over both
// transports the dashboard backend speaks: WebSocket on /ws and SSE on
// /events. Useful for local development without a real upstream.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvelichkov/shipstream/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var shipments = []string{"SHIP-001", "SHIP-002", "SHIP-003", "SHIP-004", "SHIP-005"}

var milestones = []string{"PICKED_UP", "IN_TRANSIT", "CUSTOMS_CLEARED", "DELIVERED"}

var riskDecisions = []string{"LOW", "MEDIUM", "HIGH"}

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	interval := 500 * time.Millisecond
	if raw := os.Getenv("EMIT_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			interval = d
		}
	}

	var seq atomic.Int64

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("duplex client connected from %s", r.RemoteAddr)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			frame, _ := json.Marshal(randomEvent(seq.Add(1)))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("duplex client gone: %v", err)
				return
			}
		}
	})

	http.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		log.Printf("push client connected from %s", r.RemoteAddr)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Printf("push client gone")
				return
			case <-ticker.C:
				frame, _ := json.Marshal(randomEvent(seq.Add(1)))
				fmt.Fprintf(w, "data: %s\n\n", frame)
				flusher.Flush()
			}
		}
	})

	log.Printf("Mock upstream feed starting on :%s", port)
	log.Printf("  GET /ws      -> WebSocket event stream")
	log.Printf("  GET /events  -> SSE event stream")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func randomEvent(seq int64) domain.Event {
	shipment := shipments[rand.Intn(len(shipments))]
	e := domain.Event{
		EventID:    fmt.Sprintf("evt-%d", seq),
		ShipmentID: shipment,
		Timestamp:  time.Now().UTC(),
		TraceID:    fmt.Sprintf("trace-%06d", rand.Intn(1000000)),
	}

	switch rand.Intn(6) {
	case 0:
		e.EventType = domain.EventRiskScore
		e.Payload = map[string]any{"score": 1 + rand.Float64()*9}
	case 1:
		e.EventType = domain.EventSettlementTrigger
		e.Payload = map[string]any{
			"stage":    milestones[rand.Intn(len(milestones))],
			"progress": rand.Float64(),
		}
	case 2:
		e.EventType = domain.EventSettlementMilestone
		e.Payload = map[string]any{
			"milestone":     milestones[rand.Intn(len(milestones))],
			"amount":        float64(rand.Intn(10000)) / 100,
			"risk_decision": riskDecisions[rand.Intn(len(riskDecisions))],
		}
	case 3:
		amount := float64(rand.Intn(50))
		multiplier := 0.8 + rand.Float64()*0.4
		e.EventType = domain.EventTokenMint
		e.TokenAmount = &amount
		e.RiskMultiplier = &multiplier
	case 4:
		burn := float64(rand.Intn(10))
		e.EventType = domain.EventTokenBurn
		e.BurnAmount = &burn
	default:
		e.EventType = domain.EventSystem
		e.ShipmentID = ""
		e.Severity = domain.SeverityInfo
		e.Payload = map[string]any{"message": "heartbeat ok"}
	}
	return e
}
