package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nvelichkov/shipstream/internal/client"
	"github.com/nvelichkov/shipstream/internal/store"
	ws "github.com/nvelichkov/shipstream/internal/websocket"
)

// NewRouter creates and configures the HTTP router exposing the aggregation
// store's query surface and the dashboard WebSocket feed.
func NewRouter(s *store.Store, c *client.Client, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	eventHandler := NewEventHandler(s)
	shipmentHandler := NewShipmentHandler(s)

	// WebSocket endpoint for the live dashboard feed
	r.Get("/ws", hub.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(c))
		r.Get("/connection", ConnectionHandler(c))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/system", eventHandler.ListSystem)
		})

		r.Get("/risk-scores", eventHandler.RiskScores)

		r.Route("/shipments/{id}", func(r chi.Router) {
			r.Get("/events", shipmentHandler.Events)
			r.Get("/settlement", shipmentHandler.Settlement)
			r.Get("/progress", shipmentHandler.Progress)
			r.Get("/tokens", shipmentHandler.Tokens)
			r.Get("/trajectory", shipmentHandler.Trajectory)
		})

		// Session reset — the only external trigger allowed to clear the store
		r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
			s.Clear()
			respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		})
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
