package api

import (
	"net/http"

	"github.com/nvelichkov/shipstream/internal/client"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string       `json:"status"`
	Feed   client.State `json:"feed"`
}

// HealthHandler returns the health check handler. The service is healthy as
// long as the process runs; the feed state is included so operators can see
// connectivity at a glance.
func HealthHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Feed:   c.State(),
		})
	}
}

type connectionResponse struct {
	State         client.State `json:"state"`
	DroppedFrames uint64       `json:"dropped_frames"`
}

// ConnectionHandler exposes the connection state machine snapshot; the
// dashboard drives its connectivity banner from this instead of the core ever
// raising errors.
func ConnectionHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, connectionResponse{
			State:         c.State(),
			DroppedFrames: c.DroppedFrames(),
		})
	}
}
