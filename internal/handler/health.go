package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by the window store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store   Pinger
	backend string
	started time.Time
}

func NewHealthHandler(store Pinger, backend string) *HealthHandler {
	return &HealthHandler{store: store, backend: backend, started: time.Now()}
}

// LivenessResponse represents liveness probe response.
type LivenessResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"timestamp"`
}

// ReadinessResponse represents readiness probe response.
type ReadinessResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Liveness returns 200 if the service is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status: "alive",
		Time:   time.Now().Unix(),
	})
}

// Readiness returns 200 when the window store answers a ping, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "unavailable", Store: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Store: "ok"})
}

// Status returns detailed status information.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "average-calculator",
		"version":   "1.0.0",
		"store":     h.backend,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(h.started).Seconds(),
	})
}
