package handler

import (
	"net/http"
)

// BusStatus reports the event bus connection state. A nil BusStatus means
// the service runs without a bus that needs to be connected.
type BusStatus interface {
	IsConnected() bool
	Status() string
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	bus             BusStatus
	busName         string
	interpreterMode string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(bus BusStatus, busName, interpreterMode string) *HealthHandler {
	return &HealthHandler{
		bus:             bus,
		busName:         busName,
		interpreterMode: interpreterMode,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"event_bus":   h.busName,
		"interpreter": h.interpreterMode,
	}
	if h.bus != nil {
		body["event_bus_status"] = h.bus.Status()
		if !h.bus.IsConnected() {
			body["status"] = "not ready"
			body["reason"] = h.busName + " not connected"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	body["status"] = "ready"
	writeJSON(w, http.StatusOK, body)
}
