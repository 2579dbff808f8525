package handlers

import (
	"context"
	"net/http"
	"time"

	relay "github.com/AZ-204-Projects/event-relay"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Queue     *relay.Stats     `json:"queue,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Health reports service health. The store check runs a real queue census,
// so a passing check means reads are working end to end.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	status := "healthy"
	statusCode := http.StatusOK

	start := time.Now()
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		checks["store"] = Check{Status: "fail", Message: "query failed"}
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = Check{Status: "pass", Latency: time.Since(start).String()}
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Queue:     stats,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root identifies the service.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{Name: "event-relay", Version: version})
}
