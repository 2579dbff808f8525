package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	relay "github.com/AZ-204-Projects/event-relay"
	"github.com/rs/zerolog/log"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	queue *relay.Queue
}

// NewHandler creates a new Handler over the given queue.
func NewHandler(queue *relay.Queue) *Handler {
	return &Handler{queue: queue}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// queueError translates queue sentinel errors into HTTP responses. Backend
// failures are logged here; client errors are not.
func (h *Handler) queueError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, relay.ErrEmptyPayload):
		h.Error(w, http.StatusBadRequest, "empty payload")
	case errors.Is(err, relay.ErrPayloadTooLarge):
		h.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
	case errors.Is(err, relay.ErrNotFound):
		h.Error(w, http.StatusNotFound, "message not found")
	case errors.Is(err, relay.ErrStoreUnavailable):
		log.Err(err).Msgf("error %s", op)
		h.Error(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		log.Err(err).Msgf("error %s", op)
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}
