package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	relay "github.com/AZ-204-Projects/event-relay"
	"github.com/AZ-204-Projects/event-relay/internal/metrics"
)

// PostEventResponse acknowledges an accepted event.
type PostEventResponse struct {
	MessageID string `json:"message_id"`
}

// PostEvent accepts an event payload and enqueues it. The body is opaque;
// any content type is accepted. An optional delay query parameter holds back
// the first delivery. Responds 200 only after the message is durably stored.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var delay time.Duration
	if v := r.URL.Query().Get("delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			h.Error(w, http.StatusBadRequest, "invalid delay duration")
			return
		}
		delay = d
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.EventsRejected.WithLabelValues("too_large").Inc()
			h.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.Error(w, http.StatusBadRequest, "error reading request body")
		return
	}
	m, err := h.queue.EnqueueDelayed(r.Context(), body, delay)
	if err != nil {
		if reason := rejectReason(err); reason != "" {
			metrics.EventsRejected.WithLabelValues(reason).Inc()
		}
		h.queueError(w, err, "enqueuing event")
		return
	}
	metrics.EventsEnqueued.Inc()
	h.JSON(w, http.StatusOK, PostEventResponse{MessageID: m.ID})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, relay.ErrEmptyPayload):
		return "empty"
	case errors.Is(err, relay.ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, relay.ErrStoreUnavailable):
		return "store"
	}
	return ""
}
