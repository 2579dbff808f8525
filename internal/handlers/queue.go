package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	relay "github.com/AZ-204-Projects/event-relay"
	"github.com/AZ-204-Projects/event-relay/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	// maxLease caps consumer-requested leases so a bad client can't park a
	// message out of sight indefinitely.
	maxLease = 12 * time.Hour

	defaultListCount = 10
	maxListCount     = 100
)

// DequeueResponse wraps a delivered message. The body is base64 in JSON.
type DequeueResponse struct {
	Message *relay.Message `json:"message"`
}

// Dequeue leases the oldest visible message to the caller. An optional lease
// query parameter overrides the queue default. Responds 204 when the queue
// has no visible message.
func (h *Handler) Dequeue(w http.ResponseWriter, r *http.Request) {
	var lease time.Duration
	if v := r.URL.Query().Get("lease"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			h.Error(w, http.StatusBadRequest, "invalid lease duration")
			return
		}
		if d > maxLease {
			d = maxLease
		}
		lease = d
	}
	m, err := h.queue.Dequeue(r.Context(), lease)
	if err != nil {
		h.queueError(w, err, "dequeuing message")
		return
	}
	if m == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	metrics.MessagesDequeued.Inc()
	h.JSON(w, http.StatusOK, DequeueResponse{Message: m})
}

// Acknowledge completes a delivered message, deleting it from the queue.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message id")
		return
	}
	if err := h.queue.Acknowledge(r.Context(), id); err != nil {
		h.queueError(w, err, "acknowledging message")
		return
	}
	metrics.MessagesAcknowledged.Inc()
	w.WriteHeader(http.StatusNoContent)
}

// PeekResponse lists visible messages without leasing them.
type PeekResponse struct {
	Messages []relay.Message `json:"messages"`
}

// Peek returns up to count visible messages in delivery order. Peeking does
// not lease, so the same messages remain available to consumers.
func (h *Handler) Peek(w http.ResponseWriter, r *http.Request) {
	count, err := countParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	msgs, err := h.queue.Peek(r.Context(), count)
	if err != nil {
		h.queueError(w, err, "peeking messages")
		return
	}
	h.JSON(w, http.StatusOK, PeekResponse{Messages: msgs})
}

// DeadLettersResponse lists dead-lettered messages.
type DeadLettersResponse struct {
	DeadLetters []relay.DeadLetter `json:"dead_letters"`
}

// DeadLetters returns up to count dead-lettered messages, oldest first.
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	count, err := countParam(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.queue.DeadLettered(r.Context(), count)
	if err != nil {
		h.queueError(w, err, "listing dead letters")
		return
	}
	h.JSON(w, http.StatusOK, DeadLettersResponse{DeadLetters: rows})
}

func countParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("count")
	if v == "" {
		return defaultListCount, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count")
	}
	if n > maxListCount {
		n = maxListCount
	}
	return n, nil
}
