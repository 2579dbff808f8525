package relay

import "time"

// Message is a queued event: an opaque payload plus delivery metadata.
// A message is visible (eligible for dequeue) when VisibleAt has passed,
// and leased otherwise.
type Message struct {
	ID           string    `db:"id" json:"message_id"`
	Body         []byte    `db:"body" json:"body"`
	EnqueuedAt   time.Time `db:"enqueued_at" json:"enqueued_at"`
	VisibleAt    time.Time `db:"visible_at" json:"visible_at"`
	DequeueCount int       `db:"dequeue_count" json:"dequeue_count"`
}

// DeadLetter is a message that exceeded the poison threshold and was routed
// out of normal delivery. The sink is append-only; rows are kept for
// inspection and never redelivered.
type DeadLetter struct {
	ID             string    `db:"id" json:"message_id"`
	Body           []byte    `db:"body" json:"body"`
	EnqueuedAt     time.Time `db:"enqueued_at" json:"enqueued_at"`
	DequeueCount   int       `db:"dequeue_count" json:"dequeue_count"`
	DeadLetteredAt time.Time `db:"dead_lettered_at" json:"dead_lettered_at"`
	Reason         string    `db:"reason" json:"reason"`
}

// Stats is a point-in-time census of the queue.
type Stats struct {
	Visible      int64 `json:"visible"`
	Leased       int64 `json:"leased"`
	DeadLettered int64 `json:"dead_lettered"`
}
