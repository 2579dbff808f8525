package relay

import "errors"

// Sentinel errors returned by Queue operations. Callers classify them with
// errors.Is; the HTTP layer translates them into status codes.
var (
	// ErrEmptyPayload rejects zero-length bodies. An empty event carries no
	// signal and is never enqueued.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrPayloadTooLarge rejects bodies above QueueOptions.MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")

	// ErrStoreUnavailable marks backend failures and persist timeouts. The
	// operation made at most one attempt; retrying is the caller's decision.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound reports an acknowledgment for an id that does not exist or
	// was already acknowledged. Benign for idempotent consumers.
	ErrNotFound = errors.New("message not found")
)
