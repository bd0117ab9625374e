package domain

import (
	"encoding/json"
	"time"
)

// QueuedRequest is a mutating HTTP call persisted while offline.
// Entries are ordered FIFO by EnqueuedAt and survive process restarts.
type QueuedRequest struct {
	// ID is unique and stable for the lifetime of the entry.
	ID string `json:"id"`

	// URL is the request target, relative to the API base URL or absolute.
	URL string `json:"url"`

	// Method is the upper-cased HTTP method.
	Method string `json:"method"`

	// Body is the compact JSON encoding of the request payload.
	Body json.RawMessage `json:"body,omitempty"`

	// Headers are extra request headers captured with the call.
	Headers map[string]string `json:"headers,omitempty"`

	// EnqueuedAt is the time the entry was accepted by the store.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// IdempotencyKey is a client-generated token sent with every replay.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Attempts counts rejected replays.
	Attempts int `json:"attempts,omitempty"`

	// LastError is the message of the most recent rejected replay.
	LastError string `json:"last_error,omitempty"`
}

// HasBody reports whether the request carries a payload.
func (r QueuedRequest) HasBody() bool {
	return len(r.Body) > 0 && string(r.Body) != "null"
}

// Clone returns a deep copy so callers can mutate it without touching store state.
func (r QueuedRequest) Clone() QueuedRequest {
	c := r
	if r.Body != nil {
		c.Body = append(json.RawMessage(nil), r.Body...)
	}
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	return c
}

// RequestDraft is the unsanitized call handed over by an enqueuing feature.
// Body and header values may hold anything; sanitization decides what survives.
type RequestDraft struct {
	ID         string
	URL        string
	Method     string
	Body       any
	Headers    map[string]any
	EnqueuedAt time.Time
}

// DeadLetter is a queue entry that exhausted its replay attempts.
type DeadLetter struct {
	Request  QueuedRequest `json:"request"`
	Reason   string        `json:"reason"`
	FailedAt time.Time     `json:"failed_at"`
}
