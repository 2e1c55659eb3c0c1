package store

import "time"

// OutcomeRecord is the latest outcome recorded for one descriptor.
//
// OutcomeRecord is the storage representation of an outcome, optimised for
// JSON serialisation (used by the REST API and SSE). It is decoupled from
// the fanout package's types to allow independent evolution.
type OutcomeRecord struct {
	// RunID identifies the dispatch that produced the outcome.
	RunID string `json:"run_id"`

	// Index is the descriptor's position in that dispatch.
	Index int `json:"index"`

	// Name is the descriptor's display name.
	Name string `json:"name"`

	// URL is the target URL that was fetched.
	URL string `json:"url"`

	// Labels contains key-value metadata for grouping and filtering.
	Labels map[string]string `json:"labels"`

	// OK is true for a successful fetch.
	OK bool `json:"ok"`

	// Kind is the failure kind ("transport_error", "cancelled"); empty on success.
	Kind string `json:"kind,omitempty"`

	// Error contains the error message if the fetch failed.
	Error *string `json:"error"`

	// Attempted is false when the request never reached the fetcher.
	Attempted bool `json:"attempted"`

	// Bytes is the payload size of a successful fetch.
	Bytes int `json:"bytes"`

	// LatencyMs is the fetch latency in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// CompletedAt is when the outcome was recorded.
	CompletedAt time.Time `json:"completed_at"`
}

// Store defines the interface for storing and subscribing to outcomes.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows outcomes to be pushed to connected clients as a dispatch
// drains (e.g., via Server-Sent Events).
type Store interface {
	// Update stores an outcome and notifies all subscribers.
	// The record is keyed by Name, so subsequent updates replace previous values.
	Update(record OutcomeRecord)

	// GetAll returns all currently stored records.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []OutcomeRecord

	// Subscribe returns a channel that receives outcome updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan OutcomeRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan OutcomeRecord)
}
