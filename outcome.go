package fanfetch

import (
	"time"

	"github.com/jpalmerr/fanfetch/internal/fanout"
)

// ErrorKind classifies a [Failure].
//
// ErrorKind is a string type so it serialises and logs readably while the
// defined constants keep it type safe.
type ErrorKind string

const (
	// TransportError means the fetcher could not complete the request:
	// connection errors, non-2xx responses, per-request timeouts and
	// recovered fetcher panics.
	TransportError ErrorKind = "transport_error"

	// Cancelled means the dispatch context ended before the request
	// finished, or before it was ever started.
	Cancelled ErrorKind = "cancelled"

	// ProgrammingError names misuse of the pipeline such as writing to a
	// closed result channel. The pipeline is built so that this never
	// reaches a [Report].
	ProgrammingError ErrorKind = "programming_error"
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	return string(k)
}

var (
	// ErrInvalidCapacity is returned for a negative concurrency capacity.
	ErrInvalidCapacity = fanout.ErrInvalidCapacity

	// ErrFetcherPanic is wrapped by failures whose fetcher panicked. The
	// error text carries a correlation ID matching the server-side log entry.
	ErrFetcherPanic = fanout.ErrFetcherPanic

	// ErrNotAttempted is wrapped by failures for descriptors that were never
	// handed to the fetcher because the context ended first.
	ErrNotAttempted = fanout.ErrNotAttempted
)

// StatusError is returned by [HTTPFetcher] for responses outside 2xx.
// Use errors.As on [Failure.Err] to inspect it.
type StatusError = fanout.StatusError

// Success is a completed request and its payload.
type Success struct {
	// Source is the descriptor that produced this outcome.
	Source Descriptor

	// Index is the descriptor's position in the submitted sequence.
	Index int

	// Payload is the bytes returned by the fetcher.
	Payload []byte

	// Latency is the time the fetcher took.
	Latency time.Duration

	// CompletedAt is when the fetcher returned.
	CompletedAt time.Time
}

// Failure is a request that did not produce a payload.
type Failure struct {
	// Source is the descriptor that produced this outcome.
	Source Descriptor

	// Index is the descriptor's position in the submitted sequence.
	Index int

	// Kind says why the request failed.
	Kind ErrorKind

	// Err is the underlying error; never nil.
	Err error

	// Attempted is false when the request was never handed to the fetcher.
	Attempted bool

	// Latency is the time the fetcher took; zero when not attempted.
	Latency time.Duration

	// CompletedAt is when the failure was recorded.
	CompletedAt time.Time
}

// Outcome is the result of exactly one [Descriptor]: either a [Success] or a
// [Failure].
//
// Outcome is a closed sum type. Its variants are only built by this package;
// use [Outcome.Match] or [Fold] to handle both cases, or the
// [Outcome.Success] and [Outcome.Failure] accessors.
type Outcome struct {
	runID   string
	success *Success
	failure *Failure
}

// Match calls onSuccess or onFailure depending on the variant. Either
// function may be nil to ignore that case.
func (o Outcome) Match(onSuccess func(Success), onFailure func(Failure)) {
	switch {
	case o.success != nil:
		if onSuccess != nil {
			onSuccess(*o.success)
		}
	case o.failure != nil:
		if onFailure != nil {
			onFailure(*o.failure)
		}
	}
}

// Fold maps an outcome to a value by handling both variants.
//
// Example:
//
//	size := fanfetch.Fold(o,
//	    func(s fanfetch.Success) int { return len(s.Payload) },
//	    func(fanfetch.Failure) int { return 0 },
//	)
func Fold[T any](o Outcome, onSuccess func(Success) T, onFailure func(Failure) T) T {
	var result T
	o.Match(
		func(s Success) { result = onSuccess(s) },
		func(f Failure) { result = onFailure(f) },
	)
	return result
}

// IsSuccess reports whether the outcome is a [Success].
func (o Outcome) IsSuccess() bool {
	return o.success != nil
}

// Success returns the success variant and true, or false for a failure.
func (o Outcome) Success() (Success, bool) {
	if o.success == nil {
		return Success{}, false
	}
	return *o.success, true
}

// Failure returns the failure variant and true, or false for a success.
func (o Outcome) Failure() (Failure, bool) {
	if o.failure == nil {
		return Failure{}, false
	}
	return *o.failure, true
}

// Source returns the descriptor that produced the outcome.
func (o Outcome) Source() Descriptor {
	return Fold(o,
		func(s Success) Descriptor { return s.Source },
		func(f Failure) Descriptor { return f.Source },
	)
}

// Index returns the descriptor's position in the submitted sequence.
func (o Outcome) Index() int {
	return Fold(o,
		func(s Success) int { return s.Index },
		func(f Failure) int { return f.Index },
	)
}

// RunID returns the identifier of the dispatch that produced the outcome.
func (o Outcome) RunID() string {
	return o.runID
}

// outcomeFromInternal converts a fanout outcome to the public sum type.
// The payload is moved, not copied: the outcome owns it from here on.
func outcomeFromInternal(o fanout.Outcome) Outcome {
	src := descriptorFromRequest(o.Request)
	if o.OK() {
		return Outcome{
			runID: o.RunID,
			success: &Success{
				Source:      src,
				Index:       o.Request.Index,
				Payload:     o.Payload,
				Latency:     o.Latency,
				CompletedAt: o.CompletedAt,
			},
		}
	}
	return Outcome{
		runID: o.RunID,
		failure: &Failure{
			Source:      src,
			Index:       o.Request.Index,
			Kind:        ErrorKind(o.Kind.String()),
			Err:         o.Err,
			Attempted:   o.Attempted,
			Latency:     o.Latency,
			CompletedAt: o.CompletedAt,
		},
	}
}
