package fanout

import (
	"errors"
	"time"
)

// ErrorKind classifies why a request failed.
type ErrorKind int

const (
	// TransportError means the fetcher could not complete the operation,
	// including per-request timeouts and fetcher panics.
	TransportError ErrorKind = iota + 1

	// Cancelled means the caller's context ended before the request finished.
	Cancelled

	// ProgrammingError marks misuse of the pipeline itself. It is never
	// attached to an outcome handed to callers.
	ProgrammingError
)

// String returns the kind name used in logs and JSON.
func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport_error"
	case Cancelled:
		return "cancelled"
	case ProgrammingError:
		return "programming_error"
	default:
		return "none"
	}
}

var (
	// ErrFetcherPanic is wrapped by failures whose fetcher panicked.
	ErrFetcherPanic = errors.New("fetcher panic")

	// ErrNotAttempted is wrapped by failures for requests that were never
	// handed to the fetcher because the context ended first.
	ErrNotAttempted = errors.New("request not attempted")
)

// Request is the package-internal view of a descriptor.
//
// It is decoupled from fanfetch.Descriptor to avoid circular dependencies.
// Index is the position of the request in the submitted sequence.
type Request struct {
	Index   int
	Name    string
	URL     string
	Method  string
	Headers map[string]string
	Labels  map[string]string
	Timeout time.Duration
}

// Outcome holds the result of a single request.
//
// Err is nil for a success. For a failure Kind says why and Attempted says
// whether the fetcher was ever called.
type Outcome struct {
	RunID       string
	Request     Request
	Payload     []byte
	Err         error
	Kind        ErrorKind
	Attempted   bool
	Latency     time.Duration
	CompletedAt time.Time
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report holds every outcome of one dispatch in submission order.
type Report struct {
	RunID     string
	Outcomes  []Outcome
	StartedAt time.Time
	Duration  time.Duration
}

// Failed returns the number of failed outcomes.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}
