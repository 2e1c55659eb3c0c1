package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// runTask performs one request and returns its outcome. It never panics and
// never spawns further goroutines.
func (d *Dispatcher) runTask(r *run, req Request) Outcome {
	ctx := r.ctx
	if err := ctx.Err(); err != nil {
		return notAttempted(r.id, req, err)
	}

	fetchCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	payload, err := d.safeFetch(fetchCtx, req)

	out := Outcome{
		RunID:       r.id,
		Request:     req,
		Attempted:   true,
		Latency:     time.Since(start),
		CompletedAt: time.Now(),
	}
	if err != nil {
		out.Err = err
		out.Kind = classify(ctx, err)
		return out
	}
	out.Payload = payload
	return out
}

// safeFetch calls the fetcher with panic recovery.
// If the fetcher panics, it logs the full stack trace with a correlation ID
// and returns an error wrapping ErrFetcherPanic that carries the ID.
func (d *Dispatcher) safeFetch(ctx context.Context, req Request) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			d.logger.Error("fetcher panic",
				"correlation_id", correlationID,
				"descriptor", req.Name,
				"url", req.URL,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			payload = nil
			err = fmt.Errorf("%w (correlation_id: %s)", ErrFetcherPanic, correlationID)
		}
	}()
	return d.fetcher.Fetch(ctx, req)
}

// classify decides the ErrorKind of a fetch error. parent is the caller's
// context, not the per-request one: a per-request timeout is the
// collaborator timing out, not the caller cancelling.
func classify(parent context.Context, err error) ErrorKind {
	if parent.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return Cancelled
	}
	return TransportError
}

func notAttempted(runID string, req Request, cause error) Outcome {
	return Outcome{
		RunID:       runID,
		Request:     req,
		Err:         fmt.Errorf("%w: %w", ErrNotAttempted, cause),
		Kind:        Cancelled,
		CompletedAt: time.Now(),
	}
}
