package fanout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidCapacity is returned by [NewDispatcher] for a negative capacity.
var ErrInvalidCapacity = errors.New("capacity must not be negative")

// Hooks observes pipeline events. Every field is optional.
//
// Hooks run synchronously on pipeline goroutines and must not block.
// OnWrite and OnClose run on task and closer goroutines; OnCollect runs on
// the goroutine that called [Dispatcher.Dispatch].
type Hooks struct {
	// OnPhase is called on every phase transition of a run.
	OnPhase func(Phase)

	// OnWrite is called after an outcome is written to the result channel.
	// n is the number of writes so far in this run.
	OnWrite func(o Outcome, n int64)

	// OnClose is called once, right after the result channel is closed.
	OnClose func(writes int64)

	// OnCollect is called for every outcome drained by the collector.
	OnCollect func(Outcome)
}

// Dispatcher fans requests out to a [Fetcher] and collects the outcomes.
//
// Each call to [Dispatcher.Dispatch] is an independent run with its own
// result channel and completion gate, so a Dispatcher is safe for concurrent
// use and may be reused.
type Dispatcher struct {
	fetcher  Fetcher
	capacity int
	hooks    Hooks
	logger   *slog.Logger
}

// NewDispatcher creates a [Dispatcher].
//
// Parameters:
//   - fetcher: Performs the network operation for each request
//   - capacity: Maximum number of concurrently running tasks; 0 means unbounded
//   - hooks: Optional observers of pipeline events
//   - logger: Logger for dispatch events; nil uses slog.Default()
//
// Returns [ErrInvalidCapacity] if capacity is negative.
func NewDispatcher(fetcher Fetcher, capacity int, hooks Hooks, logger *slog.Logger) (*Dispatcher, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		fetcher:  fetcher,
		capacity: capacity,
		hooks:    hooks,
		logger:   logger,
	}, nil
}

// Capacity returns the concurrency cap, 0 when unbounded.
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

// Dispatch runs every request concurrently and blocks until all outcomes
// have been collected.
//
// The returned report holds exactly len(requests) outcomes in submission
// order; Request.Index is overwritten with each request's position. Fetch
// errors never escape as errors or panics: they become failed outcomes.
// Cancelling ctx makes pending and in-flight requests fail with [Cancelled]
// as soon as the fetcher observes it.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []Request) Report {
	if ctx == nil {
		ctx = context.Background()
	}

	r := &run{
		id:       uuid.NewString(),
		ctx:      ctx,
		pipeline: newPipeline(d.hooks.OnPhase),
		results:  newResultChannel(len(requests), d.hooks),
		gate:     &completionGate{},
		draining: make(chan struct{}),
	}
	logger := d.logger.With("run_id", r.id)
	started := time.Now()

	r.pipeline.advance(PhaseDispatching)
	logger.Debug("dispatch started", "requests", len(requests), "capacity", d.capacity)

	go d.admit(r, requests)

	outcomes := collect(r.results.receive(), len(requests), func(o Outcome) {
		logOutcome(logger, o)
		if d.hooks.OnCollect != nil {
			d.hooks.OnCollect(o)
		}
	})
	// the closer reports Draining after closing; Done must not overtake it
	<-r.draining
	r.pipeline.advance(PhaseDone)

	report := Report{
		RunID:     r.id,
		Outcomes:  outcomes,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	logger.Info("dispatch completed",
		"requests", len(requests),
		"failed", report.Failed(),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report
}

// run is the state of a single Dispatch call.
type run struct {
	id       string
	ctx      context.Context
	pipeline *pipeline
	results  *resultChannel
	gate     *completionGate
	draining chan struct{} // closed once PhaseDraining is reported
}

// admit launches one task per request, waits on the gate, then closes the
// result channel. It runs on its own goroutine so closing never happens on
// the draining goroutine.
func (d *Dispatcher) admit(r *run, requests []Request) {
	var sem *semaphore.Weighted
	if d.capacity > 0 {
		sem = semaphore.NewWeighted(int64(d.capacity))
	}

	for i := range requests {
		req := requests[i]
		req.Index = i

		if sem != nil {
			if err := sem.Acquire(r.ctx, 1); err != nil {
				// never launched; the result buffer still has its slot
				r.results.send(notAttempted(r.id, req, err))
				continue
			}
		}

		r.gate.enter()
		go func() {
			defer r.gate.leave()
			if sem != nil {
				defer sem.Release(1)
			}
			r.results.send(d.runTask(r, req))
		}()
	}

	r.gate.wait()
	r.results.close()
	r.pipeline.advance(PhaseDraining)
	close(r.draining)
}

// Close releases resources held by the fetcher, if it has any.
func (d *Dispatcher) Close() {
	if c, ok := d.fetcher.(interface{ Close() }); ok {
		c.Close()
	}
}

// logOutcome logs a collected outcome (DEBUG level for success to reduce noise).
func logOutcome(logger *slog.Logger, o Outcome) {
	attrs := []any{
		"descriptor", o.Request.Name,
		"url", o.Request.URL,
		"latency_ms", o.Latency.Milliseconds(),
	}
	if o.Err != nil {
		logger.Warn("fetch failed", append(attrs, "kind", o.Kind.String(), "error", o.Err.Error())...)
		return
	}
	logger.Debug("fetch completed", append(attrs, "bytes", len(o.Payload))...)
}
