package fanfetch

import (
	"context"
	"log/slog"

	"github.com/jpalmerr/fanfetch/internal/fanout"
)

const defaultPort = 8080

// Dispatcher fans a batch of descriptors out to a [Fetcher] and collects one
// [Outcome] per descriptor into a [Report].
//
// A Dispatcher is created using [New] with functional options. It holds no
// per-dispatch state, so it is safe for concurrent use and may run many
// dispatches over its lifetime:
//
//	d, err := fanfetch.New(fanfetch.WithCapacity(8))
//	if err != nil {
//	    slog.Error("failed to create dispatcher", "error", err)
//	    os.Exit(1)
//	}
//	defer d.Close()
//
//	report := d.Dispatch(ctx, descriptors)
type Dispatcher struct {
	fetcher          Fetcher
	core             fanout.Fetcher
	capacity         int
	port             int
	logger           *slog.Logger
	outcomeCallbacks []func(Outcome)
}

// New creates a new [Dispatcher] with the given options.
//
// Defaults:
//   - Fetcher: a new [HTTPFetcher]
//   - Capacity: 0 (unbounded)
//   - Logger: [slog.Default]
//
// Returns an error if any option is invalid, in particular a negative
// capacity (see [ErrInvalidCapacity]).
func New(opts ...Option) (*Dispatcher, error) {
	cfg := &dispatcherConfig{
		port: defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.fetcher == nil {
		cfg.fetcher = NewHTTPFetcher()
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		fetcher:          cfg.fetcher,
		core:             internalFetcher(cfg.fetcher),
		capacity:         cfg.capacity,
		port:             cfg.port,
		logger:           logger,
		outcomeCallbacks: cfg.outcomeCallbacks,
	}, nil
}

// Dispatch is a convenience wrapper that builds a [Dispatcher] around f and
// runs a single dispatch. The only error it returns comes from opts, such
// as a negative capacity; f is not closed.
//
// Example:
//
//	report, err := fanfetch.Dispatch(ctx, stub, descriptors, fanfetch.WithCapacity(4))
func Dispatch(ctx context.Context, f Fetcher, descriptors []Descriptor, opts ...Option) (Report, error) {
	d, err := New(append([]Option{WithFetcher(f)}, opts...)...)
	if err != nil {
		return Report{}, err
	}
	return d.Dispatch(ctx, descriptors), nil
}

// Dispatch fetches every descriptor concurrently and blocks until all
// outcomes are collected.
//
// The report holds exactly len(descriptors) outcomes in submission order,
// whatever happens to the individual requests. An empty slice yields an
// empty report without starting any work. Dispatch itself never fails:
// errors, timeouts and panics of individual fetches are reported as
// [Failure] outcomes. Cancelling ctx makes outstanding descriptors fail
// promptly with [Cancelled].
func (d *Dispatcher) Dispatch(ctx context.Context, descriptors []Descriptor) Report {
	return d.dispatch(ctx, descriptors, nil)
}

// dispatch runs one fan-out. observe, if set, sees each collected outcome
// before the public callbacks.
func (d *Dispatcher) dispatch(ctx context.Context, descriptors []Descriptor, observe func(fanout.Outcome)) Report {
	hooks := fanout.Hooks{}
	if observe != nil || len(d.outcomeCallbacks) > 0 {
		hooks.OnCollect = func(o fanout.Outcome) {
			if observe != nil {
				observe(o)
			}
			if len(d.outcomeCallbacks) > 0 {
				public := outcomeFromInternal(o)
				for _, cb := range d.outcomeCallbacks {
					invokeCallbackSafe(cb, public, d.logger)
				}
			}
		}
	}

	// capacity was validated by WithCapacity and the fetcher is never nil
	core, err := fanout.NewDispatcher(d.core, d.capacity, hooks, d.logger)
	if err != nil {
		panic("fanfetch: " + err.Error())
	}

	requests := make([]fanout.Request, len(descriptors))
	for i, desc := range descriptors {
		requests[i] = requestFromDescriptor(desc, i)
	}

	return reportFromInternal(core.Dispatch(ctx, requests))
}

// Capacity returns the configured concurrency cap, 0 when unbounded.
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

// Port returns the configured HTTP port for [Dispatcher.Serve].
func (d *Dispatcher) Port() int {
	return d.port
}

// Close releases resources held by the fetcher, such as idle HTTP
// connections. The Dispatcher remains usable afterwards.
func (d *Dispatcher) Close() {
	if c, ok := d.fetcher.(interface{ Close() }); ok {
		c.Close()
	}
}

// invokeCallbackSafe calls an outcome callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Outcome), o Outcome, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("outcome callback panicked",
				"panic", r,
				"descriptor", o.Source().Name(),
				"run_id", o.RunID(),
			)
		}
	}()
	cb(o)
}
