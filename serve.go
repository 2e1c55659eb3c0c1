package fanfetch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/fanfetch/internal/fanout"
	"github.com/jpalmerr/fanfetch/internal/server"
	"github.com/jpalmerr/fanfetch/internal/store"
)

var (
	// ErrNoDescriptors is returned by [Dispatcher.Serve] when it is given
	// nothing to dispatch.
	ErrNoDescriptors = errors.New("at least one descriptor is required")

	// ErrDuplicateName is returned by [Dispatcher.Serve] when two descriptors
	// share a name. Served outcomes are keyed by name.
	ErrDuplicateName = errors.New("duplicate descriptor name")
)

// Serve exposes descriptors over HTTP until ctx is cancelled.
//
// Serve runs one dispatch immediately, then another for every
// POST /api/dispatch. The latest outcome per descriptor is available at
// GET /api/outcomes, and GET /api/sse streams outcomes while a dispatch
// drains. Serve blocks until ctx is cancelled and returns nil after a
// graceful shutdown, or an error if the server could not be started.
//
// Returns nil immediately if ctx is already cancelled.
func (d *Dispatcher) Serve(ctx context.Context, descriptors ...Descriptor) error {
	if len(descriptors) == 0 {
		return ErrNoDescriptors
	}
	seen := make(map[string]struct{}, len(descriptors))
	for _, desc := range descriptors {
		if _, dup := seen[desc.Name()]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, desc.Name())
		}
		seen[desc.Name()] = struct{}{}
	}

	if ctx.Err() != nil {
		return nil
	}

	d.logger.Info("fanfetch serving",
		"descriptor_count", len(descriptors),
		"capacity", d.capacity,
		"url", fmt.Sprintf("http://localhost:%d", d.port),
	)

	outcomes := store.NewMemoryStore()
	record := func(o fanout.Outcome) {
		outcomes.Update(recordFromOutcome(o))
	}
	trigger := func(reqCtx context.Context) (any, error) {
		return d.dispatch(reqCtx, descriptors, record), nil
	}

	srv := server.NewServer(outcomes, d.port, trigger, d.logger)

	// the initial run holds the same slot as HTTP triggers, so runs never
	// interleave in the store
	unlock := srv.LockDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		defer unlock()
		report := d.dispatch(gctx, descriptors, record)
		d.logger.Info("initial dispatch completed",
			"run_id", report.RunID(),
			"failed", len(report.Failures()),
		)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	d.logger.Info("fanfetch stopped")
	return nil
}

// recordFromOutcome converts a collected outcome to its stored form.
func recordFromOutcome(o fanout.Outcome) store.OutcomeRecord {
	rec := store.OutcomeRecord{
		RunID:       o.RunID,
		Index:       o.Request.Index,
		Name:        o.Request.Name,
		URL:         o.Request.URL,
		Labels:      copyMap(o.Request.Labels),
		OK:          o.OK(),
		Attempted:   o.Attempted,
		Bytes:       len(o.Payload),
		LatencyMs:   o.Latency.Milliseconds(),
		CompletedAt: o.CompletedAt,
	}
	if !rec.OK {
		rec.Kind = o.Kind.String()
		msg := o.Err.Error()
		rec.Error = &msg
	}
	return rec
}
