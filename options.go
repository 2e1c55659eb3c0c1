package fanfetch

import (
	"errors"
	"fmt"
	"log/slog"
)

// dispatcherConfig holds mutable state during Dispatcher construction.
type dispatcherConfig struct {
	fetcher          Fetcher
	capacity         int
	port             int
	logger           *slog.Logger
	outcomeCallbacks []func(Outcome)
}

// Option is a function that configures a [Dispatcher] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithFetcher], [WithCapacity], [WithLogger],
// [WithOutcomeCallback], [WithPort].
type Option func(*dispatcherConfig) error

// WithFetcher sets the [Fetcher] that performs each request.
//
// If not specified, an [HTTPFetcher] is created.
//
// Returns an error if the fetcher is nil.
func WithFetcher(f Fetcher) Option {
	return func(cfg *dispatcherConfig) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithCapacity bounds how many requests run at the same time.
//
// With a capacity of k, at most k fetches are in flight; further descriptors
// wait for a slot and are started as earlier ones complete. Zero, the
// default, starts every descriptor immediately.
//
// Example:
//
//	d, err := fanfetch.New(
//	    fanfetch.WithCapacity(8),
//	)
//
// Returns an error wrapping [ErrInvalidCapacity] if n is negative.
func WithCapacity(n int) Option {
	return func(cfg *dispatcherConfig) error {
		if n < 0 {
			return fmt.Errorf("%w, got %d", ErrInvalidCapacity, n)
		}
		cfg.capacity = n
		return nil
	}
}

// WithPort sets the HTTP port used by [Dispatcher.Serve].
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *dispatcherConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Dispatcher.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *dispatcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOutcomeCallback registers a function to be called for every outcome
// as it is collected, before the [Report] is complete.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks are invoked synchronously from the collecting goroutine, so they
// see outcomes one at a time in arrival order (not submission order).
//
// IMPORTANT: Callbacks must be non-blocking and must not modify the payload.
// A slow callback delays the drain, though never the fetches themselves.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	d, err := fanfetch.New(
//	    fanfetch.WithOutcomeCallback(func(o fanfetch.Outcome) {
//	        if f, ok := o.Failure(); ok {
//	            log.Printf("%s failed: %v", f.Source.Name(), f.Err)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithOutcomeCallback(cb func(Outcome)) Option {
	return func(cfg *dispatcherConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.outcomeCallbacks = append(cfg.outcomeCallbacks, cb)
		return nil
	}
}
