package fanfetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// descriptorConfig holds mutable state during descriptor construction.
type descriptorConfig struct {
	labels  map[string]string
	headers map[string]string
	timeout time.Duration
	method  string
}

// DescriptorOption is a function that configures a [Descriptor] during
// construction. Options return an error if validation fails.
//
// Built-in options: [WithLabels], [WithHeaders], [WithTimeout], [WithMethod].
type DescriptorOption func(*descriptorConfig) error

// WithLabels adds metadata labels to the descriptor.
//
// Labels are carried into reports unchanged and are never sent over the
// wire. Accepts variadic key-value pairs; the number of arguments must be
// even.
//
// Example:
//
//	d, err := fanfetch.NewDescriptor("API", url,
//	    fanfetch.WithLabels("env", "production", "team", "platform"),
//	)
func WithLabels(keyValues ...string) DescriptorOption {
	return func(cfg *descriptorConfig) error {
		return putPairs(cfg.labels, "WithLabels", keyValues)
	}
}

// WithHeaders adds custom HTTP headers to the request.
//
// Accepts variadic key-value pairs; the number of arguments must be even.
//
// Example:
//
//	d, err := fanfetch.NewDescriptor("API", url,
//	    fanfetch.WithHeaders("Authorization", "Bearer token123"),
//	)
func WithHeaders(keyValues ...string) DescriptorOption {
	return func(cfg *descriptorConfig) error {
		return putPairs(cfg.headers, "WithHeaders", keyValues)
	}
}

// WithTimeout sets the per-request timeout.
//
// A request that does not finish within this duration fails with
// [TransportError]. Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) DescriptorOption {
	return func(cfg *descriptorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMethod sets the HTTP method for the request.
//
// Supported methods are GET (default), HEAD, and POST.
//
// Returns an error if the method is not GET, HEAD, or POST.
func WithMethod(method string) DescriptorOption {
	return func(cfg *descriptorConfig) error {
		if err := checkMethod(method); err != nil {
			return err
		}
		cfg.method = method
		return nil
	}
}

// putPairs copies variadic key-value pairs into dst.
func putPairs(dst map[string]string, option string, keyValues []string) error {
	if len(keyValues)%2 != 0 {
		return fmt.Errorf("%s requires an even number of arguments (key-value pairs)", option)
	}
	for i := 0; i < len(keyValues); i += 2 {
		dst[keyValues[i]] = keyValues[i+1]
	}
	return nil
}

func checkMethod(method string) error {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
		return nil
	default:
		return errors.New("method must be GET, HEAD, or POST")
	}
}
