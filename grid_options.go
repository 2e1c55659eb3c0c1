package fanfetch

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// gridConfig collects [GridOption] settings for [NewDescriptorGrid].
type gridConfig struct {
	urlTemplate  string
	dimensions   map[string][]string
	staticLabels map[string]string
	headers      map[string]string
	timeout      time.Duration
	method       string
}

// setDimension stores vals under key, replacing any earlier dimension.
func (cfg *gridConfig) setDimension(key string, vals []string) {
	if cfg.dimensions == nil {
		cfg.dimensions = make(map[string][]string)
	}
	cfg.dimensions[key] = vals
}

// GridOption configures [NewDescriptorGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the text/template used to render each URL. Dimension
// keys are the template variables.
//
// Example:
//
//	WithURLTemplate("https://api.example.com/v1/{{.region}}/orders?page={{.page}}")
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithDimensions adds named lists of values. The grid holds one descriptor
// per element of the cartesian product of all dimensions.
//
// Example:
//
//	WithDimensions(map[string][]string{
//	    "region": {"us-east", "eu-west"},
//	    "tier":   {"free", "paid"},
//	})
//
// Repeated options merge; a later dimension replaces an earlier one with the
// same key. Values are copied.
//
// Returns an error if the map is empty, a dimension has no values, or a
// value is the empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		for k, vals := range dims {
			cfg.setDimension(k, append([]string(nil), vals...))
		}
		return nil
	}
}

// WithRangeDimension adds a dimension holding the integers first..last
// inclusive, typically page numbers or shard IDs.
//
// Example:
//
//	WithURLTemplate("https://api.example.com/items?page={{.page}}"),
//	WithRangeDimension("page", 1, 50)
//
// Returns an error if the key is empty, last is less than first, or the
// range holds more than [MaxGridSize] values.
func WithRangeDimension(key string, first, last int) GridOption {
	return func(cfg *gridConfig) error {
		if key == "" {
			return errors.New("dimension key cannot be empty")
		}
		if last < first {
			return fmt.Errorf("dimension '%s' range is empty: %d..%d", key, first, last)
		}
		size, ok := RangeSize(first, last)
		if !ok {
			return fmt.Errorf("%w: dimension '%s' range %d..%d exceeds %d values",
				ErrGridTooLarge, key, first, last, MaxGridSize)
		}
		vals := make([]string, 0, size)
		// count up rather than compare against last, which may be MaxInt
		for i := 0; i < size; i++ {
			vals = append(vals, strconv.Itoa(first+i))
		}
		cfg.setDimension(key, vals)
		return nil
	}
}

// WithGridLabels adds static labels to every generated descriptor. They win
// over dimension labels of the same key.
//
//	WithGridLabels("team", "platform", "tier", "critical")
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if cfg.staticLabels == nil {
			cfg.staticLabels = make(map[string]string)
		}
		return putPairs(cfg.staticLabels, "WithGridLabels", keyValues)
	}
}

// WithGridHeaders adds HTTP headers to every generated descriptor.
//
//	WithGridHeaders("Authorization", "Bearer token")
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		return putPairs(cfg.headers, "WithGridHeaders", keyValues)
	}
}

// WithGridTimeout sets the per-request timeout of every generated
// descriptor. Zero keeps the descriptor default; negative is an error.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridMethod sets the HTTP method (GET, HEAD or POST) of every
// generated descriptor.
func WithGridMethod(method string) GridOption {
	return func(cfg *gridConfig) error {
		if err := checkMethod(method); err != nil {
			return err
		}
		cfg.method = method
		return nil
	}
}
