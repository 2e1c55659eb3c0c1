package fanfetch

import (
	"errors"
	"net/url"
	"time"
)

const defaultDescriptorTimeout = 10 * time.Second

// Descriptor identifies one unit of work: a target URL plus per-request
// metadata.
//
// Descriptor is immutable after creation via [NewDescriptor]. All fields are
// private with getter methods that return copies of mutable data (maps), so
// a Descriptor can be shared by concurrent tasks without synchronisation.
//
// Descriptors are configured using the functional options pattern with
// [DescriptorOption] functions such as [WithLabels], [WithHeaders],
// [WithTimeout] and [WithMethod].
type Descriptor struct {
	name    string
	url     string
	labels  map[string]string
	headers map[string]string
	timeout time.Duration
	method  string
}

// Name returns the descriptor's display name.
// The name identifies the request in reports and logs.
func (d Descriptor) Name() string {
	return d.name
}

// URL returns the descriptor's target URL as a string.
func (d Descriptor) URL() string {
	return d.url
}

// Labels returns a copy of the descriptor's labels.
// Returns nil if no labels are set.
func (d Descriptor) Labels() map[string]string {
	return copyMap(d.labels)
}

// Headers returns a copy of the descriptor's custom request headers.
// Returns nil if no custom headers are set.
func (d Descriptor) Headers() map[string]string {
	return copyMap(d.headers)
}

// Timeout returns the per-request timeout.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (d Descriptor) Timeout() time.Duration {
	return d.timeout
}

// Method returns the HTTP method for the request.
// Returns empty string if not explicitly set, which means GET will be used.
func (d Descriptor) Method() string {
	return d.method
}

// NewDescriptor creates a [Descriptor] with the given name, URL, and options.
//
// The rawURL parameter must be a valid URL with a scheme. The scheme is not
// restricted to http and https so that custom [Fetcher] implementations can
// use their own (for example "s3://" or "stub://").
//
// Returns an error if the name is empty or the URL is invalid.
//
// Example:
//
//	d, err := fanfetch.NewDescriptor("user 42", "https://api.example.com/users/42",
//	    fanfetch.WithHeaders("Accept", "application/json"),
//	    fanfetch.WithTimeout(5 * time.Second),
//	)
func NewDescriptor(name, rawURL string, opts ...DescriptorOption) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, errors.New("descriptor name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Descriptor{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme == "" {
		return Descriptor{}, errors.New("URL must have a scheme (e.g. https://)")
	}

	cfg := &descriptorConfig{
		labels:  make(map[string]string),
		headers: make(map[string]string),
		timeout: defaultDescriptorTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Descriptor{}, err
		}
	}

	return Descriptor{
		name:    name,
		url:     rawURL,
		labels:  cfg.labels,
		headers: cfg.headers,
		timeout: cfg.timeout,
		method:  cfg.method,
	}, nil
}

// MustDescriptor is like [NewDescriptor] but panics on error.
// It is intended for tests and static tables of descriptors.
func MustDescriptor(name, rawURL string, opts ...DescriptorOption) Descriptor {
	d, err := NewDescriptor(name, rawURL, opts...)
	if err != nil {
		panic("fanfetch: " + err.Error())
	}
	return d
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
