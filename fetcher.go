package fanfetch

import (
	"context"
	"net/http"

	"github.com/jpalmerr/fanfetch/internal/fanout"
)

// Fetcher performs the network operation for one [Descriptor].
//
// Fetcher is the capability a [Dispatcher] is built around: a real network
// client, a stub, or a test double. It is called from many goroutines at
// once and must honour ctx, returning promptly with an error that wraps
// ctx.Err() once ctx is done. A Fetcher must not retry or start further
// concurrent work on the dispatcher's behalf.
//
// Returned errors become [Failure] outcomes; they never abort the dispatch.
// A panicking Fetcher is recovered and reported as a [TransportError]
// wrapping [ErrFetcherPanic].
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor) ([]byte, error)
}

// FetcherFunc adapts an ordinary function to the [Fetcher] interface.
//
// Example:
//
//	stub := fanfetch.FetcherFunc(func(ctx context.Context, d fanfetch.Descriptor) ([]byte, error) {
//	    return []byte(d.Name() + "-ok"), nil
//	})
type FetcherFunc func(ctx context.Context, d Descriptor) ([]byte, error)

// Fetch calls f(ctx, d).
func (f FetcherFunc) Fetch(ctx context.Context, d Descriptor) ([]byte, error) {
	return f(ctx, d)
}

// HTTPFetcher is the default [Fetcher]. It issues one HTTP request per
// descriptor using the descriptor's method, headers and timeout.
//
// Response bodies are limited to 1MB. Responses outside 2xx fail with a
// [*StatusError]. Connections are pooled across dispatches; call
// [HTTPFetcher.Close] to release idle connections.
type HTTPFetcher struct {
	client *fanout.Client
}

// NewHTTPFetcher creates an [HTTPFetcher] with a pooled transport.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: fanout.NewClient()}
}

// NewHTTPFetcherWithClient creates an [HTTPFetcher] around an existing
// *http.Client, for custom TLS, proxies or tracing transports.
func NewHTTPFetcherWithClient(hc *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: fanout.NewClientWithHTTP(hc)}
}

// Fetch performs the HTTP request for d and returns the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, d Descriptor) ([]byte, error) {
	return f.client.Fetch(ctx, requestFromDescriptor(d, 0))
}

// Close releases idle connections. Safe to call multiple times.
func (f *HTTPFetcher) Close() {
	if f == nil {
		return
	}
	f.client.Close()
}

// internalFetcher adapts a public Fetcher to the fanout package.
// An HTTPFetcher is unwrapped so requests skip the descriptor round trip.
func internalFetcher(f Fetcher) fanout.Fetcher {
	if hf, ok := f.(*HTTPFetcher); ok {
		return hf.client
	}
	return fanout.FetcherFunc(func(ctx context.Context, req fanout.Request) ([]byte, error) {
		return f.Fetch(ctx, descriptorFromRequest(req))
	})
}

// requestFromDescriptor converts a Descriptor to the fanout format.
func requestFromDescriptor(d Descriptor, index int) fanout.Request {
	return fanout.Request{
		Index:   index,
		Name:    d.name,
		URL:     d.url,
		Method:  d.method,
		Headers: copyMap(d.headers),
		Labels:  copyMap(d.labels),
		Timeout: d.timeout,
	}
}

// descriptorFromRequest rebuilds the Descriptor a request was made from.
func descriptorFromRequest(req fanout.Request) Descriptor {
	return Descriptor{
		name:    req.Name,
		url:     req.URL,
		labels:  copyMap(req.Labels),
		headers: copyMap(req.Headers),
		timeout: req.Timeout,
		method:  req.Method,
	}
}
