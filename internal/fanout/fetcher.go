package fanout

import "context"

// Fetcher performs the network operation for a single request.
//
// Implementations must honour ctx: once it is done they should return
// promptly with an error wrapping ctx.Err(). Fetch may be called from many
// goroutines at once.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// FetcherFunc adapts an ordinary function to the [Fetcher] interface.
type FetcherFunc func(ctx context.Context, req Request) ([]byte, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}
