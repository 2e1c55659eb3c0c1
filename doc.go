// Package fanfetch dispatches many independent fetches in parallel and
// collects exactly one outcome per request into an ordered report.
//
// fanfetch is SDK-first: a [Dispatcher] is configured with functional options
// and runs any number of dispatches. Each dispatch fans descriptors out to a
// [Fetcher], gathers the results through a bounded channel, and returns once
// every outcome has been collected. It never leaks goroutines and never
// drops or duplicates an outcome, whatever the fetcher does.
//
// # Quick Start
//
//	d, _ := fanfetch.New(fanfetch.WithCapacity(8))
//	defer d.Close()
//
//	report := d.Dispatch(ctx, []fanfetch.Descriptor{
//	    fanfetch.MustDescriptor("user 1", "https://api.example.com/users/1"),
//	    fanfetch.MustDescriptor("user 2", "https://api.example.com/users/2"),
//	})
//
//	for _, o := range report.Outcomes() {
//	    o.Match(
//	        func(s fanfetch.Success) { fmt.Println(s.Source.Name(), len(s.Payload)) },
//	        func(f fanfetch.Failure) { fmt.Println(f.Source.Name(), f.Kind, f.Err) },
//	    )
//	}
//
// # Outcomes
//
// An [Outcome] is either a [Success] or a [Failure]. Failures carry an
// [ErrorKind]:
//
//   - [TransportError]: the fetcher returned an error, timed out or panicked
//   - [Cancelled]: the dispatch context ended first
//
// A [Report] always holds len(descriptors) outcomes in submission order,
// regardless of completion order.
//
// # Concurrency
//
// [WithCapacity] bounds how many fetches run at once; the default is one
// goroutine per descriptor. Cancelling the context passed to
// [Dispatcher.Dispatch] fails outstanding descriptors promptly with
// [Cancelled], including those still waiting for a slot.
//
// # Descriptor Grids
//
// [NewDescriptorGrid] expands a URL template over dimensions, which is the
// usual way to build a large fan-out:
//
//	descriptors, err := fanfetch.NewDescriptorGrid("Items",
//	    fanfetch.WithURLTemplate("https://api.example.com/{{.shard}}/items?page={{.page}}"),
//	    fanfetch.WithDimensions(map[string][]string{"shard": {"a", "b"}}),
//	    fanfetch.WithRangeDimension("page", 1, 20),
//	)
//
// # Architecture
//
// fanfetch consists of several internal packages (under internal/):
//
//   - internal/fanout: The fan-out/fan-in pipeline and the HTTP client
//   - internal/store: In-memory latest outcomes with pub/sub
//   - internal/server: HTTP API and Server-Sent Events used by [Dispatcher.Serve]
//
// The internal packages are not part of the public API and may change
// without notice.
package fanfetch
