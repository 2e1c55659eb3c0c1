// Package fanout provides the concurrent fan-out/fan-in core for fanfetch.
//
// This package is internal to fanfetch. It launches one task per request,
// optionally bounded by a concurrency capacity, funnels exactly one
// [Outcome] per request through a buffered result channel, closes that
// channel once every task has written, and drains it into a [Report].
//
// The main components are:
//
//   - [Fetcher]: the injected capability that performs one network operation
//   - [Client]: HTTP implementation of [Fetcher] with pooling and size limits
//   - [Dispatcher]: admission loop, completion gate and collector
//   - [Outcome]: result of a single request, success or failure
//   - [Report]: all outcomes of one dispatch, in submission order
//
// Users of the fanfetch library should not need to interact with this
// package directly. Configuration is done through the main fanfetch package.
package fanout
