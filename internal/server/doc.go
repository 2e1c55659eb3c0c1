// Package server provides the HTTP API for serving fanfetch dispatches.
//
// This package is internal to fanfetch and handles all HTTP concerns:
//
//   - Trigger: "POST /api/dispatch" runs one dispatch and returns its report
//   - REST API: "GET /api/outcomes" returns the latest outcome per descriptor
//   - Server-Sent Events: "GET /api/sse" streams outcomes as they are collected
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the fanfetch library should not need to interact with this
// package directly. The server is run by [fanfetch.Dispatcher.Serve].
package server
