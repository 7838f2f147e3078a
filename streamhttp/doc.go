// Package streamhttp implements the planner streaming API. It mounts as a
// standard net/http handler and bridges a long-running planning task into an
// ordered, heartbeat-sustained Server-Sent Events response, plus the thin
// request/response surfaces around it (health, status, request schema, and
// Markdown export of persisted sessions).
//
// Responsibilities
//   - Request validation (synchronous rejection before any stream exists)
//   - Frame sequencing (connection, domain events, complete/error, close)
//   - Heartbeat injection during producer silence (single-writer polling)
//   - Producer lifecycle (guaranteed sentinel push, guaranteed join)
//   - Session persistence on natural completion (via sessions.Store)
//
// Construction
//
//	h, err := streamhttp.New(
//	    store,   // sessions.Store implementation
//	    planner, // planner.Planner collaborator
//	    streamhttp.WithServiceName("gtplanner"),
//	    streamhttp.WithLogger(logger),
//	)
//
// # Stream Shape
//
// Every accepted stream emits a `connection` frame first, then zero or more
// domain frames in producer order, then exactly one of `complete` or `error`,
// then `close`. Heartbeat frames are interleaved opportunistically whenever
// the consumer has waited one heartbeat interval with nothing queued; they
// are the only frames not globally ordered with respect to producer output.
//
// # Producer Lifetime
//
// The producer task runs detached from request cancellation: a consumer that
// disconnects mid-stream does not cancel the planner. The loop stops writing,
// late frames are discarded, and the handler still joins the task before
// releasing the transport, so no goroutine is ever abandoned.
//
// # Error Handling
//
// Faults before stream acceptance map to HTTP status codes with a small JSON
// error body. Faults after acceptance are converted to a single `error` frame
// followed by `close`; the underlying fault never escapes as an unhandled
// failure once SSE headers are written.
//
// Example (mount in net/http):
//
//	mux := http.NewServeMux()
//	mux.Handle("/", h)
//	http.ListenAndServe(":11211", mux)
package streamhttp
