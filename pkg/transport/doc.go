// Package transport defines the handler interfaces and middleware chain
// for the codewright HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the orchestration
// engine. It deserializes incoming requests into the core types defined
// in pkg/api, dispatches them for processing, and streams the run's
// event sequence back to the client as SSE.
//
// # Handler Interfaces
//
//   - RunStarter handles the core start-run operation and streams events
//     to the provided EventWriter.
//   - RunStore handles persistence, retrieval, deletion, and listing of
//     stored runs.
//
// The EventWriter interface abstracts the event stream, allowing the
// engine to emit run events without knowing the underlying transport
// protocol.
//
// # Middleware
//
// The middleware chain wraps RunStarter with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog.
package transport
