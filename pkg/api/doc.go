// Package api defines the shared types for the codewright code-generation
// engine: the Run/Iteration data model, test cases and their results, the
// run state machine, and the typed event stream emitted while a run is in
// progress.
//
// The package is dependency-free by design. Every other package (engine,
// sandbox, validation, transport, storage) communicates in terms of these
// types, so wire format and internal representation stay identical.
package api
