package transport

import (
	"context"

	"github.com/codewright-io/codewright/pkg/api"
)

// RunStarter handles the core start-run operation. The implementation
// receives a request and writes the run's event stream to the EventWriter
// as the orchestrator progresses; the call returns when the run reaches a
// terminal event or the context is cancelled.
type RunStarter interface {
	StartRun(ctx context.Context, req *api.CreateRunRequest, w EventWriter) error
}

// RunStarterFunc is an adapter that allows using an ordinary function as
// a RunStarter.
type RunStarterFunc func(ctx context.Context, req *api.CreateRunRequest, w EventWriter) error

// StartRun calls f(ctx, req, w).
func (f RunStarterFunc) StartRun(ctx context.Context, req *api.CreateRunRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// ListOptions controls pagination, filtering, and ordering for list
// operations.
type ListOptions struct {
	After   string // Cursor: return runs after this ID.
	Limit   int    // Maximum number of runs to return (default 20, max 100).
	Outcome string // Filter runs by terminal outcome.
	Order   string // Sort order: "asc" or "desc" (default "desc").
}

// RunList holds a paginated list of runs.
type RunList struct {
	Object  string     `json:"object"`
	Data    []*api.Run `json:"data"`
	HasMore bool       `json:"has_more"`
	FirstID string     `json:"first_id"`
	LastID  string     `json:"last_id"`
}

// RunStore handles persistence, retrieval, and deletion of stored runs.
type RunStore interface {
	// SaveRun persists a new run. Returns storage.ErrConflict when a run
	// with the same ID already exists.
	SaveRun(ctx context.Context, run *api.Run) error

	// UpdateRun persists the current state of an existing run. The
	// orchestrator calls this after every iteration and at termination.
	UpdateRun(ctx context.Context, run *api.Run) error

	// GetRun retrieves a run by ID. Returns storage.ErrNotFound if the
	// run does not exist or has been deleted.
	GetRun(ctx context.Context, id string) (*api.Run, error)

	// DeleteRun soft-deletes a run by ID.
	DeleteRun(ctx context.Context, id string) error

	// ListRuns returns a paginated list of stored runs, optionally
	// filtered by outcome. Supports cursor-based pagination and ordering.
	ListRuns(ctx context.Context, opts ListOptions) (*RunList, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}

// EventWriter abstracts the run event stream. The transport layer creates
// an EventWriter for each request and hands it to the handler; the engine
// emits every orchestrator transition through it in strict order.
//
// Calling WriteEvent after a terminal event (complete or error) returns
// an error.
type EventWriter interface {
	// WriteEvent sends a single run event. Returns an error if called
	// after a terminal event has been sent.
	WriteEvent(ctx context.Context, event api.Event) error

	// Flush ensures buffered data is sent to the client. Returns an
	// error if the client has disconnected.
	Flush() error
}
