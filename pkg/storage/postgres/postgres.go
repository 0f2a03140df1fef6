// Package postgres provides a PostgreSQL implementation of transport.RunStore.
// It uses pgx/v5 for connection pooling and JSONB for iteration storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/storage"
	"github.com/codewright-io/codewright/pkg/transport"
)

// Store is a PostgreSQL-backed RunStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.RunStore at compile time.
var _ transport.RunStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveRun persists a newly created run.
func (s *Store) SaveRun(ctx context.Context, run *api.Run) error {
	iterationsJSON, eventsJSON, err := marshalRun(run)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (
			id, task, max_iterations, outcome, final_code,
			total_tokens, total_cost, iterations, events, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID, run.Task, run.MaxIterations,
		nullString(string(run.Outcome)), nullString(run.FinalCode),
		run.TotalTokens, run.TotalCost, iterationsJSON, eventsJSON,
		run.CreatedAt, run.CompletedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

// UpdateRun replaces the stored record for an existing run.
func (s *Store) UpdateRun(ctx context.Context, run *api.Run) error {
	iterationsJSON, eventsJSON, err := marshalRun(run)
	if err != nil {
		return err
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE runs SET
			outcome = $1, final_code = $2,
			total_tokens = $3, total_cost = $4,
			iterations = $5, events = $6, completed_at = $7
		WHERE id = $8 AND deleted_at IS NULL
	`,
		nullString(string(run.Outcome)), nullString(run.FinalCode),
		run.TotalTokens, run.TotalCost, iterationsJSON, eventsJSON,
		run.CompletedAt, run.ID,
	)

	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// GetRun retrieves a run by ID, excluding soft-deleted runs.
func (s *Store) GetRun(ctx context.Context, id string) (*api.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, task, max_iterations, outcome, final_code,
		       total_tokens, total_cost, iterations, events, created_at, completed_at
		FROM runs
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	return run, nil
}

// DeleteRun soft-deletes a run by setting deleted_at.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE runs SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// ListRuns returns a paginated list of stored runs, newest first by
// default, optionally filtered by terminal outcome.
func (s *Store) ListRuns(ctx context.Context, opts transport.ListOptions) (*transport.RunList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"
	dir := "DESC"
	cmp := "<"
	if asc {
		dir = "ASC"
		cmp = ">"
	}

	query := `
		SELECT id, task, max_iterations, outcome, final_code,
		       total_tokens, total_cost, iterations, events, created_at, completed_at
		FROM runs
		WHERE deleted_at IS NULL
	`
	args := []any{}

	if opts.Outcome != "" {
		args = append(args, opts.Outcome)
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}

	if opts.After != "" {
		args = append(args, opts.After)
		query += fmt.Sprintf(
			" AND (created_at, id) %s (SELECT created_at, id FROM runs WHERE id = $%d)",
			cmp, len(args),
		)
	}

	// Fetch one extra row to detect whether more pages remain.
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT $%d", dir, dir, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []*api.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}

	result := &transport.RunList{
		Object:  "list",
		Data:    runs,
		HasMore: hasMore,
	}
	if len(runs) > 0 {
		result.FirstID = runs[0].ID
		result.LastID = runs[len(runs)-1].ID
	}

	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanRun reads one runs row into an api.Run.
func scanRun(row pgx.Row) (*api.Run, error) {
	var run api.Run
	var outcome, finalCode *string
	var iterationsJSON, eventsJSON []byte

	err := row.Scan(
		&run.ID, &run.Task, &run.MaxIterations, &outcome, &finalCode,
		&run.TotalTokens, &run.TotalCost, &iterationsJSON, &eventsJSON,
		&run.CreatedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		run.Outcome = api.RunOutcome(*outcome)
	}
	if finalCode != nil {
		run.FinalCode = *finalCode
	}
	if err := json.Unmarshal(iterationsJSON, &run.Iterations); err != nil {
		return nil, fmt.Errorf("unmarshaling iterations: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &run.Events); err != nil {
		return nil, fmt.Errorf("unmarshaling events: %w", err)
	}

	return &run, nil
}

// marshalRun encodes the run's JSONB columns.
func marshalRun(run *api.Run) (iterations, events []byte, err error) {
	iterations, err = json.Marshal(run.Iterations)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling iterations: %w", err)
	}
	if run.Events == nil {
		events = []byte("[]")
	} else {
		events, err = json.Marshal(run.Events)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling events: %w", err)
		}
	}
	return iterations, events, nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
