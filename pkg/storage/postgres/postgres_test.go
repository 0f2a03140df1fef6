package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/storage"
	"github.com/codewright-io/codewright/pkg/transport"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if a container runtime is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("codewright_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestRun(id string) *api.Run {
	return &api.Run{
		ID:            id,
		Task:          "compute fibonacci numbers",
		MaxIterations: 5,
		Iterations: []api.Iteration{
			{Index: 1, Code: &api.CodeVersion{Version: 1, Code: "def main(n): return n", Iteration: 1}},
		},
		Events: []api.StoredEvent{
			{
				EventType:  api.EventRunCreated,
				Content:    map[string]any{"run_id": id, "task": "compute fibonacci numbers"},
				Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
				OrderIndex: 0,
			},
			{
				EventType:  api.EventPlanning,
				Content:    map[string]any{"understanding": "nth fibonacci", "approach": "iterative"},
				Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
				OrderIndex: 1,
			},
		},
		TotalTokens: 120,
		TotalCost:   0.0031,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgres_SaveAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(fmt.Sprintf("run_pg_test1_%d", time.Now().UnixNano()))
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.ID != run.ID {
		t.Errorf("ID = %q, want %q", got.ID, run.ID)
	}
	if got.Task != run.Task {
		t.Errorf("Task = %q, want %q", got.Task, run.Task)
	}
	if got.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", got.MaxIterations)
	}
	if len(got.Iterations) != 1 || got.Iterations[0].Index != 1 {
		t.Errorf("Iterations = %+v", got.Iterations)
	}
	if len(got.Events) != 2 {
		t.Fatalf("Events = %d, want 2", len(got.Events))
	}
	if got.Events[0].EventType != api.EventRunCreated || got.Events[0].OrderIndex != 0 {
		t.Errorf("Events[0] = %+v", got.Events[0])
	}
	if got.Events[1].EventType != api.EventPlanning || got.Events[1].OrderIndex != 1 {
		t.Errorf("Events[1] = %+v", got.Events[1])
	}
	if content, ok := got.Events[1].Content.(map[string]any); !ok || content["approach"] != "iterative" {
		t.Errorf("Events[1].Content = %#v", got.Events[1].Content)
	}
	if got.TotalTokens != 120 {
		t.Errorf("TotalTokens = %d, want 120", got.TotalTokens)
	}
	if got.Outcome != "" {
		t.Errorf("Outcome = %q, want empty", got.Outcome)
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetRun(context.Background(), "run_nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_Update(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(fmt.Sprintf("run_pg_upd_%d", time.Now().UnixNano()))
	store.SaveRun(ctx, run)

	now := time.Now().UTC().Truncate(time.Microsecond)
	run.Outcome = api.OutcomeSuccess
	run.FinalCode = "def main(n): return fib(n)"
	run.TotalTokens = 450
	run.CompletedAt = &now
	run.Events = append(run.Events, api.StoredEvent{
		EventType:  api.EventComplete,
		Content:    map[string]any{"success": true},
		Timestamp:  now,
		OrderIndex: 2,
	})

	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Outcome != api.OutcomeSuccess {
		t.Errorf("Outcome = %q, want success", got.Outcome)
	}
	if got.FinalCode != run.FinalCode {
		t.Errorf("FinalCode = %q", got.FinalCode)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}
	if len(got.Events) != 3 || got.Events[2].EventType != api.EventComplete {
		t.Errorf("Events = %+v", got.Events)
	}
}

func TestPostgres_UpdateMissing(t *testing.T) {
	store := setupTestDB(t)

	err := store.UpdateRun(context.Background(), makeTestRun("run_pg_ghost"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_SoftDelete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(fmt.Sprintf("run_pg_del_%d", time.Now().UnixNano()))
	store.SaveRun(ctx, run)

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	_, err := store.GetRun(ctx, run.ID)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.DeleteRun(ctx, run.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestPostgres_DuplicateSave(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(fmt.Sprintf("run_pg_dup_%d", time.Now().UnixNano()))
	store.SaveRun(ctx, run)

	err := store.SaveRun(ctx, run)
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_List(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ts := time.Now().UnixNano()
	base := time.Now().UTC().Truncate(time.Microsecond)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = fmt.Sprintf("run_pg_list_%d_%d", i, ts)
		run := makeTestRun(ids[i])
		run.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if i == 1 {
			run.Outcome = api.OutcomeExhausted
		} else {
			run.Outcome = api.OutcomeSuccess
		}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%d) failed: %v", i, err)
		}
	}

	// Newest first by default.
	list, err := store.ListRuns(ctx, transport.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(list.Data) != 3 {
		t.Fatalf("len(Data) = %d, want 3", len(list.Data))
	}
	if list.Data[0].ID != ids[2] {
		t.Errorf("first = %q, want %q", list.Data[0].ID, ids[2])
	}

	// Outcome filter.
	list, err = store.ListRuns(ctx, transport.ListOptions{Outcome: "exhausted"})
	if err != nil {
		t.Fatalf("ListRuns(outcome) failed: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != ids[1] {
		t.Errorf("outcome filter returned %d runs", len(list.Data))
	}

	// Cursor pagination with limit.
	list, err = store.ListRuns(ctx, transport.ListOptions{After: ids[2], Limit: 1})
	if err != nil {
		t.Fatalf("ListRuns(after) failed: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != ids[1] {
		t.Errorf("after cursor returned wrong page")
	}
	if !list.HasMore {
		t.Error("HasMore should be true with one run remaining")
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
