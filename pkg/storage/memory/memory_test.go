package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/storage"
	"github.com/codewright-io/codewright/pkg/transport"
)

func makeRun(id string, created time.Time) *api.Run {
	return &api.Run{
		ID:            id,
		Task:          "reverse a string",
		MaxIterations: 5,
		CreatedAt:     created,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	run := makeRun("run_test1", time.Now())
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run_test1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.ID != "run_test1" {
		t.Errorf("ID = %q, want %q", got.ID, "run_test1")
	}
	if got.Task != "reverse a string" {
		t.Errorf("Task = %q", got.Task)
	}
	if got.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", got.MaxIterations)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(0)

	_, err := s.GetRun(context.Background(), "run_missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveConflict(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	run := makeRun("run_dup", time.Now())
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.SaveRun(ctx, run); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateRun(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	run := makeRun("run_upd", time.Now())
	s.SaveRun(ctx, run)

	updated := makeRun("run_upd", run.CreatedAt)
	updated.Outcome = api.OutcomeSuccess
	updated.FinalCode = "def main(): pass"
	if err := s.UpdateRun(ctx, updated); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run_upd")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Outcome != api.OutcomeSuccess {
		t.Errorf("Outcome = %q, want success", got.Outcome)
	}
	if got.FinalCode == "" {
		t.Error("FinalCode not updated")
	}
}

func TestUpdateMissingRun(t *testing.T) {
	s := New(0)

	err := s.UpdateRun(context.Background(), makeRun("run_ghost", time.Now()))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.SaveRun(ctx, makeRun("run_del", time.Now()))

	if err := s.DeleteRun(ctx, "run_del"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	_, err := s.GetRun(ctx, "run_del")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// A second delete of the same ID reports not-found.
	if err := s.DeleteRun(ctx, "run_del"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	base := time.Now()

	s.SaveRun(ctx, makeRun("run_a", base))
	s.SaveRun(ctx, makeRun("run_b", base.Add(time.Second)))

	// Saving a third run evicts the least recently written entry, run_a.
	s.SaveRun(ctx, makeRun("run_c", base.Add(2*time.Second)))

	_, errA := s.GetRun(ctx, "run_a")
	_, errB := s.GetRun(ctx, "run_b")
	_, errC := s.GetRun(ctx, "run_c")

	if !errors.Is(errA, storage.ErrNotFound) {
		t.Errorf("run_a should have been evicted, got %v", errA)
	}
	if errB != nil {
		t.Errorf("run_b should survive eviction: %v", errB)
	}
	if errC != nil {
		t.Errorf("run_c should be stored: %v", errC)
	}
}

func TestListRuns(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"run_one", "run_two", "run_three"} {
		run := makeRun(id, base.Add(time.Duration(i)*time.Second))
		if id == "run_two" {
			run.Outcome = api.OutcomeExhausted
		} else {
			run.Outcome = api.OutcomeSuccess
		}
		s.SaveRun(ctx, run)
	}

	// Default order is newest first.
	list, err := s.ListRuns(ctx, transport.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(list.Data) != 3 {
		t.Fatalf("len(Data) = %d, want 3", len(list.Data))
	}
	if list.Data[0].ID != "run_three" || list.Data[2].ID != "run_one" {
		t.Errorf("unexpected order: %s .. %s", list.Data[0].ID, list.Data[2].ID)
	}
	if list.FirstID != "run_three" || list.LastID != "run_one" {
		t.Errorf("FirstID = %q, LastID = %q", list.FirstID, list.LastID)
	}

	// Ascending order.
	list, _ = s.ListRuns(ctx, transport.ListOptions{Order: "asc"})
	if list.Data[0].ID != "run_one" {
		t.Errorf("asc first = %q, want run_one", list.Data[0].ID)
	}

	// Outcome filter.
	list, _ = s.ListRuns(ctx, transport.ListOptions{Outcome: "exhausted"})
	if len(list.Data) != 1 || list.Data[0].ID != "run_two" {
		t.Errorf("outcome filter returned %d runs", len(list.Data))
	}

	// Cursor pagination.
	list, _ = s.ListRuns(ctx, transport.ListOptions{After: "run_three"})
	if len(list.Data) != 2 || list.Data[0].ID != "run_two" {
		t.Errorf("after cursor returned wrong page: %d runs", len(list.Data))
	}

	// Limit with has_more.
	list, _ = s.ListRuns(ctx, transport.ListOptions{Limit: 2})
	if len(list.Data) != 2 || !list.HasMore {
		t.Errorf("limit 2: len = %d, hasMore = %v", len(list.Data), list.HasMore)
	}

	// Deleted runs are excluded.
	s.DeleteRun(ctx, "run_two")
	list, _ = s.ListRuns(ctx, transport.ListOptions{})
	if len(list.Data) != 2 {
		t.Errorf("after delete len = %d, want 2", len(list.Data))
	}
}

func TestListRunsEmpty(t *testing.T) {
	s := New(0)

	list, err := s.ListRuns(context.Background(), transport.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if list.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
	if list.HasMore {
		t.Error("HasMore should be false for an empty store")
	}
}
