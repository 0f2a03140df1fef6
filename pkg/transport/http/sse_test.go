package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codewright-io/codewright/pkg/api"
)

func TestSSEWriterFormatsEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	err := w.WriteEvent(context.Background(), api.Event{
		Type:     api.EventPlanning,
		Sequence: 1,
		Planning: &api.PlanningEvent{Understanding: "u", Approach: "a"},
	})
	if err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: planning\ndata: ") {
		t.Errorf("body = %q, want SSE framing", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Error("non-terminal event must not emit [DONE]")
	}
}

func TestSSEWriterTerminalEventEmitsDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newSSEEventWriter(rec, nil)

	err := w.WriteEvent(context.Background(), api.Event{
		Type:     api.EventComplete,
		Complete: &api.CompleteEvent{Success: true, Reason: "all_tests_passed"},
	})
	if err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}
	if !strings.Contains(rec.Body.String(), "data: [DONE]\n\n") {
		t.Errorf("body = %q, want [DONE] after terminal event", rec.Body.String())
	}

	// Further writes must fail.
	err = w.WriteEvent(context.Background(), api.Event{Type: api.EventPlanning, Planning: &api.PlanningEvent{}})
	if err == nil {
		t.Error("WriteEvent() after terminal event = nil, want error")
	}
}

func TestSSEWriterRunCreatedCallback(t *testing.T) {
	rec := httptest.NewRecorder()

	var gotID string
	calls := 0
	w := newSSEEventWriter(rec, func(id string) {
		gotID = id
		calls++
	})

	ev := api.Event{
		Type:       api.EventRunCreated,
		RunCreated: &api.RunCreatedEvent{RunID: "run_abcdefghijklmnopqrstuvwx"},
	}
	if err := w.WriteEvent(context.Background(), ev); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}
	if gotID != "run_abcdefghijklmnopqrstuvwx" {
		t.Errorf("callback ID = %q", gotID)
	}

	// Callback fires only once.
	if err := w.WriteEvent(context.Background(), ev); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("callback calls = %d, want 1", calls)
	}
}
