// Command mock-backend runs a deterministic Chat Completions server for
// testing the full generation loop without a real model. It inspects the
// system message to recognize which pipeline step is calling (planning,
// test inference, generation, failure analysis) and returns a canned
// JSON response for that step.
//
// By default the generated code is correct on the first attempt. Set
// MOCK_FAIL_FIRST=1 to return broken code on the first generation call
// and fixed code after a repair, exercising the full repair cycle.
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_FAIL_FIRST - Return broken code on the first generation (default: off)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	backend := &mockBackend{
		failFirst: os.Getenv("MOCK_FAIL_FIRST") != "",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", backend.handleChatCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "fail_first", backend.failFirst)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type mockBackend struct {
	failFirst bool
	genCalls  atomic.Int64
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handler ---

func (b *mockBackend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	content := b.respond(&req)

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMsg{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 50, CompletionTokens: 30, TotalTokens: 80},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// respond classifies the request by its system message and returns the
// canned JSON content for that pipeline step.
func (b *mockBackend) respond(req *chatRequest) string {
	system := systemMessage(req)

	switch {
	case strings.Contains(system, "execution plan"):
		return planContent()
	case strings.Contains(system, "test cases"):
		return testsContent()
	case strings.Contains(system, "debugger"):
		return analysisContent()
	default:
		return b.codeContent(req)
	}
}

func planContent() string {
	return mustJSON(map[string]string{
		"understanding": "The task asks for a function that adds two integers a and b and returns their sum.",
		"approach":      "Define main(a, b) that returns a + b. No edge cases beyond integer addition.",
	})
}

func testsContent() string {
	return mustJSON(map[string]any{
		"test_cases": []map[string]any{
			{
				"description":     "adds two positive numbers",
				"inputs":          map[string]any{"a": 2, "b": 3},
				"expected_output": 5,
			},
			{
				"description":     "adds a negative number",
				"inputs":          map[string]any{"a": -1, "b": 4},
				"expected_output": 3,
			},
			{
				"description":     "adds zeros",
				"inputs":          map[string]any{"a": 0, "b": 0},
				"expected_output": 0,
			},
		},
	})
}

func (b *mockBackend) codeContent(req *chatRequest) string {
	call := b.genCalls.Add(1)

	// First generation returns broken code when fail-first mode is on
	// and the prompt is not already a repair.
	if b.failFirst && call == 1 && !strings.Contains(userMessage(req), "PREVIOUS ATTEMPT FAILED") {
		return mustJSON(map[string]string{
			"code": "def main(a, b):\n    return a - b\n",
		})
	}

	return mustJSON(map[string]string{
		"code": "def main(a, b):\n    return a + b\n",
	})
}

func analysisContent() string {
	return mustJSON(map[string]string{
		"diagnosis": "The code subtracts b from a instead of adding. Change the return statement to a + b.",
	})
}

// --- Helpers ---

func systemMessage(req *chatRequest) string {
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			return msg.Content
		}
	}
	return ""
}

func userMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
