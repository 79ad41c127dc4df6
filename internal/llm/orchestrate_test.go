package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/session"
	"companionbot/internal/tools"
)

func buildOrchestrator(serverURL string) *Orchestrator {
	cfg := config.DefaultLLMConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = serverURL
	cfg.MaxRetries = 1
	cfg.BaseRetryDelay = time.Millisecond
	return NewOrchestrator(NewClient(cfg), cfg)
}

func TestRunTurn_PlainTextNoTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[{"type":"text","text":"hello there"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	orch := buildOrchestrator(server.URL)
	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Tier:    "sonnet",
		History: []session.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Text != "hello there" {
		t.Errorf("got %q", result.Text)
	}
	if result.UsedTools {
		t.Error("expected UsedTools=false")
	}
}

func TestRunTurn_DispatchesToolThenFinalAnswer(t *testing.T) {
	round := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		round++
		w.WriteHeader(http.StatusOK)
		if round == 1 {
			w.Write([]byte(`{"content":[{"type":"tool_use","id":"call_1","name":"echo","input":{"text":"ping"}}],"stop_reason":"tool_use"}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"final answer"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	registry := tools.NewRegistry()
	registry.MustRegister(&tools.Tool{
		Name:     "echo",
		Category: tools.CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "pong:" + args["text"].(string), nil
		},
	})

	orch := buildOrchestrator(server.URL)
	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Tier:     "sonnet",
		History:  []session.Message{{Role: "user", Content: "use the echo tool"}},
		Registry: registry,
	})
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Text != "final answer" {
		t.Errorf("got %q", result.Text)
	}
	if !result.UsedTools {
		t.Error("expected UsedTools=true")
	}
	if round != 2 {
		t.Errorf("round=%d, want 2", round)
	}
}

func TestRunTurn_ExhaustsRoundsReturnsFixedMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[{"type":"tool_use","id":"call_1","name":"echo","input":{}}],"stop_reason":"tool_use"}`))
	}))
	defer server.Close()

	registry := tools.NewRegistry()
	registry.MustRegister(&tools.Tool{
		Name:     "echo",
		Category: tools.CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	orch := buildOrchestrator(server.URL)
	orch.llmCfg.MaxToolRounds = 2
	result, err := orch.RunTurn(context.Background(), TurnRequest{
		Tier:     "sonnet",
		History:  []session.Message{{Role: "user", Content: "loop forever"}},
		Registry: registry,
	})
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Text != maxToolIterationsMessage {
		t.Errorf("got %q, want the fixed exhaustion message", result.Text)
	}
}

func TestToolSchemaToJSONSchema_IncludesRequiredAndProperties(t *testing.T) {
	schema := tools.ToolSchema{
		Required: []string{"query"},
		Properties: map[string]tools.Property{
			"query": {Type: "string", Description: "search text"},
		},
	}
	out := toolSchemaToJSONSchema(schema)
	b, _ := json.Marshal(out)
	var decoded map[string]any
	json.Unmarshal(b, &decoded)
	if decoded["type"] != "object" {
		t.Errorf("type=%v, want object", decoded["type"])
	}
	required, ok := decoded["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Errorf("required=%v, want [query]", decoded["required"])
	}
}
