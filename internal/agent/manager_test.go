package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/llm"
)

func newTestManager(t *testing.T, serverURL string, cfg config.AgentsConfig) (*Manager, *sync.Map) {
	t.Helper()
	llmCfg := config.DefaultLLMConfig()
	llmCfg.APIKey = "test-key"
	llmCfg.BaseURL = serverURL
	llmCfg.MaxRetries = 0
	orch := llm.NewOrchestrator(llm.NewClient(llmCfg), llmCfg)

	var results sync.Map
	notify := func(chatID int64, agentID, result string, err error) {
		results.Store(agentID, [2]any{result, err})
	}
	return NewManager(cfg, orch, notify), &results
}

func successServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn"}`))
	}))
}

func TestSpawn_RunsAndNotifiesOnSuccess(t *testing.T) {
	server := successServer()
	defer server.Close()

	cfg := config.DefaultAgentsConfig()
	mgr, results := newTestManager(t, server.URL, cfg)

	id, err := mgr.Spawn(context.Background(), 1, "do a thing")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	waitForTerminal(t, mgr, id)

	v, ok := results.Load(id)
	if !ok {
		t.Fatal("expected notify to have been called")
	}
	pair := v.([2]any)
	if pair[0] != "done" || pair[1] != nil {
		t.Errorf("got result=%v err=%v", pair[0], pair[1])
	}

	a, ok := mgr.Get(id)
	if !ok || a.Status() != StatusCompleted {
		t.Errorf("expected agent to be completed, got %v", a.Status())
	}
}

func TestSpawn_RejectsOverPerChatCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	cfg := config.DefaultAgentsConfig()
	cfg.MaxPerChat = 1
	cfg.MaxConcurrent = 10
	mgr, _ := newTestManager(t, server.URL, cfg)

	if _, err := mgr.Spawn(context.Background(), 1, "first"); err != nil {
		t.Fatalf("first spawn failed: %v", err)
	}
	if _, err := mgr.Spawn(context.Background(), 1, "second"); err != ErrTooManyAgents {
		t.Errorf("expected ErrTooManyAgents, got %v", err)
	}
}

func TestSpawn_EvictsOldestOnGlobalCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	cfg := config.DefaultAgentsConfig()
	cfg.MaxPerChat = 10
	cfg.MaxConcurrent = 1
	mgr, _ := newTestManager(t, server.URL, cfg)

	oldID, err := mgr.Spawn(context.Background(), 1, "old")
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	newID, err := mgr.Spawn(context.Background(), 2, "new")
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	if _, ok := mgr.Get(oldID); ok {
		t.Error("expected the oldest agent to have been evicted from tracking")
	}
	if a, ok := mgr.Get(newID); !ok || a.Status() != StatusRunning {
		t.Error("expected the new agent to still be tracked and running")
	}
}

func TestCancel_FlipsStatusBeforeAbortingAndIsNotOverwritten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := config.DefaultAgentsConfig()
	mgr, results := newTestManager(t, server.URL, cfg)

	id, err := mgr.Spawn(context.Background(), 1, "slow task")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := mgr.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	a, ok := mgr.Get(id)
	if !ok || a.Status() != StatusCancelled {
		t.Fatalf("expected status cancelled immediately, got %v", a.Status())
	}

	waitForTerminal(t, mgr, id)
	if a.Status() != StatusCancelled {
		t.Errorf("expected status to remain cancelled, got %v", a.Status())
	}
	if _, ok := results.Load(id); ok {
		t.Error("expected no notify call for a cancelled agent")
	}
}

func TestSweep_PurgesOldCompletedAgents(t *testing.T) {
	server := successServer()
	defer server.Close()

	cfg := config.DefaultAgentsConfig()
	cfg.CompletedTTL = time.Millisecond
	mgr, _ := newTestManager(t, server.URL, cfg)

	id, err := mgr.Spawn(context.Background(), 1, "quick")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForTerminal(t, mgr, id)
	time.Sleep(5 * time.Millisecond)

	mgr.Sweep()

	if _, ok := mgr.Get(id); ok {
		t.Error("expected completed agent past its TTL to be purged")
	}
}

func TestSweep_CancelsStuckRunningAgents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := config.DefaultAgentsConfig()
	cfg.RunningTTL = time.Millisecond
	mgr, _ := newTestManager(t, server.URL, cfg)

	id, err := mgr.Spawn(context.Background(), 1, "stuck")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	mgr.Sweep()

	a, ok := mgr.Get(id)
	if !ok || a.Status() != StatusCancelled {
		t.Errorf("expected stuck agent to be cancelled by sweep, got %v", a.Status())
	}
}

func waitForTerminal(t *testing.T, mgr *Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a, ok := mgr.Get(id)
		if !ok {
			t.Fatalf("agent %s disappeared", id)
		}
		if a.Status() != StatusRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("agent %s did not reach a terminal state in time", id)
}
