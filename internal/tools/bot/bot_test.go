package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"companionbot/internal/agent"
	"companionbot/internal/config"
	"companionbot/internal/llm"
	"companionbot/internal/scheduler"
	"companionbot/internal/session"
	"companionbot/internal/store"
	"companionbot/internal/workspace"
)

func newTestDeps(t *testing.T) (*workspace.Adapter, *store.LocalStore, *agent.Manager, *scheduler.Scheduler) {
	t.Helper()

	wsCfg := config.WorkspaceConfig{Root: t.TempDir(), PerFileSoftLimit: 4000, SnapshotCacheTTLMs: 60000}
	ws, err := workspace.New(wsCfg)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}

	ms, err := store.NewLocalStore(filepath.Join(t.TempDir(), "store.db"), 4, false)
	if err != nil {
		t.Fatalf("store.NewLocalStore: %v", err)
	}
	t.Cleanup(func() { ms.Close() })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn"}`))
	}))
	t.Cleanup(server.Close)

	llmCfg := config.DefaultLLMConfig()
	llmCfg.APIKey = "test-key"
	llmCfg.BaseURL = server.URL
	llmCfg.MaxRetries = 0
	orch := llm.NewOrchestrator(llm.NewClient(llmCfg), llmCfg)
	mgr := agent.NewManager(config.DefaultAgentsConfig(), orch, func(int64, string, string, error) {})

	schedStore, err := scheduler.NewStore(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatalf("scheduler.NewStore: %v", err)
	}
	sch, err := scheduler.New(config.DefaultSchedulerConfig(), schedStore, func(context.Context, *scheduler.Job) error { return nil })
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	return ws, ms, mgr, sch
}

func TestSaveMemory_AppendsAndIndexes(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	out, err := executeSaveMemory(context.Background(), map[string]any{"note": "likes oolong tea"})
	if err != nil {
		t.Fatalf("executeSaveMemory: %v", err)
	}
	if !strings.Contains(out, "Saved") {
		t.Errorf("got %q", out)
	}

	snap := ws.Load()
	if !strings.Contains(snap.RecentDaily, "likes oolong tea") {
		t.Errorf("expected note to be appended to the daily memory log, got %q", snap.RecentDaily)
	}
}

func TestSaveMemory_RequiresNote(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	if _, err := executeSaveMemory(context.Background(), map[string]any{"note": "  "}); err == nil {
		t.Error("expected an error for an empty note")
	}
}

func TestSearchMemory_FindsSavedNote(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	if _, err := executeSaveMemory(context.Background(), map[string]any{"note": "the user's dog is named Biscuit"}); err != nil {
		t.Fatalf("executeSaveMemory: %v", err)
	}

	out, err := executeSearchMemory(context.Background(), map[string]any{"query": "dog name"})
	if err != nil {
		t.Fatalf("executeSearchMemory: %v", err)
	}
	if !strings.Contains(out, "Biscuit") {
		t.Errorf("expected the saved note to be found, got %q", out)
	}
}

func TestSearchMemory_RequiresQuery(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	if _, err := executeSearchMemory(context.Background(), map[string]any{"query": ""}); err == nil {
		t.Error("expected an error for an empty query")
	}
}

func TestSpawnAgent_RequiresChatContext(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	if _, err := executeSpawnAgent(context.Background(), map[string]any{"task": "do a thing"}); err == nil {
		t.Error("expected an error without a chatId in context")
	}
}

func TestSpawnAgent_ThenStatusReportsResult(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	ctx := session.WithChatID(context.Background(), 42)
	out, err := executeSpawnAgent(ctx, map[string]any{"task": "do a thing"})
	if err != nil {
		t.Fatalf("executeSpawnAgent: %v", err)
	}

	id := extractAgentID(t, out)

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, statusErr := executeAgentStatus(ctx, map[string]any{"agent_id": id})
		if statusErr != nil {
			t.Fatalf("executeAgentStatus: %v", statusErr)
		}
		if !strings.Contains(status, "still running") {
			if !strings.Contains(status, "done") {
				t.Errorf("expected the agent's result to include %q, got %q", "done", status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("agent did not complete in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCancelAgent_UnknownIDErrors(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	if _, err := executeCancelAgent(context.Background(), map[string]any{"agent_id": "nope"}); err == nil {
		t.Error("expected an error for an unknown agent id")
	}
}

func TestScheduleJob_EveryThenListThenCancel(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)
	ctx := session.WithChatID(context.Background(), 7)

	out, err := executeScheduleJob(ctx, map[string]any{
		"kind":        "every",
		"message":     "time to stretch",
		"interval_ms": 3600000,
	})
	if err != nil {
		t.Fatalf("executeScheduleJob: %v", err)
	}
	id := extractJobID(t, out)

	listed, err := executeListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("executeListJobs: %v", err)
	}
	if !strings.Contains(listed, "time to stretch") {
		t.Errorf("expected the scheduled job in the listing, got %q", listed)
	}

	if _, err := executeCancelJob(ctx, map[string]any{"job_id": id}); err != nil {
		t.Fatalf("executeCancelJob: %v", err)
	}

	listedAfter, err := executeListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("executeListJobs: %v", err)
	}
	if strings.Contains(listedAfter, "time to stretch") {
		t.Errorf("expected the cancelled job to be gone, got %q", listedAfter)
	}
}

func TestScheduleJob_RejectsUnknownKind(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)
	ctx := session.WithChatID(context.Background(), 7)

	if _, err := executeScheduleJob(ctx, map[string]any{"kind": "whenever", "message": "x"}); err == nil {
		t.Error("expected an error for an unrecognized kind")
	}
}

func TestCancelJob_RejectsCrossChatCancellation(t *testing.T) {
	ws, ms, mgr, sch := newTestDeps(t)
	Configure(ws, ms, mgr, sch)

	ownerCtx := session.WithChatID(context.Background(), 1)
	out, err := executeScheduleJob(ownerCtx, map[string]any{
		"kind": "at", "message": "reminder", "at_ms": int(time.Now().Add(time.Hour).UnixMilli()),
	})
	if err != nil {
		t.Fatalf("executeScheduleJob: %v", err)
	}
	id := extractJobID(t, out)

	otherCtx := session.WithChatID(context.Background(), 2)
	if _, err := executeCancelJob(otherCtx, map[string]any{"job_id": id}); err == nil {
		t.Error("expected an error cancelling another chat's job")
	}
}

func extractAgentID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "agent" && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], ".")
		}
	}
	t.Fatalf("could not find agent id in %q", out)
	return ""
}

func extractJobID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "job" && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], ",")
		}
	}
	t.Fatalf("could not find job id in %q", out)
	return ""
}
