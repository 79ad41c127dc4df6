package session

import (
	"context"
	"testing"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/history"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, err := history.New(t.TempDir())
	if err != nil {
		t.Fatalf("history.New: %v", err)
	}
	cfg := config.DefaultSessionConfig()
	return New(cfg, log)
}

func TestAddMessageAndGetHistory(t *testing.T) {
	st := newTestStore(t)
	st.AddMessage(1, "user", "hello")
	st.AddMessage(1, "assistant", "hi there")

	hist := st.GetHistory(1)
	if len(hist) != 2 {
		t.Fatalf("GetHistory returned %d messages, want 2", len(hist))
	}
}

func TestClearHistory_PreservesPins(t *testing.T) {
	st := newTestStore(t)
	st.AddMessage(1, "user", "hello")
	if ok := st.PinContext(1, "remember this", PinUser); !ok {
		t.Fatal("PinContext failed")
	}

	st.ClearHistory(1)

	if len(st.GetHistory(1)) != 0 {
		t.Error("expected empty history after ClearHistory")
	}
	sess := st.getOrCreate(1)
	if len(sess.PinnedContexts()) != 1 {
		t.Error("expected pinned contexts to survive ClearHistory")
	}
}

func TestClearSession_RemovesEverythingAndDeletesLog(t *testing.T) {
	st := newTestStore(t)
	st.AddMessage(1, "user", "hello")
	st.ClearSession(1)

	if st.Len() != 0 {
		t.Errorf("expected 0 sessions after ClearSession, got %d", st.Len())
	}
	if len(st.log.LoadTail(1, 0)) != 0 {
		t.Error("expected append log to be deleted")
	}
}

func TestPinContext_RejectsOverBudgetSinglePin(t *testing.T) {
	st := newTestStore(t)
	st.cfg.MaxPinnedTokens = 1
	if ok := st.PinContext(1, "this is far too long to fit in one token of budget", PinUser); ok {
		t.Error("expected PinContext to reject an over-budget pin")
	}
}

func TestPinContext_EvictsAutoPinsBeforeRejecting(t *testing.T) {
	st := newTestStore(t)
	st.cfg.MaxPinnedTokens = 6

	if !st.PinContext(1, "short auto pin", PinAuto) {
		t.Fatal("expected initial auto pin to succeed")
	}
	if !st.PinContext(1, "short user pin", PinUser) {
		t.Fatal("expected user pin to succeed by evicting the auto pin")
	}

	sess := st.getOrCreate(1)
	pins := sess.PinnedContexts()
	for _, p := range pins {
		if p.Source == PinAuto {
			t.Error("expected auto pin to have been evicted")
		}
	}
}

func TestTrimByTokens_DropsOldestUntilWithinBudgetOrMinRecent(t *testing.T) {
	st := newTestStore(t)
	st.cfg.MaxHistoryTokens = 1
	st.cfg.MinRecentMessages = 2

	for i := 0; i < 10; i++ {
		st.AddMessage(1, "user", "some message content here")
	}
	st.TrimByTokens(1)

	if got := len(st.GetHistory(1)); got != st.cfg.MinRecentMessages {
		t.Errorf("history len=%d, want %d (MinRecentMessages floor)", got, st.cfg.MinRecentMessages)
	}
}

func TestSmartTrim_SummarizesAndKeepsRecent(t *testing.T) {
	st := newTestStore(t)
	st.cfg.SummaryThresholdTokens = 1
	st.cfg.MinRecentMessages = 2

	for i := 0; i < 10; i++ {
		st.AddMessage(1, "user", "some message content here")
	}

	var summarizedCount int
	st.SmartTrim(1, func(messages []Message) (string, error) {
		summarizedCount = len(messages)
		return "condensed summary", nil
	})

	if summarizedCount == 0 {
		t.Fatal("expected summarizer to be called")
	}

	hist := st.GetHistory(1)
	if len(hist) != st.cfg.MinRecentMessages+2 {
		t.Fatalf("history len=%d, want %d (recent + summary ack pair)", len(hist), st.cfg.MinRecentMessages+2)
	}
	if hist[0].Role != "user" || hist[1].Role != "assistant" || hist[1].Content != "acknowledged" {
		t.Errorf("unexpected summary prefix: %+v, %+v", hist[0], hist[1])
	}

	sess := st.getOrCreate(1)
	if len(sess.SummaryChunks()) != 1 {
		t.Fatalf("expected 1 summary chunk, got %d", len(sess.SummaryChunks()))
	}
}

func TestSmartTrim_FallsBackOnSummarizerError(t *testing.T) {
	st := newTestStore(t)
	st.cfg.SummaryThresholdTokens = 1
	st.cfg.MaxHistoryTokens = 1
	st.cfg.MinRecentMessages = 2

	for i := 0; i < 10; i++ {
		st.AddMessage(1, "user", "some message content here")
	}

	st.SmartTrim(1, func(messages []Message) (string, error) {
		return "", context.DeadlineExceeded
	})

	hist := st.GetHistory(1)
	if len(hist) != st.cfg.MinRecentMessages {
		t.Errorf("expected fallback to trimByTokens, history len=%d, want %d", len(hist), st.cfg.MinRecentMessages)
	}
}

func TestDetectImportantContext(t *testing.T) {
	if got := DetectImportantContext("please remember my birthday"); got == "" {
		t.Error("expected a hit for 'remember'")
	}
	if got := DetectImportantContext("내 이름은 철수야"); got == "" {
		t.Error("expected a hit for Korean name-introduction phrase")
	}
	if got := DetectImportantContext("what's the weather today"); got != "" {
		t.Errorf("expected no hit, got %q", got)
	}
}

func TestBuildContextForPrompt(t *testing.T) {
	st := newTestStore(t)
	st.PinContext(1, "user likes concise answers", PinUser)

	block := st.BuildContextForPrompt(1)
	if block == "" {
		t.Fatal("expected non-empty context block")
	}
}

func TestChatIDPropagation(t *testing.T) {
	ctx := WithChatID(context.Background(), 42)
	id, ok := ChatIDFromContext(ctx)
	if !ok || id != 42 {
		t.Errorf("ChatIDFromContext=(%d,%v), want (42,true)", id, ok)
	}

	_, ok = ChatIDFromContext(context.Background())
	if ok {
		t.Error("expected no chatId in a bare context")
	}
}

func TestEviction_TTL(t *testing.T) {
	st := newTestStore(t)
	st.cfg.TTL = time.Millisecond

	st.AddMessage(1, "user", "hello")
	time.Sleep(5 * time.Millisecond)

	st.mu.Lock()
	st.evictLocked()
	n := len(st.sessions)
	st.mu.Unlock()

	if n != 0 {
		t.Errorf("expected TTL eviction to remove idle session, got %d remaining", n)
	}
}

func TestEviction_LRU(t *testing.T) {
	st := newTestStore(t)
	st.cfg.MaxSessions = 2

	st.AddMessage(1, "user", "a")
	st.AddMessage(2, "user", "b")
	st.AddMessage(3, "user", "c")

	if got := st.Len(); got > 2 {
		t.Errorf("expected at most 2 sessions after LRU eviction, got %d", got)
	}
}
