package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"companionbot/internal/config"
)

func newTestAdapter(t *testing.T, limit int) *Adapter {
	t.Helper()
	cfg := config.WorkspaceConfig{
		Root:               t.TempDir(),
		PerFileSoftLimit:   limit,
		SnapshotCacheTTLMs: 60000,
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestLoad_MissingFilesReadAsEmpty(t *testing.T) {
	a := newTestAdapter(t, 8000)
	snap := a.Load()
	if snap.Identity != "" || snap.Soul != "" || snap.Bootstrap != "" {
		t.Error("expected missing workspace files to read as empty content")
	}
	if len(snap.Truncated) != 0 {
		t.Errorf("expected no truncation, got %v", snap.Truncated)
	}
}

func TestLoad_ReadsPresentFiles(t *testing.T) {
	a := newTestAdapter(t, 8000)
	if err := os.WriteFile(a.Path(identityFile), []byte("I am the companion."), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	snap := a.Load()
	if snap.Identity != "I am the companion." {
		t.Errorf("Identity=%q", snap.Identity)
	}
}

func TestLoad_TruncatesOversizedFilesAndRecordsName(t *testing.T) {
	a := newTestAdapter(t, 10)
	if err := os.WriteFile(a.Path(soulFile), []byte("0123456789ABCDEF"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	snap := a.Load()
	if !strings.HasPrefix(snap.Soul, "0123456789") {
		t.Errorf("Soul=%q", snap.Soul)
	}
	if !strings.Contains(snap.Soul, "truncated") {
		t.Error("expected truncated content to carry a truncation marker")
	}
	found := false
	for _, name := range snap.Truncated {
		if name == soulFile {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q in Truncated, got %v", soulFile, snap.Truncated)
	}
}

func TestLoad_CachesWithinTTL(t *testing.T) {
	a := newTestAdapter(t, 8000)
	first := a.Load()

	if err := os.WriteFile(a.Path(identityFile), []byte("changed"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	second := a.Load()
	if second != first {
		t.Error("expected Load to return the cached snapshot within the TTL")
	}
	if second.Identity != "" {
		t.Errorf("expected cached (stale) snapshot, got Identity=%q", second.Identity)
	}
}

func TestHasActiveBootstrap(t *testing.T) {
	a := newTestAdapter(t, 8000)
	if a.Load().HasActiveBootstrap() {
		t.Error("expected no active bootstrap when the file is absent")
	}

	if err := os.WriteFile(a.Path(bootstrapFile), []byte("  \n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	a.cached = nil
	if a.Load().HasActiveBootstrap() {
		t.Error("expected a whitespace-only bootstrap file to not count as active")
	}

	if err := os.WriteFile(a.Path(bootstrapFile), []byte("say hello first"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	a.cached = nil
	if !a.Load().HasActiveBootstrap() {
		t.Error("expected a non-empty bootstrap file to be active")
	}
}

func TestAppendMemory_WritesTimestampedHeadingToDailyFile(t *testing.T) {
	a := newTestAdapter(t, 8000)
	if err := a.AppendMemory("had a good chat about go modules"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}

	path := a.Path(dailyFileName(time.Now()))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "## ") {
		t.Error("expected a markdown heading")
	}
	if !strings.Contains(string(data), "had a good chat about go modules") {
		t.Error("expected the note body to be appended")
	}
}

func TestAppendMemory_AccumulatesAcrossCalls(t *testing.T) {
	a := newTestAdapter(t, 8000)
	if err := a.AppendMemory("first note"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}
	if err := a.AppendMemory("second note"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}

	data, err := os.ReadFile(a.Path(dailyFileName(time.Now())))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "first note") || !strings.Contains(string(data), "second note") {
		t.Errorf("expected both notes to accumulate in the day file, got %q", string(data))
	}
}

func TestAppendMemory_InvalidatesCache(t *testing.T) {
	a := newTestAdapter(t, 8000)
	_ = a.Load()
	if a.cached == nil {
		t.Fatal("expected Load to populate the cache")
	}
	if err := a.AppendMemory("note"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}
	if a.cached != nil {
		t.Error("expected AppendMemory to invalidate the cached snapshot")
	}
}

func TestNew_ExpandsTildeAndCreatesRoot(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := config.WorkspaceConfig{Root: "~/.companionbot-test", PerFileSoftLimit: 8000, SnapshotCacheTTLMs: 1000}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := filepath.Join(home, ".companionbot-test")
	if a.Root() != want {
		t.Errorf("Root()=%q, want %q", a.Root(), want)
	}
	if info, err := os.Stat(a.Root()); err != nil || !info.IsDir() {
		t.Errorf("expected root directory to be created: %v", err)
	}
}
