package prompt

import (
	"strings"
	"testing"
	"time"

	"companionbot/internal/store"
	"companionbot/internal/tools"
	"companionbot/internal/workspace"
)

func TestAssemble_IncludesCoreIdentityAlways(t *testing.T) {
	asm := New()
	prompt := asm.Assemble(Request{ModelID: "sonnet", Now: time.Now()})
	if !strings.Contains(prompt, "## Core identity") {
		t.Error("expected the core identity section to always be present")
	}
}

func TestAssemble_OmitsEmptySections(t *testing.T) {
	asm := New()
	prompt := asm.Assemble(Request{ModelID: "sonnet", Now: time.Now()})
	if strings.Contains(prompt, "## Long-term memory") {
		t.Error("expected an empty memory section to be omitted")
	}
	if strings.Contains(prompt, "## Pinned context") {
		t.Error("expected an empty pinned-context section to be omitted")
	}
}

func TestAssemble_RespectsFixedSectionOrder(t *testing.T) {
	asm := New()
	prompt := asm.Assemble(Request{
		ModelID:     "sonnet",
		Now:         time.Now(),
		PinnedBlock: "## Pinned context\n- remember the thing",
		Memory:      []store.SearchResult{{Source: "memory.md", Text: "likes tea"}},
		Tools: []*tools.Tool{
			{Name: "read_file", Description: "Reads a file.", Schema: tools.ToolSchema{
				Required:   []string{"path"},
				Properties: map[string]tools.Property{"path": {Type: "string", Description: "file path"}},
			}},
		},
	})

	order := []string{"## Core identity", "## Runtime context", "## Operating guidelines",
		"## Long-term memory", "## Pinned context", "## Tool usage doctrine", "## Available tools"}
	last := -1
	for _, heading := range order {
		idx := strings.Index(prompt, heading)
		if idx == -1 {
			t.Fatalf("expected heading %q in prompt", heading)
		}
		if idx < last {
			t.Errorf("heading %q appeared out of order", heading)
		}
		last = idx
	}
}

func TestAssemble_ActiveBootstrapShortCircuits(t *testing.T) {
	asm := New()
	snap := &workspace.Snapshot{Bootstrap: "Ask for the user's name first."}
	prompt := asm.Assemble(Request{ModelID: "sonnet", Now: time.Now(), Workspace: snap})

	if !strings.Contains(prompt, "# Onboarding") {
		t.Error("expected the onboarding block when bootstrap is active")
	}
	if strings.Contains(prompt, "## Core identity") {
		t.Error("expected onboarding mode to short-circuit the normal section list")
	}
}

func TestAssemble_ToolNotesListTruncatedFiles(t *testing.T) {
	asm := New()
	snap := &workspace.Snapshot{Truncated: []string{"soul.md"}}
	prompt := asm.Assemble(Request{ModelID: "sonnet", Now: time.Now(), Workspace: snap})

	if !strings.Contains(prompt, "soul.md") {
		t.Error("expected the truncated file name to appear in tool notes")
	}
}

func TestAssemble_RuntimeContextIncludesModelAndTime(t *testing.T) {
	asm := New()
	now := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	prompt := asm.Assemble(Request{ModelID: "opus", Now: now, RuntimeInfo: "platform: linux"})

	if !strings.Contains(prompt, "Model: opus") {
		t.Error("expected model id in runtime context")
	}
	if !strings.Contains(prompt, "platform: linux") {
		t.Error("expected runtime info in runtime context")
	}
}
