// Package workspace reads and writes the companion's on-disk workspace: a
// small set of fixed-filename markdown files in the workspace root plus a
// per-day memory log.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/logging"
)

const (
	identityFile = "identity.md"
	soulFile     = "soul.md"
	userFile     = "user.md"
	agentsFile   = "agents.md"
	memoryFile   = "memory.md"
	bootstrapFile = "bootstrap.md"

	truncationSuffix = "\n...[truncated, use read_file to see the rest]"
)

// Snapshot is the result of Adapter.Load: the fixed set of workspace
// files plus today's daily memory log, each truncated to the configured
// per-file soft limit.
type Snapshot struct {
	Identity    string
	Soul        string
	User        string
	Agents      string
	Memory      string
	Bootstrap   string
	RecentDaily string

	// Truncated lists the filenames (relative to the workspace root) whose
	// content was cut off, so the assembled prompt can tell the model to
	// read_file for the rest.
	Truncated []string

	takenAt time.Time
}

// Adapter loads workspace snapshots and appends memory entries, caching the
// most recent snapshot for cfg.SnapshotCacheTTLMs so repeated prompt
// assemblies within the same turn don't re-read the filesystem.
type Adapter struct {
	mu  sync.Mutex
	cfg config.WorkspaceConfig
	root string

	cached *Snapshot
}

// New builds an Adapter rooted at cfg.Root, expanding a leading "~/" against
// the user's home directory and creating the directory if it doesn't exist.
func New(cfg config.WorkspaceConfig) (*Adapter, error) {
	root, err := expandRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("workspace: create root %s: %w", root, err)
	}
	return &Adapter{cfg: cfg, root: root}, nil
}

func expandRoot(root string) (string, error) {
	if strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("workspace: resolve home directory: %w", err)
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~/"))
	}
	return filepath.Abs(root)
}

// Root returns the workspace's absolute root directory.
func (a *Adapter) Root() string { return a.root }

// Path joins a relative name onto the workspace root. Used by file tools
// that need to resolve a workspace-relative path (e.g. read_file on a
// truncated file) to an absolute one.
func (a *Adapter) Path(name string) string {
	return filepath.Join(a.root, name)
}

// Load returns the current workspace snapshot, reusing the cached one if it
// was taken within cfg.SnapshotCacheTTLMs.
func (a *Adapter) Load() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	ttl := time.Duration(a.cfg.SnapshotCacheTTLMs) * time.Millisecond
	if a.cached != nil && time.Since(a.cached.takenAt) < ttl {
		return a.cached
	}

	snap := &Snapshot{takenAt: time.Now()}
	snap.Identity = a.readTruncated(identityFile, snap)
	snap.Soul = a.readTruncated(soulFile, snap)
	snap.User = a.readTruncated(userFile, snap)
	snap.Agents = a.readTruncated(agentsFile, snap)
	snap.Memory = a.readTruncated(memoryFile, snap)
	snap.Bootstrap = a.readTruncated(bootstrapFile, snap)
	snap.RecentDaily = a.readTruncated(dailyFileName(time.Now()), snap)

	a.cached = snap
	logging.WorkspaceDebug("loaded snapshot from %s (%d truncated)", a.root, len(snap.Truncated))
	return snap
}

// HasActiveBootstrap reports whether the bootstrap file is present and
// non-empty, which switches prompt assembly into onboarding short-circuit
// mode.
func (s *Snapshot) HasActiveBootstrap() bool {
	return strings.TrimSpace(s.Bootstrap) != ""
}

// readTruncated reads name from the workspace root, truncating it to the
// configured per-file soft limit and recording the name in snap.Truncated
// if it was cut. A missing file reads as empty content, not an error: most
// workspace files are optional and simply don't exist yet.
func (a *Adapter) readTruncated(name string, snap *Snapshot) string {
	data, err := os.ReadFile(a.Path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.WorkspaceWarn("read %s: %v", name, err)
		}
		return ""
	}

	limit := a.cfg.PerFileSoftLimit
	content := string(data)
	if limit > 0 && len(content) > limit {
		content = content[:limit] + truncationSuffix
		snap.Truncated = append(snap.Truncated, name)
	}
	return content
}

// AppendMemory appends a time-stamped markdown heading plus body to today's
// daily memory file, invalidating the cached snapshot so the next Load sees
// it.
func (a *Adapter) AppendMemory(note string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.Path(dailyFileName(time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("workspace: open daily memory file: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("\n## %s\n\n%s\n", time.Now().Format(time.RFC3339), strings.TrimSpace(note))
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("workspace: append daily memory: %w", err)
	}

	a.cached = nil
	logging.Workspace("appended memory entry to %s", filepath.Base(path))
	return nil
}

// dailyFileName returns the per-day memory filename for t, e.g.
// "daily-2026-08-06.md".
func dailyFileName(t time.Time) string {
	return fmt.Sprintf("daily-%s.md", t.Format("2006-01-02"))
}
