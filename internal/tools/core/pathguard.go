package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// allowedRoots lists the absolute directories file tools are permitted to
// touch. Configured once at startup via SetAllowedRoots; defaults to the
// companion's own workspace plus /tmp so tests and ad-hoc scratch files work
// before configuration is wired.
var (
	allowedRootsMu sync.RWMutex
	allowedRoots   = defaultAllowedRoots()
)

// defaultSearchRoot returns the first configured allowed root, used as the
// implicit base directory for glob/grep when the caller omits one.
func defaultSearchRoot() string {
	allowedRootsMu.RLock()
	defer allowedRootsMu.RUnlock()
	if len(allowedRoots) > 0 {
		return allowedRoots[0]
	}
	return "."
}

func defaultAllowedRoots() []string {
	home, err := os.UserHomeDir()
	roots := []string{os.TempDir()}
	if err == nil {
		roots = append(roots, filepath.Join(home, ".companionbot"))
	}
	return roots
}

// SetAllowedRoots replaces the set of directories file tools may operate
// under. Entries starting with "~/" are expanded against the user's home
// directory.
func SetAllowedRoots(roots []string) {
	expanded := make([]string, 0, len(roots))
	home, _ := os.UserHomeDir()
	for _, r := range roots {
		if home != "" && strings.HasPrefix(r, "~/") {
			r = filepath.Join(home, strings.TrimPrefix(r, "~/"))
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		expanded = append(expanded, abs)
	}
	allowedRootsMu.Lock()
	allowedRoots = expanded
	allowedRootsMu.Unlock()
}

// blockedBasenames never resolve, regardless of root, because exposing them
// to the model would hand it persistence or credential material.
var blockedBasenames = map[string]bool{
	".bashrc": true, ".bash_profile": true, ".zshrc": true, ".profile": true,
	".ssh": true, "authorized_keys": true, "id_rsa": true, "id_ed25519": true,
	".env": true, ".netrc": true, ".git": true,
}

func isBlockedPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if blockedBasenames[part] {
			return true
		}
		if strings.HasPrefix(part, "hooks") && strings.Contains(path, ".git/hooks") {
			return true
		}
	}
	return false
}

func withinAllowedRoot(abs string) bool {
	allowedRootsMu.RLock()
	defer allowedRootsMu.RUnlock()
	for _, root := range allowedRoots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolveGuardedPath validates path against the allowlisted roots and the
// filename blocklist, then opens it without following a final
// symlink. It returns the resolved absolute path and an already-open
// descriptor whose identity is re-checked against a post-resolve Stat to
// close the window between the permission check and the actual open
// (classic TOCTOU). Callers that only need the resolved path for a new file
// (write target that doesn't exist yet) should pass mustExist=false; the
// descriptor is nil in that case and the caller is responsible for the
// eventual open.
func resolveGuardedPath(path string, mustExist bool) (resolved string, err error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if isBlockedPath(abs) {
		return "", fmt.Errorf("access to %s is blocked by policy", path)
	}
	if !withinAllowedRoot(abs) {
		return "", fmt.Errorf("path %s is outside allowed roots", path)
	}

	lst, lerr := os.Lstat(abs)
	if lerr != nil {
		if mustExist {
			return "", fmt.Errorf("failed to stat path: %w", lerr)
		}
		// Doesn't exist yet (write target). The lexical prefix check above
		// only rules out the leaf itself escaping the sandbox; a symlink
		// planted at any ancestor directory could still redirect the
		// eventual open outside the allowed roots, so walk the parent chain
		// explicitly.
		if err := verifyParentChainNoSymlink(abs); err != nil {
			return "", err
		}
		return abs, nil
	}
	if lst.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("refusing to follow symlink at %s", path)
	}

	return abs, nil
}

// verifyParentChainNoSymlink walks from abs's immediate parent upward,
// stopping once it steps outside the allowed roots, and rejects the whole
// chain if any directory along the way is a symlink. Without this, a
// symlink planted inside the sandbox (e.g. ~/.companionbot/subdir ->
// /etc) would let a write to a not-yet-existing leaf under that symlink
// pass the lexical prefix check and land outside the sandbox once opened.
func verifyParentChainNoSymlink(abs string) error {
	dir := filepath.Dir(abs)
	for withinAllowedRoot(dir) {
		lst, err := os.Lstat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				parent := filepath.Dir(dir)
				if parent == dir {
					return nil
				}
				dir = parent
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if lst.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write under %s: %s is a symlink", abs, dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
	return nil
}

// openGuardedNoFollow opens an already-validated absolute path with
// O_NOFOLLOW and confirms the descriptor's inode/device match the Lstat
// taken moments earlier, defeating a symlink swapped in between the two
// checks.
func openGuardedNoFollow(abs string, flag int, perm os.FileMode) (*os.File, error) {
	preStat, preErr := os.Lstat(abs)

	f, err := os.OpenFile(abs, flag|syscall.O_NOFOLLOW, perm)
	if err != nil {
		return nil, err
	}

	// A missing pre-stat means this is a fresh create (the caller already
	// validated the parent directory); nothing existed to have been swapped.
	if preErr != nil {
		return f, nil
	}

	postStat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !os.SameFile(preStat, postStat) {
		f.Close()
		return nil, fmt.Errorf("path changed identity between check and open: %s", abs)
	}

	return f, nil
}
