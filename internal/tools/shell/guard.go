package shell

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// commandMu guards the package-level security configuration below, set
// once at startup via Configure and read on every run_command call.
var commandMu sync.RWMutex

var (
	commandAllowlist  = map[string]bool{"git": true, "npm": true, "ls": true, "cat": true, "grep": true, "find": true, "echo": true, "pwd": true, "go": true}
	foregroundTimeout = 30 * time.Second
	resultTruncateAt  = 10000
)

// Configure sets the command allowlist, default foreground timeout, and
// output truncation length from the resolved tools configuration. Passing
// a nil or empty allowlist keeps the package's built-in default.
func Configure(allowlist []string, timeout time.Duration, truncateAt int) {
	commandMu.Lock()
	defer commandMu.Unlock()
	if len(allowlist) > 0 {
		next := make(map[string]bool, len(allowlist))
		for _, c := range allowlist {
			next[c] = true
		}
		commandAllowlist = next
	}
	if timeout > 0 {
		foregroundTimeout = timeout
	}
	if truncateAt > 0 {
		resultTruncateAt = truncateAt
	}
}

func isAllowedCommand(name string) bool {
	commandMu.RLock()
	defer commandMu.RUnlock()
	return commandAllowlist[name]
}

func defaultForegroundTimeout() time.Duration {
	commandMu.RLock()
	defer commandMu.RUnlock()
	return foregroundTimeout
}

func truncateLimit() int {
	commandMu.RLock()
	defer commandMu.RUnlock()
	return resultTruncateAt
}

// shellMetacharacters matches the characters that would let a single argv
// element smuggle a second command through if it were ever interpreted by
// a shell downstream: command separators, pipes, backticks, newlines,
// command substitution, and redirection.
var shellMetacharacters = regexp.MustCompile("[;&|`\n$<>]")

// dangerousFlags blocks argument flags on otherwise-allowlisted commands
// that turn them into a general command executor (find -exec/-delete) or
// an arbitrary-server RCE vector (git's pack-protocol override flags).
var dangerousFlags = []string{
	"-exec", "-execdir", "-delete", "-ok", "-okdir",
	"--upload-pack", "--receive-pack", "-o", "--output",
}

// validateCommand checks a command name and its arguments against the
// allowlist, the shell-metacharacter filter, and the dangerous-flag list.
// No argv element ever reaches os/exec unchecked.
func validateCommand(name string, args []string) error {
	if name == "" {
		return fmt.Errorf("command is required")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("command must be a bare name, not a path: %q", name)
	}
	if !isAllowedCommand(name) {
		return fmt.Errorf("command %q is not in the allowlist", name)
	}
	if shellMetacharacters.MatchString(name) {
		return fmt.Errorf("command contains disallowed characters: %q", name)
	}
	for _, a := range args {
		if shellMetacharacters.MatchString(a) {
			return fmt.Errorf("argument contains disallowed characters: %q", a)
		}
		for _, df := range dangerousFlags {
			if a == df || strings.HasPrefix(a, df+"=") {
				return fmt.Errorf("argument %q is not permitted", a)
			}
		}
	}
	return nil
}
