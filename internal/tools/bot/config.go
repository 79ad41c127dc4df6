// Package bot provides the companion's own domain tools: saving and
// searching long-term memory, spawning and tracking background sub-agents,
// and scheduling, cancelling, and listing timed jobs. Unlike the file/shell/
// research tool packages, every tool here wires into a collaborator that is
// specific to one chat (the agent manager, the scheduler, the workspace
// adapter), so handlers recover the current chatId from context via
// session.ChatIDFromContext rather than taking it as a tool argument the
// model would have to supply.
package bot

import (
	"sync"

	"companionbot/internal/agent"
	"companionbot/internal/scheduler"
	"companionbot/internal/store"
	"companionbot/internal/workspace"
)

// depsMu guards the package-level collaborator set below, following the
// same Configure-once-at-startup idiom as internal/tools/research's
// searchConfigMu: tool Execute fields are package-level functions, not
// closures over a receiver, so runtime dependencies are injected into
// package state rather than a struct.
var depsMu sync.RWMutex

var (
	workspaceAdapter *workspace.Adapter
	memoryStore      *store.LocalStore
	agentManager     *agent.Manager
	jobScheduler     *scheduler.Scheduler
)

// Configure sets the collaborators every tool in this package dispatches
// into. Call once at startup before the tools are registered.
func Configure(ws *workspace.Adapter, ms *store.LocalStore, am *agent.Manager, sch *scheduler.Scheduler) {
	depsMu.Lock()
	defer depsMu.Unlock()
	workspaceAdapter = ws
	memoryStore = ms
	agentManager = am
	jobScheduler = sch
}

func deps() (*workspace.Adapter, *store.LocalStore, *agent.Manager, *scheduler.Scheduler) {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return workspaceAdapter, memoryStore, agentManager, jobScheduler
}
