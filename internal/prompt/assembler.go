// Package prompt assembles the system prompt handed to the LLM for each
// turn: a fixed ordering of markdown-headed sections drawn from the
// workspace snapshot, session state, retrieved memory, and the tool
// registry.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"companionbot/internal/logging"
	"companionbot/internal/store"
	"companionbot/internal/tokens"
	"companionbot/internal/tools"
	"companionbot/internal/workspace"
)

// coreIdentity is the companion's built-in persona, always present
// regardless of what the workspace's identity.md customizes or overrides.
const coreIdentity = `You are a persistent conversational companion. You remember this
person across sessions, care about continuity, and speak plainly rather
than performing enthusiasm you don't have.`

const operatingGuidelines = `Stay grounded in what you actually know from this conversation and the
workspace files below; say so plainly when you don't know something rather
than inventing detail. Prefer a short true answer over a long confident
one.`

const toolUsageDoctrine = `Use a tool when it gets a better answer than guessing would: read a file
instead of assuming its contents, fetch a URL instead of describing a page
from memory, schedule a reminder instead of promising to remember
something that needs to survive a restart. Don't narrate tool calls you
aren't making.`

// Request carries everything the assembler needs to build one turn's
// system prompt.
type Request struct {
	ModelID     string
	Workspace   *workspace.Snapshot
	PinnedBlock string // session.Store.BuildContextForPrompt output, inserted verbatim
	Memory      []store.SearchResult
	Tools       []*tools.Tool
	Now         time.Time
	RuntimeInfo string
}

// Assembler builds system prompts in the fixed section order: onboarding
// (short-circuit, when the workspace has an active bootstrap file) or
// core identity, soul, identity, user, runtime context, operating
// guidelines, recent daily memory, long-term memory, pinned context, tool
// notes, tool usage doctrine, tool schemas.
type Assembler struct {
	estimator *tokens.Estimator
}

// New builds an Assembler.
func New() *Assembler {
	return &Assembler{estimator: tokens.NewEstimator()}
}

// Assemble builds the system prompt string for req.
func (a *Assembler) Assemble(req Request) string {
	if req.Workspace != nil && req.Workspace.HasActiveBootstrap() {
		prompt := a.onboardingSection(req.Workspace.Bootstrap)
		a.logAssembled(prompt, true)
		return prompt
	}

	var b sectionBuilder
	b.add("Core identity", coreIdentity)
	if req.Workspace != nil {
		b.add("Soul", req.Workspace.Soul)
		b.add("Identity", req.Workspace.Identity)
		b.add("About the user", req.Workspace.User)
	}
	b.add("Runtime context", a.runtimeContext(req))
	b.add("Operating guidelines", operatingGuidelines)
	if req.Workspace != nil {
		b.add("Recent daily memory", req.Workspace.RecentDaily)
	}
	b.add("Long-term memory", formatMemory(req.Memory))
	b.addRaw(req.PinnedBlock) // already headed by session.Store.BuildContextForPrompt
	if req.Workspace != nil {
		b.add("Tool notes", toolNotes(req.Workspace.Truncated))
	}
	b.add("Tool usage doctrine", toolUsageDoctrine)
	b.add("Available tools", formatTools(req.Tools))

	prompt := b.String()
	a.logAssembled(prompt, false)
	return prompt
}

func (a *Assembler) onboardingSection(bootstrap string) string {
	return "# Onboarding\n\n" + strings.TrimSpace(bootstrap)
}

func (a *Assembler) runtimeContext(req Request) string {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %s\n", req.ModelID)
	fmt.Fprintf(&b, "Current time: %s\n", now.Format(time.RFC1123))
	if req.RuntimeInfo != "" {
		b.WriteString(req.RuntimeInfo)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) logAssembled(prompt string, onboarding bool) {
	logging.PromptDebug("assembled system prompt: %d chars, ~%d tokens (onboarding=%v)",
		len(prompt), a.estimator.Estimate(prompt), onboarding)
}

// formatMemory renders hybrid-search results as a bulleted list, most
// relevant first (callers pass results already ranked by fused score).
func formatMemory(results []store.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- (%s) %s\n", r.Source, strings.TrimSpace(r.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

// toolNotes tells the model which workspace files were truncated and that
// it can read_file the rest.
func toolNotes(truncated []string) string {
	if len(truncated) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("These workspace files were truncated above; use read_file for the full contents if you need more:\n")
	for _, name := range truncated {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatTools renders each tool's name, description, and parameter schema
// as a compact block the model can address without a separate tool-list
// call.
func formatTools(ts []*tools.Tool) string {
	if len(ts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range ts {
		fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
		for name, prop := range t.Schema.Properties {
			required := ""
			if containsStr(t.Schema.Required, name) {
				required = ", required"
			}
			fmt.Fprintf(&b, "- `%s` (%s%s): %s\n", name, prop.Type, required, prop.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// sectionBuilder joins non-empty sections under stable markdown headings,
// separated by a blank line, mirroring the teacher's FinalAssembler
// category-ordered join.
type sectionBuilder struct {
	sections []string
}

func (s *sectionBuilder) add(heading, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.sections = append(s.sections, fmt.Sprintf("## %s\n\n%s", heading, content))
}

// addRaw inserts content verbatim at this position in the section order,
// for callers that already produce their own markdown heading(s) (the
// session store's pinned-context/summary block headers itself).
func (s *sectionBuilder) addRaw(content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.sections = append(s.sections, content)
}

func (s *sectionBuilder) String() string {
	return strings.Join(s.sections, "\n\n")
}
