package companion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"companionbot/internal/logging"
)

// maxURLsPerTurn caps how many URLs a single inbound message can trigger
// fetches for, so a message pasting a long list of links can't turn one
// turn into dozens of outbound requests.
const maxURLsPerTurn = 3

var urlPattern = regexp.MustCompile(`https?://[^\s<>()"']+`)

// fetchReferencedURLs extracts up to maxURLsPerTurn URLs from text and
// fetches each through the registered web_fetch tool in parallel,
// returning their bodies concatenated under a heading so the orchestrator
// can fold them into this turn's API-bound message without persisting them
// to history. Returns "" if text has no URLs, the tool isn't registered,
// or every fetch fails.
func (h *Handler) fetchReferencedURLs(ctx context.Context, text string) string {
	urls := uniqueURLs(text, maxURLsPerTurn)
	if len(urls) == 0 || !h.registry.Has("web_fetch") {
		return ""
	}

	bodies := make([]string, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			result, err := h.registry.Execute(ctx, "web_fetch", map[string]any{"url": u})
			if err != nil {
				logging.ToolsWarn("companion: fetch of %s failed: %v", u, err)
				return
			}
			bodies[i] = fmt.Sprintf("### %s\n%s", u, result.Result)
		}(i, u)
	}
	wg.Wait()

	var nonEmpty []string
	for _, b := range bodies {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return "## Fetched links\n\n" + strings.Join(nonEmpty, "\n\n")
}

// uniqueURLs returns up to max distinct URLs found in text, in the order
// they first appear.
func uniqueURLs(text string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == max {
			break
		}
	}
	return out
}
