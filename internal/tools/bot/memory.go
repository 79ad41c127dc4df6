package bot

import (
	"context"
	"fmt"
	"strings"

	"companionbot/internal/logging"
	"companionbot/internal/store"
	"companionbot/internal/tools"
)

// memorySource tags chunks written by save_memory in the chunk store, so
// note-derived chunks carry a source of their own apart from workspace-file
// chunks. ReindexAll clears chunks of every source, notes included.
const memorySource = "memory:note"

// SaveMemoryTool returns a tool that appends a note to the workspace's
// daily memory log and indexes it for later retrieval by search_memory.
func SaveMemoryTool() *tools.Tool {
	return &tools.Tool{
		Name:        "save_memory",
		Description: "Save a note to long-term memory: appends it to today's memory log and makes it searchable later",
		Category:    tools.CategoryMemory,
		Priority:    60,
		Execute:     executeSaveMemory,
		Schema: tools.ToolSchema{
			Required: []string{"note"},
			Properties: map[string]tools.Property{
				"note": {
					Type:        "string",
					Description: "The note to remember, in the model's own words",
				},
			},
		},
	}
}

func executeSaveMemory(ctx context.Context, args map[string]any) (string, error) {
	note, _ := args["note"].(string)
	note = strings.TrimSpace(note)
	if note == "" {
		return "", fmt.Errorf("note is required")
	}

	ws, ms, _, _ := deps()
	if ws == nil {
		return "", fmt.Errorf("save_memory is not configured (no workspace adapter)")
	}

	if err := ws.AppendMemory(note); err != nil {
		return "", fmt.Errorf("append memory: %w", err)
	}

	if ms != nil {
		if _, err := ms.InsertChunk(ctx, memorySource, note); err != nil {
			logging.ToolsWarn("save_memory: note logged but not indexed for search: %v", err)
			return "Saved to memory (not yet searchable: indexing failed).", nil
		}
	}

	return "Saved to memory.", nil
}

// SearchMemoryTool returns a tool that searches previously saved memory and
// ingested workspace content via the hybrid search engine.
func SearchMemoryTool() *tools.Tool {
	return &tools.Tool{
		Name:        "search_memory",
		Description: "Search long-term memory for notes and workspace content relevant to a query",
		Category:    tools.CategoryMemory,
		Priority:    60,
		Execute:     executeSearchMemory,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "What to search for",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results to return (default: 5)",
					Default:     5,
				},
			},
		},
	}
}

func executeSearchMemory(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	_, ms, _, _ := deps()
	if ms == nil {
		return "", fmt.Errorf("search_memory is not configured (no memory store)")
	}

	maxResults := 5
	if mr, ok := args["max_results"].(int); ok && mr > 0 {
		maxResults = mr
	}
	if maxResults > 20 {
		maxResults = 20
	}

	results, err := ms.HybridSearch(ctx, query, maxResults, store.DefaultVectorWeight, store.DefaultKeywordWeight)
	if err != nil {
		return "", fmt.Errorf("search memory: %w", err)
	}
	if len(results) == 0 {
		return "No memory found for: " + query, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memory result(s) for %q:\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. (%s, score %.3f) %s\n", i+1, r.Source, r.Score, strings.TrimSpace(r.Text))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
