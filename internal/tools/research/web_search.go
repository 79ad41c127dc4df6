package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"companionbot/internal/logging"
	"companionbot/internal/tools"
)

// searchConfigMu guards the package-level web-search configuration below,
// set once at startup via Configure.
var searchConfigMu sync.RWMutex

var (
	searchAPIKey string
	searchURL    = "https://api.search.brave.com/res/v1/web/search"
)

// Configure sets the web-search API key and endpoint. An empty key leaves
// web_search disabled; executeWebSearch returns a clear error result
// instead of silently skipping the call, so the model knows why it got
// nothing back.
func Configure(apiKey, endpoint string) {
	searchConfigMu.Lock()
	defer searchConfigMu.Unlock()
	searchAPIKey = apiKey
	if endpoint != "" {
		searchURL = endpoint
	}
}

func searchConfig() (key, endpoint string) {
	searchConfigMu.RLock()
	defer searchConfigMu.RUnlock()
	return searchAPIKey, searchURL
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchTool returns a tool for searching the web via a signed query to
// a configured search API.
func WebSearchTool() *tools.Tool {
	return &tools.Tool{
		Name:        "web_search",
		Description: "Search the web for information using a configured search API",
		Category:    tools.CategoryResearch,
		Priority:    75,
		Execute:     executeWebSearch,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "The search query",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results to return (default: 10)",
					Default:     10,
				},
			},
		},
	}
}

func executeWebSearch(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	apiKey, endpoint := searchConfig()
	if apiKey == "" {
		return "Error: web_search is not configured (no API key set)", nil
	}

	maxResults := 10
	if mr, ok := args["max_results"].(int); ok && mr > 0 {
		maxResults = mr
	}
	if maxResults > 30 {
		maxResults = 30
	}

	logging.RetrievalDebug("Web search: query=%q, max_results=%d", query, maxResults)

	results, err := searchAPI(ctx, endpoint, apiKey, query, maxResults)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		logging.Retrieval("Web search returned no results for: %s", query)
		return "No results found for: " + query, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Search Results for: %s\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d results:\n\n", len(results)))

	for i, result := range results {
		sb.WriteString(fmt.Sprintf("## %d. %s\n", i+1, result.Title))
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", result.URL))
		if result.Snippet != "" {
			sb.WriteString(fmt.Sprintf("\n%s\n", result.Snippet))
		}
		sb.WriteString("\n---\n\n")
	}

	logging.Retrieval("Web search completed: %d results for %q", len(results), query)
	return sb.String(), nil
}

// braveSearchResponse models the subset of the Brave Search API's response
// shape this tool consumes.
type braveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// searchAPI sends a signed GET to the configured search endpoint (Brave's
// request shape by default: the key travels as a header, never a query
// parameter, so it never ends up in a proxy access log) and parses the
// response into SearchResult.
func searchAPI(ctx context.Context, endpoint, apiKey, query string, maxResults int) ([]SearchResult, error) {
	reqURL := fmt.Sprintf("%s?q=%s&count=%d", endpoint, url.QueryEscape(query), maxResults)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed braveSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}

// SearchResultsToJSON converts results to JSON for structured output.
func SearchResultsToJSON(results []SearchResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
