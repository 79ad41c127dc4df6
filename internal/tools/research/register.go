package research

import (
	"companionbot/internal/tools"
)

// RegisterAll registers all research tools with the given registry.
// searchAPIKey/searchEndpoint configure web_search; an empty key leaves it
// registered but disabled (see executeWebSearch).
func RegisterAll(registry *tools.Registry, searchAPIKey, searchEndpoint string) error {
	Configure(searchAPIKey, searchEndpoint)

	allTools := []*tools.Tool{
		WebFetchTool(),
		WebSearchTool(),

		CacheGetTool(),
		CacheSetTool(),
		CacheClearTool(),
		CacheStatsTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
