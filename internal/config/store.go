package config

// StoreConfig configures the hybrid vector/FTS store.
type StoreConfig struct {
	Path          string  `yaml:"path"`
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	MinScore      float64 `yaml:"min_score"`
	RequireVec    bool    `yaml:"require_vec"`
}

// DefaultStoreConfig returns sensible defaults (0.7/0.3 fusion weights).
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Path:          "~/.companionbot/memory/.fts-index.db",
		VectorWeight:  0.7,
		KeywordWeight: 0.3,
		MinScore:      0.2,
		RequireVec:    false,
	}
}
