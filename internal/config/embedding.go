package config

// EmbeddingConfig configures the pluggable embedding backend; only the
// cosine-similarity contract is mandated, the provider is a free choice.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" or "genai"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"` // Ollama endpoint
	APIKey   string `yaml:"api_key"`  // GenAI key
}

// DefaultEmbeddingConfig returns sensible defaults.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider: "ollama",
		Model:    "nomic-embed-text",
		BaseURL:  "http://localhost:11434",
	}
}
