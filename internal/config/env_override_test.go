package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrideWinsOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: sk-from-yaml\n  base_url: http://yaml.example\n"), 0644))
	t.Setenv("COMPANIONBOT_LLM_API_KEY", "sk-from-env")
	t.Setenv("COMPANIONBOT_LLM_BASE_URL", "http://env.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "http://env.example", cfg.LLM.BaseURL)
}
