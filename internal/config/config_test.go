package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Session.MaxSessions)
	assert.Equal(t, 10, cfg.Agents.MaxConcurrent)
	assert.Equal(t, 3, cfg.Agents.MaxPerChat)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMConfig().Provider, cfg.LLM.Provider)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  tiers:\n    sonnet:\n      model: claude-opus-4-5\nsession:\n  max_sessions: 42\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-5", cfg.LLM.Tiers.Sonnet.Model)
	assert.Equal(t, 42, cfg.Session.MaxSessions)
}

func TestValidateRejectsInvertedAgentCaps(t *testing.T) {
	cfg := Default()
	cfg.Agents.MaxPerChat = 20
	cfg.Agents.MaxConcurrent = 10
	assert.Error(t, cfg.Validate())
}
