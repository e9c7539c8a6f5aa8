package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ModeAsk, cfg.Execution.Mode)
	assert.Equal(t, "/bin/bash", cfg.Execution.Shell)
	assert.Equal(t, 5*time.Minute, cfg.Execution.Timeout)
	assert.NotEmpty(t, cfg.LLM.Model)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aiops.yaml")
	content := `
llm:
  model: gpt-4o
execution:
  mode: auto
  sandbox: docker
  timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, ModeAuto, cfg.Execution.Mode)
	assert.Equal(t, "docker", cfg.Execution.Sandbox)
	assert.Equal(t, 30*time.Second, cfg.Execution.Timeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/bin/bash", cfg.Execution.Shell)
}

func TestLoadNormalizesBadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aiops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("execution:\n  mode: yolo\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeAsk, cfg.Execution.Mode)
}

func TestLoadBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aiops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [broken"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRequireAPIKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKeyEnv = "AIOPS_TEST_KEY"

	// Pin the singleton fallback so an ambient OPENAI_API_KEY cannot
	// leak into the test.
	ResetEnv()
	t.Cleanup(ResetEnv)
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("AIOPS_TEST_KEY")
	_, err := cfg.RequireAPIKey()
	assert.Error(t, err, "a missing key refuses to start")

	t.Setenv("AIOPS_TEST_KEY", "sk-test")
	key, err := cfg.RequireAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)
}

func TestPathsAt(t *testing.T) {
	p := PathsAt("/work")
	assert.Equal(t, "/work", p.Root)
	assert.Equal(t, filepath.Join("/work", ".aiops_state.json"), p.StateFile)
	assert.Equal(t, filepath.Join("/work", "script.sh"), p.ScriptFile)
	assert.Equal(t, filepath.Join("/work", "history.db"), p.HistoryDB)
	assert.Equal(t, filepath.Join("/work", "skills"), p.Skills)
}
