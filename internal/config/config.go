package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ExecMode controls whether script execution is gated on operator approval.
type ExecMode string

const (
	// ModeAsk requires explicit approval before any script runs.
	ModeAsk ExecMode = "ask"
	// ModeAuto executes proposed scripts without an operator gate.
	ModeAuto ExecMode = "auto"
)

// Config is the merged file + default configuration.
type Config struct {
	LLM struct {
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"llm"`

	Execution struct {
		WorkingDir string        `yaml:"working_dir"`
		Mode       ExecMode      `yaml:"mode"`
		Shell      string        `yaml:"shell"`
		Sandbox    string        `yaml:"sandbox"` // "" or "docker"
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"execution"`

	Skills struct {
		Dir string `yaml:"dir"`
	} `yaml:"skills"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	cfg.Execution.WorkingDir = "./.aiops_workspace"
	cfg.Execution.Mode = ModeAsk
	cfg.Execution.Shell = "/bin/bash"
	cfg.Execution.Timeout = 5 * time.Minute
	return cfg
}

// Load reads the YAML config file at path and merges it over defaults.
// A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Execution.Mode != ModeAuto {
		cfg.Execution.Mode = ModeAsk
	}
	if cfg.Execution.Timeout <= 0 {
		cfg.Execution.Timeout = 5 * time.Minute
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	return cfg, nil
}

// RequireAPIKey resolves the backend API key or fails.
// A missing key is process-fatal: the agent refuses to start half-configured.
func (c *Config) RequireAPIKey() (string, error) {
	keyEnv := c.LLM.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		key = Env().OpenAIKey
	}
	if key == "" {
		return "", fmt.Errorf("missing %s environment variable", keyEnv)
	}
	return key, nil
}
