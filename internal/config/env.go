// Package config provides centralized configuration management.
// All environment access goes through here instead of scattered os.Getenv calls.
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// AgentEnv holds all environment variables the agent reads.
type AgentEnv struct {
	// OpenAIKey is the model backend API key (OPENAI_API_KEY)
	OpenAIKey string

	// OpenAIBaseURL overrides the backend base URL (OPENAI_BASE_URL)
	OpenAIBaseURL string

	// Model is the default model (AIOPS_MODEL)
	Model string

	// SessionID pins the session used for audit records (AIOPS_SESSION_ID)
	SessionID string

	// Neo4jURI is the optional graph mirror URI (NEO4J_URI)
	Neo4jURI string

	// Neo4jUser is the graph database user (NEO4J_USER)
	Neo4jUser string

	// Neo4jPassword is the graph database password (NEO4J_PASSWORD)
	Neo4jPassword string
}

var (
	env     *AgentEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *AgentEnv {
	envOnce.Do(func() {
		env = &AgentEnv{
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:         getEnvDefault("AIOPS_MODEL", "gpt-4o-mini"),
			SessionID:     os.Getenv("AIOPS_SESSION_ID"),
			Neo4jURI:      os.Getenv("NEO4J_URI"),
			Neo4jUser:     os.Getenv("NEO4J_USER"),
			Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Paths holds the standard agent directory layout under the workspace root.
type Paths struct {
	// Root is the workspace directory (./.aiops_workspace by default)
	Root string

	// StateFile is the session state document
	StateFile string

	// ScriptFile is the mutable script artifact
	ScriptFile string

	// HistoryDB is the sqlite execution-history database
	HistoryDB string

	// Skills is the user skill directory
	Skills string
}

// PathsAt returns the directory layout rooted at the given workspace dir.
func PathsAt(root string) *Paths {
	return &Paths{
		Root:       root,
		StateFile:  filepath.Join(root, ".aiops_state.json"),
		ScriptFile: filepath.Join(root, "script.sh"),
		HistoryDB:  filepath.Join(root, "history.db"),
		Skills:     filepath.Join(root, "skills"),
	}
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
