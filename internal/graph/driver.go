// Package graph provides an optional graph-database mirror for agent
// events. High-level code depends on the Driver abstraction, never on
// a concrete database client.
package graph

import (
	"context"
)

// Record represents a single result row from a query.
type Record map[string]any

// Driver defines graph database operations. The agent degrades
// gracefully when no driver is configured: a nil Driver simply skips
// persistence.
type Driver interface {
	// Execute runs a read query and returns results.
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)

	// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
}

// GetString extracts a string value from a Record.
func GetString(r Record, key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt extracts an int value from a Record.
// Handles int, int64, and float64 (truncated).
func GetInt(r Record, key string) int {
	if v, ok := r[key]; ok {
		switch n := v.(type) {
		case int64:
			return int(n)
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetBool extracts a bool value from a Record.
func GetBool(r Record, key string) bool {
	if v, ok := r[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
