// Package graph: bolt-protocol implementation.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/joss/aiops/internal/config"
	"github.com/joss/aiops/internal/logging"
)

// Bolt implements Driver over the neo4j bolt protocol (works against
// Neo4j and Memgraph).
type Bolt struct {
	driver neo4j.DriverWithContext
	config Config
}

// NewBolt creates a bolt driver.
func NewBolt(cfg Config) (*Bolt, error) {
	var auth neo4j.AuthToken
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("creating bolt driver: %w", err)
	}
	return &Bolt{driver: driver, config: cfg}, nil
}

// Execute runs a read query and returns results.
func (b *Bolt) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var records []Record
	for result.Next(ctx) {
		rec := result.Record()
		record := make(Record)
		for _, key := range rec.Keys {
			val, _ := rec.Get(key)
			record[key] = val
		}
		records = append(records, record)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}
	return records, nil
}

// ExecuteWrite runs a write query.
func (b *Bolt) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("write query failed: %w", err)
	}
	return nil
}

// Close releases the database driver.
func (b *Bolt) Close() error {
	return b.driver.Close(context.Background())
}

// Ping checks database connectivity.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.driver.VerifyConnectivity(ctx)
}

// ConnectFromEnv connects using NEO4J_* environment configuration.
// Returns nil when unconfigured or unreachable (graceful degradation:
// the agent runs fine without the mirror).
func ConnectFromEnv() Driver {
	env := config.Env()
	if env.Neo4jURI == "" {
		return nil
	}

	log := logging.New("graph")
	bolt, err := NewBolt(Config{
		URI:      env.Neo4jURI,
		Username: env.Neo4jUser,
		Password: env.Neo4jPassword,
	})
	if err != nil {
		log.Warn("graph_unavailable", map[string]interface{}{"uri": env.Neo4jURI}, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bolt.Ping(ctx); err != nil {
		log.Warn("graph_unreachable", map[string]interface{}{"uri": env.Neo4jURI}, err)
		bolt.Close()
		return nil
	}
	return bolt
}
