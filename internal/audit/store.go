package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joss/aiops/internal/graph"
	"github.com/joss/aiops/internal/logging"
)

// Store persists events to sqlite, optionally mirroring each event to
// a graph database when one is configured. The mirror is best effort:
// graph failures never fail the local write.
type Store struct {
	db     *sql.DB
	mirror graph.Driver
	log    *logging.Logger
}

// Open opens (and migrates) the audit database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	s := &Store{db: db, log: logging.New("audit")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		category TEXT NOT NULL,
		operation TEXT NOT NULL,
		command TEXT,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SetMirror configures the optional graph mirror.
func (s *Store) SetMirror(driver graph.Driver) {
	s.mirror = driver
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists an event.
func (s *Store) Record(ctx context.Context, e *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, session_id, category, operation, command, status, exit_code, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, string(e.Category), e.Operation, e.Command, string(e.Status), e.ExitCode, e.Error, e.StartedAt.UTC(), e.Duration)
	if err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}

	s.mirrorEvent(ctx, e)
	return nil
}

func (s *Store) mirrorEvent(ctx context.Context, e *Event) {
	if s.mirror == nil {
		return
	}
	query := `
		MERGE (sess:Session {session_id: $session_id})
		CREATE (e:AgentEvent {
			id: $id,
			category: $category,
			operation: $operation,
			command: $command,
			status: $status,
			exit_code: $exit_code,
			error: $error,
			started_at: $started_at,
			duration_ms: $duration_ms
		})
		CREATE (sess)-[:LOGGED]->(e)
	`
	err := s.mirror.ExecuteWrite(ctx, query, map[string]any{
		"session_id":  e.SessionID,
		"id":          e.ID,
		"category":    string(e.Category),
		"operation":   e.Operation,
		"command":     e.Command,
		"status":      string(e.Status),
		"exit_code":   e.ExitCode,
		"error":       e.Error,
		"started_at":  e.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms": e.Duration,
	})
	if err != nil {
		s.log.Warn("graph_mirror_failed", map[string]interface{}{"event": e.ID}, err)
	}
}

// Recent returns the latest events for a session, newest first.
// An empty sessionID returns events across all sessions.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, session_id, category, operation, command, status, exit_code, error, started_at, duration_ms
		FROM events`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var command, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, (*string)(&e.Category), &e.Operation, &command, (*string)(&e.Status), &e.ExitCode, &errMsg, &e.StartedAt, &e.Duration); err != nil {
			return nil, err
		}
		e.Command = command.String
		e.Error = errMsg.String
		events = append(events, e)
	}
	return events, rows.Err()
}
