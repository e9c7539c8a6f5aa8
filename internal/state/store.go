// Package state persists sessions and their message history.
// The store is the single source of truth for what happened in a
// conversation: every mutating call is persisted synchronously as one
// atomic full-state write, so a crash loses at most the in-flight call.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joss/aiops/internal/logging"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Messages are append-only:
// they are never mutated or deleted individually, only bulk-cleared.
type Message struct {
	Role       Role    `json:"role"`
	Content    string  `json:"content"`
	Timestamp  float64 `json:"ts"`
	ResponseID string  `json:"response_id,omitempty"`
}

// Session is a persisted conversation thread.
// LastResponseID is set iff at least one assistant message carried a
// continuation token from the backend.
type Session struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Created        float64   `json:"created"`
	Messages       []Message `json:"messages"`
	LastResponseID string    `json:"last_response_id,omitempty"`
}

// CreatedAt returns the creation time of the session.
func (s *Session) CreatedAt() time.Time {
	sec := int64(s.Created)
	nsec := int64((s.Created - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

type document struct {
	Sessions map[string]*Session `json:"conversations"`
	Current  string              `json:"current_conversation,omitempty"`
}

// Store owns the on-disk session document. It is safe for a single
// process only: no file locking is performed across processes.
type Store struct {
	path string
	doc  document
	log  *logging.Logger
}

// Open loads the store from path, starting fresh when no file exists.
// A corrupt file is reported and replaced by empty state rather than
// aborting startup.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		doc:  document{Sessions: make(map[string]*Session)},
		log:  logging.New("state"),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating state dir: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		s.log.Warn("state_load_failed", map[string]interface{}{"path": path}, err)
		s.doc = document{Sessions: make(map[string]*Session)}
		return s, nil
	}
	if s.doc.Sessions == nil {
		s.doc.Sessions = make(map[string]*Session)
	}
	return s, nil
}

// save writes the full document atomically: temp file in the same
// directory, then rename over the target.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// AddSession registers a new session and makes it current.
// Idempotent: an existing id is left untouched.
func (s *Store) AddSession(id, title string) error {
	if _, ok := s.doc.Sessions[id]; ok {
		return nil
	}
	if title == "" {
		title = "Untitled"
	}
	s.doc.Sessions[id] = &Session{
		ID:       id,
		Title:    title,
		Created:  float64(time.Now().UnixNano()) / 1e9,
		Messages: []Message{},
	}
	s.doc.Current = id
	return s.save()
}

// SetCurrent marks an existing session as current.
func (s *Store) SetCurrent(id string) error {
	if _, ok := s.doc.Sessions[id]; !ok {
		return &NotFoundError{ID: id}
	}
	s.doc.Current = id
	return s.save()
}

// GetCurrent returns the current session id, or "" when none is active.
func (s *Store) GetCurrent() string {
	return s.doc.Current
}

// Get returns a session by id.
func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.doc.Sessions[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return sess, nil
}

// ListSessions returns the session map keyed by id.
// The returned map must not be mutated by callers.
func (s *Store) ListSessions() map[string]*Session {
	return s.doc.Sessions
}

// Switch makes id the current session. Returns false when unknown.
func (s *Store) Switch(id string) bool {
	if _, ok := s.doc.Sessions[id]; !ok {
		return false
	}
	s.doc.Current = id
	if err := s.save(); err != nil {
		s.log.Error("state_save_failed", map[string]interface{}{"op": "switch"}, err)
		return false
	}
	return true
}

// Rename sets a new title on the session.
func (s *Store) Rename(id, title string) error {
	sess, ok := s.doc.Sessions[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	sess.Title = title
	return s.save()
}

// Delete removes a session. Deleting the current session clears the
// current pointer.
func (s *Store) Delete(id string) error {
	if _, ok := s.doc.Sessions[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.doc.Sessions, id)
	if s.doc.Current == id {
		s.doc.Current = ""
	}
	return s.save()
}

// AppendMessage records a turn. An assistant message carrying a
// response id advances the session's continuation chain.
func (s *Store) AppendMessage(id string, role Role, content, responseID string) error {
	sess, ok := s.doc.Sessions[id]
	if !ok {
		return &NotFoundError{ID: id}
	}

	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
	if responseID != "" {
		msg.ResponseID = responseID
		sess.LastResponseID = responseID
	}
	sess.Messages = append(sess.Messages, msg)
	return s.save()
}

// GetHistory returns the last limit messages in insertion order.
// A non-positive limit returns the full history.
func (s *Store) GetHistory(id string, limit int) ([]Message, error) {
	sess, ok := s.doc.Sessions[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear discards all messages and the continuation token of a session.
func (s *Store) Clear(id string) error {
	sess, ok := s.doc.Sessions[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	sess.Messages = []Message{}
	sess.LastResponseID = ""
	return s.save()
}
